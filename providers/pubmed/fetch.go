package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"compound-harmonizer/providers"
)

// SourceName ist der Quellname für Treffer aus PubMed.
const SourceName = "PUBMED"

var httpClient = providers.NewHTTPClient(60 * time.Second)

// Fetcher ist eine Struktur, die die Logik zur Interaktion mit PubMed kapselt.
type Fetcher struct {
	BaseURL string
	APIKey  string
	// MaxAbstracts begrenzt die Anzahl der Abstracts pro Name.
	MaxAbstracts int
	Logger       *zap.Logger
	client       *http.Client
}

// NewFetcher erstellt eine neue Instanz des PubMed-Fetchers.
func NewFetcher(baseURL, apiKey string, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIKey:       apiKey,
		MaxAbstracts: 3,
		Logger:       logger,
		client:       httpClient,
	}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return SourceName
}

// Retrieve sucht Artikel zum Namen und liefert deren Abstracts als einen Text.
func (f *Fetcher) Retrieve(ctx context.Context, name string) (providers.Result, error) {
	ids, err := f.searchIDs(ctx, name)
	if err != nil {
		return providers.NoResult(), fmt.Errorf("fehler bei der PubMed ID-Suche: %w", err)
	}
	if len(ids) == 0 {
		return providers.NoResult(), nil
	}

	articles, err := f.fetchArticles(ctx, ids)
	if err != nil {
		return providers.NoResult(), fmt.Errorf("fehler beim Abruf der PubMed-Abstracts: %w", err)
	}
	var parts []string
	for i := range articles {
		if text := articles[i].abstract(); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return providers.NoResult(), nil
	}
	return providers.Result{Source: SourceName, Text: strings.Join(parts, "\n\n")}, nil
}

// searchIDs führt eine ESearch-Abfrage durch und gibt eine Liste von PMIDs zurück.
func (f *Fetcher) searchIDs(ctx context.Context, name string) ([]string, error) {
	log := f.Logger.With(zap.String("name", name))
	term := fmt.Sprintf("\"%s\"[Title/Abstract]", name)
	searchURL := f.buildEsearchURL(term, f.MaxAbstracts)
	log.Debug("Rufe ESearch-URL auf", zap.String("url", searchURL))

	resp, err := f.get(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Error("ESearch-API hat nicht-200-Status zurückgegeben",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, fmt.Errorf("esearch failed: status %d", resp.StatusCode)
	}

	var esearchResp ESearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&esearchResp); err != nil {
		return nil, err
	}
	return esearchResp.ESearchResult.IdList, nil
}

// fetchArticles holt die Artikel zu den PMIDs via EFetch.
func (f *Fetcher) fetchArticles(ctx context.Context, ids []string) ([]PubmedArticle, error) {
	efetchURL := fmt.Sprintf("%s/efetch.fcgi?db=pubmed&id=%s&retmode=xml", f.BaseURL, strings.Join(ids, ","))
	if f.APIKey != "" {
		efetchURL += "&api_key=" + f.APIKey
	}
	f.Logger.Debug("Rufe EFetch-URL auf", zap.Strings("pmids", ids))

	resp, err := f.get(ctx, efetchURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("efetch failed: status %d", resp.StatusCode)
	}

	var articleSet PubmedArticleSet
	if err := xml.NewDecoder(resp.Body).Decode(&articleSet); err != nil {
		return nil, err
	}
	return articleSet.PubmedArticle, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return f.client.Do(req)
}

// buildEsearchURL baut die URL für eine ESearch-Anfrage.
func (f *Fetcher) buildEsearchURL(term string, retmax int) string {
	base := fmt.Sprintf("%s/esearch.fcgi?db=pubmed&term=%s&retmode=json&retmax=%d",
		f.BaseURL, url.QueryEscape(term), retmax)
	if f.APIKey != "" {
		base += "&api_key=" + f.APIKey
	}
	return base
}
