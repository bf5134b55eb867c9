package europepmc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"compound-harmonizer/providers"
)

// SourceName ist der Quellname für Treffer aus Europe PMC.
const SourceName = "EUROPEPMC"

var httpClient = providers.NewHTTPClient(60 * time.Second)

// tagReplacer entfernt Inline-Markup wie <i> oder <sub> aus Abstracts.
var tagReplacer = strings.NewReplacer("<i>", "", "</i>", "", "<b>", "", "</b>", "", "<sub>", "", "</sub>", "", "<sup>", "", "</sup>", "")

// Fetcher implementiert das Retriever-Interface für Europe PMC.
type Fetcher struct {
	BaseURL string
	Logger  *zap.Logger
	client  *http.Client
}

// NewFetcher erstellt einen neuen Europe PMC Fetcher.
func NewFetcher(baseURL string, logger *zap.Logger) *Fetcher {
	return &Fetcher{BaseURL: strings.TrimRight(baseURL, "/"), Logger: logger, client: httpClient}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return SourceName
}

// Retrieve liefert den ersten Abstract, dessen Titel oder Text den Namen enthält.
func (f *Fetcher) Retrieve(ctx context.Context, name string) (providers.Result, error) {
	log := f.Logger.With(zap.String("name", name))
	query := fmt.Sprintf("ABSTRACT:\"%s\"", name)
	searchURL := fmt.Sprintf("%s?query=%s&format=json&resultType=core&pageSize=5", f.BaseURL, url.QueryEscape(query))
	log.Debug("Rufe Europe PMC API auf", zap.String("url", searchURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return providers.NoResult(), err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return providers.NoResult(), err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return providers.NoResult(), fmt.Errorf("europepmc search failed: status %d", resp.StatusCode)
	}

	var searchResponse SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResponse); err != nil {
		return providers.NoResult(), err
	}

	needle := strings.ToLower(name)
	for _, article := range searchResponse.ResultList.Result {
		text := strings.TrimSpace(tagReplacer.Replace(article.AbstractText))
		if text == "" {
			continue
		}
		if strings.Contains(strings.ToLower(text), needle) || strings.Contains(strings.ToLower(article.Title), needle) {
			return providers.Result{Source: SourceName, Text: text}, nil
		}
	}
	log.Debug("Kein passender Abstract auf Europe PMC", zap.Int("hits", searchResponse.HitCount))
	return providers.NoResult(), nil
}
