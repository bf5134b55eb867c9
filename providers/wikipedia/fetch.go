package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"compound-harmonizer/providers"
)

// SourceName ist der Quellname, den die Chain priorisiert.
const SourceName = "WIKIPEDIA"

var httpClient = providers.NewHTTPClient(30 * time.Second)

// Fetcher implementiert das Retriever-Interface für Wikipedia.
type Fetcher struct {
	BaseURL string
	Logger  *zap.Logger
	client  *http.Client
}

// NewFetcher erstellt einen neuen Wikipedia Fetcher.
func NewFetcher(baseURL string, logger *zap.Logger) *Fetcher {
	return &Fetcher{BaseURL: strings.TrimRight(baseURL, "/"), Logger: logger, client: httpClient}
}

func (f *Fetcher) Name() string {
	return SourceName
}

// Retrieve holt den Einleitungstext des Artikels. Fehlende Artikel und Begriffsklärungen ergeben NoResult().
func (f *Fetcher) Retrieve(ctx context.Context, name string) (providers.Result, error) {
	title := strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	if title == "" {
		return providers.NoResult(), nil
	}
	summaryURL := fmt.Sprintf("%s/page/summary/%s", f.BaseURL, url.PathEscape(title))
	log := f.Logger.With(zap.String("name", name))
	log.Debug("Rufe Wikipedia-Summary auf", zap.String("url", summaryURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, summaryURL, nil)
	if err != nil {
		return providers.NoResult(), err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		return providers.NoResult(), err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return providers.NoResult(), nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return providers.NoResult(), fmt.Errorf("wikipedia summary failed: status %d: %s", resp.StatusCode, string(body))
	}

	var summary Summary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return providers.NoResult(), fmt.Errorf("fehler beim Parsen der Wikipedia-Antwort: %w", err)
	}
	if summary.Type == typeDisambiguation || strings.TrimSpace(summary.Extract) == "" {
		log.Debug("Kein verwertbarer Wikipedia-Artikel", zap.String("type", summary.Type))
		return providers.NoResult(), nil
	}
	return providers.Result{Source: SourceName, Text: summary.Extract}, nil
}
