package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"compound-harmonizer/models"
)

// UserAgent wird bei jeder Anfrage an externe Quellen gesendet; Wikipedia lehnt Anfragen ohne ab.
const UserAgent = "compound-harmonizer/1.0 (text retrieval)"

// CustomTransport fügt jeder Anfrage einen User-Agent-Header hinzu.
type CustomTransport struct {
	Transport http.RoundTripper
}

func (t *CustomTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", UserAgent)
	return t.Transport.RoundTrip(req)
}

// NewHTTPClient erstellt den HTTP-Client, den alle Provider verwenden.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &CustomTransport{Transport: http.DefaultTransport},
	}
}

// Result ist die Antwort eines Retrievers für einen Substanznamen.
type Result struct {
	Source string
	Text   string
}

// Found meldet, ob der Retriever Text geliefert hat.
func (r Result) Found() bool {
	return r.Text != "" && r.Text != models.NoResults
}

// NoResult ist das Ergebnis eines Fehlschlags.
func NoResult() Result {
	return Result{Text: models.NoResults}
}

// Retriever ist das Interface, das jede Textquelle (z.B. Wikipedia, PubMed) implementieren muss.
type Retriever interface {
	// Retrieve sucht Beschreibungstext für einen Namen. Kein Treffer ist kein Fehler, sondern NoResult().
	Retrieve(ctx context.Context, name string) (Result, error)

	// Name gibt den Quellnamen zurück (z.B. "WIKIPEDIA").
	Name() string
}

// Chain fragt die Retriever der Reihe nach und liefert den ersten Treffer.
type Chain struct {
	retrievers []Retriever
	logger     *zap.Logger
}

func NewChain(logger *zap.Logger, retrievers ...Retriever) *Chain {
	return &Chain{retrievers: retrievers, logger: logger}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.retrievers))
	for i, r := range c.retrievers {
		names[i] = r.Name()
	}
	return strings.Join(names, ",")
}

// Retrieve liefert NoResult(), wenn keine Quelle antwortet. Fehler einzelner Quellen werden geloggt
// und nur zurückgegeben, wenn der Kontext abgebrochen wurde.
func (c *Chain) Retrieve(ctx context.Context, name string) (Result, error) {
	for _, r := range c.retrievers {
		if err := ctx.Err(); err != nil {
			return NoResult(), err
		}
		res, err := r.Retrieve(ctx, name)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return NoResult(), err
			}
			c.logger.Warn("Quelle fehlgeschlagen", zap.String("source", r.Name()), zap.String("name", name), zap.Error(err))
			continue
		}
		if res.Found() {
			return res, nil
		}
	}
	return NoResult(), nil
}
