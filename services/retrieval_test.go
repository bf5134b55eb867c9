package services

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"compound-harmonizer/models"
	"compound-harmonizer/providers"
)

// fakeRetriever antwortet aus einer festen Tabelle und zählt die Anfragen.
type fakeRetriever struct {
	mu      sync.Mutex
	results map[string]providers.Result
	errs    map[string]error
	calls   []string
}

func (f *fakeRetriever) Name() string { return "FAKE" }

func (f *fakeRetriever) Retrieve(ctx context.Context, name string) (providers.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	if err := f.errs[name]; err != nil {
		return providers.NoResult(), err
	}
	if res, ok := f.results[name]; ok {
		return res, nil
	}
	return providers.NoResult(), nil
}

func (f *fakeRetriever) called(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == name {
			return true
		}
	}
	return false
}

func newTestRetrievalService(r providers.Retriever) *RetrievalService {
	return NewRetrievalService(r, NewTextNormalizer(DefaultNormalizeOptions(), zap.NewNop()), "WIKIPEDIA", 4, zap.NewNop())
}

func record(id int, synonyms ...string) models.CompoundRecord {
	return models.CompoundRecord{Dataset: "feces", FeatureID: id, CompoundName: "c", Synonyms: synonyms}
}

func TestRetrieve(t *testing.T) {
	fake := &fakeRetriever{
		results: map[string]providers.Result{
			"Valine":  {Source: "PUBMED", Text: "Valine abstract"},
			"L-Val":   {Source: "WIKIPEDIA", Text: "Beta  is\ta [1] thing"},
			"Taurine": {Source: "PUBMED", Text: "Taurine abstract"},
		},
		errs: map[string]error{"Broken": errors.New("status 503")},
	}
	records := []models.CompoundRecord{
		record(1, "Valine", "L-Val"),
		record(2, "Taurine", "Other"),
		record(3, "Nothing"),
		{Dataset: "brain", FeatureID: 4},
		record(5, "Broken"),
	}

	results, stats, err := newTestRetrievalService(fake).Retrieve(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, RetrievalStats{Records: 5, Found: 2, NotFound: 2, Skipped: 1, Failed: 1}, stats)
	require.Len(t, results, 5)

	// Treffer der Prioritätsquelle gewinnt gegenüber dem ersten Treffer.
	assert.Equal(t, 1, results[0].FeatureID)
	assert.Equal(t, "L-Val", results[0].UsedName)
	assert.Equal(t, "WIKIPEDIA", results[0].Source)
	assert.Equal(t, "Beta is a thing", results[0].Text)
	assert.Equal(t, 4, results[0].NumWords)

	// Ohne Prioritätstreffer zählt der erste Treffer, die übrigen Synonyme werden trotzdem geprüft.
	assert.Equal(t, "Taurine", results[1].UsedName)
	assert.Equal(t, "PUBMED", results[1].Source)
	assert.True(t, fake.called("Other"))

	for _, i := range []int{2, 3, 4} {
		assert.False(t, results[i].Found(), "record %d", i)
		assert.Equal(t, models.NoSourceFound, results[i].Source)
		assert.Equal(t, records[i].FeatureID, results[i].FeatureID)
	}
	assert.Equal(t, "brain", results[3].Dataset)
}

func TestRetrievePriorityStopsEarly(t *testing.T) {
	fake := &fakeRetriever{results: map[string]providers.Result{
		"First":  {Source: "WIKIPEDIA", Text: "first"},
		"Second": {Source: "WIKIPEDIA", Text: "second"},
	}}
	results, _, err := newTestRetrievalService(fake).Retrieve(context.Background(), []models.CompoundRecord{record(1, "First", "Second")})
	require.NoError(t, err)
	assert.Equal(t, "first", results[0].Text)
	assert.False(t, fake.called("Second"))
}

func TestRetrieveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := newTestRetrievalService(&fakeRetriever{}).Retrieve(ctx, []models.CompoundRecord{record(1, "Valine")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetrieveEmpty(t *testing.T) {
	results, stats, err := newTestRetrievalService(&fakeRetriever{}).Retrieve(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, RetrievalStats{}, stats)
}

func TestWorkerCount(t *testing.T) {
	assert.Equal(t, 1, WorkerCount(0))
	assert.Equal(t, 1, WorkerCount(-3))
	assert.LessOrEqual(t, WorkerCount(100), 8)
	assert.Equal(t, max(1, min(8, runtime.NumCPU()-1)), WorkerCount(100))
	assert.GreaterOrEqual(t, WorkerCount(2), 1)
}
