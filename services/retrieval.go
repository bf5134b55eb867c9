package services

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"compound-harmonizer/models"
	"compound-harmonizer/providers"
)

// maxRetrievalWorkers ist die Obergrenze paralleler Lookups unabhängig von der Konfiguration.
const maxRetrievalWorkers = 8

// RetrievalStats zählt die Ergebnisse eines Retrieval-Laufs.
type RetrievalStats struct {
	Records  int `json:"records"`
	Found    int `json:"found"`
	NotFound int `json:"not_found"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// RetrievalService sucht für jedes Feature Referenztext über seine Synonyme.
type RetrievalService struct {
	retriever  providers.Retriever
	normalizer *TextNormalizer
	priority   string
	workers    int
	logger     *zap.Logger
}

// NewRetrievalService erstellt eine neue Instanz. priority ist die Quelle, deren Treffer sofort gewinnt.
func NewRetrievalService(retriever providers.Retriever, normalizer *TextNormalizer, priority string, maxWorkers int, logger *zap.Logger) *RetrievalService {
	return &RetrievalService{
		retriever:  retriever,
		normalizer: normalizer,
		priority:   priority,
		workers:    WorkerCount(maxWorkers),
		logger:     logger,
	}
}

// WorkerCount liefert max(1, min(8, NumCPU-1, limit)).
func WorkerCount(limit int) int {
	n := min(maxRetrievalWorkers, runtime.NumCPU()-1, limit)
	if n < 1 {
		return 1
	}
	return n
}

type retrievalJob struct {
	index  int
	record models.CompoundRecord
}

// Retrieve verarbeitet alle Datensätze parallel. Das Ergebnis hat dieselbe Reihenfolge wie records.
// Einzelne Fehlschläge ergeben "no source found"; nur ein abgebrochener Kontext beendet den Lauf.
func (s *RetrievalService) Retrieve(ctx context.Context, records []models.CompoundRecord) ([]models.Retrieval, RetrievalStats, error) {
	stats := RetrievalStats{Records: len(records)}
	results := make([]models.Retrieval, len(records))
	failed := make([]bool, len(records))

	s.logger.Info("Starte Text-Retrieval",
		zap.Int("records", len(records)),
		zap.Int("workers", s.workers),
		zap.String("retriever", s.retriever.Name()))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, s.workers)

loop:
	for i, rec := range records {
		if !rec.HasSynonyms() {
			results[i] = notFound(rec)
			stats.Skipped++
			continue
		}
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			break loop
		}
		wg.Add(1)
		go func(job retrievalJob) {
			defer wg.Done()
			defer func() { <-semaphore }()
			// Jede Goroutine schreibt nur ihren eigenen Index.
			results[job.index], failed[job.index] = s.retrieveRecord(ctx, job.record)
		}(retrievalJob{index: i, record: rec})
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	for i, r := range results {
		switch {
		case !records[i].HasSynonyms():
		case r.Found():
			stats.Found++
		default:
			stats.NotFound++
			if failed[i] {
				stats.Failed++
			}
		}
	}
	s.logger.Info("Text-Retrieval abgeschlossen",
		zap.Int("found", stats.Found),
		zap.Int("not_found", stats.NotFound),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed))
	return results, stats, nil
}

// retrieveRecord probiert die Synonyme der Reihe nach. Ein Treffer der Prioritätsquelle gewinnt sofort,
// sonst der erste Treffer überhaupt.
func (s *RetrievalService) retrieveRecord(ctx context.Context, rec models.CompoundRecord) (models.Retrieval, bool) {
	log := s.logger.With(zap.String("dataset", rec.Dataset), zap.Int("feature_id", rec.FeatureID))

	var first *models.Retrieval
	hadError := false
	for _, name := range rec.Synonyms {
		res, err := s.retriever.Retrieve(ctx, name)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return notFound(rec), true
			}
			log.Warn("Lookup fehlgeschlagen", zap.String("name", name), zap.Error(err))
			hadError = true
			continue
		}
		if !res.Found() {
			continue
		}
		hit := s.toRetrieval(rec, name, res)
		if res.Source == s.priority {
			return hit, false
		}
		if first == nil {
			first = &hit
		}
	}
	if first != nil {
		return *first, false
	}
	log.Debug("Keine Quelle gefunden", zap.Int("synonyms", len(rec.Synonyms)))
	return notFound(rec), hadError
}

func (s *RetrievalService) toRetrieval(rec models.CompoundRecord, name string, res providers.Result) models.Retrieval {
	text := s.normalizer.Normalize(res.Text)
	return models.Retrieval{
		Dataset:   rec.Dataset,
		FeatureID: rec.FeatureID,
		UsedName:  name,
		Source:    res.Source,
		Text:      text.Text,
		NumWords:  text.Stats.NumWords,
	}
}

func notFound(rec models.CompoundRecord) models.Retrieval {
	return models.Retrieval{
		Dataset:   rec.Dataset,
		FeatureID: rec.FeatureID,
		Source:    models.NoSourceFound,
	}
}
