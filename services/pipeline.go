package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"compound-harmonizer/models"
)

// Store ist die Persistenz, die die Pipeline benötigt. storage.Repository erfüllt sie.
type Store interface {
	SaveCompounds(ctx context.Context, records []models.CompoundRecord) error
	SaveRetrievals(ctx context.Context, results []models.Retrieval) error
	SaveDistributions(ctx context.Context, dists []models.DatasetDistribution) error
}

// ArtifactUploader lädt geschriebene Artefakte hoch. storage.Uploader erfüllt es.
type ArtifactUploader interface {
	UploadArtifacts(ctx context.Context, prefix string, files []string) ([]string, error)
}

// Pipeline verbindet Harmonisierung, Retrieval, Klassifikation und Aggregation.
// Store, Uploader und Retrieval sind optional.
type Pipeline struct {
	Datasets        *DatasetHarmonizer
	Classifications *ClassificationHarmonizer
	Aggregator      *Aggregator
	Retrieval       *RetrievalService
	Artifacts       *ArtifactWriter
	Store           Store
	Uploader        ArtifactUploader
	Logger          *zap.Logger
}

// HarmonizeReport fasst einen Harmonisierungslauf zusammen.
type HarmonizeReport struct {
	Datasets  []HarmonizeStats `json:"datasets"`
	Artifacts []string         `json:"artifacts"`
	Uploaded  []string         `json:"uploaded,omitempty"`
}

// Records zählt alle harmonisierten Features.
func (r HarmonizeReport) Records() int {
	n := 0
	for _, s := range r.Datasets {
		n += s.Records
	}
	return n
}

// HarmonizeDatasets harmonisiert alle Datensätze unter root, schreibt die Artefakte und speichert die Features.
func (p *Pipeline) HarmonizeDatasets(ctx context.Context, root string) (HarmonizeReport, error) {
	var report HarmonizeReport
	datasets, err := p.Datasets.HarmonizeAll(ctx, root)
	if err != nil {
		return report, err
	}
	for _, ds := range datasets {
		report.Datasets = append(report.Datasets, ds.Stats)
		path, err := p.Artifacts.WriteCompounds(ds.Name, ds.Records)
		if err != nil {
			return report, err
		}
		report.Artifacts = append(report.Artifacts, path)
		if p.Store != nil {
			if err := p.Store.SaveCompounds(ctx, ds.Records); err != nil {
				return report, err
			}
		}
	}
	report.Uploaded, err = p.upload(ctx, "harmonized", report.Artifacts)
	if err != nil {
		return report, err
	}
	p.Logger.Info("Harmonisierung aller Datensätze abgeschlossen",
		zap.Int("datasets", len(datasets)),
		zap.Int("records", report.Records()))
	return report, nil
}

// RetrieveTexts sucht Referenztexte für die Features eines Datensatzes.
func (p *Pipeline) RetrieveTexts(ctx context.Context, dataset string, records []models.CompoundRecord) (RetrievalStats, error) {
	if p.Retrieval == nil {
		return RetrievalStats{}, fmt.Errorf("text retrieval is not configured")
	}
	results, stats, err := p.Retrieval.Retrieve(ctx, records)
	if err != nil {
		return stats, err
	}
	path, err := p.Artifacts.WriteRetrievals(dataset, results)
	if err != nil {
		return stats, err
	}
	if p.Store != nil {
		if err := p.Store.SaveRetrievals(ctx, results); err != nil {
			return stats, err
		}
	}
	if _, err := p.upload(ctx, "retrieved", []string{path}); err != nil {
		return stats, err
	}
	return stats, nil
}

// PublicReport ist das Ergebnis der Klassifikations-Aggregation.
type PublicReport struct {
	Stats         ClassificationStats          `json:"stats"`
	Distributions []models.DatasetDistribution `json:"distributions"`
	Artifacts     []string                     `json:"artifacts"`
}

// ClassifyPublic harmonisiert die klassifizierten öffentlichen Daten und aggregiert sie je Datensatz.
func (p *Pipeline) ClassifyPublic(ctx context.Context, path string, refine bool) (PublicReport, error) {
	var report PublicReport
	rows, stats, err := p.Classifications.HarmonizePublic(path)
	if err != nil {
		return report, err
	}
	report.Stats = stats
	report.Distributions = p.Aggregator.Aggregate(rows, refine)

	name := "public_aggregated"
	if refine {
		name = "public_aggregated_refined"
	}
	onehot, err := p.Artifacts.WriteLabelRows("public_harmonized", rows)
	if err != nil {
		return report, err
	}
	dist, err := p.Artifacts.WriteDistributions(name, report.Distributions)
	if err != nil {
		return report, err
	}
	report.Artifacts = []string{onehot, dist}
	if p.Store != nil {
		if err := p.Store.SaveDistributions(ctx, report.Distributions); err != nil {
			return report, err
		}
	}
	if _, err := p.upload(ctx, "classified", report.Artifacts); err != nil {
		return report, err
	}
	return report, nil
}

// DrugLibraryReport enthält die Bewertung aller Methoden gegen die manuelle Klassifikation.
type DrugLibraryReport struct {
	Records     int                `json:"records"`
	Evaluations []MethodEvaluation `json:"evaluations"`
	Medical     []MedicalSummary   `json:"medical"`
	Artifacts   []string           `json:"artifacts"`
}

// EvaluateDrugLibrary harmonisiert die Drug-Library und bewertet jede Methode.
func (p *Pipeline) EvaluateDrugLibrary(ctx context.Context, path string) (DrugLibraryReport, error) {
	var report DrugLibraryReport
	records, err := p.Classifications.HarmonizeDrugLibrary(path)
	if err != nil {
		return report, err
	}
	report.Records = len(records)
	if report.Evaluations, err = EvaluateAll(records); err != nil {
		return report, err
	}
	methods := p.Classifications.cfg.MethodNames()
	report.Medical = MedicalOnlySummary(records, methods)

	harmonized, err := p.Artifacts.WriteClassifiedRecords("drug_library_harmonized", methods, records)
	if err != nil {
		return report, err
	}
	file, err := p.Artifacts.WriteEvaluations("drug_library_evaluation", report.Evaluations)
	if err != nil {
		return report, err
	}
	report.Artifacts = []string{harmonized, file}
	if _, err := p.upload(ctx, "evaluation", report.Artifacts); err != nil {
		return report, err
	}
	return report, nil
}

func (p *Pipeline) upload(ctx context.Context, stage string, files []string) ([]string, error) {
	if p.Uploader == nil || len(files) == 0 {
		return nil, nil
	}
	prefix := fmt.Sprintf("%s/%s", time.Now().UTC().Format("2006-01-02T15-04-05Z"), stage)
	return p.Uploader.UploadArtifacts(ctx, prefix, files)
}
