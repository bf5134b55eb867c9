package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"compound-harmonizer/config"
	"compound-harmonizer/services"
	"compound-harmonizer/storage"
)

// HarmonizeConfig steuert einen einmaligen Lauf ohne Datenbank.
type HarmonizeConfig struct {
	DataDir   string `envconfig:"DATA_DIR" required:"true"`
	OutputDir string `envconfig:"OUTPUT_DIR" default:"data/harmonized"`

	// Optionale Folgeschritte
	PublicClassifiedPath string `envconfig:"PUBLIC_CLASSIFIED_PATH"`
	DrugLibraryPath      string `envconfig:"DRUG_LIBRARY_PATH"`

	S3Key    string `envconfig:"S3_KEY"`
	S3Secret string `envconfig:"S3_SECRET"`
	S3URL    string `envconfig:"S3_URL"`
	S3Region string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket string `envconfig:"S3_BUCKET"`
}

func main() {
	logging, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()
	logging.Info("Starte Harmonisierungs-Lauf...")

	_ = godotenv.Load()
	var cfg HarmonizeConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logging.Fatal("Fehler beim Laden der Konfiguration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Pipeline aufbauen
	pipeline, err := newPipeline(ctx, cfg, logging)
	if err != nil {
		logging.Fatal("Fehler beim Aufbau der Pipeline", zap.Error(err))
	}

	// 2. Rohdatensätze harmonisieren
	report, err := pipeline.HarmonizeDatasets(ctx, cfg.DataDir)
	if err != nil {
		logging.Fatal("Fehler bei der Harmonisierung", zap.Error(err))
	}
	for _, s := range report.Datasets {
		logging.Info("Datensatz harmonisiert",
			zap.String("dataset", s.Dataset),
			zap.Int("records", s.Records),
			zap.Int("fallbacks", s.Fallbacks),
			zap.Int("unmatched", s.Unmatched),
			zap.Int("dropped_rows", s.DroppedRows),
			zap.Int("missing_frequencies", s.MissingFrequencies))
	}

	// 3. Klassifizierte öffentliche Daten aggregieren, roh und verfeinert
	if cfg.PublicClassifiedPath != "" {
		for _, refine := range []bool{false, true} {
			public, err := pipeline.ClassifyPublic(ctx, cfg.PublicClassifiedPath, refine)
			if err != nil {
				logging.Fatal("Fehler bei der Aggregation der öffentlichen Daten", zap.Error(err))
			}
			for _, d := range public.Distributions {
				logging.Info("Verteilung",
					zap.String("dataset", d.Dataset),
					zap.Bool("refined", refine),
					zap.Bool("no_data", d.NoData),
					zap.Float64("industrial", d.Industrial),
					zap.Float64("personal_care", d.PersonalCare),
					zap.Float64("food", d.Food),
					zap.Float64("medical", d.Medical),
					zap.Float64("endogenous", d.Endogenous))
			}
		}
	}

	// 4. Drug-Library bewerten
	if cfg.DrugLibraryPath != "" {
		eval, err := pipeline.EvaluateDrugLibrary(ctx, cfg.DrugLibraryPath)
		if err != nil {
			logging.Fatal("Fehler bei der Bewertung der Drug-Library", zap.Error(err))
		}
		for _, m := range eval.Medical {
			logging.Info("MEDICAL-Zusammenfassung",
				zap.String("method", m.Method),
				zap.Int("medical_only", m.MedicalOnly),
				zap.Int("not_medical", m.NotMedical),
				zap.Int("info", m.Info))
		}
	}

	logging.Info("Harmonisierungs-Lauf erfolgreich abgeschlossen.", zap.Int("records", report.Records()), zap.Strings("uploaded", report.Uploaded))
}

func newPipeline(ctx context.Context, cfg HarmonizeConfig, logging *zap.Logger) (*services.Pipeline, error) {
	synonyms, err := services.NewSynonymNormalizer(services.DefaultSynonymRules(), logging)
	if err != nil {
		return nil, err
	}
	p := &services.Pipeline{
		Datasets:        services.NewDatasetHarmonizer(services.DefaultDatasetCatalog(), services.DefaultDatasetColumns(), synonyms, logging),
		Classifications: services.NewClassificationHarmonizer(services.DefaultClassificationConfig(), services.NewLabelHarmonizer(services.DefaultLabelRules()), logging),
		Aggregator:      services.NewAggregator(services.DefaultDatasetGroups(), logging),
		Artifacts:       services.NewArtifactWriter(cfg.OutputDir, logging),
		Logger:          logging,
	}
	if cfg.S3Bucket == "" {
		logging.Info("S3_BUCKET nicht gesetzt, Artefakte bleiben lokal.", zap.String("output_dir", cfg.OutputDir))
		return p, nil
	}
	s3Client, err := storage.NewS3Client(ctx, &config.Config{
		S3Key:    cfg.S3Key,
		S3Secret: cfg.S3Secret,
		S3URL:    cfg.S3URL,
		S3Region: cfg.S3Region,
		S3Bucket: cfg.S3Bucket,
	})
	if err != nil {
		return nil, err
	}
	p.Uploader = storage.NewUploader(s3Client, cfg.S3Bucket, cfg.S3URL, logging)
	return p, nil
}
