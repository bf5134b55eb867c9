package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"compound-harmonizer/models"
)

const batchSize = 500

// Open verbindet sich mit der PostgreSQL-Datenbank.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

// Repository persistiert harmonisierte Features, Retrieval-Texte und Verteilungen.
type Repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewRepository(db *gorm.DB, logger *zap.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// AutoMigrate legt die Tabellen an bzw. aktualisiert sie.
func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&models.CompoundRecord{}, &models.Retrieval{}, &models.DatasetDistribution{})
}

// SaveCompounds schreibt die Features eines Datensatzes; bestehende (dataset, feature_id) werden überschrieben.
func (r *Repository) SaveCompounds(ctx context.Context, records []models.CompoundRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dataset"}, {Name: "feature_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"compound_name", "synonyms", "detection_frequency", "updated_at"}),
	}).CreateInBatches(&records, batchSize).Error
	if err != nil {
		return fmt.Errorf("save compounds: %w", err)
	}
	r.logger.Debug("Features gespeichert", zap.String("dataset", records[0].Dataset), zap.Int("count", len(records)))
	return nil
}

// ListCompounds liefert die Features eines Datensatzes nach FEATURE_ID sortiert. Ein leerer Name liefert alle.
func (r *Repository) ListCompounds(ctx context.Context, dataset string) ([]models.CompoundRecord, error) {
	var records []models.CompoundRecord
	q := r.db.WithContext(ctx).Order("dataset").Order("feature_id")
	if dataset != "" {
		q = q.Where("dataset = ?", dataset)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list compounds: %w", err)
	}
	return records, nil
}

// SaveRetrievals schreibt die Retrieval-Ergebnisse; ein erneuter Lauf überschreibt Quelle und Text.
func (r *Repository) SaveRetrievals(ctx context.Context, results []models.Retrieval) error {
	if len(results) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dataset"}, {Name: "feature_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"used_name", "source", "text", "num_words", "updated_at"}),
	}).CreateInBatches(&results, batchSize).Error
	if err != nil {
		return fmt.Errorf("save retrievals: %w", err)
	}
	return nil
}

// SaveDistributions ersetzt die Verteilungen pro (dataset, refined).
func (r *Repository) SaveDistributions(ctx context.Context, dists []models.DatasetDistribution) error {
	if len(dists) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "dataset"}, {Name: "refined"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"industrial", "personal_care", "food", "medical", "endogenous",
			"total", "no_data", "rows", "updated_at",
		}),
	}).Create(&dists).Error
	if err != nil {
		return fmt.Errorf("save distributions: %w", err)
	}
	return nil
}

// ListDistributions liefert gespeicherte Verteilungen; refined filtert optional.
func (r *Repository) ListDistributions(ctx context.Context, refined *bool) ([]models.DatasetDistribution, error) {
	var dists []models.DatasetDistribution
	q := r.db.WithContext(ctx).Order("dataset").Order("refined")
	if refined != nil {
		q = q.Where("refined = ?", *refined)
	}
	if err := q.Find(&dists).Error; err != nil {
		return nil, fmt.Errorf("list distributions: %w", err)
	}
	return dists, nil
}
