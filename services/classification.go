package services

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"compound-harmonizer/models"
)

// MethodColumn beschreibt die Rohspalte einer Klassifikationsmethode.
type MethodColumn struct {
	Column string
	Name   string
	Policy ParsePolicy
}

// ClassificationConfig enthält Spaltennamen und Datensatz-Aliase der klassifizierten Tabellen.
type ClassificationConfig struct {
	// Öffentliche Daten: eine finalisierte Klassifikationsspalte pro Zeile.
	PublicClassification string
	PublicFrequency      string
	PublicDataset        string
	PublicFeatureID      string
	// DatasetAliases übersetzen Quellnamen in Katalognamen; unbekannte Namen bleiben unverändert.
	DatasetAliases map[string]string

	// Drug-Library: manuelle Wahrheit plus mehrere automatische Methoden.
	ManualColumn string
	SourceColumn string
	Methods      []MethodColumn
}

func DefaultClassificationConfig() ClassificationConfig {
	return ClassificationConfig{
		PublicClassification: "chemsource_output_gpt-4o_classification",
		PublicFrequency:      "DF",
		PublicDataset:        "dataset",
		PublicFeatureID:      "featureID",
		DatasetAliases: map[string]string{
			"rosmap":      "brain",
			"adrc":        "feces",
			"adrc_plasma": "plasma",
			"dust":        "dust",
			"food":        "food",
			"iss":         "iss",
			"mouse":       "mouse",
			"personal":    "pcp",
		},
		ManualColumn: "manual_classification",
		SourceColumn: "site",
		Methods: []MethodColumn{
			{Column: "chemsource_output_deepseek-v3", Name: "DEEPSEEK_RAG", Policy: PolicyStructured},
			{Column: "chemsource_output_gpt-4-1", Name: "GPT_NO_RAG", Policy: PolicyStructured},
			{Column: "chemsource_output_gpt-4o", Name: "GPT_RAG", Policy: PolicyStructured},
			{Column: "chemsource_output_search_gpt", Name: "SEARCH_GPT", Policy: PolicyFreeText},
		},
	}
}

// MethodNames liefert die Methodennamen in Konfigurationsreihenfolge.
func (c ClassificationConfig) MethodNames() []string {
	names := make([]string, len(c.Methods))
	for i, m := range c.Methods {
		names[i] = m.Name
	}
	return names
}

// ClassificationStats zählt die verworfenen Zeilen einer öffentlichen Tabelle.
type ClassificationStats struct {
	Rows         int `json:"rows"`
	Kept         int `json:"kept"`
	DroppedInfo  int `json:"dropped_info"`
	DroppedEmpty int `json:"dropped_empty"`
}

// ClassificationHarmonizer liest klassifizierte Tabellen und erzeugt One-Hot-Zeilen bzw. LabelSets je Methode.
type ClassificationHarmonizer struct {
	cfg    ClassificationConfig
	labels *LabelHarmonizer
	logger *zap.Logger
}

func NewClassificationHarmonizer(cfg ClassificationConfig, labels *LabelHarmonizer, logger *zap.Logger) *ClassificationHarmonizer {
	return &ClassificationHarmonizer{cfg: cfg, labels: labels, logger: logger}
}

// HarmonizePublic liest die klassifizierten öffentlichen Daten. Zeilen mit INFO oder ohne Klassifikation
// gelangen nicht in das Ergebnis; ein Label außerhalb des Vokabulars bricht ab.
func (h *ClassificationHarmonizer) HarmonizePublic(path string) ([]models.LabelRow, ClassificationStats, error) {
	var stats ClassificationStats
	table, err := ReadTable(path)
	if err != nil {
		return nil, stats, err
	}
	c := h.cfg
	if err := table.Require(c.PublicClassification, c.PublicFrequency, c.PublicDataset); err != nil {
		return nil, stats, err
	}
	log := h.logger.With(zap.String("file", filepath.Base(path)))

	rows := make([]models.LabelRow, 0, len(table.Rows))
	for i, row := range table.Rows {
		stats.Rows++
		set, err := h.labels.ParseFinal(table.Value(row, c.PublicClassification))
		if err != nil {
			return nil, stats, fmt.Errorf("%s row %d: %w", filepath.Base(path), i+1, err)
		}
		featureID := i
		if table.Has(c.PublicFeatureID) {
			if featureID, err = parseFeatureID(table.Value(row, c.PublicFeatureID)); err != nil {
				return nil, stats, fmt.Errorf("%s row %d: %w", filepath.Base(path), i+1, err)
			}
		}
		freq, _, err := parseFrequency(table.Value(row, c.PublicFrequency))
		if err != nil {
			return nil, stats, fmt.Errorf("%s row %d: %w", filepath.Base(path), i+1, err)
		}

		switch {
		case len(set) == 0:
			stats.DroppedEmpty++
			continue
		case set.IsInfo():
			stats.DroppedInfo++
			continue
		}
		rows = append(rows, models.LabelRow{
			FeatureID:          featureID,
			Dataset:            h.datasetName(table.Value(row, c.PublicDataset)),
			DetectionFrequency: freq,
			Labels:             set,
		})
	}
	stats.Kept = len(rows)
	log.Info("Öffentliche Klassifikationen harmonisiert",
		zap.Int("rows", stats.Rows),
		zap.Int("kept", stats.Kept),
		zap.Int("dropped_info", stats.DroppedInfo),
		zap.Int("dropped_empty", stats.DroppedEmpty))
	return rows, stats, nil
}

func (h *ClassificationHarmonizer) datasetName(raw string) string {
	name := strings.TrimSpace(raw)
	if alias, ok := h.cfg.DatasetAliases[name]; ok {
		return alias
	}
	return name
}

// HarmonizeManual liest die manuelle Klassifikation; FEATURE_ID ist der Zeilenindex.
func (h *ClassificationHarmonizer) HarmonizeManual(path string) ([]models.ClassifiedRecord, error) {
	table, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	if err := table.Require(h.cfg.ManualColumn); err != nil {
		return nil, err
	}
	records := make([]models.ClassifiedRecord, 0, len(table.Rows))
	for i, row := range table.Rows {
		set, err := h.labels.ParseManual(table.Value(row, h.cfg.ManualColumn))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", filepath.Base(path), i+1, err)
		}
		records = append(records, models.ClassifiedRecord{FeatureID: i, Manual: set})
	}
	return records, nil
}

// HarmonizeAutomated liest Quelle und die Rohausgaben aller konfigurierten Methoden.
func (h *ClassificationHarmonizer) HarmonizeAutomated(path string) ([]models.ClassifiedRecord, error) {
	table, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	required := []string{h.cfg.SourceColumn}
	for _, m := range h.cfg.Methods {
		required = append(required, m.Column)
	}
	if err := table.Require(required...); err != nil {
		return nil, err
	}

	records := make([]models.ClassifiedRecord, 0, len(table.Rows))
	for i, row := range table.Rows {
		rec := models.ClassifiedRecord{
			FeatureID: i,
			Source:    strings.TrimSpace(table.Value(row, h.cfg.SourceColumn)),
			Methods:   make(map[string]models.LabelSet, len(h.cfg.Methods)),
		}
		for _, m := range h.cfg.Methods {
			set, err := h.labels.Parse(m.Policy, table.Value(row, m.Column))
			if err != nil {
				return nil, fmt.Errorf("%s row %d, %s: %w", filepath.Base(path), i+1, m.Name, err)
			}
			rec.Methods[m.Name] = set
		}
		records = append(records, rec)
	}
	return records, nil
}

// HarmonizeDrugLibrary liest manuelle und automatische Klassifikationen aus derselben Tabelle.
func (h *ClassificationHarmonizer) HarmonizeDrugLibrary(path string) ([]models.ClassifiedRecord, error) {
	manual, err := h.HarmonizeManual(path)
	if err != nil {
		return nil, err
	}
	automated, err := h.HarmonizeAutomated(path)
	if err != nil {
		return nil, err
	}
	for i := range automated {
		automated[i].Manual = manual[i].Manual
	}
	h.logger.Info("Drug-Library-Klassifikationen harmonisiert",
		zap.String("file", filepath.Base(path)),
		zap.Int("records", len(automated)),
		zap.Strings("methods", h.cfg.MethodNames()))
	return automated, nil
}

// OneHot liefert die Indikatorspalten in der Reihenfolge von models.CategoryLabels.
func OneHot(set models.LabelSet) []int {
	out := make([]int, len(models.CategoryLabels))
	for i, l := range models.CategoryLabels {
		out[i] = set.Indicator(l)
	}
	return out
}
