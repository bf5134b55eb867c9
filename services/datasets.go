package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"compound-harmonizer/models"
)

// DatasetLayout beschreibt die Rohform eines Datensatz-Ordners.
type DatasetLayout string

const (
	// LayoutBrain: Synonymgruppen ohne gemeinsamen Schlüssel, Zuordnung per Teilstring.
	LayoutBrain DatasetLayout = "brain"
	// LayoutSplit: Synonyme und Detektionsfrequenzen in getrennten Dateien, Join über die Scan-ID.
	LayoutSplit DatasetLayout = "split"
	// LayoutCombined: eine Datei mit Synonymen und Detektionsfrequenz.
	LayoutCombined DatasetLayout = "combined"
)

// DatasetCatalog ordnet Datensatznamen ihrer Rohform zu.
type DatasetCatalog struct {
	Brain    []string
	Split    []string
	Combined []string
}

func DefaultDatasetCatalog() DatasetCatalog {
	return DatasetCatalog{
		Brain:    []string{"brain"},
		Split:    []string{"dust", "feces", "iss", "mouse", "plasma"},
		Combined: []string{"food", "pcp"},
	}
}

// Names liefert alle bekannten Datensatznamen.
func (c DatasetCatalog) Names() []string {
	names := make([]string, 0, len(c.Split)+len(c.Combined)+len(c.Brain))
	names = append(names, c.Split...)
	names = append(names, c.Combined...)
	return append(names, c.Brain...)
}

// Resolve bestimmt Rohform und Datensatznamen anhand des Verzeichnisnamens.
// Unbekannte oder mehrdeutige Namen sind ein Konfigurationsfehler.
func (c DatasetCatalog) Resolve(dir string) (string, DatasetLayout, error) {
	base := filepath.Base(dir)
	var layout DatasetLayout
	switch {
	case containsAny(base, c.Brain):
		layout = LayoutBrain
	case containsAny(base, c.Split):
		layout = LayoutSplit
	case containsAny(base, c.Combined):
		layout = LayoutCombined
	default:
		return "", "", configErrorf(dir, "unexpected directory")
	}

	var matches []string
	for _, name := range c.Names() {
		if strings.Contains(base, name) {
			matches = append(matches, name)
		}
	}
	if len(matches) != 1 {
		return "", "", configErrorf(dir, "multiple or no dataset names found (%s)", strings.Join(matches, ", "))
	}
	return matches[0], layout, nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// DatasetColumns sind die Spaltennamen der Rohdateien.
type DatasetColumns struct {
	FeatureID          string
	CompoundName       string
	Synonyms           string
	DetectionFrequency string
	ScanID             string
	// BrainCompoundName ist die zweite Namensspalte der Brain-Detektionsdatei; sie muss mit CompoundName übereinstimmen.
	BrainCompoundName string
}

func DefaultDatasetColumns() DatasetColumns {
	return DatasetColumns{
		FeatureID:          "featureID",
		CompoundName:       "compound_name",
		Synonyms:           "synonyms",
		DetectionFrequency: "DF",
		ScanID:             "X.Scan.",
		BrainCompoundName:  "Compound_Name",
	}
}

// HarmonizeStats zählt die stillen Korrekturen eines Datensatzes.
type HarmonizeStats struct {
	Dataset            string `json:"dataset"`
	RawRows            int    `json:"raw_rows"`
	Records            int    `json:"records"`
	Fallbacks          int    `json:"fallbacks"`
	Unmatched          int    `json:"unmatched"`
	DroppedRows        int    `json:"dropped_rows"`
	MissingFrequencies int    `json:"missing_frequencies"`
}

// HarmonizedDataset ist das kanonische Ergebnis eines Datensatz-Ordners.
type HarmonizedDataset struct {
	Name    string                  `json:"name"`
	Layout  DatasetLayout           `json:"layout"`
	Records []models.CompoundRecord `json:"records"`
	Stats   HarmonizeStats          `json:"stats"`
}

// DatasetHarmonizer überführt die drei Rohformen in CompoundRecords.
type DatasetHarmonizer struct {
	catalog  DatasetCatalog
	columns  DatasetColumns
	synonyms *SynonymNormalizer
	logger   *zap.Logger
}

func NewDatasetHarmonizer(catalog DatasetCatalog, columns DatasetColumns, synonyms *SynonymNormalizer, logger *zap.Logger) *DatasetHarmonizer {
	return &DatasetHarmonizer{catalog: catalog, columns: columns, synonyms: synonyms, logger: logger}
}

// HarmonizeAll verarbeitet jedes Unterverzeichnis von root. Dateien direkt in root werden ignoriert.
func (h *DatasetHarmonizer) HarmonizeAll(ctx context.Context, root string) ([]HarmonizedDataset, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read data folder: %w", err)
	}
	var out []HarmonizedDataset
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ds, err := h.HarmonizeDir(filepath.Join(root, entry.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, *ds)
	}
	return out, nil
}

// HarmonizeDir wählt den Adapter anhand des Verzeichnisnamens.
func (h *DatasetHarmonizer) HarmonizeDir(dir string) (*HarmonizedDataset, error) {
	name, layout, err := h.catalog.Resolve(dir)
	if err != nil {
		return nil, err
	}
	log := h.logger.With(zap.String("dataset", name), zap.String("layout", string(layout)))
	log.Info("Starte Harmonisierung des Datensatzes.", zap.String("dir", dir))

	var rows []rawRow
	stats := HarmonizeStats{Dataset: name}
	switch layout {
	case LayoutBrain:
		rows, err = h.readBrain(dir, &stats)
	case LayoutSplit:
		rows, err = h.readSplit(dir, &stats)
	case LayoutCombined:
		rows, err = h.readCombined(dir, &stats)
	}
	if err != nil {
		return nil, err
	}

	records := groupRecords(name, rows, &stats)
	stats.Records = len(records)
	log.Info("Harmonisierung abgeschlossen",
		zap.Int("raw_rows", stats.RawRows),
		zap.Int("records", stats.Records),
		zap.Int("fallbacks", stats.Fallbacks),
		zap.Int("unmatched", stats.Unmatched),
		zap.Int("dropped_rows", stats.DroppedRows))
	return &HarmonizedDataset{Name: name, Layout: layout, Records: records, Stats: stats}, nil
}

// rawRow ist eine Rohzeile nach dem Einlesen, vor der Gruppierung nach FEATURE_ID.
type rawRow struct {
	featureID int
	name      string
	synonyms  []string
	frequency float64
	hasFreq   bool
}

// readBrain ordnet jedem Feature die erste Synonymgruppe zu, die den Namen (casefold) enthält.
// Das ist eine Heuristik: Teilstring-Kollisionen zwischen unverwandten Verbindungen werden nicht erkannt.
func (h *DatasetHarmonizer) readBrain(dir string, stats *HarmonizeStats) ([]rawRow, error) {
	synonyms, detection, err := h.readPairedTables(dir)
	if err != nil {
		return nil, err
	}
	c := h.columns
	if err := detection.Require(c.FeatureID, c.CompoundName, c.BrainCompoundName, c.DetectionFrequency); err != nil {
		return nil, err
	}
	if err := synonyms.Require(c.Synonyms); err != nil {
		return nil, err
	}

	groups := make([]string, len(synonyms.Rows))
	folded := make([]string, len(synonyms.Rows))
	for i, row := range synonyms.Rows {
		groups[i] = synonyms.Value(row, c.Synonyms)
		folded[i] = cases.Fold().String(groups[i])
	}

	rows := make([]rawRow, 0, len(detection.Rows))
	for i, row := range detection.Rows {
		name := detection.Value(row, c.CompoundName)
		if other := detection.Value(row, c.BrainCompoundName); name != other {
			return nil, configErrorf(detection.Path, "compound name mismatch in row %d (%q vs %q)", i+1, name, other)
		}
		r, err := h.baseRow(detection, row, i)
		if err != nil {
			return nil, err
		}
		needle := cases.Fold().String(name)
		for j := range groups {
			// Ein leerer Name wäre in jeder Gruppe enthalten.
			if needle == "" {
				break
			}
			if !strings.Contains(folded[j], needle) {
				continue
			}
			list, err := ParseStringList(groups[j])
			if err != nil {
				return nil, fmt.Errorf("%s row %d: %w", filepath.Base(synonyms.Path), j+1, err)
			}
			r.synonyms = list
			break
		}
		if r.synonyms == nil {
			stats.Unmatched++
			h.logger.Debug("Keine Synonymgruppe gefunden", zap.String("compound", name))
		}
		rows = append(rows, r)
	}
	stats.RawRows = len(rows)
	return rows, nil
}

// readSplit verbindet Synonym- und Detektionsdatei über die Scan-ID.
func (h *DatasetHarmonizer) readSplit(dir string, stats *HarmonizeStats) ([]rawRow, error) {
	synonyms, detection, err := h.readPairedTables(dir)
	if err != nil {
		return nil, err
	}
	c := h.columns
	if err := synonyms.Require(c.ScanID, c.Synonyms); err != nil {
		return nil, err
	}
	if err := detection.Require(c.FeatureID, c.CompoundName, c.DetectionFrequency); err != nil {
		return nil, err
	}

	byScan := make(map[int][]string, len(synonyms.Rows))
	for i, row := range synonyms.Rows {
		scan := synonyms.Value(row, c.ScanID)
		if isMissing(scan) {
			continue
		}
		id, err := parseFeatureID(scan)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", filepath.Base(synonyms.Path), i+1, err)
		}
		list, err := parseOptionalStringList(synonyms.Value(row, c.Synonyms))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", filepath.Base(synonyms.Path), i+1, err)
		}
		byScan[id] = list
	}

	rows := make([]rawRow, 0, len(detection.Rows))
	for i, row := range detection.Rows {
		r, err := h.baseRow(detection, row, i)
		if err != nil {
			return nil, err
		}
		r.synonyms = byScan[r.featureID]
		rows = append(rows, r)
	}
	stats.RawRows = len(rows)
	return h.cleanRows(rows, stats), nil
}

// readCombined liest die einzige Datei eines kombinierten Datensatzes.
func (h *DatasetHarmonizer) readCombined(dir string, stats *HarmonizeStats) ([]rawRow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dataset folder: %w", err)
	}
	if len(entries) != 1 {
		return nil, configErrorf(dir, "expected exactly one file, found %d", len(entries))
	}
	table, err := ReadTable(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		return nil, err
	}
	c := h.columns
	if err := table.Require(c.FeatureID, c.CompoundName, c.Synonyms, c.DetectionFrequency); err != nil {
		return nil, err
	}

	rows := make([]rawRow, 0, len(table.Rows))
	for i, row := range table.Rows {
		r, err := h.baseRow(table, row, i)
		if err != nil {
			return nil, err
		}
		r.synonyms, err = parseOptionalStringList(table.Value(row, c.Synonyms))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", filepath.Base(table.Path), i+1, err)
		}
		rows = append(rows, r)
	}
	stats.RawRows = len(rows)
	return h.cleanRows(rows, stats), nil
}

// baseRow liest Feature-ID, Namen und Detektionsfrequenz einer Zeile.
func (h *DatasetHarmonizer) baseRow(t *Table, row []string, i int) (rawRow, error) {
	id, err := parseFeatureID(t.Value(row, h.columns.FeatureID))
	if err != nil {
		return rawRow{}, fmt.Errorf("%s row %d: %w", filepath.Base(t.Path), i+1, err)
	}
	freq, ok, err := parseFrequency(t.Value(row, h.columns.DetectionFrequency))
	if err != nil {
		return rawRow{}, fmt.Errorf("%s row %d: %w", filepath.Base(t.Path), i+1, err)
	}
	return rawRow{
		featureID: id,
		name:      strings.TrimSpace(t.Value(row, h.columns.CompoundName)),
		frequency: freq,
		hasFreq:   ok,
	}, nil
}

// cleanRows filtert und normalisiert Synonyme. Zeilen ohne Namen und ohne Synonyme entfallen,
// Zeilen ohne verbleibende Synonyme erhalten [COMPOUND_NAME].
func (h *DatasetHarmonizer) cleanRows(rows []rawRow, stats *HarmonizeStats) []rawRow {
	out := rows[:0]
	for _, r := range rows {
		if r.synonyms != nil {
			r.synonyms = h.synonyms.Clean(r.synonyms)
			if len(r.synonyms) == 0 {
				r.synonyms = nil
			}
		}
		if r.synonyms == nil {
			if r.name == "" {
				stats.DroppedRows++
				continue
			}
			r.synonyms = []string{r.name}
			stats.Fallbacks++
		}
		out = append(out, r)
	}
	return out
}

// readPairedTables findet genau eine *synonyms*- und eine *detection*-Datei; jede andere Datei ist ein Fehler.
func (h *DatasetHarmonizer) readPairedTables(dir string) (*Table, *Table, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read dataset folder: %w", err)
	}
	var synonymsPath, detectionPath string
	for _, entry := range entries {
		p := filepath.Join(dir, entry.Name())
		switch {
		case strings.Contains(entry.Name(), "synonyms"):
			if synonymsPath != "" {
				return nil, nil, configErrorf(p, "more than one synonyms file")
			}
			synonymsPath = p
		case strings.Contains(entry.Name(), "detection"):
			if detectionPath != "" {
				return nil, nil, configErrorf(p, "more than one detection file")
			}
			detectionPath = p
		default:
			return nil, nil, configErrorf(p, "unexpected file in data folder")
		}
	}
	if synonymsPath == "" || detectionPath == "" {
		return nil, nil, configErrorf(dir, "expected one synonyms and one detection file")
	}

	synonyms, err := ReadTable(synonymsPath)
	if err != nil {
		return nil, nil, err
	}
	detection, err := ReadTable(detectionPath)
	if err != nil {
		return nil, nil, err
	}
	return synonyms, detection, nil
}

// groupRecords fasst Zeilen mit gleicher FEATURE_ID zusammen: erster Name, erste Frequenz,
// verkettete und deduplizierte Synonyme. Das Ergebnis ist nach FEATURE_ID sortiert.
func groupRecords(dataset string, rows []rawRow, stats *HarmonizeStats) []models.CompoundRecord {
	type group struct {
		record  models.CompoundRecord
		hasFreq bool
	}
	byID := make(map[int]*group)
	for _, r := range rows {
		g, ok := byID[r.featureID]
		if !ok {
			g = &group{record: models.CompoundRecord{Dataset: dataset, FeatureID: r.featureID}}
			byID[r.featureID] = g
		}
		if g.record.CompoundName == "" {
			g.record.CompoundName = r.name
		}
		if !g.hasFreq && r.hasFreq {
			g.record.DetectionFrequency = r.frequency
			g.hasFreq = true
		}
		if r.synonyms != nil {
			g.record.Synonyms = append(g.record.Synonyms, r.synonyms...)
		}
	}

	ids := make([]int, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	records := make([]models.CompoundRecord, 0, len(ids))
	for _, id := range ids {
		g := byID[id]
		if !g.hasFreq {
			stats.MissingFrequencies++
		}
		g.record.Synonyms = dedupe(g.record.Synonyms)
		records = append(records, g.record)
	}
	return records
}

// dedupe entfernt Duplikate nach erstem Vorkommen; nil bleibt nil.
func dedupe(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
