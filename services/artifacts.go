package services

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"compound-harmonizer/models"
)

// ArtifactWriter schreibt die Ergebnisse der Pipeline als CSV in ein Ausgabeverzeichnis.
type ArtifactWriter struct {
	dir    string
	logger *zap.Logger
}

func NewArtifactWriter(dir string, logger *zap.Logger) *ArtifactWriter {
	return &ArtifactWriter{dir: dir, logger: logger}
}

// Dir gibt das Ausgabeverzeichnis zurück.
func (w *ArtifactWriter) Dir() string {
	return w.dir
}

// WriteCompounds schreibt <dataset>_harmonized.csv. Synonyme werden als Listen-Literal geschrieben,
// das ParseStringList wieder einlesen kann; eine fehlende Synonymgruppe bleibt leer.
func (w *ArtifactWriter) WriteCompounds(dataset string, records []models.CompoundRecord) (string, error) {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		synonyms := ""
		if r.Synonyms != nil {
			raw, err := json.Marshal(r.Synonyms)
			if err != nil {
				return "", err
			}
			synonyms = string(raw)
		}
		rows = append(rows, []string{
			strconv.Itoa(r.FeatureID),
			r.CompoundName,
			synonyms,
			formatFloat(r.DetectionFrequency),
		})
	}
	return w.write(dataset+"_harmonized.csv", []string{"FEATURE_ID", "COMPOUND_NAME", "SYNONYMS", "DETECTION_FREQUENCY"}, rows)
}

// WriteRetrievals schreibt <dataset>_retrieved.csv.
func (w *ArtifactWriter) WriteRetrievals(dataset string, results []models.Retrieval) (string, error) {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{strconv.Itoa(r.FeatureID), r.UsedName, r.Source, r.Text})
	}
	return w.write(dataset+"_retrieved.csv", []string{"FEATURE_ID", "USED_NAME", "SOURCE", "TEXT"}, rows)
}

// WriteLabelRows schreibt die One-Hot-Tabelle der öffentlichen Klassifikationen.
func (w *ArtifactWriter) WriteLabelRows(name string, labelRows []models.LabelRow) (string, error) {
	header := []string{"FEATURE_ID", "DATASET", "DETECTION_FREQUENCY"}
	for _, l := range models.CategoryLabels {
		header = append(header, string(l))
	}
	rows := make([][]string, 0, len(labelRows))
	for _, r := range labelRows {
		row := []string{strconv.Itoa(r.FeatureID), r.Dataset, formatFloat(r.DetectionFrequency)}
		for _, v := range OneHot(r.Labels) {
			row = append(row, strconv.Itoa(v))
		}
		rows = append(rows, row)
	}
	return w.write(name+".csv", header, rows)
}

// WriteClassifiedRecords schreibt die harmonisierte Drug-Library: pro Quelle (MANUAL und jede Methode
// in der übergebenen Reihenfolge) fünf Label-Spalten <QUELLE>_<LABEL> und ein <QUELLE>_INFO-Flag.
func (w *ArtifactWriter) WriteClassifiedRecords(name string, methods []string, records []models.ClassifiedRecord) (string, error) {
	sources := append([]string{"MANUAL"}, methods...)
	header := []string{"FEATURE_ID", "SOURCE"}
	for _, src := range sources {
		for _, l := range models.CategoryLabels {
			header = append(header, src+"_"+string(l))
		}
		header = append(header, src+"_"+string(models.LabelInfo))
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := []string{strconv.Itoa(r.FeatureID), r.Source}
		for i, src := range sources {
			set := r.Manual
			if i > 0 {
				set = r.Methods[src]
			}
			for _, v := range OneHot(set) {
				row = append(row, strconv.Itoa(v))
			}
			row = append(row, strconv.Itoa(set.Indicator(models.LabelInfo)))
		}
		rows = append(rows, row)
	}
	return w.write(name+".csv", header, rows)
}

// WriteDistributions schreibt eine Zeile pro Datensatz; Datensätze ohne Gewicht tragen NO_DATA=true.
func (w *ArtifactWriter) WriteDistributions(name string, dists []models.DatasetDistribution) (string, error) {
	header := []string{"DATASET"}
	for _, l := range models.CategoryLabels {
		header = append(header, string(l))
	}
	header = append(header, "TOTAL", "NO_DATA")
	rows := make([][]string, 0, len(dists))
	for _, d := range dists {
		row := []string{d.Dataset}
		for _, l := range models.CategoryLabels {
			row = append(row, formatFloat(d.Weight(l)))
		}
		row = append(row, formatFloat(d.Total), strconv.FormatBool(d.NoData))
		rows = append(rows, row)
	}
	return w.write(name+".csv", header, rows)
}

// WriteEvaluations schreibt Precision und Recall je Methode und Label.
func (w *ArtifactWriter) WriteEvaluations(name string, evals []MethodEvaluation) (string, error) {
	header := []string{"METHOD", "LABEL", "PRECISION", "RECALL", "TP", "FP", "FN", "EVALUATED", "SKIPPED"}
	var rows [][]string
	for _, e := range evals {
		for _, l := range models.CategoryLabels {
			m := e.Labels[l]
			rows = append(rows, []string{
				e.Method, string(l),
				formatFloat(m.Precision), formatFloat(m.Recall),
				strconv.Itoa(m.TruePositives), strconv.Itoa(m.FalsePositives), strconv.Itoa(m.FalseNegatives),
				strconv.Itoa(e.Evaluated), strconv.Itoa(e.Skipped),
			})
		}
	}
	return w.write(name+".csv", header, rows)
}

func (w *ArtifactWriter) write(file string, header []string, rows [][]string) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(w.dir, file)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if strings.Contains(file, "tsv") {
		cw.Comma = '\t'
	}
	if err := cw.Write(header); err != nil {
		return "", err
	}
	if err := cw.WriteAll(rows); err != nil {
		return "", fmt.Errorf("write %s: %w", file, err)
	}
	w.logger.Info("Artefakt geschrieben", zap.String("file", path), zap.Int("rows", len(rows)))
	return path, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
