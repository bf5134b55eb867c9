package services

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Table ist eine eingelesene CSV- oder TSV-Datei.
type Table struct {
	Path   string
	Header []string
	Rows   [][]string
	index  map[string]int
}

// ReadTable liest eine Datei; Dateinamen mit "tsv" werden tabgetrennt gelesen, alle anderen kommagetrennt.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if strings.Contains(strings.ToLower(filepath.Base(path)), "tsv") {
		reader.Comma = '\t'
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 {
		return nil, configErrorf(path, "empty table")
	}

	t := &Table{Path: path, index: make(map[string]int)}
	for i, cell := range records[0] {
		name := strings.TrimSpace(strings.TrimPrefix(cell, "\ufeff"))
		t.Header = append(t.Header, name)
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}
	t.Rows = records[1:]
	return t, nil
}

// Has meldet, ob die Spalte existiert.
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Require prüft, dass alle Spalten vorhanden sind.
func (t *Table) Require(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return configErrorf(t.Path, "missing columns %s", strings.Join(missing, ", "))
	}
	return nil
}

// Value liefert den Zellwert einer Zeile; fehlende Spalten oder kurze Zeilen ergeben "".
func (t *Table) Value(row []string, column string) string {
	i, ok := t.index[column]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// parseFeatureID akzeptiert Ganzzahlen auch in Fließkomma-Schreibweise ("12.0").
func parseFeatureID(cell string) (int, error) {
	s := strings.TrimSpace(cell)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, &ParseError{Input: cell, Reason: "feature id is not an integer"}
	}
	return int(f), nil
}

// parseFrequency liefert ok=false für leere Zellen.
func parseFrequency(cell string) (float64, bool, error) {
	if isMissing(cell) {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return 0, false, &ParseError{Input: cell, Reason: "detection frequency is not a number", Err: err}
	}
	if math.IsNaN(f) {
		return 0, false, nil
	}
	return f, true, nil
}
