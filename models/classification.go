package models

// ClassifiedRecord bündelt die harmonisierten Labels aller Methoden für ein Feature.
type ClassifiedRecord struct {
	FeatureID int                 `json:"feature_id"`
	Source    string              `json:"source,omitempty"`
	Manual    LabelSet            `json:"manual,omitempty"`
	Methods   map[string]LabelSet `json:"methods,omitempty"`
}

// LabelRow ist eine One-Hot-Zeile eines klassifizierten Datensatzes, bereit für die Aggregation.
// Labels enthält nie INFO.
type LabelRow struct {
	FeatureID          int      `json:"feature_id"`
	Dataset            string   `json:"dataset"`
	DetectionFrequency float64  `json:"detection_frequency"`
	Labels             LabelSet `json:"labels"`
}

// Indicator liefert den 0/1-Wert einer Label-Spalte.
func (r LabelRow) Indicator(l Label) int {
	return r.Labels.Indicator(l)
}
