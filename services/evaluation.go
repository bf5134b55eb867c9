package services

import (
	"fmt"
	"sort"

	"compound-harmonizer/models"
)

// LabelMetrics enthält die Konfusionszahlen eines Labels.
type LabelMetrics struct {
	TruePositives  int     `json:"tp"`
	FalsePositives int     `json:"fp"`
	FalseNegatives int     `json:"fn"`
	TrueNegatives  int     `json:"tn"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
}

// MethodEvaluation vergleicht eine Methode mit der manuellen Klassifikation.
// Zeilen, in denen die Methode INFO liefert, werden übersprungen.
type MethodEvaluation struct {
	Method    string                        `json:"method"`
	Evaluated int                           `json:"evaluated"`
	Skipped   int                           `json:"skipped"`
	Labels    map[models.Label]LabelMetrics `json:"labels"`
}

// EvaluateMethod berechnet Precision und Recall je Label für eine Methode.
func EvaluateMethod(records []models.ClassifiedRecord, method string) (MethodEvaluation, error) {
	eval := MethodEvaluation{Method: method, Labels: make(map[models.Label]LabelMetrics, len(models.CategoryLabels))}
	counts := make(map[models.Label]*LabelMetrics, len(models.CategoryLabels))
	for _, l := range models.CategoryLabels {
		counts[l] = &LabelMetrics{}
	}

	for _, rec := range records {
		predicted, ok := rec.Methods[method]
		if !ok {
			return eval, fmt.Errorf("feature %d: no result for method %s", rec.FeatureID, method)
		}
		if rec.Manual == nil {
			return eval, fmt.Errorf("feature %d: no manual classification", rec.FeatureID)
		}
		if predicted.IsInfo() {
			eval.Skipped++
			continue
		}
		eval.Evaluated++
		for _, l := range models.CategoryLabels {
			m := counts[l]
			switch truth, pred := rec.Manual.Has(l), predicted.Has(l); {
			case truth && pred:
				m.TruePositives++
			case !truth && pred:
				m.FalsePositives++
			case truth && !pred:
				m.FalseNegatives++
			default:
				m.TrueNegatives++
			}
		}
	}

	for l, m := range counts {
		m.Precision = ratio(m.TruePositives, m.TruePositives+m.FalsePositives)
		m.Recall = ratio(m.TruePositives, m.TruePositives+m.FalseNegatives)
		eval.Labels[l] = *m
	}
	return eval, nil
}

func ratio(num, denom int) float64 {
	if denom == 0 {
		return 0
	}
	return float64(num) / float64(denom)
}

// EvaluateAll bewertet alle Methoden, die in den Datensätzen vorkommen, sortiert nach Namen.
func EvaluateAll(records []models.ClassifiedRecord) ([]MethodEvaluation, error) {
	seen := make(map[string]bool)
	var methods []string
	for _, rec := range records {
		for name := range rec.Methods {
			if !seen[name] {
				seen[name] = true
				methods = append(methods, name)
			}
		}
	}
	sort.Strings(methods)

	out := make([]MethodEvaluation, 0, len(methods))
	for _, m := range methods {
		eval, err := EvaluateMethod(records, m)
		if err != nil {
			return nil, err
		}
		out = append(out, eval)
	}
	return out, nil
}

// MedicalSummary zählt je Methode, wie oft ausschließlich MEDICAL vergeben wurde.
type MedicalSummary struct {
	Method      string `json:"method"`
	MedicalOnly int    `json:"medical_only"`
	NotMedical  int    `json:"not_medical"`
	Info        int    `json:"info"`
}

// MedicalOnlySummary fasst für jede Methode und die manuelle Klassifikation zusammen, wie viele Zeilen
// genau {MEDICAL}, etwas anderes oder INFO tragen.
func MedicalOnlySummary(records []models.ClassifiedRecord, methods []string) []MedicalSummary {
	only := models.NewLabelSet(models.LabelMedical)
	tally := func(name string, pick func(models.ClassifiedRecord) models.LabelSet) MedicalSummary {
		s := MedicalSummary{Method: name}
		for _, rec := range records {
			set := pick(rec)
			switch {
			case set.IsInfo():
				s.Info++
			case set.Equal(only):
				s.MedicalOnly++
			default:
				s.NotMedical++
			}
		}
		return s
	}

	out := []MedicalSummary{tally("MANUAL", func(r models.ClassifiedRecord) models.LabelSet { return r.Manual })}
	for _, m := range methods {
		name := m
		out = append(out, tally(name, func(r models.ClassifiedRecord) models.LabelSet { return r.Methods[name] }))
	}
	return out
}
