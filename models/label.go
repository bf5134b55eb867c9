package models

import (
	"encoding/json"
	"sort"
	"strings"
)

// Label ist eine Kategorie aus dem geschlossenen Klassifikations-Vokabular.
type Label string

const (
	LabelIndustrial   Label = "INDUSTRIAL"
	LabelPersonalCare Label = "PERSONAL CARE"
	LabelFood         Label = "FOOD"
	LabelMedical      Label = "MEDICAL"
	LabelEndogenous   Label = "ENDOGENOUS"
	// LabelInfo markiert "keine verwertbare Klassifikation".
	LabelInfo Label = "INFO"
)

// CategoryLabels sind die fünf aggregierbaren Labels in Spaltenreihenfolge.
var CategoryLabels = []Label{
	LabelIndustrial,
	LabelPersonalCare,
	LabelFood,
	LabelMedical,
	LabelEndogenous,
}

// LabelSet ist eine ungeordnete Menge von Labels.
type LabelSet map[Label]struct{}

// NewLabelSet erstellt ein LabelSet aus den gegebenen Labels.
func NewLabelSet(labels ...Label) LabelSet {
	s := make(LabelSet, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

func (s LabelSet) Has(l Label) bool {
	_, ok := s[l]
	return ok
}

// IsInfo meldet, ob das Set den INFO-Sentinel enthält. Andere Labels im selben Set gelten dann als nicht vertrauenswürdig.
func (s LabelSet) IsInfo() bool {
	return s.Has(LabelInfo)
}

// Indicator liefert 1, wenn das Label gesetzt ist, sonst 0.
func (s LabelSet) Indicator(l Label) int {
	if s.Has(l) {
		return 1
	}
	return 0
}

// Clone erstellt eine unabhängige Kopie.
func (s LabelSet) Clone() LabelSet {
	out := make(LabelSet, len(s))
	for l := range s {
		out[l] = struct{}{}
	}
	return out
}

// Equal vergleicht zwei Sets elementweise.
func (s LabelSet) Equal(other LabelSet) bool {
	if len(s) != len(other) {
		return false
	}
	for l := range s {
		if !other.Has(l) {
			return false
		}
	}
	return true
}

// Labels liefert die Labels in Vokabular-Reihenfolge (Kategorien, dann INFO, dann Unbekanntes).
func (s LabelSet) Labels() []Label {
	out := make([]Label, 0, len(s))
	seen := make(map[Label]bool, len(s))
	order := make([]Label, 0, len(CategoryLabels)+1)
	order = append(order, CategoryLabels...)
	order = append(order, LabelInfo)
	for _, l := range order {
		if s.Has(l) {
			out = append(out, l)
			seen[l] = true
		}
	}
	var rest []string
	for l := range s {
		if !seen[l] {
			rest = append(rest, string(l))
		}
	}
	sort.Strings(rest)
	for _, l := range rest {
		out = append(out, Label(l))
	}
	return out
}

func (s LabelSet) String() string {
	labels := s.Labels()
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = string(l)
	}
	return strings.Join(parts, ", ")
}

// MarshalJSON serialisiert das Set als geordnetes Array.
func (s LabelSet) MarshalJSON() ([]byte, error) {
	labels := s.Labels()
	if labels == nil {
		labels = []Label{}
	}
	return json.Marshal(labels)
}
