package services

import (
	"strings"

	"compound-harmonizer/models"
)

// Vocabulary ist eine geschlossene Menge zulässiger Labels.
type Vocabulary struct {
	name   string
	labels map[models.Label]struct{}
}

// NewVocabulary erstellt ein Vokabular; name erscheint in Validierungsfehlern.
func NewVocabulary(name string, labels ...models.Label) Vocabulary {
	v := Vocabulary{name: name, labels: make(map[models.Label]struct{}, len(labels))}
	for _, l := range labels {
		v.labels[l] = struct{}{}
	}
	return v
}

// CategoryVocabulary enthält die fünf Kategorien ohne INFO.
func CategoryVocabulary() Vocabulary {
	return NewVocabulary("manual classification", models.CategoryLabels...)
}

// FullVocabulary enthält die fünf Kategorien und INFO.
func FullVocabulary() Vocabulary {
	labels := append(append([]models.Label(nil), models.CategoryLabels...), models.LabelInfo)
	return NewVocabulary("automated classification", labels...)
}

func (v Vocabulary) Contains(l models.Label) bool {
	_, ok := v.labels[l]
	return ok
}

// Validate wandelt Tokens in ein LabelSet um. Jedes unbekannte Token führt zu einem ValidationError.
func (v Vocabulary) Validate(tokens []string) (models.LabelSet, error) {
	invalid := make(map[string]struct{})
	set := make(models.LabelSet, len(tokens))
	for _, tok := range tokens {
		l := models.Label(tok)
		if !v.Contains(l) {
			invalid[tok] = struct{}{}
			continue
		}
		set[l] = struct{}{}
	}
	if len(invalid) > 0 {
		return nil, newValidationError(v.name, invalid)
	}
	if len(set) == 0 {
		return nil, newValidationError(v.name, map[string]struct{}{"": {}})
	}
	return set, nil
}

// ParsePolicy wählt die Lesart einer Rohklassifikation.
type ParsePolicy string

const (
	// PolicyManual: Freitext, kommagetrennt, Großschreibung, Aliase.
	PolicyManual ParsePolicy = "manual"
	// PolicyStructured: einelementige Liste, deren Element eine kommagetrennte Label-Liste ist.
	PolicyStructured ParsePolicy = "structured"
	// PolicyFreeText: Begründungstext einer Such-Methode; Labels stehen vor dem ersten Semikolon.
	PolicyFreeText ParsePolicy = "freetext"
	// PolicyFinal: bereits finalisierte, kommagetrennte Klassifikation.
	PolicyFinal ParsePolicy = "final"
)

// Alias ersetzt einen Freitext-Begriff vor dem Aufteilen.
type Alias struct {
	From string
	To   string
}

// LabelRules enthält die Tabellen des Klassifikations-Harmonizers.
type LabelRules struct {
	Manual    Vocabulary
	Automated Vocabulary
	Aliases   []Alias
	// Boilerplate sind bekannte, nicht informative Antwortanfänge der Such-Methode.
	Boilerplate []string
	// StripChars werden an Segment und Tokens der Freitext-Antwort abgeschnitten.
	StripChars string
}

// DefaultLabelRules liefert die Regeln der Klassifikations-Pipeline.
func DefaultLabelRules() LabelRules {
	return LabelRules{
		Manual:    CategoryVocabulary(),
		Automated: FullVocabulary(),
		Aliases:   []Alias{{From: "DRUG METABOLITE", To: string(models.LabelMedical)}},
		Boilerplate: []string{
			"Cymethion is a synonym",
			"Dichlorophene is utilized in",
			"Ginkgolide A is a terpenic",
			"Dimetridazole is a synthetic nitroimidazole",
			"P-nitrophenyl beta-D-glucopyranoside is primarily used",
			"Flacitran is a synonym for luteolin",
			"Glycerol 1-octadecyl ether, also known",
			"Sulfuric acid, also known as dihydrogen sulfate",
			"Methionine sulfoxide is an oxidation product of the amino",
			"Xanthaurine, also known as quercetin, is a flavonoid",
		},
		StripChars: "()[]'\" ",
	}
}

// LabelHarmonizer überführt die Rohausgaben verschiedener Klassifikationsmethoden in validierte LabelSets.
type LabelHarmonizer struct {
	rules LabelRules
}

func NewLabelHarmonizer(rules LabelRules) *LabelHarmonizer {
	return &LabelHarmonizer{rules: rules}
}

// Parse dispatcht auf die Lesart der Policy.
func (h *LabelHarmonizer) Parse(policy ParsePolicy, raw string) (models.LabelSet, error) {
	switch policy {
	case PolicyManual:
		return h.ParseManual(raw)
	case PolicyStructured:
		return h.ParseStructured(raw)
	case PolicyFreeText:
		return h.ParseFreeText(raw)
	case PolicyFinal:
		return h.ParseFinal(raw)
	}
	return nil, configErrorf(string(policy), "unknown parse policy")
}

// ParseManual liest eine manuelle Klassifikation wie "food, drug metabolite".
func (h *LabelHarmonizer) ParseManual(raw string) (models.LabelSet, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	for _, a := range h.rules.Aliases {
		s = strings.ReplaceAll(s, a.From, a.To)
	}
	return h.rules.Manual.Validate(splitTrim(s, whitespace))
}

// ParseStructured liest eine Ausgabe der Form `["MEDICAL, ENDOGENOUS"]`.
func (h *LabelHarmonizer) ParseStructured(raw string) (models.LabelSet, error) {
	items, err := ParseStringList(raw)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &ParseError{Input: raw, Reason: "expected a one-element list"}
	}
	s := strings.ToUpper(strings.TrimSpace(items[0]))
	return h.rules.Automated.Validate(splitTrim(s, whitespace))
}

// ParseFreeText liest die Begründung der Such-Methode. Bekannte Boilerplate-Anfänge und Texte
// ohne Semikolon ergeben {INFO}.
func (h *LabelHarmonizer) ParseFreeText(raw string) (models.LabelSet, error) {
	if h.isBoilerplate(raw) || !strings.Contains(raw, ";") {
		return models.NewLabelSet(models.LabelInfo), nil
	}
	segment, _, _ := strings.Cut(raw, ";")
	segment = strings.Trim(segment, h.rules.StripChars)
	return h.rules.Automated.Validate(splitTrim(segment, h.rules.StripChars))
}

func (h *LabelHarmonizer) isBoilerplate(raw string) bool {
	for _, b := range h.rules.Boilerplate {
		if strings.Contains(raw, b) {
			return true
		}
	}
	return false
}

// ParseFinal liest eine finalisierte Klassifikation; leere Zellen ergeben nil ohne Fehler.
func (h *LabelHarmonizer) ParseFinal(raw string) (models.LabelSet, error) {
	if isMissing(raw) {
		return nil, nil
	}
	return h.rules.Automated.Validate(splitTrim(strings.TrimSpace(raw), whitespace))
}

const whitespace = " \t\r\n"

// splitTrim teilt an Kommas und schneidet cutset an jedem Token ab.
func splitTrim(s, cutset string) []string {
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.Trim(p, cutset)
	}
	return parts
}
