package services

import (
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	hyphenBreakRE   = regexp.MustCompile(`(?m)([\p{L}\p{N}])-(?:\r?\n)([\p{Ll}])`)
	spaceRunRE      = regexp.MustCompile("[\t\f\v ]+")
	multiSpaceRE    = regexp.MustCompile(` {2,}`)
	multiNewlineRE  = regexp.MustCompile(`\n{3,}`)
	referenceMarkRE = regexp.MustCompile(`\[(?:\d+|citation needed)\]`)
	wordSplitRE     = regexp.MustCompile(`\s+`)
)

var ligatureReplacer = strings.NewReplacer(
	"ﬁ", "fi",
	"ﬂ", "fl",
	"ﬀ", "ff",
	"ﬃ", "ffi",
	"ﬄ", "ffl",
	"ﬆ", "st",
	"œ", "oe",
	"æ", "ae",
)

// NormalizeOptions steuern die Heuristiken für die Text-Normalisierung
type NormalizeOptions struct {
	NormalizeUnicode   bool `json:"normalize_unicode"`
	FixHyphenation     bool `json:"fix_hyphenation"`
	CollapseWhitespace bool `json:"collapse_whitespace"`
	// StripReferenceMarks entfernt Fußnotenmarker wie "[12]" aus Enzyklopädie-Texten.
	StripReferenceMarks bool `json:"strip_reference_marks"`
}

func DefaultNormalizeOptions() NormalizeOptions {
	return NormalizeOptions{
		NormalizeUnicode:    true,
		FixHyphenation:      true,
		CollapseWhitespace:  true,
		StripReferenceMarks: true,
	}
}

// Stats enthält Kennzahlen zur Normalisierung
type Stats struct {
	NumWords     int `json:"num_words"`
	NumChars     int `json:"num_chars"`
	HyphenFixes  int `json:"hyphen_fixes"`
	MarksRemoved int `json:"marks_removed"`
}

// NormalizedText bündelt Ergebnis der Normalisierung
type NormalizedText struct {
	Text  string `json:"text"`
	Stats Stats  `json:"stats"`
}

// TextNormalizer bereinigt abgerufene Beschreibungstexte vor der Speicherung.
type TextNormalizer struct {
	opts   NormalizeOptions
	logger *zap.Logger
}

func NewTextNormalizer(opts NormalizeOptions, logger *zap.Logger) *TextNormalizer {
	return &TextNormalizer{opts: opts, logger: logger}
}

// Normalize wendet die aktivierten Schritte in fester Reihenfolge an.
func (tn *TextNormalizer) Normalize(text string) NormalizedText {
	var stats Stats
	if tn.opts.NormalizeUnicode {
		text = normalizeUnicodeAndLigatures(text)
	}
	if tn.opts.FixHyphenation {
		text, stats.HyphenFixes = fixHyphenation(text)
	}
	if tn.opts.StripReferenceMarks {
		stats.MarksRemoved = len(referenceMarkRE.FindAllStringIndex(text, -1))
		text = referenceMarkRE.ReplaceAllString(text, "")
	}
	if tn.opts.CollapseWhitespace {
		text = collapseWhitespace(text)
	}
	stats.NumWords = wordCount(text)
	stats.NumChars = len([]rune(text))
	if stats.HyphenFixes > 0 || stats.MarksRemoved > 0 {
		tn.logger.Debug("Text normalisiert",
			zap.Int("hyphen_fixes", stats.HyphenFixes),
			zap.Int("marks_removed", stats.MarksRemoved))
	}
	return NormalizedText{Text: text, Stats: stats}
}

// normalizeUnicodeAndLigatures führt NFC-Normalisierung durch und ersetzt gängige Ligaturen
func normalizeUnicodeAndLigatures(s string) string {
	s = ligatureReplacer.Replace(s)
	normalized, _, _ := transform.String(transform.Chain(norm.NFC), s)
	return normalized
}

// fixHyphenation entfernt Trennstriche am Zeilenende zwischen Wort und kleinem Anfangsbuchstaben der Folgelinie
func fixHyphenation(s string) (string, int) {
	// Beispiel: "ab-\nweichung" -> "abweichung"
	count := len(hyphenBreakRE.FindAllStringIndex(s, -1))
	if count == 0 {
		return s, 0
	}
	return hyphenBreakRE.ReplaceAllString(s, "$1$2"), count
}

func collapseWhitespace(s string) string {
	// Mehrfache Spaces zu einem Space; mehr als zwei aufeinanderfolgende Zeilenumbrüche auf zwei begrenzen
	s = spaceRunRE.ReplaceAllString(s, " ")
	s = multiSpaceRE.ReplaceAllString(s, " ")
	s = multiNewlineRE.ReplaceAllString(s, "\n\n")
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i := range lines {
		lines[i] = strings.TrimRightFunc(lines[i], unicode.IsSpace)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func wordCount(s string) int {
	fields := wordSplitRE.Split(strings.TrimSpace(s), -1)
	if len(fields) == 1 && fields[0] == "" {
		return 0
	}
	return len(fields)
}
