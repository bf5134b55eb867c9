package services

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// RewriteRule ist eine einzelne Regex-Ersetzung der Normalisierungskette.
type RewriteRule struct {
	Pattern     string
	Replacement string
}

// SynonymRules bündelt die unveränderlichen Tabellen des Synonym-Normalizers.
type SynonymRules struct {
	// NoiseSubstrings entfernen jedes Synonym, das einen der Teilstrings enthält.
	NoiseSubstrings []string
	// FilterPatterns werden am Anfang des Synonyms verankert geprüft.
	FilterPatterns []string
	// Rewrites laufen in genau dieser Reihenfolge.
	Rewrites []RewriteRule
	// TrailingMarker wird nach der Großschreibung entfernt.
	TrailingMarker string
}

// DefaultSynonymRules liefert die Regeln für Datenbank-IDs, Spektralbibliotheks-Tags und Stereo-Präfixe.
func DefaultSynonymRules() SynonymRules {
	return SynonymRules{
		NoiseSubstrings: []string{
			"CHEMBL", "UNII", "DTXSID", "CHEBI", "HMS", "Spectral Match", "Tox21",
			"UniProt", "SpecPlus", "Spectrum", "BSPBio", "Bio1", "MFCD", "CBiol",
			"BML3", "CAS", "InChI", "MassBank", "AKOS", "NCGC", "Acon1", "ACon1",
			"MEGxp0", "SPBio", "KBio3", "DivK1c", "Lopac0", "KBioSS", "NSC",
			"Compound NP-", "Compound NP", "DGTS", "KBio1", "BRD", "BRN", "LMFA",
			"HY-", "MEGxm0", "MEGx", "ACon", "BRD-", "Prestwick", "MEGxp", "MLS",
			"EXP", "DUP", "AR-", "Tocris-", "CCRIS", "; [M+H]+ C", "Contaminants",
			"GSK ", "GSK-", "UNII-", "CK-", "APD ", "GSK",
		},
		FilterPatterns: []string{
			// drei Großbuchstaben am Anfang
			`[A-Z]{3}`,
			// CAS-Nummer
			`\d{2,7}-\d{2}-\d$`,
			// InChIKey
			`[A-Z]{14}-[A-Z]{10}-[A-Z]`,
			// Acyl-Amid-Kurzform
			`[A-Z][a-z]{2}-C\d+:\d+$`,
			// beginnt mit Ziffern
			`\d+`,
			// unbekanntes numerisches Schema, trifft nie
			`A^\d{2,10}-\d{3}-\d{2}-\d$`,
			`PD\d{6}`,
			`SY\d{6}`,
			`[A-Z]{1,5}\d+`,
			`[A-Z]{1,5}-\d+`,
		},
		Rewrites: []RewriteRule{
			{` from NIST14`, ""},
			{`Spectral Match to `, ""},
			{`-unclear if this is accurate`, ""},
			{`\[putative\]`, ""},
			{`Putative `, ""},
			{`Massbank: `, ""},
			{`Massbank:PR\d+`, ""},
			{`- [0-9][0-9].[0-9] eV`, ""},
			{` cation`, ""},
			{` anion`, ""},
			{` in source fragment`, ""},
			{`possibly - gamma-Valerobetaine see jones Nat Metabolism 2021`, "gamma-Valerobetaine"},
			{`ReSpect:PM\d{6}`, ""},
			{`(?i)^(DL-|LD-|L-|D-)`, ""},
			{`^\(SR\)-`, ""},
			{`^\(RS\)-`, ""},
			{`^\(R\)-`, ""},
			{`^\(S\)-`, ""},
			{`\(\+/-\)-`, ""},
			{`\(-\)-`, ""},
			{`\(\+\)-`, ""},
			{`>=\d+% \(LC/MS-UV\)`, ""},
			{`CollisionEnergy:\d+`, ""},
		},
		TrailingMarker: ", (z)-",
	}
}

type compiledRewrite struct {
	re          *regexp.Regexp
	replacement string
}

// SynonymNormalizer filtert Rausch-Synonyme und schreibt die übrigen in kanonische Namen um.
type SynonymNormalizer struct {
	logger   *zap.Logger
	noise    []string
	filters  []*regexp.Regexp
	rewrites []compiledRewrite
	trailing string
}

// NewSynonymNormalizer kompiliert die Regeln. Ungültige Muster sind ein Konfigurationsfehler.
func NewSynonymNormalizer(rules SynonymRules, logger *zap.Logger) (*SynonymNormalizer, error) {
	n := &SynonymNormalizer{
		logger:   logger,
		noise:    append([]string(nil), rules.NoiseSubstrings...),
		trailing: rules.TrailingMarker,
	}
	for _, p := range rules.FilterPatterns {
		re, err := regexp.Compile(`^(?:` + p + `)`)
		if err != nil {
			return nil, configErrorf(p, "invalid synonym filter pattern: %v", err)
		}
		n.filters = append(n.filters, re)
	}
	for _, r := range rules.Rewrites {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, configErrorf(r.Pattern, "invalid synonym rewrite pattern: %v", err)
		}
		n.rewrites = append(n.rewrites, compiledRewrite{re: re, replacement: r.Replacement})
	}
	return n, nil
}

// FilterSynonyms entfernt leere Synonyme, Synonyme mit Rausch-Teilstrings und solche, die wie Registry-IDs aussehen.
// Nicht lesbare Einträge (ungültiges UTF-8) werden einzeln verworfen. Die Reihenfolge bleibt erhalten.
func (n *SynonymNormalizer) FilterSynonyms(synonyms []string) []string {
	out := make([]string, 0, len(synonyms))
	for _, s := range synonyms {
		if !utf8.ValidString(s) {
			n.logger.Debug("Synonym übersprungen: ungültiges UTF-8", zap.ByteString("raw", []byte(s)))
			continue
		}
		if s == "" || n.isNoise(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (n *SynonymNormalizer) isNoise(s string) bool {
	for _, sub := range n.noise {
		if strings.Contains(s, sub) {
			return true
		}
	}
	for _, re := range n.filters {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// NormalizeSynonyms wendet die Ersetzungskette auf jedes Synonym an und dedupliziert nach erstem Vorkommen.
// Synonyme, die dabei leer werden, entfallen.
func (n *SynonymNormalizer) NormalizeSynonyms(synonyms []string) []string {
	out := make([]string, 0, len(synonyms))
	seen := make(map[string]struct{}, len(synonyms))
	for _, s := range synonyms {
		y := n.normalizeOne(s)
		if y == "" {
			continue
		}
		if _, dup := seen[y]; dup {
			continue
		}
		seen[y] = struct{}{}
		out = append(out, y)
	}
	return out
}

// Clean ist die Kombination aus FilterSynonyms und NormalizeSynonyms.
func (n *SynonymNormalizer) Clean(synonyms []string) []string {
	return n.NormalizeSynonyms(n.FilterSynonyms(synonyms))
}

// normalizeOne wiederholt die Kette bis zum Fixpunkt, damit gestapelte Präfixe wie "L-D-" vollständig entfernt werden.
// Jede Regel kürzt oder ändert nur die Schreibweise, die Schleife terminiert also.
func (n *SynonymNormalizer) normalizeOne(s string) string {
	cur := s
	for {
		next := n.rewritePass(cur)
		if next == cur {
			return cur
		}
		cur = next
	}
}

func (n *SynonymNormalizer) rewritePass(s string) string {
	y := norm.NFC.String(s)
	for _, r := range n.rewrites {
		y = r.re.ReplaceAllString(y, r.replacement)
	}
	y = strings.TrimSpace(y)
	y = capitalize(y)
	if n.trailing != "" {
		y = strings.ReplaceAll(y, n.trailing, "")
	}
	return y
}

// capitalize setzt den ersten Buchstaben groß und den Rest klein.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
