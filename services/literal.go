package services

import (
	"strings"

	"github.com/goccy/go-yaml"
)

// ParseStringList dekodiert eine Listen-Zelle wie `['Valine', "5'-AMP"]` in eine Liste von Strings.
// Akzeptiert wird eine Flow-Sequenz aus einfach oder doppelt gequoteten Strings; Elemente, die keine
// Strings sind (Zahlen, null), werden übersprungen. Escapes wie `\'`, `\xa0` oder `\u00e9` werden
// dekodiert.
func ParseStringList(raw string) ([]string, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		return nil, &ParseError{Input: raw, Reason: "expected a bracketed list"}
	}
	var items []any
	if err := yaml.Unmarshal([]byte(doubleQuoted(trimmed)), &items); err != nil {
		return nil, &ParseError{Input: raw, Reason: "malformed list literal", Err: err}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// doubleQuoted schreibt alle gequoteten Elemente in YAML-Double-Quotes um. YAML kennt in
// Double-Quotes dieselben Escapes wie die Listen-Zellen (\\, \n, \xNN, \uNNNN), nur `\'` nicht.
func doubleQuoted(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote == 0:
			if c == '\'' || c == '"' {
				quote = c
				c = '"'
			}
			b.WriteByte(c)
		case c == '\\' && i+1 < len(s):
			i++
			if s[i] == '\'' {
				b.WriteByte('\'')
			} else {
				b.WriteByte('\\')
				b.WriteByte(s[i])
			}
		case c == quote:
			quote = 0
			b.WriteByte('"')
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// parseOptionalStringList behandelt leere Zellen als fehlende Liste (nil ohne Fehler).
func parseOptionalStringList(raw string) ([]string, error) {
	if isMissing(raw) {
		return nil, nil
	}
	return ParseStringList(raw)
}

func isMissing(cell string) bool {
	switch strings.TrimSpace(cell) {
	case "", "NaN", "nan", "None", "null", "NA":
		return true
	}
	return false
}
