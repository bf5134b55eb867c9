package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrConfiguration kennzeichnet fatale Fehler in Verzeichnisstruktur, Dateinamen oder Eingabeschema.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation kennzeichnet Labels außerhalb des geschlossenen Vokabulars.
	ErrValidation = errors.New("validation error")
	// ErrParse kennzeichnet nicht lesbare Listen- oder Zahlenwerte.
	ErrParse = errors.New("parse error")
)

// ConfigurationError beschreibt eine unerwartete Datei, ein unerwartetes Verzeichnis oder ein fehlerhaftes Eingabeschema.
type ConfigurationError struct {
	Path   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Reason, e.Path)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func configErrorf(path, format string, args ...any) error {
	return &ConfigurationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// ValidationError nennt die Tokens, die nicht zum Vokabular gehören.
type ValidationError struct {
	Context string
	Invalid []string
}

func (e *ValidationError) Error() string {
	quoted := make([]string, len(e.Invalid))
	for i, tok := range e.Invalid {
		quoted[i] = fmt.Sprintf("%q", tok)
	}
	return fmt.Sprintf("invalid %s terms found: %s", e.Context, strings.Join(quoted, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func newValidationError(context string, invalid map[string]struct{}) *ValidationError {
	tokens := make([]string, 0, len(invalid))
	for tok := range invalid {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return &ValidationError{Context: context, Invalid: tokens}
}

// ParseError beschreibt einen Wert, der nicht im erwarteten Format vorliegt.
type ParseError struct {
	Input  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	input := e.Input
	if len(input) > 80 {
		input = input[:77] + "..."
	}
	if e.Err != nil {
		return fmt.Sprintf("parse error: %s (%q): %v", e.Reason, input, e.Err)
	}
	return fmt.Sprintf("parse error: %s (%q)", e.Reason, input)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

func (e *ParseError) Unwrap() error { return e.Err }
