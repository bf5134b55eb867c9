// Package wikipedia liest Artikelzusammenfassungen über die Wikipedia REST-API.
package wikipedia

// Summary ist die JSON-Antwort von /page/summary/{title}.
type Summary struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

const typeDisambiguation = "disambiguation"
