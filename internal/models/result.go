package models

// Row is one tabular result with the service's native column order preserved
// alongside the field values.
type Row struct {
	Fields []string          `json:"fields"`
	Values map[string]string `json:"values"`
}

// ResultPage is one bounded chunk of a larger result set. Either Rows or
// Lines is populated depending on the extraction method; a row is never
// split across pages.
type ResultPage struct {
	Rows   []Row
	Lines  []string
	Offset int
	More   bool
}

// Count returns the number of rows or lines carried by the page.
func (p ResultPage) Count() int {
	if len(p.Rows) > 0 {
		return len(p.Rows)
	}
	return len(p.Lines)
}

// ExtractionAttempt records one tried extraction strategy for diagnostics
// and fallback decisions. Not persisted.
type ExtractionAttempt struct {
	Strategy string
	NonEmpty bool
	Reason   string
}
