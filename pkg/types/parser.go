package types

import "fmt"

// PageSpan maps one page to the token offset range it covers.
// Spans are half-open: [StartToken, EndToken).
type PageSpan struct {
	Page       int
	StartToken int
	EndToken   int
}

// TokenRange marks a half-open token offset range [Start, End) inside a
// document's token stream, used for table regions.
type TokenRange struct {
	Start int
	End   int
}

// Len returns the number of tokens covered by the range.
func (r TokenRange) Len() int {
	return r.End - r.Start
}

// Contains reports whether the token offset falls inside the range.
func (r TokenRange) Contains(offset int) bool {
	return offset >= r.Start && offset < r.End
}

// ParsedDocument is the output of the external document parser: the flat
// token stream, the structural map relating token offsets to pages, and
// the token ranges occupied by tables. The core never re-derives any of
// this from the raw file.
type ParsedDocument struct {
	// Extracted data
	Tokens []string
	Pages  []PageSpan   // ordered structural map
	Tables []TokenRange // ordered, non-overlapping table regions

	// Warnings encountered during parsing (empty pages, skipped regions)
	Warnings []string
}

// TokenCount returns the total number of tokens in the stream.
func (pd *ParsedDocument) TokenCount() int {
	return len(pd.Tokens)
}

// PageCount returns the number of pages in the structural map.
func (pd *ParsedDocument) PageCount() int {
	return len(pd.Pages)
}

// AddWarning records a non-fatal parsing observation.
func (pd *ParsedDocument) AddWarning(format string, args ...any) {
	pd.Warnings = append(pd.Warnings, fmt.Sprintf(format, args...))
}
