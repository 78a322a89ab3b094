// Package parser turns source files into the token stream and
// structural map the segmenter consumes.
//
// # Port
//
// Parsing is format-specific and deliberately sits behind a small port:
//
//	type Parser interface {
//	    Parse(ctx context.Context, path string) (*types.ParsedDocument, error)
//	    Extensions() []string
//	}
//
// A ParsedDocument carries three parallel views of the file:
//
//   - Tokens: the word stream, in reading order
//   - Pages: half-open token ranges mapping stream positions to pages
//   - Tables: half-open token ranges that must never be split
//
// The segmenter validates the structural map before trusting it; a
// parser that emits inconsistent spans causes the document to be
// rejected at ingestion rather than silently miscited.
//
// # Built-in text parser
//
// TextParser handles .txt and .md files with plain conventions: form
// feed characters delimit pages (a file without one is a single page),
// tokens are whitespace-separated words, and a maximal run of lines
// starting with "|" forms one table region, markdown pipe-table style.
//
// # Registry
//
// The Registry dispatches by file extension:
//
//	reg := parser.NewRegistry()
//	doc, err := reg.Parse(ctx, "manuals/pump_overhaul.md")
//	if errors.Is(err, parser.ErrUnsupportedFormat) {
//	    // extension has no registered parser
//	}
//
// Heavier formats (PDF, spreadsheets) are extracted by external
// tooling; their parsers would register here without changing the
// ingestion pipeline.
package parser
