package parser

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/veridoc/veridoc-mcp/pkg/types"
)

// Ensure TextParser implements the port.
var _ Parser = (*TextParser)(nil)

// TextParser handles plain text and markdown files. Pages are delimited
// by form feed characters, tokens are whitespace-separated words, and
// contiguous runs of pipe-table lines become table regions.
type TextParser struct{}

// NewTextParser creates the built-in text parser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

func (p *TextParser) Extensions() []string {
	return []string{".txt", ".text", ".md", ".markdown"}
}

func (p *TextParser) Parse(ctx context.Context, path string) (*types.ParsedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	doc := &types.ParsedDocument{}

	// A document without form feeds is a single page.
	pages := strings.Split(string(content), "\f")
	for pageIdx, pageText := range pages {
		span := types.PageSpan{
			Page:       pageIdx + 1,
			StartToken: len(doc.Tokens),
		}
		p.parsePage(doc, pageText)
		span.EndToken = len(doc.Tokens)
		doc.Pages = append(doc.Pages, span)
	}

	return doc, nil
}

// parsePage appends the page's tokens to the document and records table
// regions. A table region is a maximal run of consecutive lines starting
// with a pipe; any other line, including a blank one, ends the run.
func (p *TextParser) parsePage(doc *types.ParsedDocument, pageText string) {
	tableStart := -1

	endTable := func() {
		if tableStart >= 0 && len(doc.Tokens) > tableStart {
			doc.Tables = append(doc.Tables, types.TokenRange{
				Start: tableStart,
				End:   len(doc.Tokens),
			})
		}
		tableStart = -1
	}

	for _, line := range strings.Split(pageText, "\n") {
		words := strings.Fields(line)
		if isTableLine(line) {
			if tableStart < 0 {
				tableStart = len(doc.Tokens)
			}
		} else {
			endTable()
		}
		doc.Tokens = append(doc.Tokens, words...)
	}
	endTable()
}

// isTableLine reports whether a line belongs to a markdown pipe table.
func isTableLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "|")
}
