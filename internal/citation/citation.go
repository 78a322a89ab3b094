// Package citation renders the provenance footer attached to every
// query result, so an answer built from a chunk can always be traced
// back to its source document and page.
package citation

import (
	"fmt"
	"strings"

	"github.com/veridoc/veridoc-mcp/pkg/types"
)

// separator sits between the chunk text and its citation.
const separator = "\n\n"

// Render formats the citation for a chunk. A page below 1 renders as
// "N/A"; with validated provenance this only occurs for chunks that
// never went through ingestion.
func Render(chunk *types.Chunk) string {
	page := "N/A"
	if chunk.PageNumber >= 1 {
		page = fmt.Sprintf("%d", chunk.PageNumber)
	}
	return fmt.Sprintf("(Source: %s, page %s, chunk %d)", chunk.SourceDocument, page, chunk.Index)
}

// Annotate appends the chunk's citation to text exactly once. Text that
// already ends with this chunk's citation is returned unchanged, so
// repeated annotation cannot stack footers.
func Annotate(text string, chunk *types.Chunk) string {
	c := Render(chunk)
	if strings.HasSuffix(text, c) {
		return text
	}
	return text + separator + c
}
