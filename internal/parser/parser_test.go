package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridoc/veridoc-mcp/pkg/types"
)

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func parseText(t *testing.T, name, content string) *types.ParsedDocument {
	t.Helper()
	doc, err := NewTextParser().Parse(context.Background(), writeDoc(t, name, content))
	require.NoError(t, err)
	return doc
}

func TestRegistryDispatch(t *testing.T) {
	reg := NewRegistry()

	for _, ext := range []string{".txt", ".text", ".md", ".markdown"} {
		p, err := reg.ForPath("manual" + ext)
		require.NoError(t, err, "extension %s", ext)
		assert.IsType(t, &TextParser{}, p)
	}

	// Extension matching is case-insensitive.
	p, err := reg.ForPath("MANUAL.TXT")
	require.NoError(t, err)
	assert.IsType(t, &TextParser{}, p)
}

func TestRegistryUnknownExtension(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.ForPath("scan.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), ".pdf")
	assert.Contains(t, err.Error(), ".txt", "error should list supported extensions")
}

func TestRegistryParse(t *testing.T) {
	reg := NewRegistry()
	path := writeDoc(t, "notes.md", "alpha beta gamma")

	doc, err := reg.Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, doc.Tokens)
}

func TestParseSinglePage(t *testing.T) {
	doc := parseText(t, "plain.txt", "hello world\nsecond line")

	assert.Equal(t, []string{"hello", "world", "second", "line"}, doc.Tokens)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, types.PageSpan{Page: 1, StartToken: 0, EndToken: 4}, doc.Pages[0])
	assert.Empty(t, doc.Tables)
}

func TestParseFormFeedPages(t *testing.T) {
	doc := parseText(t, "paged.txt", "page one text\fpage two text")

	assert.Len(t, doc.Tokens, 6)
	require.Len(t, doc.Pages, 2)
	assert.Equal(t, types.PageSpan{Page: 1, StartToken: 0, EndToken: 3}, doc.Pages[0])
	assert.Equal(t, types.PageSpan{Page: 2, StartToken: 3, EndToken: 6}, doc.Pages[1])
}

func TestParseTrailingFormFeed(t *testing.T) {
	doc := parseText(t, "trailing.txt", "words here\f")

	require.Len(t, doc.Pages, 2)
	assert.Equal(t, types.PageSpan{Page: 2, StartToken: 2, EndToken: 2}, doc.Pages[1],
		"trailing form feed yields an empty final page span")
}

func TestParseTableRegion(t *testing.T) {
	content := "intro line\n" +
		"| part | torque |\n" +
		"| M8 | 25 Nm |\n" +
		"outro line"
	doc := parseText(t, "table.md", content)

	assert.Len(t, doc.Tokens, 15)
	require.Len(t, doc.Tables, 1)
	assert.Equal(t, types.TokenRange{Start: 2, End: 13}, doc.Tables[0])

	// Region boundaries sit exactly around the pipe-line tokens.
	assert.Equal(t, "|", doc.Tokens[2])
	assert.Equal(t, "outro", doc.Tokens[13])
}

func TestParseSeparatorRowStaysInRegion(t *testing.T) {
	content := "| a | b |\n|---|---|\n| 1 | 2 |"
	doc := parseText(t, "sep.md", content)

	require.Len(t, doc.Tables, 1)
	assert.Equal(t, 0, doc.Tables[0].Start)
	assert.Equal(t, len(doc.Tokens), doc.Tables[0].End)
}

func TestParseBlankLineSplitsTables(t *testing.T) {
	content := "| a | b |\n\n| c | d |"
	doc := parseText(t, "two.md", content)

	require.Len(t, doc.Tables, 2)
	assert.Equal(t, types.TokenRange{Start: 0, End: 5}, doc.Tables[0])
	assert.Equal(t, types.TokenRange{Start: 5, End: 10}, doc.Tables[1])
}

func TestParseTableDoesNotCrossPages(t *testing.T) {
	content := "| a | b |\f| c | d |"
	doc := parseText(t, "split.md", content)

	require.Len(t, doc.Tables, 2, "form feed must end the open table region")
	assert.Equal(t, 5, doc.Tables[0].End)
	assert.Equal(t, 5, doc.Tables[1].Start)
}

func TestParseEmptyFile(t *testing.T) {
	doc := parseText(t, "empty.txt", "")

	assert.Empty(t, doc.Tokens)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, types.PageSpan{Page: 1, StartToken: 0, EndToken: 0}, doc.Pages[0])
	assert.Empty(t, doc.Tables)
}

func TestParseStructuralMapIsConsistent(t *testing.T) {
	content := "one two three\ffour five\n| six | seven |\f\feight"
	doc := parseText(t, "multi.txt", content)

	// Page spans must tile the token stream: contiguous, in order,
	// starting at zero and ending at the token count.
	prevEnd := 0
	for i, span := range doc.Pages {
		assert.Equal(t, i+1, span.Page)
		assert.Equal(t, prevEnd, span.StartToken)
		assert.LessOrEqual(t, span.StartToken, span.EndToken)
		prevEnd = span.EndToken
	}
	assert.Equal(t, len(doc.Tokens), prevEnd)

	// Table regions stay inside the stream and never overlap.
	prev := 0
	for _, tr := range doc.Tables {
		assert.GreaterOrEqual(t, tr.Start, prev)
		assert.Less(t, tr.Start, tr.End)
		assert.LessOrEqual(t, tr.End, len(doc.Tokens))
		prev = tr.End
	}
}

func TestParseMissingFile(t *testing.T) {
	_, err := NewTextParser().Parse(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}

func TestParseCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTextParser().Parse(ctx, writeDoc(t, "x.txt", "content"))
	assert.ErrorIs(t, err, context.Canceled)
}
