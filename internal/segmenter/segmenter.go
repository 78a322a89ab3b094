package segmenter

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/veridoc/veridoc-mcp/pkg/types"
)

const (
	// DefaultMaxTokens is the target maximum token count for narrative chunks
	DefaultMaxTokens = 512

	// DefaultOverlapRatio sets the overlap carried into the next chunk
	// as a fraction of the chunk size (~10%)
	DefaultOverlapRatio = 10

	// DefaultBoundaryDivisor sets the backward search window for a
	// natural break as a fraction of the chunk size
	DefaultBoundaryDivisor = 8
)

// Config controls narrative chunk sizing. Table regions ignore the
// size target: a table is always emitted as one intact chunk.
type Config struct {
	MaxTokens      int // target maximum token count per narrative chunk
	OverlapTokens  int // tokens repeated at the start of the next chunk
	BoundaryWindow int // backward search distance for a sentence break
}

// DefaultConfig returns the standard segmentation configuration.
func DefaultConfig() Config {
	return Config{
		MaxTokens:      DefaultMaxTokens,
		OverlapTokens:  DefaultMaxTokens / DefaultOverlapRatio,
		BoundaryWindow: DefaultMaxTokens / DefaultBoundaryDivisor,
	}
}

// normalize fills zero or out-of-range values with defaults. Overlap is
// capped below the chunk size so every chunk advances the cursor.
func (c *Config) normalize() {
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.OverlapTokens <= 0 || c.OverlapTokens >= c.MaxTokens {
		c.OverlapTokens = c.MaxTokens / DefaultOverlapRatio
	}
	if c.BoundaryWindow <= 0 || c.BoundaryWindow >= c.MaxTokens {
		c.BoundaryWindow = c.MaxTokens / DefaultBoundaryDivisor
	}
}

// Segmenter splits a parsed document's token stream into provenance-tagged
// chunks, keeping table regions intact and mapping every chunk's start
// offset to a page through the document's structural map.
type Segmenter struct {
	cfg Config
	log *slog.Logger
}

// New creates a Segmenter. A nil logger falls back to slog.Default.
func New(cfg Config, logger *slog.Logger) *Segmenter {
	cfg.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	return &Segmenter{cfg: cfg, log: logger}
}

// Result holds the ordered chunks of one document plus any non-fatal
// observations worth surfacing in the ingestion report.
type Result struct {
	Chunks   []*types.Chunk
	Warnings []string
}

// Segment produces the ordered chunk sequence for one document revision.
// The structural map is validated first; any overlap, gap, or uncovered
// token rejects the whole document with ErrProvenanceMapping rather than
// guessing page numbers. A document with no extractable text yields zero
// chunks and a warning.
func (s *Segmenter) Segment(doc *types.Document, parsed *types.ParsedDocument) (*Result, error) {
	result := &Result{}
	result.Warnings = append(result.Warnings, parsed.Warnings...)

	if len(parsed.Tokens) == 0 {
		s.log.Warn("document has no extractable text", "document", doc.Name)
		result.Warnings = append(result.Warnings, fmt.Sprintf("document %q has no extractable text", doc.Name))
		return result, nil
	}

	pages, err := newPageIndex(parsed.Pages, len(parsed.Tokens))
	if err != nil {
		return nil, fmt.Errorf("document %q: %w", doc.Name, err)
	}

	tables, err := validateTables(parsed.Tables, len(parsed.Tokens))
	if err != nil {
		return nil, fmt.Errorf("document %q: %w", doc.Name, err)
	}

	cursor := 0
	for _, region := range tables {
		if cursor < region.Start {
			s.emitNarrative(result, doc, parsed.Tokens, cursor, region.Start, pages)
		}
		s.emitTable(result, doc, parsed.Tokens, region, pages)
		cursor = region.End
	}
	if cursor < len(parsed.Tokens) {
		s.emitNarrative(result, doc, parsed.Tokens, cursor, len(parsed.Tokens), pages)
	}

	return result, nil
}

// emitNarrative splits the token range [start, end) into target-sized
// chunks with overlap, cutting at the nearest sentence end inside the
// boundary window when one exists.
func (s *Segmenter) emitNarrative(result *Result, doc *types.Document, tokens []string, start, end int, pages *pageIndex) {
	pos := start
	for pos < end {
		limit := pos + s.cfg.MaxTokens
		if limit >= end {
			s.emit(result, doc, tokens, pos, end, types.ChunkText, pages)
			return
		}

		cut := s.findBoundary(tokens, pos, limit)
		s.emit(result, doc, tokens, pos, cut, types.ChunkText, pages)

		next := cut - s.cfg.OverlapTokens
		if next <= pos {
			next = cut
		}
		pos = next
	}
}

// emitTable emits one table region as a single intact chunk. MaxTokens
// is a target, not a limit, for structural content: an oversized table
// stays whole rather than being split mid-row.
func (s *Segmenter) emitTable(result *Result, doc *types.Document, tokens []string, region types.TokenRange, pages *pageIndex) {
	if region.Len() > s.cfg.MaxTokens {
		s.log.Debug("table exceeds max chunk size, kept intact",
			"document", doc.Name,
			"tokens", region.Len(),
			"max_tokens", s.cfg.MaxTokens)
	}
	s.emit(result, doc, tokens, region.Start, region.End, types.ChunkTable, pages)
}

func (s *Segmenter) emit(result *Result, doc *types.Document, tokens []string, start, end int, kind types.ChunkKind, pages *pageIndex) {
	index := len(result.Chunks)
	chunk := &types.Chunk{
		ID:             types.ChunkID(doc.ID, index),
		DocumentID:     doc.ID,
		Text:           strings.Join(tokens[start:end], " "),
		TokenCount:     end - start,
		SourceDocument: doc.Name,
		PageNumber:     pages.pageFor(start),
		Index:          index,
		StartToken:     start,
		EndToken:       end,
		Kind:           kind,
	}
	chunk.CountWords()
	result.Chunks = append(result.Chunks, chunk)
}

// findBoundary scans backward from limit for a sentence-ending token
// inside the boundary window. Returns the cut position (exclusive), or
// limit for a hard cut when no natural break exists.
func (s *Segmenter) findBoundary(tokens []string, start, limit int) int {
	floor := limit - s.cfg.BoundaryWindow
	if floor <= start {
		floor = start + 1
	}
	for i := limit - 1; i >= floor; i-- {
		if isSentenceEnd(tokens[i]) {
			return i + 1
		}
	}
	return limit
}

// isSentenceEnd reports whether the token closes a sentence. Trailing
// quotes and brackets are stripped so tokens like `done.")` still count.
func isSentenceEnd(token string) bool {
	trimmed := strings.TrimRight(token, `"')]}`)
	return strings.HasSuffix(trimmed, ".") ||
		strings.HasSuffix(trimmed, "!") ||
		strings.HasSuffix(trimmed, "?")
}

// pageIndex is a validated structural map supporting offset-to-page
// lookup. Construction fails unless the spans are ordered, contiguous,
// and cover every token exactly once.
type pageIndex struct {
	spans []types.PageSpan
}

func newPageIndex(spans []types.PageSpan, tokenCount int) (*pageIndex, error) {
	if len(spans) == 0 {
		return nil, fmt.Errorf("structural map is empty for %d tokens: %w", tokenCount, types.ErrProvenanceMapping)
	}

	expected := 0
	for i, span := range spans {
		if span.Page < 1 {
			return nil, fmt.Errorf("page span %d has page number %d: %w", i, span.Page, types.ErrProvenanceMapping)
		}
		if span.StartToken > span.EndToken {
			return nil, fmt.Errorf("page %d has inverted token range [%d, %d): %w",
				span.Page, span.StartToken, span.EndToken, types.ErrProvenanceMapping)
		}
		if span.StartToken != expected {
			return nil, fmt.Errorf("page %d starts at token %d, expected %d (gap or overlap): %w",
				span.Page, span.StartToken, expected, types.ErrProvenanceMapping)
		}
		expected = span.EndToken
	}
	if expected != tokenCount {
		return nil, fmt.Errorf("structural map covers %d of %d tokens: %w", expected, tokenCount, types.ErrProvenanceMapping)
	}

	return &pageIndex{spans: spans}, nil
}

// pageFor maps a token offset to its page number. A chunk spanning a
// page boundary cites the page of its start token, where the passage
// begins. Offsets are in range by construction.
func (p *pageIndex) pageFor(offset int) int {
	i := sort.Search(len(p.spans), func(i int) bool {
		return p.spans[i].EndToken > offset
	})
	if i >= len(p.spans) {
		i = len(p.spans) - 1
	}
	return p.spans[i].Page
}

// validateTables checks that table regions are ordered, non-overlapping,
// non-empty, and inside the token stream. Table regions are structural
// metadata like page spans, so malformed regions reject the document the
// same way a malformed page map does.
func validateTables(regions []types.TokenRange, tokenCount int) ([]types.TokenRange, error) {
	prevEnd := 0
	for i, region := range regions {
		if region.Start < 0 || region.End > tokenCount {
			return nil, fmt.Errorf("table region %d [%d, %d) outside token stream of %d: %w",
				i, region.Start, region.End, tokenCount, types.ErrProvenanceMapping)
		}
		if region.Len() <= 0 {
			return nil, fmt.Errorf("table region %d [%d, %d) is empty: %w",
				i, region.Start, region.End, types.ErrProvenanceMapping)
		}
		if region.Start < prevEnd {
			return nil, fmt.Errorf("table region %d [%d, %d) overlaps previous region: %w",
				i, region.Start, region.End, types.ErrProvenanceMapping)
		}
		prevEnd = region.End
	}
	return regions, nil
}
