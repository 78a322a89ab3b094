package types

import "time"

// QueryResult represents a single ranked retrieval result. It is
// transient: built per query from stored chunk metadata and discarded
// with the response, never persisted.
type QueryResult struct {
	// Identification
	ChunkID string
	Rank    int // Position in result set (1-based)

	// Scoring
	Score float64 // Fused relevance score, normalized to [0, 1]

	// Content
	Text string // Chunk text with the citation appended

	// Provenance
	SourceDocument string
	PageNumber     int
	ChunkIndex     int
	WordCount      int
}

// Validate checks if the query result is valid
func (qr *QueryResult) Validate() error {
	if qr.ChunkID == "" {
		return ErrInvalidChunkID
	}

	if qr.Rank < 1 {
		return ErrInvalidRank
	}

	if qr.Score < 0 || qr.Score > 1 {
		return ErrInvalidScore
	}

	if qr.Text == "" {
		return ErrEmptyContent
	}

	if qr.SourceDocument == "" {
		return errMissingSource
	}

	if qr.PageNumber < 1 {
		return ErrMissingPage
	}

	return nil
}

// IngestReport summarizes one document ingestion.
type IngestReport struct {
	Document   string
	DocumentID string

	ChunksCreated int
	TableChunks   int
	Pages         int

	Warnings []string
	Duration time.Duration
}

// HasWarnings returns true if ingestion produced any warnings
func (r *IngestReport) HasWarnings() bool {
	return len(r.Warnings) > 0
}
