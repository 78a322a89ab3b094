package types

import (
	"errors"
	"fmt"
	"strings"
)

// ChunkKind represents the structural kind of a chunk
type ChunkKind string

const (
	ChunkText  ChunkKind = "text"
	ChunkTable ChunkKind = "table"
)

// Chunk is the atomic retrievable unit produced by segmentation.
// Text and provenance fields are immutable after creation; the dense
// vector lives in the vector store keyed by ID, and lexical statistics
// live in the lexical snapshot.
type Chunk struct {
	// Identification
	ID         string // encodes document revision + ordinal, see ChunkID
	DocumentID string // revision UUID of the owning document

	// Content
	Text       string
	TokenCount int
	WordCount  int

	// Provenance
	SourceDocument string // stable document name used in citations
	PageNumber     int    // 1-based, mapped through the structural map
	Index          int    // 0-based ordinal within the document
	StartToken     int    // token offset range [StartToken, EndToken)
	EndToken       int

	// Metadata
	Kind ChunkKind
}

// ChunkID builds the canonical chunk identifier for a document revision
// and chunk ordinal.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s:%04d", documentID, index)
}

// IsTable reports whether the chunk holds an intact table region.
func (c *Chunk) IsTable() bool {
	return c.Kind == ChunkTable
}

// CountWords computes and stores the whitespace-delimited word count.
func (c *Chunk) CountWords() int {
	c.WordCount = len(strings.Fields(c.Text))
	return c.WordCount
}

// ValidateKind checks if the chunk kind is valid
func (c *Chunk) ValidateKind() error {
	switch c.Kind {
	case ChunkText, ChunkTable:
		return nil
	default:
		return errors.New("invalid chunk kind")
	}
}

// Validate performs comprehensive validation of the chunk
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return errors.New("chunk ID is required")
	}

	if c.DocumentID == "" {
		return errors.New("document ID is required")
	}

	if c.Text == "" {
		return ErrEmptyContent
	}

	if c.TokenCount <= 0 {
		return errors.New("token count must be positive")
	}

	if err := c.ValidateKind(); err != nil {
		return err
	}

	if c.SourceDocument == "" {
		return errors.New("source document is required")
	}

	// Page provenance is a hard invariant; citation accuracy depends on it.
	if c.PageNumber < 1 {
		return ErrMissingPage
	}

	if c.Index < 0 {
		return errors.New("chunk index must be >= 0")
	}

	if c.StartToken < 0 || c.EndToken <= c.StartToken {
		return errors.New("token offset range must be non-empty")
	}

	return nil
}
