package types

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Document represents one ingested revision of a named document.
// A document's stable identity is its Name; each ingestion mints a new
// revision with a fresh ID. Revisions are immutable: re-ingesting a name
// supersedes the prior revision rather than mutating it.
type Document struct {
	// Identification
	ID   string // revision UUID
	Name string // stable logical name, unique among active documents
	Path string // source file path at ingestion time

	// Shape
	Pages      int
	ChunkCount int

	// Lifecycle
	IngestedAt   time.Time
	SupersededAt *time.Time // nil while this revision is active
}

// NewDocument creates a fresh document revision for the given name.
func NewDocument(name, path string, pages int) *Document {
	return &Document{
		ID:         uuid.NewString(),
		Name:       name,
		Path:       path,
		Pages:      pages,
		IngestedAt: time.Now().UTC(),
	}
}

// IsActive reports whether this revision is the current one for its name.
func (d *Document) IsActive() bool {
	return d.SupersededAt == nil
}

// Validate performs comprehensive validation of the document
func (d *Document) Validate() error {
	if d.ID == "" {
		return errors.New("document ID is required")
	}

	if d.Name == "" {
		return errors.New("document name is required")
	}

	if d.Pages < 0 {
		return errors.New("page count must be >= 0")
	}

	if d.ChunkCount < 0 {
		return errors.New("chunk count must be >= 0")
	}

	if d.IngestedAt.IsZero() {
		return errors.New("ingestion timestamp is required")
	}

	return nil
}
