package storage

import (
	"context"

	"github.com/veridoc/veridoc-mcp/pkg/types"
)

// Store defines the persistence interface for documents and chunks.
// Implementations must be safe for concurrent use.
//
// Documents are revisioned: each ingestion of a name creates a new row,
// and the prior revision is marked superseded rather than mutated. Chunk
// rows belong to exactly one revision and are removed with it.
type Store interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *types.Document) error
	GetDocument(ctx context.Context, id string) (*types.Document, error)
	GetDocumentByName(ctx context.Context, name string) (*types.Document, error)
	ListDocuments(ctx context.Context) ([]*types.Document, error)
	SupersedeDocumentsByName(ctx context.Context, name string) ([]string, error)
	RestoreDocument(ctx context.Context, id string) error
	DeleteDocument(ctx context.Context, id string) error

	// Chunk operations
	CreateChunks(ctx context.Context, chunks []*types.Chunk) error
	GetChunk(ctx context.Context, id string) (*types.Chunk, error)
	GetChunks(ctx context.Context, ids []string) ([]*types.Chunk, error)
	ListActiveChunks(ctx context.Context) ([]*types.Chunk, error)
	CountActiveChunks(ctx context.Context) (int, error)

	// Status operations
	Stats(ctx context.Context) (*Stats, error)

	// Transaction support
	BeginTx(ctx context.Context) (Tx, error)

	// Lifecycle
	Close() error
}

// Tx represents a database transaction. Operations performed through a Tx
// see each other's uncommitted writes and become visible to other callers
// only on Commit.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Stats summarizes the state of the store for status reporting.
type Stats struct {
	ActiveDocuments int
	TotalDocuments  int
	ActiveChunks    int
	DatabaseSizeMB  float64
	SchemaVersion   string
}
