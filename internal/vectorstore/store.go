// Package vectorstore defines the port for dense vector persistence and
// similarity search. The hybrid retrieval core treats the store as an
// external collaborator: adapters exist for a Qdrant server (qdrant
// subpackage) and for an in-memory brute-force store (memory subpackage)
// used as the zero-config default and as the test double.
package vectorstore

import "context"

// Payload is the metadata stored alongside each vector. It mirrors the
// provenance fields of the chunk the vector was computed from, so search
// results can be attributed without a storage round trip.
type Payload struct {
	DocumentID string `json:"document_id"`
	Source     string `json:"source"`
	Page       int    `json:"page"`
	ChunkIndex int    `json:"chunk_index"`
}

// Point is one vector plus its identity and payload. ID is the chunk ID,
// which is unique across document revisions.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Match is one similarity search hit. Score is the cosine similarity as
// reported by the store.
type Match struct {
	ChunkID string
	Score   float64
	Payload Payload
}

// Filter restricts a query or delete to points whose payload matches the
// set fields. Zero-valued fields are ignored; a nil *Filter matches all.
type Filter struct {
	DocumentID string
	Source     string
}

// Store persists vectors and answers similarity queries.
type Store interface {
	// Init prepares the backing collection for vectors of the given
	// dimension. Safe to call when the collection already exists.
	Init(ctx context.Context, dimension int) error

	// Upsert inserts or replaces points by ID.
	Upsert(ctx context.Context, points []Point) error

	// Query returns the topK most similar points by cosine similarity,
	// best first.
	Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Match, error)

	// Count reports the number of stored points.
	Count(ctx context.Context) (int, error)

	// DeleteByDocument removes every point belonging to a document
	// revision.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Close releases client resources.
	Close() error
}
