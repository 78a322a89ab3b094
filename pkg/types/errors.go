package types

import "errors"

// Retrieval error taxonomy. Callers match with errors.Is; lower layers
// wrap these with context via fmt.Errorf("...: %w", err).
var (
	// ErrProvenanceMapping means a document's structural map could not be
	// validated or a chunk's token range could not be mapped to a page.
	// Fatal for that document: ingestion is rejected rather than producing
	// chunks with wrong or missing page numbers.
	ErrProvenanceMapping = errors.New("provenance mapping failed")

	// ErrVectorStorage means the vector store's reported point count did
	// not match the number of chunks submitted, or an upsert exhausted its
	// retries. Fatal for that ingestion batch.
	ErrVectorStorage = errors.New("vector storage inconsistency")

	// ErrInvalidQuery covers synchronously rejected requests: empty query
	// text or a non-positive top_k.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrIndexUnavailable means the lexical snapshot has not been built.
	// Not fatal: ranking degrades to the dense signal alone.
	ErrIndexUnavailable = errors.New("lexical index unavailable")
)

// Domain errors for type validation
var (
	ErrInvalidChunkID = errors.New("invalid chunk ID")
	ErrInvalidRank    = errors.New("rank must be >= 1")
	ErrInvalidScore   = errors.New("score must be between 0 and 1")
	ErrMissingPage    = errors.New("page number is required")
	ErrEmptyContent   = errors.New("content cannot be empty")

	errMissingSource = errors.New("source document is required")
)
