// Package types provides shared type definitions for the VeriDoc MCP server.
//
// This package defines the domain types used across components: documents,
// chunks, parsed-document input, query results, and the retrieval error
// taxonomy.
//
// # Core Types
//
// Document represents one ingested revision of a named document. The stable
// identity is the name; each ingestion mints a revision UUID. Re-ingesting a
// name supersedes the prior revision instead of mutating it:
//
//	doc := types.NewDocument("pump-manual.md", "/data/pump-manual.md", 10)
//
// Chunk is the atomic retrievable unit with fixed provenance:
//
//	chunk := &types.Chunk{
//	    ID:             types.ChunkID(doc.ID, 0),
//	    DocumentID:     doc.ID,
//	    Text:           passage,
//	    SourceDocument: doc.Name,
//	    PageNumber:     3,
//	    Kind:           types.ChunkText,
//	}
//
// Chunks carry a tagged kind (ChunkText or ChunkTable) instead of inferring
// table-ness from formatting at scoring time. Table chunks are never split
// mid-row and never merged with narrative text.
//
// # Provenance
//
// Every chunk records its source document, 1-based page number, 0-based
// ordinal, and the token offset range it covers. PageNumber is a hard
// invariant: it is always mapped through the document's structural map
// (ParsedDocument.Pages), never estimated from position, because citation
// accuracy depends on it. Chunk.Validate rejects a missing page.
//
// # Error Taxonomy
//
// Failures are sentinel errors matched with errors.Is:
//
//	ErrProvenanceMapping  // malformed structural map, document rejected
//	ErrVectorStorage      // point count mismatch or exhausted retries
//	ErrInvalidQuery       // empty query or top_k <= 0
//	ErrIndexUnavailable   // lexical snapshot not built, degraded ranking
//
// # Query Results
//
// QueryResult combines the fused score with citation provenance:
//
//	result := &types.QueryResult{
//	    ChunkID:        chunk.ID,
//	    Rank:           1,
//	    Score:          0.92,
//	    Text:           cited,
//	    SourceDocument: "pump-manual.md",
//	    PageNumber:     3,
//	}
//
// Scores are normalized to [0, 1], with higher values indicating better
// matches. Results are transient and never persisted.
package types
