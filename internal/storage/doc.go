// Package storage provides SQLite-based persistence for ingested documents.
//
// The storage layer manages:
//   - Document revisions and their lifecycle
//   - Chunk rows with full provenance (source, page, ordinal, token offsets)
//   - The active corpus feed used to rebuild the lexical index
//
// Dense vectors are NOT stored here; they live in the configured vector
// store keyed by chunk ID. SQLite holds the authoritative chunk text and
// provenance that query results are hydrated from.
//
// # Database Schema
//
// Tables:
//   - documents: one row per ingested revision; superseded_at is NULL
//     while the revision is active for its name
//   - chunks: immutable chunk rows, cascade-deleted with their revision
//   - schema_version: applied migration tracking
//
// # Revisioning
//
// A document's stable identity is its name. Re-ingesting a name mints a
// new revision and marks the prior one superseded instead of updating
// rows in place:
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	superseded, _ := tx.SupersedeDocumentsByName(ctx, doc.Name)
//	_ = tx.CreateDocument(ctx, doc)
//	_ = tx.CreateChunks(ctx, chunks)
//
//	if err := tx.Commit(); err != nil {
//	    return err
//	}
//
// Superseding keeps the old revision's chunk rows. If the steps that
// follow the transaction fail (vector indexing, for example), the caller
// hard-deletes the new revision with DeleteDocument and calls
// RestoreDocument on each superseded ID to put the prior revision back.
// On success the superseded revisions are hard-deleted instead.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("~/.veridoc/veridoc.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	doc, err := store.GetDocumentByName(ctx, "warranty-manual")
//	chunks, err := store.GetChunks(ctx, chunkIDs)
//
// # Rebuild Feed
//
// ListActiveChunks returns every chunk of every active revision in a
// deterministic order (document name, then chunk index). The lexical
// index is rebuilt from this feed after each ingestion:
//
//	corpus, err := store.ListActiveChunks(ctx)
//	snapshot := lexical.Build(corpus)
//
// # Build Tags
//
// The storage package supports two build configurations:
//
// Pure Go Build (default):
//
//   - Uses modernc.org/sqlite driver
//
//   - No C compiler needed
//
//     CGO_ENABLED=0 go build ./...
//
// CGO Build (sqlite_cgo tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//   - Faster bulk writes, requires a C compiler
//
//     CGO_ENABLED=1 go build -tags "sqlite_cgo"
package storage
