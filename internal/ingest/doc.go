// Package ingest coordinates the document ingestion pipeline.
//
// # Pipeline Stages
//
// Ingest executes five stages per document:
//
//  1. Parse: resolve a parser by extension, extract tokens + structural map
//  2. Segment: size-bounded chunking with provenance (page, offsets, kind)
//  3. Persist: supersede the prior revision and write the new one, one transaction
//  4. Dense index: embed in batches, upsert, verify the stored point count
//  5. Lexical rebuild: full BM25 snapshot over the active corpus, atomic swap
//
// # All-or-Nothing Revisions
//
// A document either becomes fully queryable or leaves no trace. The
// transaction in stage 3 makes persistence atomic on its own; when a
// later stage fails, the pipeline deletes the new revision's points and
// rows and restores the superseded revision:
//
//	report, err := pipe.Ingest(ctx, "/docs/pump-manual.pdf", "pump-manual")
//	if err != nil {
//	    // the previously ingested pump-manual still serves queries
//	}
//
// The old revision keeps serving queries throughout: lexical readers
// hold the prior snapshot until the swap, and its rows are only removed
// after the new revision is live.
//
// # Serialization
//
// A non-blocking atomic lock serializes corpus mutations. Concurrent
// callers get ErrIngestInProgress instead of queueing:
//
//	if _, err := pipe.Ingest(ctx, path, name); errors.Is(err, ingest.ErrIngestInProgress) {
//	    // retry after the running ingestion finishes
//	}
//
// Queue wraps the pipeline in a single-worker pool for background and
// bulk loads; its submissions wait for the worker instead of failing
// on the busy lock.
//
// # Startup
//
// The lexical snapshot lives in memory. After a restart, warm it from
// storage before serving queries:
//
//	if _, err := pipe.RebuildLexical(ctx); err != nil {
//	    return err
//	}
package ingest
