package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/veridoc/veridoc-mcp/internal/lexical"
	"github.com/veridoc/veridoc-mcp/internal/parser"
	"github.com/veridoc/veridoc-mcp/internal/segmenter"
	"github.com/veridoc/veridoc-mcp/internal/storage"
	"github.com/veridoc/veridoc-mcp/pkg/types"
)

// ErrIngestInProgress means another ingestion holds the corpus lock.
// The caller should retry once the running ingestion finishes.
var ErrIngestInProgress = errors.New("ingestion already in progress")

// ErrDocumentTooLarge means the source file exceeds the configured size
// limit and was rejected before parsing.
var ErrDocumentTooLarge = errors.New("document exceeds size limit")

// Config contains configuration for the pipeline
type Config struct {
	// MaxFileBytes rejects source files larger than this before parsing.
	// Zero means no limit.
	MaxFileBytes int64
}

// DenseIndexer is the slice of the dense index the pipeline drives.
// *dense.Indexer implements it.
type DenseIndexer interface {
	IndexChunks(ctx context.Context, chunks []*types.Chunk) error
	RemoveDocument(ctx context.Context, documentID string) error
}

// Pipeline coordinates document ingestion end to end. One Pipeline
// serves the whole process; the embedded lock serializes corpus
// mutations across all callers.
type Pipeline struct {
	parsers   *parser.Registry
	segmenter *segmenter.Segmenter
	store     storage.Store
	dense     DenseIndexer
	lexical   *lexical.Index
	cfg       Config
	lock      IngestLock
	log       *slog.Logger
}

// New creates a Pipeline. A nil logger falls back to slog.Default.
func New(parsers *parser.Registry, seg *segmenter.Segmenter, store storage.Store,
	dense DenseIndexer, lexicalIndex *lexical.Index, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		parsers:   parsers,
		segmenter: seg,
		store:     store,
		dense:     dense,
		lexical:   lexicalIndex,
		cfg:       cfg,
		log:       logger,
	}
}

// Ingest runs the full pipeline for one document. An empty name derives
// the document name from the file's base name. Re-ingesting an existing
// name supersedes the prior revision; the old revision keeps serving
// queries until the new one is fully indexed, and is restored if the
// new one fails partway.
func (p *Pipeline) Ingest(ctx context.Context, path, name string) (*types.IngestReport, error) {
	if !p.lock.TryAcquire() {
		return nil, ErrIngestInProgress
	}
	defer p.lock.Release()

	startTime := time.Now()
	if name == "" {
		name = filepath.Base(path)
	}

	if err := p.checkFileSize(path); err != nil {
		return nil, err
	}

	parsed, err := p.parsers.Parse(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	doc := types.NewDocument(name, path, parsed.PageCount())

	seg, err := p.segmenter.Segment(doc, parsed)
	if err != nil {
		return nil, err
	}
	doc.ChunkCount = len(seg.Chunks)

	// Supersede + persist in one transaction: before Commit nothing is
	// visible, so an error here needs no compensation.
	superseded, err := p.persistRevision(ctx, doc, seg.Chunks)
	if err != nil {
		return nil, fmt.Errorf("persist document %q: %w", name, err)
	}

	if len(seg.Chunks) > 0 {
		if err := p.dense.IndexChunks(ctx, seg.Chunks); err != nil {
			p.rollbackRevision(ctx, doc.ID, superseded)
			return nil, fmt.Errorf("dense index document %q: %w", name, err)
		}
	}

	snapshot, err := p.RebuildLexical(ctx)
	if err != nil {
		p.rollbackRevision(ctx, doc.ID, superseded)
		return nil, fmt.Errorf("lexical rebuild after ingesting %q: %w", name, err)
	}

	// The new revision is live from here; retiring the old one is
	// cleanup, not correctness. Query hydration skips whatever a failed
	// cleanup leaves behind.
	p.retireRevisions(ctx, superseded)

	report := &types.IngestReport{
		Document:      name,
		DocumentID:    doc.ID,
		ChunksCreated: len(seg.Chunks),
		TableChunks:   countTableChunks(seg.Chunks),
		Pages:         parsed.PageCount(),
		Warnings:      seg.Warnings,
		Duration:      time.Since(startTime),
	}

	p.log.Info("document ingested",
		"document", name,
		"document_id", doc.ID,
		"chunks", report.ChunksCreated,
		"pages", report.Pages,
		"snapshot_version", snapshot.Version(),
		"duration", report.Duration)

	return report, nil
}

// RemoveDocument retires every active revision of the named document
// and rebuilds the lexical snapshot without it. Returns
// storage.ErrNotFound when no active revision matches.
func (p *Pipeline) RemoveDocument(ctx context.Context, name string) error {
	if !p.lock.TryAcquire() {
		return ErrIngestInProgress
	}
	defer p.lock.Release()

	superseded, err := p.store.SupersedeDocumentsByName(ctx, name)
	if err != nil {
		return fmt.Errorf("retire document %q: %w", name, err)
	}
	if len(superseded) == 0 {
		return fmt.Errorf("document %q: %w", name, storage.ErrNotFound)
	}

	snapshot, err := p.RebuildLexical(ctx)
	if err != nil {
		return fmt.Errorf("lexical rebuild after removing %q: %w", name, err)
	}

	p.retireRevisions(ctx, superseded)

	p.log.Info("document removed",
		"document", name,
		"revisions", len(superseded),
		"snapshot_version", snapshot.Version())

	return nil
}

// RebuildLexical rebuilds the lexical snapshot from the active corpus
// and swaps it in. Called by the pipeline after every corpus change and
// at startup to warm the in-memory index from storage.
func (p *Pipeline) RebuildLexical(ctx context.Context) (*lexical.Snapshot, error) {
	chunks, err := p.store.ListActiveChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active corpus: %w", err)
	}

	snapshot := p.lexical.Rebuild(chunks)
	p.log.Info("lexical snapshot rebuilt",
		"version", snapshot.Version(),
		"chunks", snapshot.Size(),
		"excluded", snapshot.Excluded(),
		"terms", snapshot.TermCount())

	return snapshot, nil
}

// persistRevision supersedes the name's prior revisions and writes the
// new document and its chunks in one transaction. Returns the IDs of
// the superseded revisions for later cleanup or restore.
func (p *Pipeline) persistRevision(ctx context.Context, doc *types.Document, chunks []*types.Chunk) ([]string, error) {
	tx, err := p.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	superseded, err := tx.SupersedeDocumentsByName(ctx, doc.Name)
	if err != nil {
		return nil, fmt.Errorf("supersede prior revisions: %w", err)
	}

	if err := tx.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	if err := tx.CreateChunks(ctx, chunks); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return superseded, nil
}

// rollbackRevision undoes a committed revision after a later pipeline
// stage failed: new points and rows are removed, the superseded
// revisions become active again. Runs detached from the caller's
// context so a canceled ingestion still cleans up after itself.
func (p *Pipeline) rollbackRevision(ctx context.Context, docID string, superseded []string) {
	cctx := context.WithoutCancel(ctx)

	if err := p.dense.RemoveDocument(cctx, docID); err != nil {
		p.log.Warn("cleanup of new revision points failed",
			"document_id", docID, "error", err)
	}
	if err := p.store.DeleteDocument(cctx, docID); err != nil {
		p.log.Warn("cleanup of new revision rows failed",
			"document_id", docID, "error", err)
	}

	for _, id := range superseded {
		if err := p.store.RestoreDocument(cctx, id); err != nil {
			p.log.Error("restore of superseded revision failed",
				"document_id", id, "error", err)
		}
	}
}

// retireRevisions removes the points and rows of revisions that are no
// longer needed. Best effort: failures leave invisible rows and stale
// points, both logged.
func (p *Pipeline) retireRevisions(ctx context.Context, ids []string) {
	cctx := context.WithoutCancel(ctx)

	for _, id := range ids {
		if err := p.dense.RemoveDocument(cctx, id); err != nil {
			p.log.Warn("cleanup of retired revision points failed",
				"document_id", id, "error", err)
		}
		if err := p.store.DeleteDocument(cctx, id); err != nil {
			p.log.Warn("cleanup of retired revision rows failed",
				"document_id", id, "error", err)
		}
	}
}

// checkFileSize enforces the configured size limit. A stat failure is
// left for the parser to report with a better error.
func (p *Pipeline) checkFileSize(path string) error {
	if p.cfg.MaxFileBytes <= 0 {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if info.Size() > p.cfg.MaxFileBytes {
		return fmt.Errorf("%s is %d bytes, limit %d: %w",
			path, info.Size(), p.cfg.MaxFileBytes, ErrDocumentTooLarge)
	}
	return nil
}

func countTableChunks(chunks []*types.Chunk) int {
	n := 0
	for _, c := range chunks {
		if c.Kind == types.ChunkTable {
			n++
		}
	}
	return n
}
