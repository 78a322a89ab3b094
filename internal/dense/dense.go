// Package dense adapts the embedding provider and the vector store into
// the semantic half of hybrid retrieval. It owns batching, upsert
// retries, and the post-insert count verification that guards against
// silently dropped vectors.
package dense

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veridoc/veridoc-mcp/internal/embedder"
	"github.com/veridoc/veridoc-mcp/internal/vectorstore"
	"github.com/veridoc/veridoc-mcp/pkg/types"
)

const (
	// DefaultBatchSize is the number of chunks embedded and upserted per
	// batch.
	DefaultBatchSize = 100

	// DefaultWorkers bounds concurrent embedding batches.
	DefaultWorkers = 4

	// WidenFactor is the default candidate multiplier applied to top_k
	// on the dense side, so fusion reranking has headroom beyond the
	// final result count.
	WidenFactor = 4

	upsertRetries     = 3
	upsertBaseBackoff = 100 * time.Millisecond
)

// Config controls batching and retrieval widening.
type Config struct {
	BatchSize   int
	Workers     int
	WidenFactor int
}

func (c *Config) normalize() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	// The embedding providers cap batch size; exceeding it would fail
	// every batch.
	if c.BatchSize > embedder.MaxBatchSize {
		c.BatchSize = embedder.MaxBatchSize
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.WidenFactor <= 0 {
		c.WidenFactor = WidenFactor
	}
}

// Indexer writes chunk vectors to the store and retrieves dense
// candidates for queries.
type Indexer struct {
	embedder embedder.Embedder
	store    vectorstore.Store
	cfg      Config
	log      *slog.Logger
}

// New creates an Indexer. A nil logger falls back to slog.Default.
func New(emb embedder.Embedder, store vectorstore.Store, cfg Config, logger *slog.Logger) *Indexer {
	cfg.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		embedder: emb,
		store:    store,
		cfg:      cfg,
		log:      logger,
	}
}

// IndexChunks embeds and stores every chunk of one document revision.
// After all batches land it verifies the store's point count grew by
// exactly len(chunks); any shortfall reports types.ErrVectorStorage so
// the caller can roll the revision back. The caller must hold the
// ingestion lock: the count check assumes no concurrent writer.
func (d *Indexer) IndexChunks(ctx context.Context, chunks []*types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	before, err := d.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("%w: count before insert: %v", types.ErrVectorStorage, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)

	for start := 0; start < len(chunks); start += d.cfg.BatchSize {
		end := start + d.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		g.Go(func() error {
			return d.indexBatch(gctx, batch)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	after, err := d.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("%w: count after insert: %v", types.ErrVectorStorage, err)
	}
	if got := after - before; got != len(chunks) {
		return fmt.Errorf("%w: stored %d of %d vectors", types.ErrVectorStorage, got, len(chunks))
	}

	d.log.Debug("indexed chunks",
		"chunks", len(chunks),
		"batches", (len(chunks)+d.cfg.BatchSize-1)/d.cfg.BatchSize,
		"provider", d.embedder.Provider())
	return nil
}

func (d *Indexer) indexBatch(ctx context.Context, batch []*types.Chunk) error {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Text
	}

	resp, err := d.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
	if err != nil {
		return fmt.Errorf("embed batch of %d: %w", len(batch), err)
	}
	if len(resp.Embeddings) != len(batch) {
		return fmt.Errorf("%w: embedder returned %d vectors for %d chunks",
			types.ErrVectorStorage, len(resp.Embeddings), len(batch))
	}

	points := make([]vectorstore.Point, len(batch))
	for i, chunk := range batch {
		points[i] = vectorstore.Point{
			ID:     chunk.ID,
			Vector: resp.Embeddings[i].Vector,
			Payload: vectorstore.Payload{
				DocumentID: chunk.DocumentID,
				Source:     chunk.SourceDocument,
				Page:       chunk.PageNumber,
				ChunkIndex: chunk.Index,
			},
		}
	}

	return d.upsertWithRetry(ctx, points)
}

// upsertWithRetry retries transient store failures with exponential
// backoff before giving up.
func (d *Indexer) upsertWithRetry(ctx context.Context, points []vectorstore.Point) error {
	var lastErr error
	backoff := upsertBaseBackoff

	for attempt := 0; attempt < upsertRetries; attempt++ {
		lastErr = d.store.Upsert(ctx, points)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < upsertRetries-1 {
			d.log.Warn("vector upsert failed, retrying",
				"attempt", attempt+1, "points", len(points), "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}

	return fmt.Errorf("%w: upsert failed after %d attempts: %v",
		types.ErrVectorStorage, upsertRetries, lastErr)
}

// Search embeds the query and returns the widened dense candidate set:
// the top widen-factor*topK matches by cosine similarity.
func (d *Indexer) Search(ctx context.Context, query string, topK int) ([]vectorstore.Match, error) {
	emb, err := d.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := d.store.Query(ctx, emb.Vector, d.cfg.WidenFactor*topK, nil)
	if err != nil {
		return nil, fmt.Errorf("dense query: %w", err)
	}
	return matches, nil
}

// RemoveDocument deletes every vector belonging to a document revision.
func (d *Indexer) RemoveDocument(ctx context.Context, documentID string) error {
	if err := d.store.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("%w: delete document %s: %v", types.ErrVectorStorage, documentID, err)
	}
	return nil
}

// Dimension reports the embedding dimension of the active provider, used
// to initialize the vector store collection.
func (d *Indexer) Dimension() int {
	return d.embedder.Dimension()
}
