package integration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veridoc/veridoc-mcp/internal/dense"
	"github.com/veridoc/veridoc-mcp/internal/embedder"
	"github.com/veridoc/veridoc-mcp/internal/ingest"
	"github.com/veridoc/veridoc-mcp/internal/lexical"
	"github.com/veridoc/veridoc-mcp/internal/parser"
	"github.com/veridoc/veridoc-mcp/internal/ranker"
	"github.com/veridoc/veridoc-mcp/internal/segmenter"
	"github.com/veridoc/veridoc-mcp/internal/storage"
	"github.com/veridoc/veridoc-mcp/internal/vectorstore/memory"
)

// stack is the retrieval core wired over in-process backends: in-memory
// SQLite, the brute-force vector store, and the deterministic local
// embedding provider. No test in this package touches the network.
type stack struct {
	store    storage.Store
	vectors  *memory.Storage
	embedder embedder.Embedder
	dense    *dense.Indexer
	lexical  *lexical.Index
	pipeline *ingest.Pipeline
	ranker   *ranker.Ranker
}

func newStack(tb testing.TB) *stack {
	tb.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(tb, err)

	vectors := memory.NewStorage()
	require.NoError(tb, vectors.Init(context.Background(), emb.Dimension()))

	logger := testLogger()
	denseIdx := dense.New(emb, vectors, dense.Config{}, logger)
	lexIdx := lexical.NewIndex(nil, lexical.DefaultParams())
	seg := segmenter.New(segmenter.DefaultConfig(), logger)

	pipeline := ingest.New(parser.NewRegistry(), seg, store, denseIdx, lexIdx,
		ingest.Config{}, logger)

	// Warm the lexical index the way the server does at boot, so queries
	// against an empty corpus see an empty snapshot instead of degrading.
	_, err = pipeline.RebuildLexical(context.Background())
	require.NoError(tb, err)

	return &stack{
		store:    store,
		vectors:  vectors,
		embedder: emb,
		dense:    denseIdx,
		lexical:  lexIdx,
		pipeline: pipeline,
		ranker:   ranker.New(denseIdx, lexIdx, store, logger),
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// documentsDir resolves the shared fixture documents relative to this
// package directory.
func documentsDir(tb testing.TB) string {
	tb.Helper()
	wd, err := os.Getwd()
	require.NoError(tb, err)
	dir := filepath.Join(filepath.Dir(wd), "testdata", "documents")
	_, err = os.Stat(dir)
	require.NoError(tb, err, "fixture documents directory should exist")
	return dir
}
