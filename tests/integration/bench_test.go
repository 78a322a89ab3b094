package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

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

var benchTopics = []string{
	"conveyor belt tracking and splice inspection",
	"boiler feedwater oxygen scavenging",
	"forklift hydraulic mast maintenance",
	"compressor intercooler cleaning intervals",
	"gearbox oil sampling and analysis",
	"crane wire rope discard criteria",
}

// writeBenchDocs generates single-page procedure documents so query
// benchmarks run against more than the three fixtures.
func writeBenchDocs(b *testing.B, dir string, count int) {
	b.Helper()
	for i := 0; i < count; i++ {
		topic := benchTopics[i%len(benchTopics)]
		var sb strings.Builder
		fmt.Fprintf(&sb, "Procedure %03d covers %s.\n\n", i, topic)
		for step := 1; step <= 8; step++ {
			fmt.Fprintf(&sb,
				"Step %d: check the %s on unit %d and record the reading in the shift log before moving to the next item on the route. ",
				step, topic, i)
		}
		path := filepath.Join(dir, fmt.Sprintf("procedure-%03d.txt", i))
		if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
			b.Fatal(err)
		}
	}
}

// setupQueryBenchmark ingests the fixtures plus a generated corpus.
func setupQueryBenchmark(b *testing.B) *stack {
	b.Helper()
	st := newStack(b)
	ctx := context.Background()

	docs := documentsDir(b)
	for _, name := range []string{"pump-manual.txt", "safety-guide.md", "wiring-notes.txt"} {
		if _, err := st.pipeline.Ingest(ctx, filepath.Join(docs, name), ""); err != nil {
			b.Fatal(err)
		}
	}

	genDir := b.TempDir()
	writeBenchDocs(b, genDir, 24)
	entries, err := os.ReadDir(genDir)
	if err != nil {
		b.Fatal(err)
	}
	for _, entry := range entries {
		if _, err := st.pipeline.Ingest(ctx, filepath.Join(genDir, entry.Name()), ""); err != nil {
			b.Fatal(err)
		}
	}

	return st
}

// BenchmarkIngestDocument measures the full pipeline for one document:
// parse, segment, embed, vector upsert, and lexical rebuild.
func BenchmarkIngestDocument(b *testing.B) {
	path := filepath.Join(documentsDir(b), "pump-manual.txt")
	logger := testLogger()

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		store, err := storage.NewSQLiteStorage(":memory:")
		if err != nil {
			b.Fatal(err)
		}
		emb, err := embedder.NewLocalProvider(nil)
		if err != nil {
			b.Fatal(err)
		}
		vectors := memory.NewStorage()
		if err := vectors.Init(context.Background(), emb.Dimension()); err != nil {
			b.Fatal(err)
		}
		pipeline := ingest.New(parser.NewRegistry(),
			segmenter.New(segmenter.DefaultConfig(), logger),
			store,
			dense.New(emb, vectors, dense.Config{}, logger),
			lexical.NewIndex(nil, lexical.DefaultParams()),
			ingest.Config{}, logger)

		if _, err := pipeline.Ingest(context.Background(), path, "pump-manual"); err != nil {
			b.Fatal(err)
		}

		_ = store.Close()
	}
}

func BenchmarkHybridQuery(b *testing.B) {
	st := setupQueryBenchmark(b)
	req := ranker.Request{Query: "wire rope discard criteria", TopK: 10}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := st.ranker.Query(context.Background(), req); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDenseQuery(b *testing.B) {
	st := setupQueryBenchmark(b)
	req := ranker.Request{Query: "gearbox oil sampling", TopK: 10, Mode: ranker.ModeDense}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := st.ranker.Query(context.Background(), req); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLexicalQuery(b *testing.B) {
	st := setupQueryBenchmark(b)
	req := ranker.Request{Query: "boiler feedwater oxygen", TopK: 10, Mode: ranker.ModeLexical}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := st.ranker.Query(context.Background(), req); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCachedQuery measures the cache fast path: every iteration
// after the first is a hit.
func BenchmarkCachedQuery(b *testing.B) {
	st := setupQueryBenchmark(b)
	req := ranker.Request{Query: "compressor intercooler cleaning", TopK: 10, UseCache: true}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := st.ranker.Query(context.Background(), req); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkQueryTopK(b *testing.B) {
	st := setupQueryBenchmark(b)

	for _, topK := range []int{1, 5, 10, 20} {
		b.Run("top_k_"+strconv.Itoa(topK), func(b *testing.B) {
			req := ranker.Request{Query: "hydraulic mast maintenance", TopK: topK}

			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if _, err := st.ranker.Query(context.Background(), req); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
