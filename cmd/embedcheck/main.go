package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/veridoc/veridoc-mcp/internal/config"
	"github.com/veridoc/veridoc-mcp/internal/embedder"
	"github.com/veridoc/veridoc-mcp/internal/vectorstore"
	"github.com/veridoc/veridoc-mcp/internal/vectorstore/memory"
)

// Sample texts in the register of the documents the server ingests.
var samples = []string{
	"The relief valve opens at 210 bar to protect the pump housing.",
	"Inspect the filter element every 500 operating hours.",
	"Grease the bearing assembly through the fitting on the end cap.",
}

func main() {
	fmt.Println("Checking embedding provider connectivity...")

	// Same bootstrap as the server: .env first, then config.
	_ = godotenv.Load()

	cfg, cfgFrom, err := config.LoadDefault()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	fmt.Printf("  Config: %s\n", cfgFrom)

	emb, err := buildEmbedder(cfg.Embedding)
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}
	defer emb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Single embedding
	start := time.Now()
	single, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: samples[0]})
	if err != nil {
		log.Fatalf("Failed to generate embedding: %v", err)
	}

	fmt.Printf("\nProvider:\n")
	fmt.Printf("  Provider: %s\n", emb.Provider())
	fmt.Printf("  Model: %s\n", emb.Model())
	fmt.Printf("  Dimension: %d\n", single.Dimension)
	fmt.Printf("  Latency: %v\n", time.Since(start))

	// Batch embedding
	batch, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: samples})
	if err != nil {
		log.Fatalf("Failed to generate batch: %v", err)
	}

	// Round trip through the vector store port. The dimension check on
	// upsert catches providers whose reported dimension disagrees with
	// the vectors they return.
	store := memory.NewStorage()
	if err := store.Init(ctx, emb.Dimension()); err != nil {
		log.Fatalf("Failed to init vector store: %v", err)
	}

	points := make([]vectorstore.Point, len(batch.Embeddings))
	for i, e := range batch.Embeddings {
		points[i] = vectorstore.Point{
			ID:     fmt.Sprintf("check:%04d", i),
			Vector: e.Vector,
			Payload: vectorstore.Payload{
				DocumentID: "check",
				Source:     "embedcheck",
				ChunkIndex: i,
			},
		}
	}
	if err := store.Upsert(ctx, points); err != nil {
		log.Fatalf("Failed to upsert vectors: %v", err)
	}

	matches, err := store.Query(ctx, single.Vector, 1, nil)
	if err != nil {
		log.Fatalf("Failed to query vectors: %v", err)
	}

	var norm float64
	for _, v := range single.Vector {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)

	fmt.Printf("\nVerification:\n")
	fmt.Printf("  Vector norm: %.4f\n", norm)
	fmt.Printf("  Batch embeddings: %d\n", len(batch.Embeddings))
	if len(matches) > 0 {
		fmt.Printf("  Nearest to sample: %s (score %.4f)\n", matches[0].ChunkID, matches[0].Score)
	}

	ok := norm > 0 &&
		len(batch.Embeddings) == len(samples) &&
		len(matches) == 1 &&
		matches[0].ChunkID == "check:0000"

	if ok {
		fmt.Println("\n✓ SUCCESS: Embedding provider is reachable and returns usable vectors!")
	} else {
		fmt.Println("\n✗ FAILURE: Embedding round trip did not verify!")
		os.Exit(1)
	}
}

// buildEmbedder mirrors the server's provider selection: explicit config
// first, environment auto-detection otherwise.
func buildEmbedder(cfg config.EmbeddingConfig) (embedder.Embedder, error) {
	if cfg.Provider == "" {
		return embedder.NewFromEnv()
	}
	return embedder.New(embedder.Config{
		Provider:  cfg.Provider,
		APIKey:    cfg.APIKey(),
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		CacheSize: cfg.CacheSize,
	})
}
