// Package embedder generates vector embeddings for document chunks using various providers.
//
// The embedder supports multiple providers (Jina AI, OpenAI, Ollama, local hashing)
// and provides batching, caching, and retry handling for production use.
//
// # Basic Usage
//
//	// Create embedder (auto-detects provider from environment)
//	emb, err := embedder.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	// Generate single embedding
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "Torque the M8 fasteners to 25 Nm in a cross pattern.",
//	})
//	fmt.Printf("Vector dimension: %d\n", len(result.Vector))
//
// # Batch Processing
//
// For efficiency, use batch processing:
//
//	texts := make([]string, len(chunks))
//	for i, chunk := range chunks {
//	    texts[i] = chunk.Text
//	}
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: texts,
//	})
//
//	for i, embedding := range resp.Embeddings {
//	    // Store embedding for chunk i
//	}
//
// Batching reduces API calls and improves throughput significantly
// (e.g., 20x faster than sequential single requests).
//
// # Provider Selection
//
// The embedder selects a provider based on environment variables:
//
//  1. If VERIDOC_EMBEDDING_PROVIDER is set → use specified provider
//  2. Else if JINA_API_KEY is set → use Jina AI
//  3. Else if OPENAI_API_KEY is set → use OpenAI
//  4. Else if OLLAMA_HOST is set → use Ollama
//  5. Else → fallback to local provider (offline mode)
//
// Provider configuration:
//
//	// Explicit provider selection
//	os.Setenv("VERIDOC_EMBEDDING_PROVIDER", "jina")
//	os.Setenv("JINA_API_KEY", "your-api-key")
//
//	// Or use the factory with explicit configuration
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  "jina",
//	    APIKey:    "your-api-key",
//	    CacheSize: 10000,
//	})
//
// # Provider Comparison
//
// Jina AI:
//   - Dimensions: 1024
//   - Quality: Excellent (long-document optimized)
//   - Cost: Free tier available
//
// OpenAI:
//   - Dimensions: 1536
//   - Quality: Excellent (general purpose)
//   - Cost: Pay per token
//
// Ollama (self-hosted):
//   - Dimensions: 768 (nomic-embed-text)
//   - Quality: Good
//   - Cost: Free, runs on your own hardware
//
// Local (offline):
//   - Dimensions: 384
//   - Quality: None (hash-derived, deterministic)
//   - Cost: Free; intended for tests and smoke runs
//
// # Caching
//
// The embedder includes an in-memory LRU cache keyed by content hash.
// Chunks whose text is unchanged across re-ingestion hit the cache and
// skip the provider call entirely:
//
//	cache := embedder.NewCache(10000) // cache 10k embeddings
//
//	hash := embedder.ComputeHash(text)
//	if emb, ok := cache.Get(hash); ok {
//	    return emb // cache hit
//	}
//
// # Error Handling
//
// The embedder handles transient failures with exponential backoff:
//
//	resp, err := emb.GenerateBatch(ctx, req)
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // API unavailable after retries; surface to the caller
//	}
//
// For offline scenarios, fall back to the local provider:
//
//	emb, err := embedder.NewFromEnv()
//	if err != nil {
//	    emb, _ = embedder.NewLocalProvider(nil)
//	}
package embedder
