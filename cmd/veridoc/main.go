package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/veridoc/veridoc-mcp/internal/config"
	"github.com/veridoc/veridoc-mcp/internal/dense"
	"github.com/veridoc/veridoc-mcp/internal/embedder"
	"github.com/veridoc/veridoc-mcp/internal/ingest"
	"github.com/veridoc/veridoc-mcp/internal/lexical"
	"github.com/veridoc/veridoc-mcp/internal/mcp"
	"github.com/veridoc/veridoc-mcp/internal/parser"
	"github.com/veridoc/veridoc-mcp/internal/ranker"
	"github.com/veridoc/veridoc-mcp/internal/segmenter"
	"github.com/veridoc/veridoc-mcp/internal/storage"
	"github.com/veridoc/veridoc-mcp/internal/vectorstore"
	"github.com/veridoc/veridoc-mcp/internal/vectorstore/memory"
	"github.com/veridoc/veridoc-mcp/internal/vectorstore/qdrant"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version information and exit")
	configPath := flag.String("config", "",
		"config file path (default: $VERIDOC_CONFIG, ./veridoc.yaml, ~/.config/veridoc/config.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("VeriDoc MCP Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		os.Exit(0)
	}

	// A .env next to the binary carries provider API keys during
	// development. Load it before anything reads the environment.
	_ = godotenv.Load()

	// Log to stderr; stdout is reserved for the MCP protocol.
	logger := newLogger()
	slog.SetDefault(logger)

	var (
		cfg     *config.Config
		cfgFrom string
		err     error
	)
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		cfgFrom = *configPath
	} else {
		cfg, cfgFrom, err = config.LoadDefault()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("veridoc starting",
		"version", version,
		"config", cfgFrom,
		"build_mode", storage.BuildMode,
		"driver", storage.DriverName)

	srv, err := buildServer(cfg, logger)
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("MCP server ready, listening on stdio")
		errChan <- srv.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	case err := <-errChan:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("server stopped")
}

// buildServer wires the retrieval stack in dependency order: storage,
// embedder, vector store, dense index, lexical index, pipeline, ranker.
func buildServer(cfg *config.Config, logger *slog.Logger) (*mcp.Server, error) {
	if cfg.Storage.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	emb, err := buildEmbedder(cfg.Embedding)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	logger.Info("embedding provider ready",
		"provider", emb.Provider(),
		"model", emb.Model(),
		"dimension", emb.Dimension())

	vstore, err := buildVectorStore(cfg.VectorStore)
	if err != nil {
		store.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := vstore.Init(ctx, emb.Dimension()); err != nil {
		store.Close()
		return nil, fmt.Errorf("init vector store: %w", err)
	}

	denseIdx := dense.New(emb, vstore, dense.Config{
		BatchSize:   cfg.Dense.BatchSize,
		WidenFactor: cfg.Dense.WidenFactor,
	}, logger)

	lexIdx := lexical.NewIndex(lexical.ForName(cfg.Lexical.Tokenizer), lexical.Params{
		K1:             cfg.Lexical.K1,
		B:              cfg.Lexical.B,
		MinChunkTokens: cfg.Lexical.MinChunkTokens,
	})

	seg := segmenter.New(segmenter.Config{
		MaxTokens:      cfg.Segmenter.MaxTokens,
		OverlapTokens:  cfg.Segmenter.OverlapTokens,
		BoundaryWindow: cfg.Segmenter.BoundaryWindow,
	}, logger)

	pipeline := ingest.New(parser.NewRegistry(), seg, store, denseIdx, lexIdx,
		ingest.Config{MaxFileBytes: cfg.Ingest.MaxFileBytes()}, logger)

	// Warm the lexical index from storage so the first query after a
	// restart sees the whole corpus.
	if _, err := pipeline.RebuildLexical(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("warm lexical index: %w", err)
	}
	lstats := lexIdx.Stats()
	logger.Info("lexical index warmed", "chunks", lstats.Chunks, "terms", lstats.Terms)

	queue, err := ingest.NewQueue(pipeline, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create ingest queue: %w", err)
	}

	rank := ranker.New(denseIdx, lexIdx, store, logger)

	srv, err := mcp.NewServer(store, pipeline, queue, rank, lexIdx, emb,
		mcp.QueryDefaults{
			TopK:         cfg.Query.DefaultTopK,
			Alpha:        cfg.Fusion.Alpha,
			Timeout:      time.Duration(cfg.Query.TimeoutSecs) * time.Second,
			DisableCache: cfg.Query.DisableCache,
			CacheTTL:     time.Duration(cfg.Query.CacheTTLSecs) * time.Second,
		}, logger)
	if err != nil {
		queue.Release()
		store.Close()
		return nil, err
	}
	return srv, nil
}

// buildEmbedder selects the provider named in the config, falling back
// to environment auto-detection when the file names none.
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

func buildVectorStore(cfg config.VectorStoreConfig) (vectorstore.Store, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "memory":
		return memory.NewStorage(), nil
	case "qdrant":
		qc := cfg.Qdrant
		if qc == nil || qc.URL == "" {
			return nil, fmt.Errorf("vector store type qdrant requires qdrant.url")
		}
		var apiKey string
		if qc.APIKeyEnv != "" {
			apiKey = os.Getenv(qc.APIKeyEnv)
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        qc.URL,
			APIKey:     apiKey,
			Collection: qc.Collection,
			Timeout:    time.Duration(qc.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store type %q", cfg.Type)
	}
}

// newLogger builds the stderr logger. VERIDOC_LOG_LEVEL=debug turns on
// debug output.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("VERIDOC_LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
