package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/veridoc/veridoc-mcp/internal/embedder"
	"github.com/veridoc/veridoc-mcp/internal/ingest"
	"github.com/veridoc/veridoc-mcp/internal/lexical"
	"github.com/veridoc/veridoc-mcp/internal/ranker"
	"github.com/veridoc/veridoc-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "veridoc-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// QueryDefaults holds the server-level fallbacks applied when a
// query_documents call omits the corresponding argument. Zero fields are
// filled from the ranker defaults.
type QueryDefaults struct {
	TopK         int
	Alpha        float64
	Timeout      time.Duration
	DisableCache bool
	CacheTTL     time.Duration
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Store
	pipeline *ingest.Pipeline
	queue    *ingest.Queue
	ranker   *ranker.Ranker
	lexical  *lexical.Index
	embedder embedder.Embedder
	query    QueryDefaults
	log      *slog.Logger
}

// NewServer creates an MCP server over an already wired retrieval stack.
// The queue may be nil, which disables background ingestion. A nil logger
// falls back to slog.Default.
func NewServer(store storage.Store, pipeline *ingest.Pipeline, queue *ingest.Queue,
	rank *ranker.Ranker, lexicalIndex *lexical.Index, emb embedder.Embedder,
	defaults QueryDefaults, logger *slog.Logger) (*Server, error) {
	if defaults.TopK <= 0 {
		defaults.TopK = ranker.DefaultTopK
	}
	if defaults.Alpha == 0 {
		defaults.Alpha = ranker.DefaultAlpha
	}
	if defaults.Alpha < 0 || defaults.Alpha > 1 {
		return nil, fmt.Errorf("query defaults: alpha %.2f out of range [0, 1]", defaults.Alpha)
	}
	if defaults.Timeout <= 0 {
		defaults.Timeout = ranker.DefaultTimeout
	}
	if defaults.CacheTTL <= 0 {
		defaults.CacheTTL = ranker.DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Create MCP server
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:      mcpServer,
		storage:  store,
		pipeline: pipeline,
		queue:    queue,
		ranker:   rank,
		lexical:  lexicalIndex,
		embedder: emb,
		query:    defaults,
		log:      logger,
	}

	// Register tools
	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer s.Close()
	return server.ServeStdio(s.mcp)
}

// Close releases the ingestion queue and closes storage.
func (s *Server) Close() {
	if s.queue != nil {
		s.queue.Release()
	}
	_ = s.storage.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	// Register ingest_document tool
	s.mcp.AddTool(ingestDocumentTool(), s.handleIngestDocument)

	// Register query_documents tool
	s.mcp.AddTool(queryDocumentsTool(), s.handleQueryDocuments)

	// Register list_documents tool
	s.mcp.AddTool(listDocumentsTool(), s.handleListDocuments)

	// Register remove_document tool
	s.mcp.AddTool(removeDocumentTool(), s.handleRemoveDocument)

	// Register get_status tool
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)

	return nil
}
