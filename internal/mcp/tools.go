package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/veridoc/veridoc-mcp/internal/ingest"
	"github.com/veridoc/veridoc-mcp/internal/parser"
	"github.com/veridoc/veridoc-mcp/internal/ranker"
	"github.com/veridoc/veridoc-mcp/internal/storage"
	"github.com/veridoc/veridoc-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams    = -32602 // Invalid method parameters
	ErrorCodeInternalError    = -32603 // Internal JSON-RPC error
	ErrorCodeDocumentNotFound = -32001 // Named document is not in the corpus
	ErrorCodeIngestInProgress = -32002 // Another ingestion operation is already running
	ErrorCodeIndexUnavailable = -32003 // No index snapshot can serve the request
	ErrorCodeDocumentTooLarge = -32004 // Document exceeds the configured size limit
)

// handleIngestDocument handles the ingest_document tool invocation
func (s *Server) handleIngestDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract and validate parameters
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	// Validate path exists and is a readable file
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	// Parse optional parameters
	name := getStringDefault(args, "name", "")
	background := getBoolDefault(args, "background", false)

	if background {
		return s.queueIngest(path, name)
	}

	report, err := s.pipeline.Ingest(ctx, path, name)
	if err != nil {
		return nil, ingestError(err)
	}

	// Format response
	response := map[string]interface{}{
		"document":       report.Document,
		"document_id":    report.DocumentID,
		"chunks_created": report.ChunksCreated,
		"table_chunks":   report.TableChunks,
		"pages":          report.Pages,
		"duration_ms":    report.Duration.Milliseconds(),
	}
	if report.HasWarnings() {
		response["warnings"] = report.Warnings
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// queueIngest submits the document to the background queue instead of
// ingesting inline. Failures past this point are logged, not reported.
func (s *Server) queueIngest(path, name string) (*mcp.CallToolResult, error) {
	if s.queue == nil {
		return nil, newMCPError(ErrorCodeInternalError, "background ingestion is not enabled", nil)
	}

	if err := s.queue.Submit(path, name); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to queue ingestion", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"queued":  true,
		"path":    path,
		"pending": s.queue.Pending(),
	}
	if name != "" {
		response["document"] = name
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleQueryDocuments handles the query_documents tool invocation
func (s *Server) handleQueryDocuments(ctx context.Context, request mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
	var query string

	// Recover query-path panics; the stdio transport must keep serving
	// other tool calls after a bad query.
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("query handler panicked", "query", query, "panic", r)
			result = nil
			err = newMCPError(ErrorCodeInternalError, "query failed", map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
		}
	}()

	// Extract and validate parameters
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok = args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	// Parse optional parameters
	topK := getIntDefault(args, "top_k", s.query.TopK)
	if topK < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "top_k must be positive", map[string]interface{}{
			"param": "top_k",
			"value": topK,
		})
	}

	alpha := getFloatDefault(args, "alpha", s.query.Alpha)
	if alpha <= 0 || alpha > 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "alpha must be greater than 0 and at most 1", map[string]interface{}{
			"param": "alpha",
			"value": alpha,
			"hint":  "use mode=lexical for a purely lexical ranking",
		})
	}

	mode := getStringDefault(args, "mode", string(ranker.ModeHybrid))
	if mode != string(ranker.ModeHybrid) && mode != string(ranker.ModeDense) && mode != string(ranker.ModeLexical) {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
			"param":   "mode",
			"value":   mode,
			"allowed": []string{"hybrid", "dense", "lexical"},
		})
	}

	useCache := getBoolDefault(args, "use_cache", !s.query.DisableCache)

	// Run the query
	resp, qerr := s.ranker.Query(ctx, ranker.Request{
		Query:    query,
		TopK:     topK,
		Alpha:    alpha,
		Mode:     ranker.Mode(mode),
		Timeout:  s.query.Timeout,
		UseCache: useCache,
		CacheTTL: s.query.CacheTTL,
	})
	if qerr != nil {
		return nil, queryError(qerr)
	}

	// Format response
	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, res := range resp.Results {
		results = append(results, map[string]interface{}{
			"rank":            res.Rank,
			"score":           res.Score,
			"text":            res.Text,
			"source_document": res.SourceDocument,
			"page_number":     res.PageNumber,
			"chunk_index":     res.ChunkIndex,
			"word_count":      res.WordCount,
		})
	}

	response := map[string]interface{}{
		"query":             query,
		"mode":              string(resp.Mode),
		"results":           results,
		"total_results":     resp.TotalResults,
		"retrieval_time_ms": resp.Duration.Milliseconds(),
		"cache_hit":         resp.CacheHit,
	}
	if resp.Degraded != "" {
		response["degraded"] = resp.Degraded
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListDocuments handles the list_documents tool invocation
func (s *Server) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.storage.ListDocuments(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list documents", map[string]interface{}{
			"error": err.Error(),
		})
	}

	list := make([]map[string]interface{}, 0, len(docs))
	for _, doc := range docs {
		list = append(list, map[string]interface{}{
			"name":        doc.Name,
			"path":        doc.Path,
			"pages":       doc.Pages,
			"chunks":      doc.ChunkCount,
			"ingested_at": doc.IngestedAt.Format(time.RFC3339),
		})
	}

	response := map[string]interface{}{
		"documents": list,
		"total":     len(list),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRemoveDocument handles the remove_document tool invocation
func (s *Server) handleRemoveDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract and validate parameters
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "name parameter is required", map[string]interface{}{
			"param":  "name",
			"reason": "missing or empty",
		})
	}

	if err := s.pipeline.RemoveDocument(ctx, name); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, newMCPError(ErrorCodeDocumentNotFound, "document not found", map[string]interface{}{
				"name": name,
			})
		case errors.Is(err, ingest.ErrIngestInProgress):
			return nil, newMCPError(ErrorCodeIngestInProgress, "another ingestion is in progress", nil)
		default:
			return nil, newMCPError(ErrorCodeInternalError, "failed to remove document", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	response := map[string]interface{}{
		"removed": true,
		"name":    name,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.storage.Stats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get storage stats", map[string]interface{}{
			"error": err.Error(),
		})
	}

	lexStats := s.lexical.Stats()

	// Format response
	response := map[string]interface{}{
		"documents": map[string]interface{}{
			"active": stats.ActiveDocuments,
			"total":  stats.TotalDocuments,
		},
		"chunks": map[string]interface{}{
			"active": stats.ActiveChunks,
		},
		"lexical_index": map[string]interface{}{
			"version":        lexStats.Version,
			"chunks":         lexStats.Chunks,
			"excluded":       lexStats.Excluded,
			"terms":          lexStats.Terms,
			"avg_doc_length": fmt.Sprintf("%.1f", lexStats.AvgDocLength),
			"tokenizer":      lexStats.Tokenizer,
		},
		"embedding": map[string]interface{}{
			"provider": s.embedder.Provider(),
			"model":    s.embedder.Model(),
		},
		"storage": map[string]interface{}{
			"size_mb":        fmt.Sprintf("%.2f", stats.DatabaseSizeMB),
			"schema_version": stats.SchemaVersion,
			"driver":         storage.DriverName,
			"build_mode":     storage.BuildMode,
		},
	}

	if s.queue != nil {
		response["ingest"] = map[string]interface{}{
			"pending": s.queue.Pending(),
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Error mapping

// ingestError maps pipeline failures to MCP error codes.
func ingestError(err error) error {
	switch {
	case errors.Is(err, ingest.ErrIngestInProgress):
		return newMCPError(ErrorCodeIngestInProgress, "another ingestion is in progress", nil)
	case errors.Is(err, ingest.ErrDocumentTooLarge):
		return newMCPError(ErrorCodeDocumentTooLarge, "document exceeds the size limit", map[string]interface{}{
			"error": err.Error(),
		})
	case errors.Is(err, parser.ErrUnsupportedFormat):
		return newMCPError(ErrorCodeInvalidParams, "unsupported document format", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	default:
		return newMCPError(ErrorCodeInternalError, "ingestion failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// queryError maps ranker failures to MCP error codes.
func queryError(err error) error {
	switch {
	case errors.Is(err, types.ErrInvalidQuery):
		return newMCPError(ErrorCodeInvalidParams, "invalid query", map[string]interface{}{
			"error": err.Error(),
		})
	case errors.Is(err, types.ErrIndexUnavailable):
		return newMCPError(ErrorCodeIndexUnavailable, "no index is available for this mode", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		return newMCPError(ErrorCodeInternalError, "query failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks if a path points to a readable regular file
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	// Check if path is absolute
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	// Check if path exists
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	// Documents are files, not directories
	if info.IsDir() {
		return ErrNotFile
	}

	// Check the file is readable
	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a float parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	if val, ok := args[key].(int); ok {
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotFile         = errors.New("path is not a regular file")
)
