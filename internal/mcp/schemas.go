package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// ingestDocumentTool returns the tool definition for ingest_document
func ingestDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_document",
		Description: "Ingest a document file so its content becomes searchable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the document file (.txt, .text, .md, .markdown)",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Logical document name; defaults to the file name. Re-ingesting an existing name replaces that document",
				},
				"background": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, queue the ingestion and return immediately instead of waiting for the report",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// queryDocumentsTool returns the tool definition for query_documents
func queryDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "query_documents",
		Description: "Search ingested documents with hybrid dense and lexical retrieval",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     5,
					"minimum":     1,
					"maximum":     100,
				},
				"alpha": map[string]interface{}{
					"type":        "number",
					"description": "Dense weight in the fused score; higher favors semantic similarity over exact terms. Must be greater than 0 and at most 1",
					"maximum":     1.0,
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Retrieval strategy: hybrid (dense + lexical), dense (cosine similarity only), or lexical (BM25 only)",
					"enum":        []string{"hybrid", "dense", "lexical"},
					"default":     "hybrid",
				},
				"use_cache": map[string]interface{}{
					"type":        "boolean",
					"description": "If false, bypass the query cache for this call",
				},
			},
			Required: []string{"query"},
		},
	}
}

// listDocumentsTool returns the tool definition for list_documents
func listDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_documents",
		Description: "List the documents currently in the corpus",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// removeDocumentTool returns the tool definition for remove_document
func removeDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "remove_document",
		Description: "Remove a document from the corpus by name",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Logical document name as reported by list_documents",
				},
			},
			Required: []string{"name"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report corpus statistics, index state, and embedding configuration",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
