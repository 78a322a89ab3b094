// Package mcp implements the Model Context Protocol (MCP) server for VeriDoc.
//
// The MCP server exposes five tools to AI assistants:
//   - ingest_document: Ingest a document file into the corpus
//   - query_documents: Search the corpus with hybrid retrieval
//   - list_documents: List the documents in the corpus
//   - remove_document: Remove a document from the corpus
//   - get_status: Check corpus statistics and index state
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server communicates with MCP clients via standard input/output.
// Stdout is reserved for the protocol; all logging goes to stderr.
//
// # Basic Usage
//
// The server is started by the veridoc binary:
//
//	veridoc
//
// It then listens on stdin for MCP protocol messages and writes responses
// to stdout.
//
// # Tool: ingest_document
//
// Ingest a document so it can be queried:
//
//	Request:
//	{
//	  "name": "ingest_document",
//	  "arguments": {
//	    "path": "/docs/pump-manual.txt",
//	    "name": "pump-manual"
//	  }
//	}
//
//	Response:
//	{
//	  "document": "pump-manual",
//	  "chunks_created": 42,
//	  "table_chunks": 3,
//	  "pages": 12,
//	  "duration_ms": 1840
//	}
//
// Re-ingesting an existing name replaces the prior revision atomically:
// queries keep hitting the old revision until the new one is fully
// indexed. Passing "background": true queues the ingestion and returns
// immediately; the report is then only visible in the server log.
//
// # Tool: query_documents
//
// Search the corpus with fused dense and lexical retrieval:
//
//	Request:
//	{
//	  "name": "query_documents",
//	  "arguments": {
//	    "query": "maximum operating pressure of the hydraulic pump",
//	    "top_k": 5,
//	    "alpha": 0.6,
//	    "mode": "hybrid"
//	  }
//	}
//
//	Response:
//	{
//	  "query": "maximum operating pressure of the hydraulic pump",
//	  "mode": "hybrid",
//	  "results": [
//	    {
//	      "rank": 1,
//	      "score": 0.87,
//	      "text": "The hydraulic pump operates at ... (Source: pump-manual, page 4, chunk 11)",
//	      "source_document": "pump-manual",
//	      "page_number": 4,
//	      "chunk_index": 11,
//	      "word_count": 118
//	    }
//	  ],
//	  "total_results": 5,
//	  "retrieval_time_ms": 230,
//	  "cache_hit": false
//	}
//
// Every result carries an inline citation so the caller can verify the
// answer against the source document. When one retrieval signal fails or
// times out, the response includes a "degraded" field naming the signal
// that still served ("dense-only" or "lexical-only").
//
// # Tool: list_documents
//
// List the active documents:
//
//	Response:
//	{
//	  "documents": [
//	    {
//	      "name": "pump-manual",
//	      "path": "/docs/pump-manual.txt",
//	      "pages": 12,
//	      "chunks": 42,
//	      "ingested_at": "2026-01-12T09:30:00Z"
//	    }
//	  ],
//	  "total": 1
//	}
//
// # Tool: remove_document
//
// Remove a document by its logical name:
//
//	Request:
//	{
//	  "name": "remove_document",
//	  "arguments": {"name": "pump-manual"}
//	}
//
//	Response:
//	{
//	  "removed": true,
//	  "name": "pump-manual"
//	}
//
// # Tool: get_status
//
// Check corpus and index state:
//
//	Response:
//	{
//	  "documents": {"active": 3, "total": 5},
//	  "chunks": {"active": 128},
//	  "lexical_index": {
//	    "version": 7,
//	    "chunks": 126,
//	    "excluded": 2,
//	    "terms": 4812,
//	    "avg_doc_length": "96.4",
//	    "tokenizer": "standard"
//	  },
//	  "embedding": {"provider": "jina", "model": "jina-embeddings-v3"},
//	  "storage": {"size_mb": "1.25", "schema_version": "1", "driver": "sqlite", "build_mode": "purego"},
//	  "ingest": {"pending": 0}
//	}
//
// # MCP Client Configuration
//
// Configure in the client's MCP settings:
//
//	{
//	  "mcpServers": {
//	    "veridoc": {
//	      "command": "/usr/local/bin/veridoc",
//	      "env": {
//	        "JINA_API_KEY": "your-api-key"
//	      }
//	    }
//	  }
//	}
//
// # Error Handling
//
// The server returns standard JSON-RPC error responses:
//
//	{
//	  "error": {
//	    "code": -32602,
//	    "message": "invalid path",
//	    "data": {
//	      "param": "path",
//	      "reason": "path does not exist"
//	    }
//	  }
//	}
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments, invalid query)
//   - -32603: Internal error (storage, embedding provider, vector store)
//   - -32001: Document not found
//   - -32002: Ingestion in progress
//   - -32003: Index unavailable for the requested mode
//   - -32004: Document exceeds the size limit
//
// A panic on the query path is recovered at the handler boundary and
// reported as an internal error with the offending query logged; the
// transport keeps serving.
package mcp
