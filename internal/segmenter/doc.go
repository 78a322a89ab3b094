// Package segmenter splits parsed documents into provenance-tagged chunks
// for dual indexing and retrieval.
//
// The segmenter consumes the external parser's output (token stream,
// structural map, table regions) and never touches the raw file itself.
//
// # Basic Usage
//
//	seg := segmenter.New(segmenter.DefaultConfig(), logger)
//	result, err := seg.Segment(doc, parsed)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, chunk := range result.Chunks {
//	    fmt.Printf("chunk %d: %d tokens, page %d, kind %s\n",
//	        chunk.Index, chunk.TokenCount, chunk.PageNumber, chunk.Kind)
//	}
//
// # Segmentation Rules
//
// Table regions are structural: each becomes exactly one chunk flagged
// ChunkTable, never split mid-row and never merged with narrative text
// or another table. A table larger than MaxTokens stays intact as a
// single oversized chunk; the limit is a target for structural content.
//
// Narrative runs between tables are packed toward MaxTokens
// (default 512) with roughly 10% overlap carried into the next chunk.
// Chunk boundaries prefer sentence-ending tokens found inside a backward
// search window; a hard token cut is the fallback. In a whitespace token
// stream, paragraph-final sentences end with the same punctuation, so
// the sentence search covers paragraph breaks as well.
//
// # Page Provenance
//
// Every chunk's page number is resolved by mapping its start token
// offset through the document's structural map. Position heuristics are
// never used; they are a known source of citation drift. The structural
// map is validated up front (ordered, contiguous, full coverage), and a
// malformed map rejects the entire document with ErrProvenanceMapping
// instead of producing chunks with wrong or missing pages.
//
// # Empty Documents
//
// A document with zero extractable text produces zero chunks and a
// warning in the result. This is not an error: scanned-image PDFs with
// no text layer are a normal ingestion case.
package segmenter
