// Package lexical maintains the sparse term-statistics index used for
// BM25 scoring during hybrid retrieval.
//
// The index is modeled as an immutable versioned snapshot behind an
// atomic pointer, not a mutable structure guarded by locks. A rebuild
// constructs a complete new Snapshot from the active chunk corpus and
// swaps it in with a single pointer store; concurrent queries keep
// whichever snapshot they loaded. There is no partial-update API:
// re-ingestion triggers a full rebuild, which is a documented
// scalability limitation for large corpora, accepted here for the
// consistency it buys.
//
// # Usage
//
//	index := lexical.NewIndex(lexical.NewStandardTokenizer(), lexical.DefaultParams())
//	index.Rebuild(activeChunks)
//
//	snapshot, err := index.Current()
//	if err != nil {
//	    // types.ErrIndexUnavailable: degrade to dense-only ranking
//	}
//	scores := snapshot.ScoreQuery("impeller clearance 5mm")
//
// Score returns raw Okapi BM25 scores for every chunk with nonzero term
// overlap; normalization to [0,1] happens at fusion time in the ranker.
//
// # Scoring
//
// Okapi BM25 with k1 = 1.5 (term-frequency saturation) and b = 0.7
// (length normalization):
//
//	idf  = ln(1 + (N - df + 0.5) / (df + 0.5))
//	part = tf*(k1+1) / (tf + k1*(1 - b + b*dl/avgdl))
//
// Chunks shorter than MinChunkTokens (default 8) are excluded from the
// index entirely. Without the guard, a one-line boilerplate notice far
// below the median chunk length gets an outsized length-normalization
// boost and crowds out real passages.
//
// # Tokenization
//
// Tokenization is a pluggable strategy. The standard tokenizer
// lowercases and splits letter runs from digit runs ("5mm" scores as
// "5" and "mm"); the whitespace tokenizer is the baseline that failed
// on numeric/unit-bearing text and is kept so both can be compared on a
// real corpus before trusting either.
package lexical
