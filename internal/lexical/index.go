package lexical

import (
	"sync/atomic"

	"github.com/veridoc/veridoc-mcp/pkg/types"
)

// Index holds the current lexical snapshot behind an atomic pointer.
// Readers load the pointer once per query and keep scoring against that
// snapshot even while a rebuild swaps in a newer one; they never observe
// a half-built index.
type Index struct {
	current atomic.Pointer[Snapshot]
	version atomic.Uint64

	tokenizer Tokenizer
	params    Params
}

// NewIndex creates an empty index. Current returns ErrIndexUnavailable
// until the first Rebuild completes.
func NewIndex(tokenizer Tokenizer, params Params) *Index {
	params.normalize()
	if tokenizer == nil {
		tokenizer = NewStandardTokenizer()
	}
	return &Index{tokenizer: tokenizer, params: params}
}

// Rebuild synchronously builds a snapshot over the full corpus and swaps
// it in. Queries running concurrently keep the snapshot they loaded; the
// swap is a single pointer store.
func (ix *Index) Rebuild(chunks []*types.Chunk) *Snapshot {
	snapshot := BuildSnapshot(chunks, ix.tokenizer, ix.params)
	snapshot.version = ix.version.Add(1)
	ix.current.Store(snapshot)
	return snapshot
}

// Current returns the active snapshot, or ErrIndexUnavailable if no
// rebuild has completed yet.
func (ix *Index) Current() (*Snapshot, error) {
	snapshot := ix.current.Load()
	if snapshot == nil {
		return nil, types.ErrIndexUnavailable
	}
	return snapshot, nil
}

// Stats describes the active snapshot for status reporting.
type Stats struct {
	Version      uint64  `json:"version"`
	Chunks       int     `json:"chunks"`
	Excluded     int     `json:"excluded"`
	Terms        int     `json:"terms"`
	AvgDocLength float64 `json:"avg_doc_length"`
	Tokenizer    string  `json:"tokenizer"`
}

// Stats reports the active snapshot's shape. A never-built index reports
// zero values with the configured tokenizer name.
func (ix *Index) Stats() Stats {
	snapshot := ix.current.Load()
	if snapshot == nil {
		return Stats{Tokenizer: ix.tokenizer.Name()}
	}
	return Stats{
		Version:      snapshot.Version(),
		Chunks:       snapshot.Size(),
		Excluded:     snapshot.Excluded(),
		Terms:        snapshot.TermCount(),
		AvgDocLength: snapshot.AvgDocLength(),
		Tokenizer:    snapshot.TokenizerName(),
	}
}
