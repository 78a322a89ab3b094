package lexical

import (
	"math"
	"sort"
	"time"

	"github.com/veridoc/veridoc-mcp/pkg/types"
)

const (
	// DefaultK1 controls term-frequency saturation
	DefaultK1 = 1.5

	// DefaultB controls document-length normalization
	DefaultB = 0.7

	// DefaultMinChunkTokens excludes short boilerplate chunks from
	// lexical scoring so length normalization cannot make a one-line
	// notice dominate the ranking
	DefaultMinChunkTokens = 8
)

// Params are the Okapi BM25 parameters for one snapshot build.
type Params struct {
	K1             float64
	B              float64
	MinChunkTokens int
}

// DefaultParams returns the standard BM25 parameterization.
func DefaultParams() Params {
	return Params{
		K1:             DefaultK1,
		B:              DefaultB,
		MinChunkTokens: DefaultMinChunkTokens,
	}
}

func (p *Params) normalize() {
	if p.K1 <= 0 {
		p.K1 = DefaultK1
	}
	if p.B < 0 || p.B > 1 {
		p.B = DefaultB
	}
	if p.MinChunkTokens <= 0 {
		p.MinChunkTokens = DefaultMinChunkTokens
	}
}

// Snapshot is an immutable lexical index over one version of the chunk
// corpus. It is safe for concurrent readers by construction: nothing is
// mutated after BuildSnapshot returns. Rebuilds produce a new Snapshot
// which the Index swaps in atomically.
type Snapshot struct {
	version   uint64
	params    Params
	tokenizer Tokenizer
	builtAt   time.Time

	postings map[string]map[string]int // term -> chunkID -> term frequency
	docLen   map[string]int            // chunkID -> tokenized length
	totalLen int
	excluded int // chunks below MinChunkTokens, not scored
}

// BuildSnapshot indexes the given chunks with the tokenizer and params.
// Chunks whose tokenized length falls below MinChunkTokens are counted
// but not indexed. The build is synchronous: the returned snapshot is
// complete and immutable.
func BuildSnapshot(chunks []*types.Chunk, tokenizer Tokenizer, params Params) *Snapshot {
	params.normalize()
	if tokenizer == nil {
		tokenizer = NewStandardTokenizer()
	}

	s := &Snapshot{
		params:    params,
		tokenizer: tokenizer,
		builtAt:   time.Now().UTC(),
		postings:  make(map[string]map[string]int),
		docLen:    make(map[string]int, len(chunks)),
	}

	for _, chunk := range chunks {
		tokens := tokenizer.Tokenize(chunk.Text)
		if len(tokens) < params.MinChunkTokens {
			s.excluded++
			continue
		}

		s.docLen[chunk.ID] = len(tokens)
		s.totalLen += len(tokens)

		for _, term := range tokens {
			posting := s.postings[term]
			if posting == nil {
				posting = make(map[string]int)
				s.postings[term] = posting
			}
			posting[chunk.ID]++
		}
	}

	return s
}

// Score computes raw BM25 scores for the query tokens against every
// chunk with nonzero term overlap. Scores are unnormalized; the ranker
// owns normalization and fusion. Query terms are deduplicated and
// accumulated in sorted order so repeated queries produce bit-identical
// scores.
func (s *Snapshot) Score(queryTokens []string) map[string]float64 {
	if len(queryTokens) == 0 || s.Size() == 0 {
		return map[string]float64{}
	}

	terms := uniqueSorted(queryTokens)
	avgdl := s.AvgDocLength()
	n := float64(s.Size())

	scores := make(map[string]float64)
	for _, term := range terms {
		posting, ok := s.postings[term]
		if !ok {
			continue
		}

		df := float64(len(posting))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))

		for chunkID, tf := range posting {
			freq := float64(tf)
			dl := float64(s.docLen[chunkID])
			norm := freq * (s.params.K1 + 1) /
				(freq + s.params.K1*(1-s.params.B+s.params.B*dl/avgdl))
			scores[chunkID] += idf * norm
		}
	}

	return scores
}

// ScoreQuery tokenizes the query with the snapshot's own tokenizer and
// scores it.
func (s *Snapshot) ScoreQuery(query string) map[string]float64 {
	return s.Score(s.tokenizer.Tokenize(query))
}

// Version returns the corpus version this snapshot was built from.
func (s *Snapshot) Version() uint64 { return s.version }

// Size returns the number of scored chunks.
func (s *Snapshot) Size() int { return len(s.docLen) }

// Excluded returns the number of chunks skipped for being shorter than
// MinChunkTokens.
func (s *Snapshot) Excluded() int { return s.excluded }

// TermCount returns the number of distinct terms in the index.
func (s *Snapshot) TermCount() int { return len(s.postings) }

// AvgDocLength returns the mean tokenized chunk length.
func (s *Snapshot) AvgDocLength() float64 {
	if len(s.docLen) == 0 {
		return 0
	}
	return float64(s.totalLen) / float64(len(s.docLen))
}

// TokenizerName returns the name of the strategy the snapshot was built
// with.
func (s *Snapshot) TokenizerName() string { return s.tokenizer.Name() }

// BuiltAt returns when the snapshot build completed.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

func uniqueSorted(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	unique := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		unique = append(unique, tok)
	}
	sort.Strings(unique)
	return unique
}
