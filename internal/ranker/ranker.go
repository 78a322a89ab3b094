// Package ranker implements hybrid ranking: dense and lexical candidate
// sets are retrieved concurrently, normalized to [0,1], and fused with a
// weighted sum before citations are attached.
package ranker

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/veridoc/veridoc-mcp/internal/citation"
	"github.com/veridoc/veridoc-mcp/internal/lexical"
	"github.com/veridoc/veridoc-mcp/internal/vectorstore"
	"github.com/veridoc/veridoc-mcp/pkg/types"
)

// Mode defines how ranking is performed
type Mode string

const (
	ModeHybrid  Mode = "hybrid"  // Fused dense + lexical (default)
	ModeDense   Mode = "dense"   // Cosine similarity only
	ModeLexical Mode = "lexical" // BM25 only
)

// Degradation reasons reported on a Response when hybrid ranking fell
// back to a single signal.
const (
	DegradedDenseOnly   = "dense-only"
	DegradedLexicalOnly = "lexical-only"
)

const (
	// DefaultTopK is the result count when the caller's surface supplies
	// no explicit top_k. The Ranker itself rejects TopK <= 0.
	DefaultTopK = 5

	// MaxTopK caps the result count per query.
	MaxTopK = 100

	// DefaultAlpha is the dense weight in the fused score.
	DefaultAlpha = 0.6

	// DefaultTimeout bounds both candidate retrievals for one query.
	DefaultTimeout = 10 * time.Second

	// DefaultCacheTTL is the query-cache entry lifetime.
	DefaultCacheTTL = 1 * time.Hour

	cacheSize = 1000
)

// DenseSearcher retrieves the widened dense candidate set for a query.
// *dense.Indexer implements it.
type DenseSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]vectorstore.Match, error)
}

// ChunkGetter hydrates ranked chunk IDs into full chunks. storage.Store
// implements it; IDs with no backing row are omitted, which is how stale
// vector references drop out of results.
type ChunkGetter interface {
	GetChunks(ctx context.Context, ids []string) ([]*types.Chunk, error)
}

// Request contains parameters for one ranking operation
type Request struct {
	Query string
	TopK  int

	// Alpha is the dense weight in [0,1]; 0 selects DefaultAlpha. Use
	// ModeLexical for a purely lexical ranking.
	Alpha float64

	Mode     Mode
	Timeout  time.Duration
	UseCache bool
	CacheTTL time.Duration
}

// Response contains ranked results and query metadata
type Response struct {
	Results      []types.QueryResult
	TotalResults int
	Mode         Mode

	// Degraded names the single signal ranking fell back to, empty when
	// full fusion ran.
	Degraded string

	Duration time.Duration
	CacheHit bool

	DenseCandidates   int
	LexicalCandidates int
}

// cacheEntry represents a cached response with expiration time
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Ranker fuses dense and lexical candidate sets into one ranked result
// list with citations attached.
type Ranker struct {
	dense   DenseSearcher
	lexical *lexical.Index
	chunks  ChunkGetter
	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
	log     *slog.Logger
}

// New creates a Ranker. A nil logger falls back to slog.Default.
func New(dense DenseSearcher, lexicalIndex *lexical.Index, chunks ChunkGetter, logger *slog.Logger) *Ranker {
	// Create LRU cache with fixed entry limit; least recently used
	// entries are evicted automatically.
	cache, err := lru.New[[32]byte, *cacheEntry](cacheSize)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Ranker{
		dense:   dense,
		lexical: lexicalIndex,
		chunks:  chunks,
		cache:   cache,
		log:     logger,
	}
}

// Query ranks the corpus against the request and returns the top results.
// Validation failures report types.ErrInvalidQuery.
func (r *Ranker) Query(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	if err := r.validateRequest(&req); err != nil {
		return nil, err
	}

	if req.UseCache {
		if cached := r.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	var response *Response
	var err error

	switch req.Mode {
	case ModeHybrid:
		response, err = r.hybridQuery(ctx, req)
	case ModeDense:
		response, err = r.denseQuery(ctx, req)
	case ModeLexical:
		response, err = r.lexicalQuery(ctx, req)
	default:
		return nil, fmt.Errorf("%w: unsupported mode %q", types.ErrInvalidQuery, req.Mode)
	}

	if err != nil {
		return nil, err
	}

	response.Duration = time.Since(startTime)
	response.Mode = req.Mode

	if req.UseCache && len(response.Results) > 0 {
		r.storeInCache(req, response)
	}

	return response, nil
}

// candidates holds one retrieval arm's output
type candidates struct {
	dense   []vectorstore.Match
	lexical map[string]float64
	err     error
}

// runDense executes dense retrieval in a goroutine
func (r *Ranker) runDense(ctx context.Context, req Request, out chan<- candidates) {
	var c candidates
	c.dense, c.err = r.dense.Search(ctx, req.Query, req.TopK)
	select {
	case out <- c:
	case <-ctx.Done():
	}
}

// runLexical scores the query against the current snapshot in a goroutine
func (r *Ranker) runLexical(ctx context.Context, req Request, out chan<- candidates) {
	var c candidates
	snapshot, err := r.lexical.Current()
	if err != nil {
		c.err = err
	} else {
		c.lexical = snapshot.ScoreQuery(req.Query)
	}
	select {
	case out <- c:
	case <-ctx.Done():
	}
}

// hybridQuery retrieves both candidate sets concurrently under the query
// timeout and fuses them. One arm failing or timing out degrades the
// ranking to the other signal; only both failing fails the query.
func (r *Ranker) hybridQuery(ctx context.Context, req Request) (*Response, error) {
	// The timeout covers candidate retrieval only; hydration below runs
	// against local storage on the caller's context.
	rctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	denseChan := make(chan candidates, 1)
	lexChan := make(chan candidates, 1)

	go r.runDense(rctx, req, denseChan)
	go r.runLexical(rctx, req, lexChan)

	var denseRes, lexRes candidates
	var denseDone, lexDone bool
	for !denseDone || !lexDone {
		select {
		case denseRes = <-denseChan:
			denseDone = true
		case lexRes = <-lexChan:
			lexDone = true
		case <-rctx.Done():
			// Drain whatever landed before the deadline, then treat the
			// rest as failed so fusion proceeds with the partial set.
			if !denseDone {
				select {
				case denseRes = <-denseChan:
				default:
					denseRes.err = rctx.Err()
				}
				denseDone = true
			}
			if !lexDone {
				select {
				case lexRes = <-lexChan:
				default:
					lexRes.err = rctx.Err()
				}
				lexDone = true
			}
		}
	}

	if denseRes.err != nil && lexRes.err != nil {
		return nil, fmt.Errorf("both retrievals failed: dense=%w, lexical=%v", denseRes.err, lexRes.err)
	}

	degraded := ""
	alpha := req.Alpha
	switch {
	case denseRes.err != nil:
		degraded = DegradedLexicalOnly
		alpha = 0
		r.log.Warn("dense retrieval unavailable, ranking on lexical signal",
			"query", req.Query, "error", denseRes.err)
	case lexRes.err != nil:
		degraded = DegradedDenseOnly
		alpha = 1
		if errors.Is(lexRes.err, types.ErrIndexUnavailable) {
			r.log.Warn("lexical index unavailable, ranking on dense signal", "query", req.Query)
		} else {
			r.log.Warn("lexical retrieval failed, ranking on dense signal",
				"query", req.Query, "error", lexRes.err)
		}
	}

	ranked := fuse(denseRes.dense, lexRes.lexical, alpha)
	results, err := r.hydrate(ctx, ranked, req.TopK)
	if err != nil {
		return nil, err
	}

	return &Response{
		Results:           results,
		TotalResults:      len(results),
		Degraded:          degraded,
		DenseCandidates:   len(denseRes.dense),
		LexicalCandidates: len(lexRes.lexical),
	}, nil
}

// denseQuery ranks by cosine similarity alone
func (r *Ranker) denseQuery(ctx context.Context, req Request) (*Response, error) {
	rctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	matches, err := r.dense.Search(rctx, req.Query, req.TopK)
	if err != nil {
		return nil, fmt.Errorf("dense retrieval: %w", err)
	}

	ranked := fuse(matches, nil, 1)
	results, err := r.hydrate(ctx, ranked, req.TopK)
	if err != nil {
		return nil, err
	}

	return &Response{
		Results:         results,
		TotalResults:    len(results),
		DenseCandidates: len(matches),
	}, nil
}

// lexicalQuery ranks by BM25 alone. Unlike hybrid mode an unavailable
// snapshot is an error here: the caller asked for this signal explicitly.
func (r *Ranker) lexicalQuery(ctx context.Context, req Request) (*Response, error) {
	snapshot, err := r.lexical.Current()
	if err != nil {
		return nil, fmt.Errorf("lexical retrieval: %w", err)
	}

	scores := snapshot.ScoreQuery(req.Query)
	ranked := fuse(nil, scores, 0)
	results, err := r.hydrate(ctx, ranked, req.TopK)
	if err != nil {
		return nil, err
	}

	return &Response{
		Results:           results,
		TotalResults:      len(results),
		LexicalCandidates: len(scores),
	}, nil
}

// scoredChunk carries one candidate through normalization and fusion
type scoredChunk struct {
	chunkID  string
	fused    float64
	rawDense float64

	denseNorm float64
	lexNorm   float64
}

// fuse normalizes both candidate sets to [0,1] and combines them:
// fused = alpha*dense + (1-alpha)*lexical. A chunk missing from one set
// contributes 0 for that term. Dense cosine similarity is clamped into
// [0,1]; lexical scores are divided by the maximum nonzero score in the
// candidate set.
func fuse(dense []vectorstore.Match, lexScores map[string]float64, alpha float64) []scoredChunk {
	combined := make(map[string]*scoredChunk, len(dense)+len(lexScores))

	for _, m := range dense {
		norm := m.Score
		if norm < 0 {
			norm = 0
		} else if norm > 1 {
			norm = 1
		}
		combined[m.ChunkID] = &scoredChunk{
			chunkID:   m.ChunkID,
			rawDense:  m.Score,
			denseNorm: norm,
		}
	}

	var maxLex float64
	for _, s := range lexScores {
		if s > maxLex {
			maxLex = s
		}
	}
	if maxLex > 0 {
		for chunkID, s := range lexScores {
			norm := s / maxLex
			if c, ok := combined[chunkID]; ok {
				c.lexNorm = norm
			} else {
				combined[chunkID] = &scoredChunk{chunkID: chunkID, lexNorm: norm}
			}
		}
	}

	results := make([]scoredChunk, 0, len(combined))
	for _, c := range combined {
		c.fused = alpha*c.denseNorm + (1-alpha)*c.lexNorm
		results = append(results, *c)
	}

	sortScoredChunks(results)
	return results
}

// sortScoredChunks orders candidates by fused score descending, ties by
// raw dense similarity descending, then by chunk ID ascending. Chunk IDs
// embed the zero-padded chunk ordinal, so ID order is chunk-index order
// within a document.
func sortScoredChunks(results []scoredChunk) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].fused != results[j].fused {
			return results[i].fused > results[j].fused
		}
		if results[i].rawDense != results[j].rawDense {
			return results[i].rawDense > results[j].rawDense
		}
		return results[i].chunkID < results[j].chunkID
	})
}

// hydrate loads chunk rows for the top candidates and builds cited
// results. Candidates whose row is gone (a retired revision whose vector
// cleanup is still pending) are skipped and later candidates move up.
func (r *Ranker) hydrate(ctx context.Context, ranked []scoredChunk, topK int) ([]types.QueryResult, error) {
	// Fetch beyond topK so skipped stale references don't leave the
	// result set short.
	window := 2 * topK
	if window > len(ranked) {
		window = len(ranked)
	}
	if window == 0 {
		return []types.QueryResult{}, nil
	}

	ids := make([]string, window)
	for i, c := range ranked[:window] {
		ids[i] = c.chunkID
	}

	rows, err := r.chunks.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate results: %w", err)
	}
	byID := make(map[string]*types.Chunk, len(rows))
	for _, chunk := range rows {
		byID[chunk.ID] = chunk
	}

	results := make([]types.QueryResult, 0, topK)
	for _, cand := range ranked[:window] {
		if len(results) == topK {
			break
		}
		chunk, ok := byID[cand.chunkID]
		if !ok {
			continue
		}
		results = append(results, types.QueryResult{
			ChunkID:        chunk.ID,
			Rank:           len(results) + 1,
			Score:          cand.fused,
			Text:           citation.Annotate(chunk.Text, chunk),
			SourceDocument: chunk.SourceDocument,
			PageNumber:     chunk.PageNumber,
			ChunkIndex:     chunk.Index,
			WordCount:      chunk.WordCount,
		})
	}

	return results, nil
}

// validateRequest ensures the request is valid and fills defaults
func (r *Ranker) validateRequest(req *Request) error {
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("%w: empty query", types.ErrInvalidQuery)
	}

	if req.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", types.ErrInvalidQuery, req.TopK)
	}
	if req.TopK > MaxTopK {
		req.TopK = MaxTopK
	}

	if req.Alpha == 0 {
		req.Alpha = DefaultAlpha
	}
	if req.Alpha < 0 || req.Alpha > 1 {
		return fmt.Errorf("%w: alpha must be in [0,1], got %g", types.ErrInvalidQuery, req.Alpha)
	}

	if req.Mode == "" {
		req.Mode = ModeHybrid
	}

	if req.Timeout <= 0 {
		req.Timeout = DefaultTimeout
	}

	if req.CacheTTL <= 0 {
		req.CacheTTL = DefaultCacheTTL
	}

	return nil
}

// snapshotVersion reads the active lexical snapshot version for the
// cache key. 0 means no snapshot has been built.
func (r *Ranker) snapshotVersion() uint64 {
	snapshot, err := r.lexical.Current()
	if err != nil {
		return 0
	}
	return snapshot.Version()
}

// checkCache returns a copy of a live cached response, or nil on miss
func (r *Ranker) checkCache(req Request) *Response {
	hash := computeQueryHash(req, r.snapshotVersion())
	now := time.Now()

	r.cacheMu.RLock()
	entry, found := r.cache.Get(hash)

	if !found {
		r.cacheMu.RUnlock()
		return nil
	}

	// Check expiry while holding the read lock to avoid a race with the
	// removal below
	if now.After(entry.expiresAt) {
		r.cacheMu.RUnlock()

		r.cacheMu.Lock()
		r.cache.Remove(hash)
		r.cacheMu.Unlock()
		return nil
	}

	// Deep copy while still holding the read lock so the entry cannot
	// change mid-copy
	response := copyResponse(entry.response)
	r.cacheMu.RUnlock()

	return response
}

// storeInCache saves a deep copy of the response
func (r *Ranker) storeInCache(req Request, response *Response) {
	hash := computeQueryHash(req, r.snapshotVersion())

	entry := &cacheEntry{
		response:  copyResponse(response),
		expiresAt: time.Now().Add(req.CacheTTL),
	}

	r.cacheMu.Lock()
	r.cache.Add(hash, entry)
	r.cacheMu.Unlock()
}

// InvalidateCache drops every cached response. Rebuilds already
// invalidate naturally through the snapshot version in the key; this is
// the explicit hook for corpus changes outside the rebuild path.
func (r *Ranker) InvalidateCache() {
	r.cacheMu.Lock()
	r.cache.Purge()
	r.cacheMu.Unlock()
}

// copyResponse creates a deep copy of a Response. QueryResult holds only
// value fields, so copying the slice copies everything.
func copyResponse(src *Response) *Response {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Results = make([]types.QueryResult, len(src.Results))
	copy(dst.Results, src.Results)
	return &dst
}

// computeQueryHash computes a unique hash for a ranking request. The
// snapshot version is part of the key, so results cached against an old
// corpus can never be served after a rebuild.
func computeQueryHash(req Request, snapshotVersion uint64) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	data.WriteString(string(req.Mode))
	data.WriteString("|")
	fmt.Fprintf(&data, "%d|%.4f|%d", req.TopK, req.Alpha, snapshotVersion)
	return sha256.Sum256([]byte(data.String()))
}
