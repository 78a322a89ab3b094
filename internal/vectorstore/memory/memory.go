// Package memory is an in-process vectorstore.Store using brute-force
// cosine similarity. It is the zero-config default backend and the test
// double for components that talk to the store port.
package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/veridoc/veridoc-mcp/internal/vectorstore"
)

// Storage holds points in a map keyed by point ID. All operations are
// safe for concurrent use.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	points    map[string]vectorstore.Point
}

// NewStorage creates an empty in-memory store.
func NewStorage() *Storage {
	return &Storage{points: make(map[string]vectorstore.Point)}
}

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.points = make(map[string]vectorstore.Point)
	return nil
}

func (s *Storage) Upsert(_ context.Context, points []vectorstore.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		if s.dimension > 0 && len(p.Vector) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
		if p.ID == "" {
			return errors.New("point missing ID")
		}
	}
	for _, p := range points {
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		p.Vector = vec
		s.points[p.ID] = p
	}
	return nil
}

func (s *Storage) Query(_ context.Context, vector []float32, topK int, filter *vectorstore.Filter) ([]vectorstore.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}

	matches := make([]vectorstore.Match, 0, len(s.points))
	for _, p := range s.points {
		if !matchesFilter(p.Payload, filter) {
			continue
		}
		matches = append(matches, vectorstore.Match{
			ChunkID: p.ID,
			Score:   cosine(p.Vector, vector),
			Payload: p.Payload,
		})
	}

	// Equal scores fall back to chunk ID so map iteration order never
	// leaks into results.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ChunkID < matches[j].ChunkID
	})

	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *Storage) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points), nil
}

func (s *Storage) DeleteByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.points {
		if p.Payload.DocumentID == documentID {
			delete(s.points, id)
		}
	}
	return nil
}

func (s *Storage) Close() error { return nil }

func matchesFilter(p vectorstore.Payload, f *vectorstore.Filter) bool {
	if f == nil {
		return true
	}
	if f.DocumentID != "" && p.DocumentID != f.DocumentID {
		return false
	}
	if f.Source != "" && p.Source != f.Source {
		return false
	}
	return true
}

// cosine computes cosine similarity in float64. Unit-length inputs make
// this a plain dot product, but the norms are divided out so callers are
// not required to normalize.
func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
