package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridoc/veridoc-mcp/internal/vectorstore"
)

func newTestStore(t *testing.T) *Storage {
	t.Helper()
	s := NewStorage()
	require.NoError(t, s.Init(context.Background(), 3))
	return s
}

func point(id, docID string, index int, vec ...float32) vectorstore.Point {
	return vectorstore.Point{
		ID:     id,
		Vector: vec,
		Payload: vectorstore.Payload{
			DocumentID: docID,
			Source:     "manual.txt",
			Page:       1,
			ChunkIndex: index,
		},
	}
}

func TestInit(t *testing.T) {
	s := NewStorage()
	assert.Error(t, s.Init(context.Background(), 0))
	assert.Error(t, s.Init(context.Background(), -5))
	assert.NoError(t, s.Init(context.Background(), 384))
}

func TestUpsertValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Upsert(ctx, []vectorstore.Point{point("a", "doc", 0, 1, 0)})
	assert.Error(t, err, "dimension mismatch must be rejected")

	err = s.Upsert(ctx, []vectorstore.Point{{Vector: []float32{1, 0, 0}}})
	assert.Error(t, err, "missing ID must be rejected")

	// A rejected batch must not be partially applied.
	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestQueryOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []vectorstore.Point{
		point("far", "doc", 2, 0, 1, 0),
		point("near", "doc", 0, 1, 0, 0),
		point("mid", "doc", 1, 0.8, 0.6, 0),
	}))

	matches, err := s.Query(ctx, []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "near", matches[0].ChunkID)
	assert.Equal(t, "mid", matches[1].ChunkID)
	assert.Equal(t, "far", matches[2].ChunkID)

	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	assert.InDelta(t, 0.8, matches[1].Score, 1e-9)
	assert.InDelta(t, 0.0, matches[2].Score, 1e-9)
}

func TestQueryTopK(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []vectorstore.Point{
		point("a", "doc", 0, 1, 0, 0),
		point("b", "doc", 1, 0, 1, 0),
		point("c", "doc", 2, 0, 0, 1),
	}))

	matches, err := s.Query(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestQueryTiesAreDeterministic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Identical vectors tie exactly; order must not depend on map
	// iteration.
	require.NoError(t, s.Upsert(ctx, []vectorstore.Point{
		point("zz", "doc", 0, 1, 0, 0),
		point("aa", "doc", 1, 1, 0, 0),
		point("mm", "doc", 2, 1, 0, 0),
	}))

	for i := 0; i < 10; i++ {
		matches, err := s.Query(ctx, []float32{1, 0, 0}, 10, nil)
		require.NoError(t, err)
		require.Len(t, matches, 3)
		assert.Equal(t, "aa", matches[0].ChunkID)
		assert.Equal(t, "mm", matches[1].ChunkID)
		assert.Equal(t, "zz", matches[2].ChunkID)
	}
}

func TestQueryFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docA := point("a", "doc-a", 0, 1, 0, 0)
	docB := point("b", "doc-b", 0, 1, 0, 0)
	docB.Payload.Source = "other.txt"
	require.NoError(t, s.Upsert(ctx, []vectorstore.Point{docA, docB}))

	matches, err := s.Query(ctx, []float32{1, 0, 0}, 10, &vectorstore.Filter{DocumentID: "doc-a"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].ChunkID)

	matches, err = s.Query(ctx, []float32{1, 0, 0}, 10, &vectorstore.Filter{Source: "other.txt"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].ChunkID)

	matches, err = s.Query(ctx, []float32{1, 0, 0}, 10, &vectorstore.Filter{DocumentID: "missing"})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestUpsertReplacesByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []vectorstore.Point{point("a", "doc", 0, 1, 0, 0)}))
	require.NoError(t, s.Upsert(ctx, []vectorstore.Point{point("a", "doc", 0, 0, 1, 0)}))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	matches, err := s.Query(ctx, []float32{0, 1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
}

func TestDeleteByDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []vectorstore.Point{
		point("a0", "doc-a", 0, 1, 0, 0),
		point("a1", "doc-a", 1, 0, 1, 0),
		point("b0", "doc-b", 0, 0, 0, 1),
	}))

	require.NoError(t, s.DeleteByDocument(ctx, "doc-a"))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	matches, err := s.Query(ctx, []float32{0, 0, 1}, 10, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b0", matches[0].ChunkID)
}

func TestUpsertCopiesVectors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vec := []float32{1, 0, 0}
	require.NoError(t, s.Upsert(ctx, []vectorstore.Point{point("a", "doc", 0, vec...)}))

	// Mutating the caller's slice must not disturb the stored vector.
	vec[0] = 0

	matches, err := s.Query(ctx, []float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 0}))

	// Scale invariance: cosine ignores magnitude.
	assert.InDelta(t, 1.0, cosine([]float32{0.1, 0.2}, []float32{10, 20}), 1e-9)
}
