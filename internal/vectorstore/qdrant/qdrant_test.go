package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridoc/veridoc-mcp/internal/vectorstore"
)

// recordedRequest captures one request the fake Qdrant server received.
type recordedRequest struct {
	Method string
	Path   string
	Query  string
	APIKey string
	Body   map[string]any
}

// fakeQdrant is a minimal httptest-backed Qdrant. Responses are keyed by
// "METHOD path".
type fakeQdrant struct {
	server    *httptest.Server
	requests  []recordedRequest
	responses map[string]func(w http.ResponseWriter)
}

func newFakeQdrant(t *testing.T) *fakeQdrant {
	t.Helper()
	f := &fakeQdrant{responses: make(map[string]func(w http.ResponseWriter))}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			APIKey: r.Header.Get("api-key"),
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		}
		f.requests = append(f.requests, rec)

		if h, ok := f.responses[r.Method+" "+r.URL.Path]; ok {
			h(w)
			return
		}
		_, _ = w.Write([]byte(`{"result":{},"status":"ok"}`))
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeQdrant) respond(method, path string, status int, body string) {
	f.responses[method+" "+path] = func(w http.ResponseWriter) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func (f *fakeQdrant) storage() *Storage {
	return NewStorage(Config{
		URL:        f.server.URL,
		APIKey:     "secret",
		Collection: "docs",
	})
}

func TestInitCreatesMissingCollection(t *testing.T) {
	f := newFakeQdrant(t)
	f.respond(http.MethodGet, "/collections/docs", http.StatusNotFound, `{"status":{"error":"not found"}}`)

	s := f.storage()
	require.NoError(t, s.Init(context.Background(), 384))

	require.Len(t, f.requests, 2)
	assert.Equal(t, http.MethodGet, f.requests[0].Method)
	assert.Equal(t, http.MethodPut, f.requests[1].Method)
	assert.Equal(t, "/collections/docs", f.requests[1].Path)

	vectors, ok := f.requests[1].Body["vectors"].(map[string]any)
	require.True(t, ok, "create body must carry vector config")
	assert.Equal(t, float64(384), vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])
}

func TestInitSkipsExistingCollection(t *testing.T) {
	f := newFakeQdrant(t)
	f.respond(http.MethodGet, "/collections/docs", http.StatusOK, `{"result":{"status":"green"}}`)

	s := f.storage()
	require.NoError(t, s.Init(context.Background(), 384))

	require.Len(t, f.requests, 1)
	assert.Equal(t, http.MethodGet, f.requests[0].Method)
}

func TestInitRejectsBadDimension(t *testing.T) {
	f := newFakeQdrant(t)
	s := f.storage()
	assert.Error(t, s.Init(context.Background(), 0))
	assert.Empty(t, f.requests, "invalid dimension must not reach the server")
}

func TestUpsert(t *testing.T) {
	f := newFakeQdrant(t)
	s := f.storage()

	err := s.Upsert(context.Background(), []vectorstore.Point{
		{
			ID:     "rev-1:0003",
			Vector: []float32{0.1, 0.2},
			Payload: vectorstore.Payload{
				DocumentID: "rev-1",
				Source:     "manual.txt",
				Page:       4,
				ChunkIndex: 3,
			},
		},
	})
	require.NoError(t, err)

	require.Len(t, f.requests, 1)
	req := f.requests[0]
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/collections/docs/points", req.Path)
	assert.Contains(t, req.Query, "wait=true")
	assert.Equal(t, "secret", req.APIKey)

	points, ok := req.Body["points"].([]any)
	require.True(t, ok)
	require.Len(t, points, 1)

	p := points[0].(map[string]any)
	id, ok := p["id"].(string)
	require.True(t, ok)
	_, err = uuid.Parse(id)
	assert.NoError(t, err, "point ID must be a UUID, Qdrant rejects arbitrary strings")

	payload := p["payload"].(map[string]any)
	assert.Equal(t, "rev-1:0003", payload["chunk_id"])
	assert.Equal(t, "rev-1", payload["document_id"])
	assert.Equal(t, "manual.txt", payload["source"])
	assert.Equal(t, float64(4), payload["page"])
	assert.Equal(t, float64(3), payload["chunk_index"])
}

func TestUpsertEmptyIsNoop(t *testing.T) {
	f := newFakeQdrant(t)
	s := f.storage()
	require.NoError(t, s.Upsert(context.Background(), nil))
	assert.Empty(t, f.requests)
}

func TestQuery(t *testing.T) {
	f := newFakeQdrant(t)
	f.respond(http.MethodPost, "/collections/docs/points/search", http.StatusOK, `{
		"result": [
			{"id": "x", "score": 0.92, "payload": {"chunk_id": "rev-1:0000", "document_id": "rev-1", "source": "manual.txt", "page": 2, "chunk_index": 0}},
			{"id": "y", "score": 0.81, "payload": {"chunk_id": "rev-1:0007", "document_id": "rev-1", "source": "manual.txt", "page": 5, "chunk_index": 7}}
		]
	}`)

	s := f.storage()
	matches, err := s.Query(context.Background(), []float32{0.5, 0.5}, 8, nil)
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, "rev-1:0000", matches[0].ChunkID)
	assert.InDelta(t, 0.92, matches[0].Score, 1e-9)
	assert.Equal(t, 2, matches[0].Payload.Page)
	assert.Equal(t, "rev-1:0007", matches[1].ChunkID)
	assert.Equal(t, 7, matches[1].Payload.ChunkIndex)

	req := f.requests[0]
	assert.Equal(t, float64(8), req.Body["limit"])
	assert.Equal(t, true, req.Body["with_payload"])
	_, hasFilter := req.Body["filter"]
	assert.False(t, hasFilter, "nil filter must not produce a filter clause")
}

func TestQueryWithFilter(t *testing.T) {
	f := newFakeQdrant(t)
	f.respond(http.MethodPost, "/collections/docs/points/search", http.StatusOK, `{"result": []}`)

	s := f.storage()
	_, err := s.Query(context.Background(), []float32{1}, 5, &vectorstore.Filter{DocumentID: "rev-9"})
	require.NoError(t, err)

	filter, ok := f.requests[0].Body["filter"].(map[string]any)
	require.True(t, ok)
	must := filter["must"].([]any)
	require.Len(t, must, 1)
	clause := must[0].(map[string]any)
	assert.Equal(t, "document_id", clause["key"])
	assert.Equal(t, map[string]any{"value": "rev-9"}, clause["match"])
}

func TestCount(t *testing.T) {
	f := newFakeQdrant(t)
	f.respond(http.MethodPost, "/collections/docs/points/count", http.StatusOK, `{"result":{"count":42}}`)

	s := f.storage()
	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, count)

	assert.Equal(t, true, f.requests[0].Body["exact"], "count must request an exact value")
}

func TestDeleteByDocument(t *testing.T) {
	f := newFakeQdrant(t)
	s := f.storage()

	require.NoError(t, s.DeleteByDocument(context.Background(), "rev-3"))

	req := f.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/collections/docs/points/delete", req.Path)
	assert.Contains(t, req.Query, "wait=true")

	filter := req.Body["filter"].(map[string]any)
	must := filter["must"].([]any)
	clause := must[0].(map[string]any)
	assert.Equal(t, "document_id", clause["key"])
}

func TestServerErrorPropagates(t *testing.T) {
	f := newFakeQdrant(t)
	f.respond(http.MethodPost, "/collections/docs/points/count", http.StatusInternalServerError, `{}`)

	s := f.storage()
	_, err := s.Count(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestPointIDDeterministic(t *testing.T) {
	a := pointID("rev-1:0001")
	b := pointID("rev-1:0001")
	c := pointID("rev-1:0002")

	assert.Equal(t, a, b, "same chunk ID must map to the same point ID")
	assert.NotEqual(t, a, c)

	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}
