// Package qdrant is a minimal REST client for a Qdrant collection. It
// speaks plain HTTP rather than the gRPC SDK: the store port needs only
// upsert, filtered search, count, and filtered delete.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/veridoc/veridoc-mcp/internal/vectorstore"
)

const defaultTimeout = 15 * time.Second

// Storage implements vectorstore.Store against a Qdrant server. It
// assumes cosine distance and creates the collection if missing.
type Storage struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

// Config carries connection settings for a Qdrant server.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// NewStorage creates a Qdrant-backed store. Call Init before use.
func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// pointID derives the Qdrant point ID for a chunk. Qdrant accepts only
// integers and UUIDs as IDs, so the chunk ID is mapped through a
// name-based UUID. The mapping is deterministic: re-upserting a chunk
// replaces its previous point.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.dimension = dimension

	// Existing collection with a compatible schema is left alone.
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body)
}

func (s *Storage) collectionExists(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/collections/%s", s.url, s.collection), nil)
	if err != nil {
		return false, err
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("qdrant GET collection failed: %s", resp.Status)
	}
}

func (s *Storage) Upsert(ctx context.Context, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}
	body := make([]map[string]any, len(points))
	for i, p := range points {
		body[i] = map[string]any{
			"id":     pointID(p.ID),
			"vector": p.Vector,
			"payload": map[string]any{
				"chunk_id":    p.ID,
				"document_id": p.Payload.DocumentID,
				"source":      p.Payload.Source,
				"page":        p.Payload.Page,
				"chunk_index": p.Payload.ChunkIndex,
			},
		}
	}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection)
	return s.putJSON(ctx, url, map[string]any{"points": body})
}

func (s *Storage) Query(ctx context.Context, vector []float32, topK int, filter *vectorstore.Filter) ([]vectorstore.Match, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if f := filterClause(filter); f != nil {
		req["filter"] = f
	}

	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection)
	if err := s.postJSON(ctx, url, req, &resp); err != nil {
		return nil, err
	}

	matches := make([]vectorstore.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		m := vectorstore.Match{Score: r.Score}
		if v, ok := r.Payload["chunk_id"].(string); ok {
			m.ChunkID = v
		}
		if v, ok := r.Payload["document_id"].(string); ok {
			m.Payload.DocumentID = v
		}
		if v, ok := r.Payload["source"].(string); ok {
			m.Payload.Source = v
		}
		if v, ok := r.Payload["page"].(float64); ok {
			m.Payload.Page = int(v)
		}
		if v, ok := r.Payload["chunk_index"].(float64); ok {
			m.Payload.ChunkIndex = int(v)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/count", s.url, s.collection)
	if err := s.postJSON(ctx, url, map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *Storage) DeleteByDocument(ctx context.Context, documentID string) error {
	body := map[string]any{
		"filter": filterClause(&vectorstore.Filter{DocumentID: documentID}),
	}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, s.collection)
	return s.postJSON(ctx, url, body, nil)
}

func (s *Storage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// filterClause renders a Filter as a Qdrant must-match clause.
func filterClause(f *vectorstore.Filter) map[string]any {
	if f == nil {
		return nil
	}
	var must []map[string]any
	if f.DocumentID != "" {
		must = append(must, map[string]any{
			"key":   "document_id",
			"match": map[string]any{"value": f.DocumentID},
		})
	}
	if f.Source != "" {
		must = append(must, map[string]any{
			"key":   "source",
			"match": map[string]any{"value": f.Source},
		})
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func (s *Storage) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
}

func (s *Storage) putJSON(ctx context.Context, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (s *Storage) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
