package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaModel = "nomic-embed-text"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	OllamaDimension = 768
	LocalDimension  = 384

	// Endpoints
	JinaEndpoint      = "https://api.jina.ai/v1/embeddings"
	OpenAIEndpoint    = "https://api.openai.com/v1/embeddings"
	DefaultOllamaHost = "http://localhost:11434"

	// Environment variables
	EnvProvider     = "VERIDOC_EMBEDDING_PROVIDER"
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvOllamaHost   = "OLLAMA_HOST"

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	requestTimeout = 30 * time.Second
)

// postJSON performs a context-aware POST with a JSON body and returns
// the raw response body on HTTP 200.
func postJSON(ctx context.Context, client *http.Client, url, apiKey string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// openAIStyleCall handles the request/response shape shared by Jina and
// OpenAI: {"input": texts, "model": m} in, {"data": [{embedding, index}]}
// out.
func openAIStyleCall(ctx context.Context, client *http.Client, url, apiKey, provider string, texts []string, model string) ([]*Embedding, error) {
	respBody, err := postJSON(ctx, client, url, apiKey, map[string]any{
		"input": texts,
		"model": model,
	})
	if err != nil {
		return nil, err
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(apiResp.Data), len(texts))
	}

	embeddings := make([]*Embedding, len(apiResp.Data))
	for i, data := range apiResp.Data {
		embeddings[i] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  provider,
			Model:     apiResp.Model,
		}
	}

	return embeddings, nil
}

// restProvider carries the state shared by the hosted REST providers.
type restProvider struct {
	provider   string
	endpoint   string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *Cache
}

func (p *restProvider) generateOne(ctx context.Context, req EmbeddingRequest, batch func(context.Context, BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Text)
	if p.cache != nil {
		if emb, ok := p.cache.Get(hash); ok {
			return emb, nil
		}
	}

	resp, err := batch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	return resp.Embeddings[0], nil
}

func (p *restProvider) generateBatch(ctx context.Context, req BatchEmbeddingRequest, call func(context.Context, []string, string) ([]*Embedding, error)) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	config := DefaultRetryConfig()
	embeddings, err := retryWithBackoff(ctx, config, func() ([]*Embedding, error) {
		return call(ctx, req.Texts, model)
	})
	if err != nil {
		return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, config.MaxRetries, err)
	}

	if p.cache != nil {
		for i, emb := range embeddings {
			hash := ComputeHash(req.Texts[i])
			emb.Hash = hash
			p.cache.Set(hash, emb)
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   p.provider,
		Model:      model,
	}, nil
}

func (p *restProvider) Dimension() int   { return p.dimension }
func (p *restProvider) Provider() string { return p.provider }
func (p *restProvider) Model() string    { return p.model }

func (p *restProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// JinaProvider implements Embedder using the Jina AI API
type JinaProvider struct {
	restProvider
}

// NewJinaProvider creates a new Jina AI embedder
func NewJinaProvider(apiKey string, cache *Cache) (*JinaProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvJinaAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvJinaAPIKey)
	}

	return &JinaProvider{restProvider{
		provider:   ProviderJina,
		endpoint:   JinaEndpoint,
		apiKey:     apiKey,
		model:      DefaultJinaModel,
		dimension:  JinaDimension,
		httpClient: &http.Client{Timeout: requestTimeout},
		cache:      cache,
	}}, nil
}

func (j *JinaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return j.generateOne(ctx, req, j.GenerateBatch)
}

func (j *JinaProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	return j.generateBatch(ctx, req, func(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
		return openAIStyleCall(ctx, j.httpClient, j.endpoint, j.apiKey, ProviderJina, texts, model)
	})
}

// OpenAIProvider implements Embedder using the OpenAI API
type OpenAIProvider struct {
	restProvider
}

// NewOpenAIProvider creates a new OpenAI embedder
func NewOpenAIProvider(apiKey string, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}

	return &OpenAIProvider{restProvider{
		provider:   ProviderOpenAI,
		endpoint:   OpenAIEndpoint,
		apiKey:     apiKey,
		model:      DefaultOpenAIModel,
		dimension:  OpenAIDimension,
		httpClient: &http.Client{Timeout: requestTimeout},
		cache:      cache,
	}}, nil
}

func (o *OpenAIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return o.generateOne(ctx, req, o.GenerateBatch)
}

func (o *OpenAIProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	return o.generateBatch(ctx, req, func(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
		return openAIStyleCall(ctx, o.httpClient, o.endpoint, o.apiKey, ProviderOpenAI, texts, model)
	})
}

// OllamaProvider implements Embedder against a local Ollama server. No
// API key is required; the host defaults to the standard local port.
type OllamaProvider struct {
	restProvider
}

// NewOllamaProvider creates an embedder backed by an Ollama instance.
func NewOllamaProvider(host, model string, cache *Cache) (*OllamaProvider, error) {
	if host == "" {
		host = os.Getenv(EnvOllamaHost)
	}
	if host == "" {
		host = DefaultOllamaHost
	}
	if model == "" {
		model = DefaultOllamaModel
	}

	return &OllamaProvider{restProvider{
		provider:   ProviderOllama,
		endpoint:   strings.TrimSuffix(host, "/") + "/api/embed",
		model:      model,
		dimension:  OllamaDimension,
		httpClient: &http.Client{Timeout: requestTimeout},
		cache:      cache,
	}}, nil
}

func (o *OllamaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return o.generateOne(ctx, req, o.GenerateBatch)
}

func (o *OllamaProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	return o.generateBatch(ctx, req, o.callAPI)
}

func (o *OllamaProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	respBody, err := postJSON(ctx, o.httpClient, o.endpoint, "", map[string]any{
		"model": model,
		"input": texts,
	})
	if err != nil {
		return nil, err
	}

	var apiResp struct {
		Model      string      `json:"model"`
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(apiResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(apiResp.Embeddings), len(texts))
	}

	embeddings := make([]*Embedding, len(apiResp.Embeddings))
	for i, vector := range apiResp.Embeddings {
		embeddings[i] = &Embedding{
			Vector:    vector,
			Dimension: len(vector),
			Provider:  ProviderOllama,
			Model:     apiResp.Model,
		}
	}

	return embeddings, nil
}

// LocalProvider produces deterministic pseudo-embeddings derived from a
// hash chain over the text. The vectors carry no semantics; the provider
// exists so the system runs with zero configuration and so tests get
// reproducible vectors without network access.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model: "hash-v1",
		cache: cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(hash); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    hashVector(req.Text, LocalDimension),
		Dimension: LocalDimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      hash,
	}

	if l.cache != nil {
		l.cache.Set(hash, emb)
	}

	return emb, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text, Model: req.Model})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int   { return LocalDimension }
func (l *LocalProvider) Provider() string { return ProviderLocal }
func (l *LocalProvider) Model() string    { return l.model }
func (l *LocalProvider) Close() error     { return nil }

// hashVector expands a SHA-256 chain over the text into a unit-length
// vector of the requested dimension. Identical text always yields an
// identical vector.
func hashVector(text string, dimension int) []float32 {
	vector := make([]float32, 0, dimension)
	block := sha256.Sum256([]byte(text))
	for len(vector) < dimension {
		for i := 0; i+1 < len(block) && len(vector) < dimension; i += 2 {
			raw := int16(binary.LittleEndian.Uint16(block[i : i+2]))
			vector = append(vector, float32(raw)/32768.0)
		}
		block = sha256.Sum256(block[:])
	}
	return NormalizeVector(vector)
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
