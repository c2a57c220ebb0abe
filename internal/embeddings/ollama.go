package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"
)

const (
	// DefaultModel is the default embedding model to use.
	DefaultModel = "all-minilm"
	// DefaultOllamaURL is the default Ollama API endpoint.
	DefaultOllamaURL = "http://localhost:11434"
	// OllamaDimensions is the output dimension of all-minilm.
	OllamaDimensions = 384
)

// OllamaEmbedder implements Embedder over a local Ollama server.
type OllamaEmbedder struct {
	client  *http.Client
	baseURL string
	model   string
	mu      sync.Mutex
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"` // string or []string
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaEmbedder builds an embedder from OLLAMA_HOST and
// PAMPAX_EMBEDDING_MODEL, falling back to sane defaults.
func NewOllamaEmbedder() *OllamaEmbedder {
	baseURL := os.Getenv("OLLAMA_HOST")
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	model := os.Getenv("PAMPAX_EMBEDDING_MODEL")
	if model == "" {
		model = DefaultModel
	}
	return NewOllamaEmbedderWithConfig(baseURL, model)
}

// NewOllamaEmbedderWithConfig builds an embedder with explicit settings.
func NewOllamaEmbedderWithConfig(baseURL, model string) *OllamaEmbedder {
	return &OllamaEmbedder{
		client:  &http.Client{Timeout: 60 * time.Second},
		baseURL: baseURL,
		model:   model,
	}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.doEmbed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return embeddings[0], nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return e.doEmbed(ctx, texts)
}

func (e *OllamaEmbedder) doEmbed(ctx context.Context, input any) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result.Embeddings, nil
}

func (e *OllamaEmbedder) ModelVersion() string { return "ollama:" + e.model }
func (e *OllamaEmbedder) Dimensions() int      { return OllamaDimensions }
func (e *OllamaEmbedder) Close() error         { return nil }

// IsAvailable checks whether the Ollama server responds to a test embed.
func (e *OllamaEmbedder) IsAvailable(ctx context.Context) bool {
	_, err := e.Embed(ctx, "test")
	return err == nil
}
