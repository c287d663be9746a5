// Package embed provides embedding generation clients for Munin's fuzzy
// label matching.
//
// Supported providers:
//   - Ollama: local open-source models (mxbai-embed-large, nomic-embed-text)
//   - OpenAI: cloud API (text-embedding-3-small, text-embedding-3-large)
//
// Embeddings convert a node label into a vector that captures its meaning, so
// "login controller" can resolve to "AuthenticationController" even though no
// string normalization would ever connect the two.
//
// The provider is optional. When none is configured, the matcher silently
// falls back to exact and normalized matching only.
//
// Example Usage:
//
//	embedder := embed.NewOllama(nil) // local defaults
//	vec, err := embedder.Embed(ctx, "auth service")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("dimensions: %d\n", len(vec))
//
// ELI12 (Explain Like I'm 12):
//
// An embedding is like a "vibe" for text, written down as a list of numbers.
// "Cat" and "kitten" get similar numbers; "cat" and "carburetor" don't.
// Munin compares these number lists to decide whether two differently-spelled
// labels mean the same thing.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Embedder generates vector embeddings from text.
//
// Implementations must be safe for concurrent use from multiple goroutines.
type Embedder interface {
	// Embed generates the embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector dimension
	Dimensions() int

	// Model returns the model name
	Model() string
}

// Config holds embedding provider configuration.
type Config struct {
	Provider   string        `yaml:"provider"`   // ollama, openai
	APIURL     string        `yaml:"api_url"`    // e.g. http://localhost:11434
	APIPath    string        `yaml:"api_path"`   // e.g. /api/embeddings or /v1/embeddings
	APIKey     string        `yaml:"api_key"`    // OpenAI only
	Model      string        `yaml:"model"`      // e.g. mxbai-embed-large
	Dimensions int           `yaml:"dimensions"` // expected vector size, for validation
	Timeout    time.Duration `yaml:"timeout"`    // HTTP request timeout
}

// DefaultOllamaConfig returns configuration for local Ollama with
// mxbai-embed-large (1024 dimensions). Assumes `ollama serve` is running on
// localhost:11434.
func DefaultOllamaConfig() *Config {
	return &Config{
		Provider:   "ollama",
		APIURL:     "http://localhost:11434",
		APIPath:    "/api/embeddings",
		Model:      "mxbai-embed-large",
		Dimensions: 1024,
		Timeout:    30 * time.Second,
	}
}

// DefaultOpenAIConfig returns configuration for OpenAI's
// text-embedding-3-small (1536 dimensions). Requires an API key.
func DefaultOpenAIConfig(apiKey string) *Config {
	return &Config{
		Provider:   "openai",
		APIURL:     "https://api.openai.com",
		APIPath:    "/v1/embeddings",
		APIKey:     apiKey,
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		Timeout:    30 * time.Second,
	}
}

// OllamaEmbedder implements Embedder for local Ollama models.
//
// Thread-safe: can be used concurrently from multiple goroutines.
type OllamaEmbedder struct {
	config *Config
	client *http.Client
}

// NewOllama creates a new Ollama embedder. If config is nil,
// DefaultOllamaConfig() is used.
func NewOllama(config *Config) *OllamaEmbedder {
	if config == nil {
		config = DefaultOllamaConfig()
	}

	return &OllamaEmbedder{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// ollamaRequest is the request format for Ollama.
type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// ollamaResponse is the response format from Ollama.
type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates a vector embedding for a single text string.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := ollamaRequest{
		Model:  e.config.Model,
		Prompt: text,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := e.config.APIURL + e.config.APIPath
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return ollamaResp.Embedding, nil
}

// EmbedBatch generates embeddings for multiple texts.
//
// Ollama has no batch endpoint, so this makes one request per text.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		results[i] = embedding
	}
	return results, nil
}

// Dimensions returns the expected embedding dimensions.
func (e *OllamaEmbedder) Dimensions() int {
	return e.config.Dimensions
}

// Model returns the model name.
func (e *OllamaEmbedder) Model() string {
	return e.config.Model
}

// OpenAIEmbedder implements Embedder for OpenAI's embedding API.
//
// Thread-safe: can be used concurrently from multiple goroutines.
type OpenAIEmbedder struct {
	config *Config
	client *http.Client
}

// NewOpenAI creates a new OpenAI embedder. If config is nil,
// DefaultOpenAIConfig("") is used (and will fail without an API key).
func NewOpenAI(config *Config) *OpenAIEmbedder {
	if config == nil {
		config = DefaultOpenAIConfig("")
	}

	return &OpenAIEmbedder{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// openaiRequest is the request format for OpenAI.
type openaiRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// openaiResponse is the response format from OpenAI.
type openaiResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed generates a vector embedding for a single text string.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts in a single API call.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := openaiRequest{
		Model: e.config.Model,
		Input: texts,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := e.config.APIURL + e.config.APIPath
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.config.APIKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai returned %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var openaiResp openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([][]float32, len(openaiResp.Data))
	for _, data := range openaiResp.Data {
		results[data.Index] = data.Embedding
	}

	return results, nil
}

// Dimensions returns the expected embedding dimensions.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.config.Dimensions
}

// Model returns the model name.
func (e *OpenAIEmbedder) Model() string {
	return e.config.Model
}

// NewEmbedder creates an embedder based on the provider named in config.
//
// Supported providers: "ollama", "openai". Returns an error for unknown
// providers or an OpenAI config without an API key.
func NewEmbedder(config *Config) (Embedder, error) {
	switch config.Provider {
	case "ollama":
		return NewOllama(config), nil
	case "openai":
		if config.APIKey == "" {
			return nil, fmt.Errorf("OpenAI requires an API key")
		}
		return NewOpenAI(config), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", config.Provider)
	}
}
