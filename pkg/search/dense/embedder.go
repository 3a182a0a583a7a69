package dense

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"statutelink/pkg/errs"
)

// Embedder turns text into a fixed-dimension float32 vector. The dimension is
// a build-time parameter of the dense index; implementations must honour it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// GeminiConfig configures the REST embedding client.
type GeminiConfig struct {
	Endpoint  string
	APIKey    string
	Model     string
	Dimension int
	Timeout   time.Duration
	MaxChars  int
}

// GeminiEmbedder calls the Gemini embedContent endpoint over plain HTTP.
type GeminiEmbedder struct {
	cfg    GeminiConfig
	client *http.Client
}

type embeddingRequest struct {
	Model                string       `json:"model"`
	Content              contentInput `json:"content"`
	TaskType             string       `json:"task_type,omitempty"`
	OutputDimensionality int          `json:"output_dimensionality,omitempty"`
}

type contentInput struct {
	Parts []partInput `json:"parts"`
}

type partInput struct {
	Text string `json:"text"`
}

type embeddingResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}

// NewGeminiEmbedder builds the embedding client.
func NewGeminiEmbedder(cfg GeminiConfig) (*GeminiEmbedder, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("embedding endpoint is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &GeminiEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (e *GeminiEmbedder) Dimension() int { return e.cfg.Dimension }

// Embed requests a single embedding. Long inputs are truncated to the
// configured character budget before the call.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.cfg.MaxChars > 0 && len(text) > e.cfg.MaxChars {
		text = text[:e.cfg.MaxChars]
	}

	payload := embeddingRequest{
		Model:                "models/" + e.cfg.Model,
		Content:              contentInput{Parts: []partInput{{Text: text}}},
		TaskType:             "RETRIEVAL_DOCUMENT",
		OutputDimensionality: e.cfg.Dimension,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errs.E(errs.KindEmbeddingFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errs.E(errs.KindEmbeddingFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.cfg.APIKey)

	res, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.E(errs.KindTimeout, err)
		}
		return nil, errs.E(errs.KindEmbeddingFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, errs.Ef(errs.KindEmbeddingFailed, "embedding call returned %d: %s", res.StatusCode, snippet)
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errs.E(errs.KindEmbeddingFailed, err)
	}

	if len(parsed.Embedding.Values) != e.cfg.Dimension {
		return nil, errs.Ef(errs.KindEmbeddingFailed, "embedding dimension mismatch: got %d, want %d",
			len(parsed.Embedding.Values), e.cfg.Dimension)
	}

	vec := make([]float32, len(parsed.Embedding.Values))
	for i, v := range parsed.Embedding.Values {
		vec[i] = float32(v)
	}
	return vec, nil
}
