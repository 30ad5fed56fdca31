package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Embedding taxonomy. Callers discriminate with errors.Is / errors.As and
// never see raw backend bodies.
var (
	// ErrEmbeddingUnavailable means the backend was unreachable, timed out,
	// or returned a non-success status.
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")

	// ErrEmbeddingMalformed means the response body was not a numeric array.
	ErrEmbeddingMalformed = errors.New("embedding response malformed")
)

// DimensionMismatchError reports a vector whose length differs from the
// configured dimensionality. Such a vector must never be indexed or searched;
// truncation or padding would silently corrupt similarity scores.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Want, e.Got)
}

// OllamaConfig holds configuration for the Ollama embedding client.
type OllamaConfig struct {
	BaseURL        string
	Model          string
	Dimensions     int
	ConnectTimeout time.Duration
	ProbeTimeout   time.Duration
}

// OllamaEmbedding maps free text to fixed-length vectors via an Ollama
// embedding model. The connect timeout is separate from per-call total
// timeouts so an unreachable host fails fast while slow cold-start
// inference is still tolerated.
type OllamaEmbedding struct {
	client       *resty.Client
	baseURL      string
	model        string
	dimensions   int
	probeTimeout time.Duration
}

// NewOllamaEmbedding creates a new Ollama embedding client.
func NewOllamaEmbedding(cfg *OllamaConfig) *OllamaEmbedding {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 2 * time.Second
	}

	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	client.SetTransport(&http.Transport{
		DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
	})

	return &OllamaEmbedding{
		client:       client,
		baseURL:      cfg.BaseURL,
		model:        cfg.Model,
		dimensions:   cfg.Dimensions,
		probeTimeout: probeTimeout,
	}
}

// Model returns the configured model name.
func (s *OllamaEmbedding) Model() string {
	return s.model
}

// Dimensions returns the configured vector dimensionality.
func (s *OllamaEmbedding) Dimensions() int {
	return s.dimensions
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Embed generates an embedding for a single text with an explicit total
// timeout (pass a longer one for cold-start calls). The returned vector is
// guaranteed to have exactly the configured number of components; a
// mismatch fails the call.
func (s *OllamaEmbedding) Embed(ctx context.Context, text string, timeout time.Duration) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(ollamaEmbedRequest{Model: s.model, Prompt: text}).
		Post(s.baseURL + "/api/embeddings")

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if httpResp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingUnavailable, httpResp.StatusCode(), httpResp.String())
	}

	// Decode by hand so a 200 with a non-array embedding field is reported
	// as malformed data, not as an unreachable backend.
	var resp ollamaEmbedResponse
	if err := json.Unmarshal(httpResp.Body(), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingMalformed, err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty or non-numeric embedding", ErrEmbeddingMalformed)
	}

	if s.dimensions > 0 && len(resp.Embedding) != s.dimensions {
		return nil, &DimensionMismatchError{Want: s.dimensions, Got: len(resp.Embedding)}
	}

	return resp.Embedding, nil
}

// ListModels returns the names of models the backend reports as available.
// Uses the short probe timeout; this is the cheap reachability check backing
// the readiness status.
func (s *OllamaEmbedding) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	var resp ollamaTagsResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetResult(&resp).
		Get(s.baseURL + "/api/tags")

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if httpResp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrEmbeddingUnavailable, httpResp.StatusCode())
	}

	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
