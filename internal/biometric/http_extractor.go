package biometric

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPExtractor calls a remote embedding inference service. Model inference
// is expensive, so every call is bounded by the configured timeout.
type HTTPExtractor struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPExtractor builds a client for the extractor service at baseURL.
func NewHTTPExtractor(baseURL string, timeout time.Duration) *HTTPExtractor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPExtractor{
		baseURL: baseURL,
		client:  &http.Client{},
		timeout: timeout,
	}
}

type extractResponse struct {
	Faces     int       `json:"faces"`
	Embedding []float32 `json:"embedding"`
}

// Extract posts the raw image to the inference service and returns the
// embedding of the best-detected face. Deadline overruns surface as
// ErrExtractTimeout so the decision engine can audit them distinctly.
func (e *HTTPExtractor) Extract(ctx context.Context, image []byte) (Embedding, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embed", bytes.NewReader(image))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrExtractTimeout
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extractor service returned status %d", resp.StatusCode)
	}

	var payload extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode extractor response: %w", err)
	}
	if payload.Faces == 0 || len(payload.Embedding) == 0 {
		return nil, ErrNoFace
	}
	return Embedding(payload.Embedding), nil
}
