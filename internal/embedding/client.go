// Package embedding talks to the image feature-extraction server that turns
// image bytes into fixed-length vectors.
package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"
)

// Client is a client for an image embeddings API. The server is expected to
// accept base64-encoded images on POST /v1/embeddings and answer one vector
// per input in the OpenAI embeddings response shape.
type Client struct {
	BaseURL      string
	APIKey       string
	Model        string
	ExpectedSize int // Expected vector size for validation
	client       *http.Client
}

// NewClient creates a new embeddings client.
// Every vector returned by EmbedImage is validated against expectedSize.
func NewClient(baseURL, apiKey, model string, expectedSize int, timeout time.Duration) *Client {
	return &Client{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		Model:        model,
		ExpectedSize: expectedSize,
		client:       &http.Client{Timeout: timeout},
	}
}

// EmbeddingsRequest represents the request payload for the embeddings API.
type EmbeddingsRequest struct {
	Model       string   `json:"model"`
	Input       []string `json:"input"`
	InputFormat string   `json:"input_format"`
}

// EmbeddingData represents a single embedding in the response.
type EmbeddingData struct {
	Embedding []float64 `json:"embedding"`
}

// EmbeddingsResponse represents the response from the embeddings API.
type EmbeddingsResponse struct {
	Data []EmbeddingData `json:"data"`
}

// Dimension returns the vector size the client validates against.
func (c *Client) Dimension() int {
	return c.ExpectedSize
}

// EmbedImage returns the embedding of a JPEG or PNG image.
// Undecodable input fails with *DecodeError without contacting the server;
// transport, status, and shape failures come back as *EmbeddingError.
func (c *Client) EmbedImage(ctx context.Context, img []byte) ([]float32, error) {
	if err := CheckDecodable(img); err != nil {
		return nil, err
	}

	payload := EmbeddingsRequest{
		Model:       c.Model,
		Input:       []string{base64.StdEncoding.EncodeToString(img)},
		InputFormat: "base64",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &EmbeddingError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	url := fmt.Sprintf("%s/v1/embeddings", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &EmbeddingError{Err: fmt.Errorf("failed to create request: %w", err)}
	}

	if c.APIKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &EmbeddingError{Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &EmbeddingError{StatusCode: resp.StatusCode, Err: fmt.Errorf("bad status: %s", string(raw))}
	}

	var embeddingsResp EmbeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingsResp); err != nil {
		return nil, &EmbeddingError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if len(embeddingsResp.Data) != 1 {
		return nil, &EmbeddingError{StatusCode: resp.StatusCode, Err: fmt.Errorf("expected 1 embedding, got %d", len(embeddingsResp.Data))}
	}

	data := embeddingsResp.Data[0].Embedding
	if len(data) != c.ExpectedSize {
		return nil, &EmbeddingError{StatusCode: resp.StatusCode, Err: fmt.Errorf("embedding has size %d, expected %d", len(data), c.ExpectedSize)}
	}

	vec := make([]float32, len(data))
	for i, v := range data {
		vec[i] = float32(v)
	}
	return vec, nil
}

// CheckDecodable verifies that img carries a readable JPEG or PNG header.
func CheckDecodable(img []byte) error {
	if len(img) == 0 {
		return &DecodeError{Err: errors.New("empty image")}
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(img)); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}
