// Package apiclient is a small HTTP client for the duplicate detection API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"imagededup/internal/contextutil"
	"imagededup/internal/handlers"
)

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

// File is one image to upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// DuplicatesResult is the decoded duplicates answer. Message is set instead
// of Duplicates when nothing was found.
type DuplicatesResult struct {
	RequestID  string   `json:"request_id,omitempty"`
	Duplicates []string `json:"duplicates,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// DuplicatesQuery holds optional query overrides. Zero values use the server defaults.
type DuplicatesQuery struct {
	Threshold *float64
	K         int
}

// Client talks to the API server.
type Client struct {
	BaseURL string
	client  *http.Client
}

// New creates a new API client.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// UploadFiles sends files as a multipart request.
func (c *Client) UploadFiles(ctx context.Context, files []File) (handlers.AddImagesResponse, error) {
	var out handlers.AddImagesResponse

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.Name))
		h.Set("Content-Type", f.ContentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return out, fmt.Errorf("failed to create part for %s: %w", f.Name, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return out, fmt.Errorf("failed to write part for %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return out, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	err := c.do(ctx, http.MethodPost, "/images", mw.FormDataContentType(), &body, &out)
	return out, err
}

// AddImages sends base64 images and URLs as a JSON request.
func (c *Client) AddImages(ctx context.Context, req handlers.AddImagesRequest) (handlers.AddImagesResponse, error) {
	var out handlers.AddImagesResponse
	payload, err := json.Marshal(req)
	if err != nil {
		return out, fmt.Errorf("failed to marshal request: %w", err)
	}
	err = c.do(ctx, http.MethodPost, "/images", "application/json", bytes.NewReader(payload), &out)
	return out, err
}

// Duplicates asks for the duplicates of requestID.
func (c *Client) Duplicates(ctx context.Context, requestID string, q DuplicatesQuery) (DuplicatesResult, error) {
	var out DuplicatesResult

	params := url.Values{}
	if q.Threshold != nil {
		params.Set("threshold", strconv.FormatFloat(*q.Threshold, 'g', -1, 64))
	}
	if q.K != 0 {
		params.Set("k", strconv.Itoa(q.K))
	}
	path := "/duplicates/" + url.PathEscape(requestID)
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	err := c.do(ctx, http.MethodGet, path, "", nil, &out)
	return out, err
}

// Reset clears the server's corpus.
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/admin/reset", "", nil, nil)
}

// Health returns the server's health report.
func (c *Client) Health(ctx context.Context) (handlers.HealthResponse, error) {
	var out handlers.HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", "", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	logger := contextutil.LoggerFromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	logger.DebugContext(ctx, "calling api", "method", method, "path", path)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp handlers.ErrorResponse
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &errResp) != nil || errResp.Error == "" {
			errResp.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
