package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/google/uuid"

	"imagededup/internal/acquire"
	"imagededup/internal/contextutil"
	"imagededup/internal/service"
)

// multipartField is the form field carrying uploaded images.
const multipartField = "files"

// ImageFetcher downloads an image from a URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ImagesHandler handles HTTP requests that add images to the corpus.
type ImagesHandler struct {
	imageService service.ImageService
	fetcher      ImageFetcher
	maxBytes     int64
	newRequestID func() string
}

// NewImagesHandler creates a new ImagesHandler. maxBytes limits each image.
func NewImagesHandler(imageService service.ImageService, fetcher ImageFetcher, maxBytes int64) *ImagesHandler {
	if maxBytes <= 0 {
		maxBytes = acquire.DefaultMaxBytes
	}
	return &ImagesHandler{
		imageService: imageService,
		fetcher:      fetcher,
		maxBytes:     maxBytes,
		newRequestID: func() string { return uuid.New().String() },
	}
}

// AddImagesRequest represents the JSON payload for adding images.
type AddImagesRequest struct {
	Base64Images []string `json:"base64_images"`
	ImageURLs    []string `json:"image_urls"`
}

// AddImagesResponse represents the HTTP response payload for added images.
type AddImagesResponse struct {
	RequestID        string   `json:"request_id"`
	AddedImages      int      `json:"added_images"`
	SystemImageNames []string `json:"system_image_names"`
}

// ServeHTTP accepts multipart uploads in the "files" field, or a JSON body
// with base64 images and image URLs. Every image must be acceptable or the
// whole request is rejected.
func (h *ImagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var (
		images [][]byte
		err    error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		images, err = h.readMultipart(r)
	case "application/json":
		images, err = h.readJSON(r)
	}
	if err != nil {
		handleAcquireError(w, ctx, err)
		return
	}

	requestID := h.newRequestID()
	svcResp, err := h.imageService.IngestBatch(ctx, service.IngestRequest{
		RequestID: requestID,
		Images:    images,
	})
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to add images")
		return
	}

	writeJSON(w, ctx, http.StatusOK, AddImagesResponse{
		RequestID:        svcResp.RequestID,
		AddedImages:      len(svcResp.Names),
		SystemImageNames: svcResp.Names,
	})
}

// readMultipart streams the upload so that only one part is buffered past
// the size limit at a time.
func (h *ImagesHandler) readMultipart(r *http.Request) ([][]byte, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("invalid multipart body: %w", err)
	}

	var images [][]byte
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return images, nil
		}
		if err != nil {
			return nil, fmt.Errorf("invalid multipart body: %w", err)
		}
		if part.FormName() != multipartField {
			_ = part.Close()
			continue
		}
		if err := acquire.CheckContentType(part.Header.Get("Content-Type")); err != nil {
			_ = part.Close()
			return nil, fmt.Errorf("%s: %w", part.FileName(), err)
		}
		img, err := acquire.ReadLimited(part, h.maxBytes)
		_ = part.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", part.FileName(), err)
		}
		images = append(images, img)
	}
}

// readJSON decodes base64 images first, then downloads URLs in order.
func (h *ImagesHandler) readJSON(r *http.Request) ([][]byte, error) {
	var req AddImagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}

	images := make([][]byte, 0, len(req.Base64Images)+len(req.ImageURLs))
	for i, b64 := range req.Base64Images {
		img, err := acquire.DecodeBase64(b64, h.maxBytes)
		if err != nil {
			return nil, fmt.Errorf("base64_images[%d]: %w", i, err)
		}
		images = append(images, img)
	}
	for _, url := range req.ImageURLs {
		img, err := h.fetcher.Fetch(r.Context(), url)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}
