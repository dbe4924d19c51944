package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"imagededup/internal/acquire"
	"imagededup/internal/contextutil"
	"imagededup/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleServiceError maps service errors to appropriate HTTP status codes and responses.
func handleServiceError(w http.ResponseWriter, ctx context.Context, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "service error", "error", err)

	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation error: %s: %s", validationErr.Field, validationErr.Message))
		return
	}

	// Check for wrapped errors
	if errors.Is(err, service.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, "Invalid image")
		return
	}

	if errors.Is(err, service.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Request ID not found")
		return
	}

	if errors.Is(err, service.ErrConflict) {
		writeError(w, http.StatusConflict, "Request ID already exists")
		return
	}

	if errors.Is(err, service.ErrExternalService) {
		writeError(w, http.StatusBadGateway, "Embedding service error")
		return
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusServiceUnavailable, "Request canceled")
		return
	}

	// Default to internal server error
	writeError(w, http.StatusInternalServerError, defaultMsg)
}

// handleAcquireError maps failures to read, decode or download an image.
func handleAcquireError(w http.ResponseWriter, ctx context.Context, err error) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.WarnContext(ctx, "image rejected", "error", err)

	switch {
	case errors.Is(err, acquire.ErrUnsupportedType),
		errors.Is(err, acquire.ErrTooLarge),
		errors.Is(err, acquire.ErrEmptyImage),
		errors.Is(err, acquire.ErrInvalidBase64):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var fetchErr *acquire.FetchError
	if errors.As(err, &fetchErr) {
		if fetchErr.StatusCode != 0 {
			writeError(w, http.StatusBadRequest, fetchErr.Error())
			return
		}
		writeError(w, http.StatusBadGateway, fetchErr.Error())
		return
	}

	writeError(w, http.StatusBadRequest, "Invalid request body")
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, ctx context.Context, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}
