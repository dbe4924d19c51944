package handlers

import (
	"net/http"

	"imagededup/internal/contextutil"
	"imagededup/internal/service"
)

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	imageService service.ImageService
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(imageService service.ImageService) *HealthHandler {
	return &HealthHandler{imageService: imageService}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	// Status is always "ok" while the process serves requests.
	Status string `json:"status"`

	// Vectors is the number of stored embeddings.
	Vectors int `json:"vectors"`

	// Requests is the number of ingested batches.
	Requests int `json:"requests"`

	// Dimension is the fixed embedding length.
	Dimension int `json:"dimension"`
}

// ServeHTTP reports liveness together with corpus counters.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	st := h.imageService.Stats(ctx)
	writeJSON(w, ctx, http.StatusOK, HealthResponse{
		Status:    "ok",
		Vectors:   st.Vectors,
		Requests:  st.Requests,
		Dimension: st.Dimension,
	})
}
