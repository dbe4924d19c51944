package handlers

import (
	"net/http"

	"imagededup/internal/contextutil"
	"imagededup/internal/service"
)

// ResetHandler clears the whole corpus.
type ResetHandler struct {
	imageService service.ImageService
}

// NewResetHandler creates a new ResetHandler.
func NewResetHandler(imageService service.ImageService) *ResetHandler {
	return &ResetHandler{imageService: imageService}
}

// ServeHTTP handles POST /admin/reset.
func (h *ResetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := h.imageService.Reset(ctx); err != nil {
		handleServiceError(w, ctx, err, "Failed to reset corpus")
		return
	}

	logger.InfoContext(ctx, "corpus reset requested")
	w.WriteHeader(http.StatusNoContent)
}
