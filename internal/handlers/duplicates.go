package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"imagededup/internal/contextutil"
	"imagededup/internal/service"
)

// DuplicatesHandler handles HTTP requests for duplicate lookups.
type DuplicatesHandler struct {
	imageService     service.ImageService
	defaultThreshold float64
	defaultK         int
}

// NewDuplicatesHandler creates a new DuplicatesHandler. The defaults apply
// when the query string omits threshold or k.
func NewDuplicatesHandler(imageService service.ImageService, defaultThreshold float64, defaultK int) *DuplicatesHandler {
	return &DuplicatesHandler{
		imageService:     imageService,
		defaultThreshold: defaultThreshold,
		defaultK:         defaultK,
	}
}

// DuplicatesResponse lists the duplicate image names of a request.
type DuplicatesResponse struct {
	RequestID  string   `json:"request_id"`
	Duplicates []string `json:"duplicates"`
}

// MessageResponse carries an informational message.
type MessageResponse struct {
	Message string `json:"message"`
}

// ServeHTTP handles GET /duplicates/{request_id}?threshold=&k=.
func (h *DuplicatesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	requestID := chi.URLParam(r, "request_id")

	threshold := h.defaultThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			logger.WarnContext(ctx, "invalid threshold", "threshold", raw)
			writeError(w, http.StatusBadRequest, "threshold must be a number")
			return
		}
		threshold = v
	}

	k := h.defaultK
	if raw := r.URL.Query().Get("k"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			logger.WarnContext(ctx, "invalid k", "k", raw)
			writeError(w, http.StatusBadRequest, "k must be an integer")
			return
		}
		k = v
	}

	svcResp, err := h.imageService.FindDuplicates(ctx, service.DuplicatesRequest{
		RequestID: requestID,
		Threshold: threshold,
		K:         k,
	})
	if err != nil {
		handleServiceError(w, ctx, err, "Error during search")
		return
	}

	if svcResp.NoneFound {
		writeJSON(w, ctx, http.StatusOK, MessageResponse{Message: "No duplicates found"})
		return
	}

	writeJSON(w, ctx, http.StatusOK, DuplicatesResponse{
		RequestID:  svcResp.RequestID,
		Duplicates: svcResp.Duplicates,
	})
}
