package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"imagededup/internal/handlers"
	"imagededup/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	ImageService service.ImageService
	Fetcher      handlers.ImageFetcher
	// MaxImageBytes limits each uploaded, decoded or downloaded image.
	MaxImageBytes    int64
	DefaultThreshold float64
	DefaultK         int
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	// Add chi middleware
	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	// Add CORS middleware
	r.Use(CORS)

	imagesHandler := handlers.NewImagesHandler(deps.ImageService, deps.Fetcher, deps.MaxImageBytes)
	duplicatesHandler := handlers.NewDuplicatesHandler(deps.ImageService, deps.DefaultThreshold, deps.DefaultK)
	resetHandler := handlers.NewResetHandler(deps.ImageService)
	healthHandler := handlers.NewHealthHandler(deps.ImageService)

	r.Method(http.MethodPost, "/images", imagesHandler)
	r.Method(http.MethodGet, "/duplicates/{request_id}", duplicatesHandler)
	r.Method(http.MethodGet, "/health", healthHandler)
	r.Route("/admin", func(r chi.Router) {
		r.Method(http.MethodPost, "/reset", resetHandler)
	})

	return r
}
