package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks imagededup/internal/service Embedder
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_image_service.go -package=mocks imagededup/internal/service ImageService

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"imagededup/internal/contextutil"
	"imagededup/internal/dedup"
	"imagededup/internal/embedding"
	"imagededup/internal/naming"
	"imagededup/internal/registry"
	"imagededup/internal/vectorstore"
)

// Embedder turns raw image bytes into a fixed-length vector.
// This interface is defined from the service layer's perspective (consumer-first).
type Embedder interface {
	// EmbedImage returns the embedding of a single image.
	EmbedImage(ctx context.Context, img []byte) ([]float32, error)
}

// IngestRequest represents a batch of raw images to ingest under one token.
type IngestRequest struct {
	RequestID string
	Images    [][]byte
}

// IngestResponse reports the names assigned to an ingested batch.
type IngestResponse struct {
	RequestID string
	Names     []string
}

// DuplicatesRequest represents a duplicate query for an ingested batch.
type DuplicatesRequest struct {
	RequestID string
	Threshold float64
	K         int
}

// DuplicatesResponse holds the duplicate names, or NoneFound when empty.
type DuplicatesResponse struct {
	RequestID  string
	Duplicates []string
	NoneFound  bool
}

// Stats summarizes the corpus.
type Stats struct {
	Vectors   int
	Requests  int
	Dimension int
}

// ImageService provides ingestion and duplicate detection.
type ImageService interface {
	// IngestBatch embeds every image and commits the batch, or commits nothing.
	IngestBatch(ctx context.Context, req IngestRequest) (IngestResponse, error)
	// FindDuplicates reports corpus images within the threshold of the batch.
	FindDuplicates(ctx context.Context, req DuplicatesRequest) (DuplicatesResponse, error)
	// Reset clears every vector and request record.
	Reset(ctx context.Context) error
	// Stats returns corpus counters.
	Stats(ctx context.Context) Stats
}

// Options tunes an ImageService.
type Options struct {
	// EmbedConcurrency bounds parallel embedding calls per batch. Default: 4.
	EmbedConcurrency int
}

// imageService implements ImageService.
type imageService struct {
	engine      *dedup.Engine
	embedder    Embedder
	concurrency int
}

// NewImageService creates a new ImageService.
func NewImageService(engine *dedup.Engine, embedder Embedder, opts Options) ImageService {
	if opts.EmbedConcurrency <= 0 {
		opts.EmbedConcurrency = 4
	}
	return &imageService{
		engine:      engine,
		embedder:    embedder,
		concurrency: opts.EmbedConcurrency,
	}
}

// IngestBatch embeds images concurrently. The first failure cancels the
// remaining calls and nothing is committed; vectors only reach the corpus once
// the whole batch has been embedded.
func (s *imageService) IngestBatch(ctx context.Context, req IngestRequest) (IngestResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if req.RequestID == "" {
		return IngestResponse{}, &ValidationError{Field: "request_id", Message: "cannot be empty"}
	}
	if len(req.Images) == 0 {
		logger.InfoContext(ctx, "no valid images in ingest request", "request_id", req.RequestID)
		return IngestResponse{}, &ValidationError{Field: "images", Message: "no valid images provided"}
	}

	vectors := make([][]float32, len(req.Images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, img := range req.Images {
		g.Go(func() error {
			vec, err := s.embedder.EmbedImage(gctx, img)
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.ErrorContext(ctx, "failed to embed batch", "request_id", req.RequestID, "images", len(req.Images), "error", err)
		var decodeErr *embedding.DecodeError
		if errors.As(err, &decodeErr) {
			return IngestResponse{}, classify(ErrInvalidInput, err)
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return IngestResponse{}, err
		}
		return IngestResponse{}, classify(ErrExternalService, err)
	}

	r, err := s.engine.Commit(ctx, req.RequestID, vectors)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrDuplicateToken):
			return IngestResponse{}, classify(ErrConflict, err)
		case errors.Is(err, registry.ErrInvalidToken):
			return IngestResponse{}, &ValidationError{Field: "request_id", Message: err.Error()}
		default:
			// The embedder handed back vectors the corpus cannot hold.
			var dm *vectorstore.ErrDimensionMismatch
			if errors.As(err, &dm) || errors.Is(err, vectorstore.ErrNonFiniteValue) {
				return IngestResponse{}, classify(ErrExternalService, err)
			}
			return IngestResponse{}, WrapError(err, "failed to commit batch")
		}
	}

	names := naming.Names(r.Start, r.End)
	logger.InfoContext(ctx, "batch ingested", "request_id", req.RequestID, "added_images", len(names))
	return IngestResponse{
		RequestID: req.RequestID,
		Names:     names,
	}, nil
}

// FindDuplicates validates the query and delegates to the engine.
func (s *imageService) FindDuplicates(ctx context.Context, req DuplicatesRequest) (DuplicatesResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if req.K <= 0 {
		return DuplicatesResponse{}, &ValidationError{Field: "k", Message: "must be greater than 0"}
	}
	if req.Threshold < 0 {
		return DuplicatesResponse{}, &ValidationError{Field: "threshold", Message: "must not be negative"}
	}

	res, err := s.engine.FindDuplicates(ctx, req.RequestID, dedup.Query{Threshold: req.Threshold, K: req.K})
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrRequestNotFound):
			logger.InfoContext(ctx, "duplicate query for unknown request", "request_id", req.RequestID)
			return DuplicatesResponse{}, classify(ErrNotFound, err)
		case errors.Is(err, dedup.ErrInvalidThreshold):
			return DuplicatesResponse{}, &ValidationError{Field: "threshold", Message: err.Error()}
		case errors.Is(err, vectorstore.ErrInvalidK):
			return DuplicatesResponse{}, &ValidationError{Field: "k", Message: err.Error()}
		default:
			logger.ErrorContext(ctx, "error during duplicate search", "request_id", req.RequestID, "error", err)
			return DuplicatesResponse{}, WrapError(err, "error during search")
		}
	}

	return DuplicatesResponse{
		RequestID:  req.RequestID,
		Duplicates: res.Names,
		NoneFound:  res.NoneFound,
	}, nil
}

// Reset clears the corpus.
func (s *imageService) Reset(ctx context.Context) error {
	s.engine.Reset(ctx)
	return nil
}

// Stats returns corpus counters.
func (s *imageService) Stats(ctx context.Context) Stats {
	st := s.engine.Stats()
	return Stats{
		Vectors:   st.Vectors,
		Requests:  st.Requests,
		Dimension: st.Dimension,
	}
}
