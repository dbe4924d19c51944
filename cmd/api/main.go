package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imagededup/internal/acquire"
	"imagededup/internal/config"
	"imagededup/internal/dedup"
	"imagededup/internal/embedding"
	"imagededup/internal/http"
	"imagededup/internal/registry"
	"imagededup/internal/service"
	"imagededup/internal/vectorstore"
)

// embeddingTimeout bounds a single call to the embedding server.
const embeddingTimeout = 60 * time.Second

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	store, err := vectorstore.NewMemoryStore(cfg.VectorDim)
	if err != nil {
		log.Fatalf("Failed to create vector store: %v", err)
	}
	engine := dedup.NewEngine(store, registry.New())
	slog.Info("Vector store ready", "dimension", cfg.VectorDim)

	embedder := embedding.NewClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.VectorDim, embeddingTimeout)
	slog.Info("Embedding client configured", "base_url", cfg.EmbeddingBaseURL, "model", cfg.EmbeddingModelName)

	imageService := service.NewImageService(engine, embedder, service.Options{
		EmbedConcurrency: cfg.EmbedConcurrency,
	})

	fetcher := acquire.NewFetcher(acquire.FetcherConfig{
		Timeout:       cfg.FetchTimeout,
		MaxBytes:      cfg.MaxImageBytes,
		RatePerSecond: cfg.FetchRateLimit,
	})

	// Create router with dependencies
	router := http.NewRouter(&http.Deps{
		ImageService:     imageService,
		Fetcher:          fetcher,
		MaxImageBytes:    cfg.MaxImageBytes,
		DefaultThreshold: cfg.DefaultThreshold,
		DefaultK:         cfg.DefaultK,
	})

	addr := ":" + cfg.APIPort
	srv := &nethttp.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("API server failed to start: %v", err)
		}
	case <-ctx.Done():
		slog.Info("Shutting down API server", "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
			os.Exit(1)
		}
		slog.Info("API server stopped")
	}
}
