package acquire

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"imagededup/internal/contextutil"
)

// FetchError reports a failed download. StatusCode is zero when no response
// was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to download image from URL: %s (status code: %d)", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("failed to download image from URL: %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	// Timeout bounds each download. Default: 10s.
	Timeout time.Duration
	// MaxBytes is the per-image size limit. Default: DefaultMaxBytes.
	MaxBytes int64
	// RatePerSecond caps outbound downloads. Zero means unlimited.
	RatePerSecond float64
}

// Fetcher downloads images over HTTP.
type Fetcher struct {
	client   *http.Client
	limiter  *rate.Limiter
	timeout  time.Duration
	maxBytes int64
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}

	f := &Fetcher{
		client:   &http.Client{},
		timeout:  cfg.Timeout,
		maxBytes: cfg.MaxBytes,
	}
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return f
}

// Fetch downloads url and returns the body.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{URL: url, Err: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		logger.WarnContext(ctx, "image download failed", "url", url, "error", err)
		return nil, &FetchError{URL: url, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		logger.WarnContext(ctx, "image download returned non-200", "url", url, "status", resp.StatusCode)
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	data, err := ReadLimited(resp.Body, f.maxBytes)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	logger.DebugContext(ctx, "image downloaded", "url", url, "bytes", len(data))
	return data, nil
}
