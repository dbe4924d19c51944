package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"imagededup/internal/dedup"
	"imagededup/internal/embedding"
	"imagededup/internal/registry"
	"imagededup/internal/service"
	"imagededup/internal/service/mocks"
	"imagededup/internal/vectorstore"

	"go.uber.org/mock/gomock"
)

func init() {
	// Set default logger to discard output for cleaner test output
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testContext() context.Context {
	return context.Background()
}

func newEngine(t *testing.T, dim int) *dedup.Engine {
	t.Helper()
	store, err := vectorstore.NewMemoryStore(dim)
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}
	return dedup.NewEngine(store, registry.New())
}

// embedByFirstByte maps each image to a 2-dim vector derived from its first byte.
func embedByFirstByte(_ context.Context, img []byte) ([]float32, error) {
	return []float32{float32(img[0]), 0}, nil
}

func TestNewImageService(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := service.NewImageService(newEngine(t, 2), mocks.NewMockEmbedder(ctrl), service.Options{})
	if svc == nil {
		t.Fatal("NewImageService() returned nil")
	}
}

func TestImageService_IngestBatch(t *testing.T) {
	tests := []struct {
		name         string
		seed         *service.IngestRequest
		req          service.IngestRequest
		mockSetup    func(m *mocks.MockEmbedder)
		wantErr      bool
		wantNames    []string
		wantVectors  int
		checkErrType func(error) bool
	}{
		{
			name: "three images get sequential names",
			req:  service.IngestRequest{RequestID: "req-a", Images: [][]byte{{1}, {2}, {3}}},
			mockSetup: func(m *mocks.MockEmbedder) {
				m.EXPECT().EmbedImage(gomock.Any(), gomock.Any()).DoAndReturn(embedByFirstByte).Times(3)
			},
			wantNames:   []string{"image_1", "image_2", "image_3"},
			wantVectors: 3,
		},
		{
			name: "names continue after earlier batches",
			seed: &service.IngestRequest{RequestID: "seed", Images: [][]byte{{9}, {9}}},
			req:  service.IngestRequest{RequestID: "req-b", Images: [][]byte{{1}}},
			mockSetup: func(m *mocks.MockEmbedder) {
				m.EXPECT().EmbedImage(gomock.Any(), gomock.Any()).DoAndReturn(embedByFirstByte).Times(3)
			},
			wantNames:   []string{"image_3"},
			wantVectors: 3,
		},
		{
			name:      "empty request id",
			req:       service.IngestRequest{Images: [][]byte{{1}}},
			mockSetup: func(m *mocks.MockEmbedder) {},
			wantErr:   true,
			checkErrType: func(err error) bool {
				var validationErr *service.ValidationError
				return errors.As(err, &validationErr) && validationErr.Field == "request_id"
			},
		},
		{
			name:      "no images",
			req:       service.IngestRequest{RequestID: "req-empty"},
			mockSetup: func(m *mocks.MockEmbedder) {},
			wantErr:   true,
			checkErrType: func(err error) bool {
				var validationErr *service.ValidationError
				return errors.As(err, &validationErr) && validationErr.Field == "images"
			},
		},
		{
			name: "undecodable image commits nothing",
			req:  service.IngestRequest{RequestID: "req-bad", Images: [][]byte{{1}, {2}}},
			mockSetup: func(m *mocks.MockEmbedder) {
				m.EXPECT().EmbedImage(gomock.Any(), []byte{1}).DoAndReturn(embedByFirstByte).AnyTimes()
				m.EXPECT().EmbedImage(gomock.Any(), []byte{2}).
					Return(nil, &embedding.DecodeError{Err: errors.New("unknown format")})
			},
			wantErr: true,
			checkErrType: func(err error) bool {
				return errors.Is(err, service.ErrInvalidInput)
			},
		},
		{
			name: "embedding service failure",
			req:  service.IngestRequest{RequestID: "req-down", Images: [][]byte{{1}}},
			mockSetup: func(m *mocks.MockEmbedder) {
				m.EXPECT().EmbedImage(gomock.Any(), gomock.Any()).
					Return(nil, &embedding.EmbeddingError{StatusCode: 503, Err: errors.New("unavailable")})
			},
			wantErr: true,
			checkErrType: func(err error) bool {
				return errors.Is(err, service.ErrExternalService)
			},
		},
		{
			name: "embedding of wrong dimension",
			req:  service.IngestRequest{RequestID: "req-dim", Images: [][]byte{{1}}},
			mockSetup: func(m *mocks.MockEmbedder) {
				m.EXPECT().EmbedImage(gomock.Any(), gomock.Any()).Return([]float32{1, 2, 3}, nil)
			},
			wantErr: true,
			checkErrType: func(err error) bool {
				return errors.Is(err, service.ErrExternalService)
			},
		},
		{
			name: "duplicate request id",
			seed: &service.IngestRequest{RequestID: "taken", Images: [][]byte{{5}}},
			req:  service.IngestRequest{RequestID: "taken", Images: [][]byte{{6}}},
			mockSetup: func(m *mocks.MockEmbedder) {
				m.EXPECT().EmbedImage(gomock.Any(), gomock.Any()).DoAndReturn(embedByFirstByte).Times(2)
			},
			wantErr:     true,
			wantVectors: 1,
			checkErrType: func(err error) bool {
				return errors.Is(err, service.ErrConflict)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockEmbedder := mocks.NewMockEmbedder(ctrl)
			svc := service.NewImageService(newEngine(t, 2), mockEmbedder, service.Options{EmbedConcurrency: 2})
			tt.mockSetup(mockEmbedder)

			ctx := testContext()
			if tt.seed != nil {
				if _, err := svc.IngestBatch(ctx, *tt.seed); err != nil {
					t.Fatalf("seed IngestBatch() error = %v", err)
				}
			}

			resp, err := svc.IngestBatch(ctx, tt.req)
			if got := svc.Stats(ctx).Vectors; got != tt.wantVectors {
				t.Errorf("Stats().Vectors = %d, want %d", got, tt.wantVectors)
			}

			if tt.wantErr {
				if err == nil {
					t.Errorf("IngestBatch() expected error, got nil")
					return
				}
				if tt.checkErrType != nil && !tt.checkErrType(err) {
					t.Errorf("IngestBatch() error type mismatch: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("IngestBatch() unexpected error: %v", err)
			}
			if resp.RequestID != tt.req.RequestID {
				t.Errorf("IngestBatch() request_id = %q, want %q", resp.RequestID, tt.req.RequestID)
			}
			if !reflect.DeepEqual(resp.Names, tt.wantNames) {
				t.Errorf("IngestBatch() names = %v, want %v", resp.Names, tt.wantNames)
			}
		})
	}
}

func TestImageService_IngestBatch_CanceledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockEmbedder := mocks.NewMockEmbedder(ctrl)
	mockEmbedder.EXPECT().EmbedImage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ []byte) ([]float32, error) {
			return nil, ctx.Err()
		}).AnyTimes()
	svc := service.NewImageService(newEngine(t, 2), mockEmbedder, service.Options{})

	ctx, cancel := context.WithCancel(testContext())
	cancel()
	_, err := svc.IngestBatch(ctx, service.IngestRequest{RequestID: "req", Images: [][]byte{{1}}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("IngestBatch() error = %v, want context.Canceled", err)
	}
	if errors.Is(err, service.ErrExternalService) {
		t.Errorf("IngestBatch() cancellation must not be reported as an external failure")
	}
}

func TestImageService_FindDuplicates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockEmbedder := mocks.NewMockEmbedder(ctrl)
	mockEmbedder.EXPECT().EmbedImage(gomock.Any(), gomock.Any()).DoAndReturn(embedByFirstByte).AnyTimes()
	svc := service.NewImageService(newEngine(t, 2), mockEmbedder, service.Options{})

	ctx := testContext()
	// image_1 and image_2 are identical, image_3 is far away.
	if _, err := svc.IngestBatch(ctx, service.IngestRequest{RequestID: "dup", Images: [][]byte{{7}, {7}}}); err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if _, err := svc.IngestBatch(ctx, service.IngestRequest{RequestID: "unique", Images: [][]byte{{100}}}); err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}

	tests := []struct {
		name         string
		req          service.DuplicatesRequest
		wantErr      bool
		wantNone     bool
		wantDups     []string
		checkErrType func(error) bool
	}{
		{
			name:     "duplicates within the batch",
			req:      service.DuplicatesRequest{RequestID: "dup", Threshold: 1.0, K: 3},
			wantDups: []string{"image_1", "image_2"},
		},
		{
			name:     "no duplicates",
			req:      service.DuplicatesRequest{RequestID: "unique", Threshold: 1.0, K: 3},
			wantNone: true,
		},
		{
			name:    "unknown request",
			req:     service.DuplicatesRequest{RequestID: "missing", Threshold: 1.0, K: 3},
			wantErr: true,
			checkErrType: func(err error) bool {
				return errors.Is(err, service.ErrNotFound)
			},
		},
		{
			name:    "k must be positive",
			req:     service.DuplicatesRequest{RequestID: "dup", Threshold: 1.0, K: 0},
			wantErr: true,
			checkErrType: func(err error) bool {
				var validationErr *service.ValidationError
				return errors.As(err, &validationErr) && validationErr.Field == "k"
			},
		},
		{
			name:    "negative threshold",
			req:     service.DuplicatesRequest{RequestID: "dup", Threshold: -1, K: 3},
			wantErr: true,
			checkErrType: func(err error) bool {
				var validationErr *service.ValidationError
				return errors.As(err, &validationErr) && validationErr.Field == "threshold"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.FindDuplicates(ctx, tt.req)
			if tt.wantErr {
				if err == nil {
					t.Errorf("FindDuplicates() expected error, got nil")
					return
				}
				if tt.checkErrType != nil && !tt.checkErrType(err) {
					t.Errorf("FindDuplicates() error type mismatch: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindDuplicates() unexpected error: %v", err)
			}
			if resp.NoneFound != tt.wantNone {
				t.Errorf("FindDuplicates() NoneFound = %v, want %v", resp.NoneFound, tt.wantNone)
			}
			if !tt.wantNone && !reflect.DeepEqual(resp.Duplicates, tt.wantDups) {
				t.Errorf("FindDuplicates() duplicates = %v, want %v", resp.Duplicates, tt.wantDups)
			}
		})
	}
}

func TestImageService_Reset(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockEmbedder := mocks.NewMockEmbedder(ctrl)
	mockEmbedder.EXPECT().EmbedImage(gomock.Any(), gomock.Any()).DoAndReturn(embedByFirstByte).Times(3)
	svc := service.NewImageService(newEngine(t, 2), mockEmbedder, service.Options{})

	ctx := testContext()
	if _, err := svc.IngestBatch(ctx, service.IngestRequest{RequestID: "before", Images: [][]byte{{1}, {1}}}); err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if st := svc.Stats(ctx); st.Vectors != 0 || st.Requests != 0 || st.Dimension != 2 {
		t.Errorf("Stats() after reset = %+v", st)
	}

	_, err := svc.FindDuplicates(ctx, service.DuplicatesRequest{RequestID: "before", Threshold: 1, K: 3})
	if !errors.Is(err, service.ErrNotFound) {
		t.Errorf("FindDuplicates() after reset error = %v, want ErrNotFound", err)
	}

	resp, err := svc.IngestBatch(ctx, service.IngestRequest{RequestID: "after", Images: [][]byte{{1}}})
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if !reflect.DeepEqual(resp.Names, []string{"image_1"}) {
		t.Errorf("IngestBatch() after reset names = %v, want [image_1]", resp.Names)
	}
}
