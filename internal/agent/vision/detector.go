package vision

import (
	"context"
	"fmt"
	"sync"

	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/pkg/logger"
)

// Detector finds visual components in an image file. Implementations must be
// safe for concurrent use once constructed.
type Detector interface {
	Detect(ctx context.Context, path string) ([]models.DetectedComponent, error)
}

// DetectorLoader constructs a Detector. It may be slow (model download,
// credential resolution) and may fail.
type DetectorLoader func(ctx context.Context) (Detector, error)

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context, path string) ([]models.DetectedComponent, error)

func (f DetectorFunc) Detect(ctx context.Context, path string) ([]models.DetectedComponent, error) {
	return f(ctx, path)
}

// NoopDetector reports no components.
type NoopDetector struct{}

func (NoopDetector) Detect(context.Context, string) ([]models.DetectedComponent, error) {
	return nil, nil
}

// SharedDetector loads its detector lazily on first use and then reuses it
// for the life of the process. A failed load is retried on the next call; a
// successful load never runs again.
type SharedDetector struct {
	mu       sync.Mutex
	loader   DetectorLoader
	detector Detector
	logger   logger.Logger
}

func NewSharedDetector(loader DetectorLoader, log logger.Logger) *SharedDetector {
	return &SharedDetector{loader: loader, logger: log}
}

// Get returns the loaded detector, loading it if needed. Load failures wrap
// models.ErrDetectorUnavailable.
func (s *SharedDetector) Get(ctx context.Context) (Detector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.detector != nil {
		return s.detector, nil
	}
	if s.loader == nil {
		return nil, fmt.Errorf("%w: no loader configured", models.ErrDetectorUnavailable)
	}

	d, err := s.loader(ctx)
	if err != nil {
		s.logger.Error("failed to load detector", logger.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrDetectorUnavailable, err)
	}
	if d == nil {
		return nil, fmt.Errorf("%w: loader returned nil", models.ErrDetectorUnavailable)
	}
	s.detector = d
	s.logger.Info("detector loaded")
	return d, nil
}

// Detect implements Detector.
func (s *SharedDetector) Detect(ctx context.Context, path string) ([]models.DetectedComponent, error) {
	d, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return d.Detect(ctx, path)
}
