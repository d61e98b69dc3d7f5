// Package vision holds the black-box collaborators that look at images: the
// OCR engine and the component detector, plus the Analyzer that fronts both.
package vision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/pkg/logger"
	"github.com/feichai0017/testcase-generator/pkg/ollama"
)

// DetectorConfig picks and configures the component detector backend.
type DetectorConfig struct {
	// Backend is one of textract, ollama, lines or none.
	Backend  string         `yaml:"backend"`
	Textract TextractConfig `yaml:"textract"`
	Ollama   ollama.Config  `yaml:"ollama"`
	Lines    struct {
		MinLineLength int `yaml:"min_line_length"`
		MaxLineGap    int `yaml:"max_line_gap"`
	} `yaml:"lines"`
}

// NewDetectorLoader returns the loader for the configured backend.
func NewDetectorLoader(cfg DetectorConfig, log logger.Logger) (DetectorLoader, error) {
	switch cfg.Backend {
	case "textract":
		return NewTextractLoader(cfg.Textract, log.Named("textract")), nil
	case "ollama":
		return NewOllamaLoader(cfg.Ollama, log.Named("ollama")), nil
	case "lines":
		return func(context.Context) (Detector, error) {
			return NewLineDetector(cfg.Lines.MinLineLength, cfg.Lines.MaxLineGap), nil
		}, nil
	case "", "none":
		return func(context.Context) (Detector, error) { return NoopDetector{}, nil }, nil
	default:
		return nil, fmt.Errorf("unsupported detector backend: %s", cfg.Backend)
	}
}

// Analyzer answers the two questions walkers ask about an image. Results are
// optionally cached by image content so repeated images (logos, icons) are
// analyzed once.
type Analyzer struct {
	recognizer TextRecognizer
	detector   Detector
	texts      *lru.Cache[string, string]
	components *lru.Cache[string, []models.DetectedComponent]
	logger     logger.Logger
}

type AnalyzerOption func(*Analyzer) error

// WithCache enables content-addressed caching of up to size results per kind.
func WithCache(size int) AnalyzerOption {
	return func(a *Analyzer) error {
		if size <= 0 {
			return nil
		}
		texts, err := lru.New[string, string](size)
		if err != nil {
			return err
		}
		components, err := lru.New[string, []models.DetectedComponent](size)
		if err != nil {
			return err
		}
		a.texts, a.components = texts, components
		return nil
	}
}

func NewAnalyzer(recognizer TextRecognizer, detector Detector, log logger.Logger, opts ...AnalyzerOption) (*Analyzer, error) {
	if recognizer == nil {
		return nil, fmt.Errorf("text recognizer is required")
	}
	if detector == nil {
		detector = NoopDetector{}
	}
	a := &Analyzer{recognizer: recognizer, detector: detector, logger: log}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("failed to apply analyzer option: %w", err)
		}
	}
	return a, nil
}

// TextFromImage runs OCR on the image at path.
func (a *Analyzer) TextFromImage(ctx context.Context, path string) (string, error) {
	key := a.cacheKey(path, a.texts != nil)
	if key != "" {
		if text, ok := a.texts.Get(key); ok {
			return text, nil
		}
	}

	text, err := a.recognizer.Recognize(ctx, path)
	if err != nil {
		return "", err
	}
	if key != "" {
		a.texts.Add(key, text)
	}
	return text, nil
}

// DetectComponents returns every raw detection; no confidence filter is applied.
func (a *Analyzer) DetectComponents(ctx context.Context, path string) ([]models.DetectedComponent, error) {
	key := a.cacheKey(path, a.components != nil)
	if key != "" {
		if cached, ok := a.components.Get(key); ok {
			return cached, nil
		}
	}

	found, err := a.detector.Detect(ctx, path)
	if err != nil {
		return nil, err
	}
	if key != "" {
		a.components.Add(key, found)
	}
	return found, nil
}

func (a *Analyzer) cacheKey(path string, enabled bool) string {
	if !enabled {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
