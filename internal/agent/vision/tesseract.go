package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	"github.com/otiai10/gosseract/v2"

	"github.com/feichai0017/testcase-generator/pkg/logger"
)

// TextRecognizer turns an image file into text. An empty string is a valid result.
type TextRecognizer interface {
	Recognize(ctx context.Context, path string) (string, error)
}

// OCRConfig configures the Tesseract recognizer.
type OCRConfig struct {
	Languages   []string         `yaml:"languages"`
	PageSegMode int              `yaml:"page_seg_mode"`
	Whitelist   string           `yaml:"whitelist"`
	Preprocess  PreprocessConfig `yaml:"preprocess"`
}

// DefaultOCRConfig mirrors tesseract's own defaults.
func DefaultOCRConfig() OCRConfig {
	return OCRConfig{
		Languages:   []string{"eng"},
		PageSegMode: int(gosseract.PSM_AUTO),
		Preprocess:  DefaultPreprocessConfig(),
	}
}

// TesseractRecognizer runs gosseract with a fresh client per call, so it is
// safe for concurrent use.
type TesseractRecognizer struct {
	cfg    OCRConfig
	chain  []Preprocessor
	logger logger.Logger
}

func NewTesseractRecognizer(cfg OCRConfig, log logger.Logger) *TesseractRecognizer {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	return &TesseractRecognizer{
		cfg:    cfg,
		chain:  BuildChain(cfg.Preprocess),
		logger: log,
	}
}

func (r *TesseractRecognizer) Recognize(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(r.cfg.Languages...); err != nil {
		return "", fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(r.cfg.PageSegMode)); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if r.cfg.Whitelist != "" {
		if err := client.SetWhitelist(r.cfg.Whitelist); err != nil {
			return "", fmt.Errorf("failed to set whitelist: %w", err)
		}
	}

	if err := client.SetImageFromBytes(r.prepare(data)); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("failed to get text: %w", err)
	}
	return text, nil
}

// prepare runs the preprocessing chain when the image decodes with the
// standard codecs. Anything else (TIFF, JBIG2 from PDFs) is handed to
// leptonica untouched.
func (r *TesseractRecognizer) prepare(data []byte) []byte {
	if len(r.chain) == 0 {
		return data
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		r.logger.Debug("skipping preprocessing", logger.Error(err))
		return data
	}
	processed, err := applyChain(img, r.chain)
	if err != nil {
		r.logger.Warn("preprocessing failed, using original image", logger.Error(err))
		return data
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, processed); err != nil {
		return data
	}
	return buf.Bytes()
}
