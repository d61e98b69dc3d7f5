package document

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"

	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/pkg/logger"
)

// Walker 文档遍历器接口
type Walker interface {
	// Walk 按阅读顺序返回文档内容
	Walk(ctx context.Context, path string) (models.ContentSequence, error)
}

// ImageAnalyzer is what walkers need from the vision layer.
type ImageAnalyzer interface {
	TextFromImage(ctx context.Context, path string) (string, error)
	DetectComponents(ctx context.Context, path string) ([]models.DetectedComponent, error)
}

// AnalyzeImage emits the (ImageText, Components) pair for one image. OCR or
// detection failures on a single image are logged and leave that payload
// empty, so every extracted image yields exactly one unit of each kind. A
// detector that cannot be loaded at all aborts the walk.
func AnalyzeImage(ctx context.Context, a ImageAnalyzer, path string, log logger.Logger) (models.ContentSequence, error) {
	text, err := a.TextFromImage(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("OCR failed, emitting empty text", logger.String("image", path), logger.Error(err))
		text = ""
	}

	components, err := a.DetectComponents(ctx, path)
	if err != nil {
		if errors.Is(err, models.ErrDetectorUnavailable) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("component detection failed, emitting no components", logger.String("image", path), logger.Error(err))
		components = nil
	}

	return models.ContentSequence{
		models.ImageTextUnit(text),
		models.ComponentsUnit(models.SummarizeComponents(components)),
	}, nil
}

// Scratch hands out short-lived files for image bytes pulled out of a
// container document. An empty Dir means the system temp directory.
type Scratch struct {
	Dir string
}

// WithFile writes data to a uniquely named file, calls fn with its path and
// removes the file on every exit path. When ext is empty it is sniffed from
// the data.
func (s Scratch) WithFile(data []byte, ext string, fn func(path string) error) (err error) {
	if ext == "" {
		ext = mimetype.Detect(data).Extension()
	}

	f, err := os.CreateTemp(s.Dir, "qagen-img-*"+ext)
	if err != nil {
		return fmt.Errorf("failed to create scratch file: %w", err)
	}
	path := f.Name()
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
			err = fmt.Errorf("failed to remove scratch file: %w", rmErr)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close scratch file: %w", err)
	}

	return fn(path)
}

// Unreadable wraps err as models.ErrUnreadableDocument.
func Unreadable(path string, err error) error {
	return fmt.Errorf("%w: %s: %v", models.ErrUnreadableDocument, path, err)
}
