// Package image walks standalone image uploads.
package image

import (
	"context"
	"fmt"
	"os"

	"github.com/feichai0017/testcase-generator/internal/agent/document"
	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/pkg/logger"
)

// Walker treats the upload itself as the only image: it emits exactly one
// ImageText unit and one Components unit, and never a Text unit.
type Walker struct {
	analyzer document.ImageAnalyzer
	logger   logger.Logger
}

func NewWalker(analyzer document.ImageAnalyzer, log logger.Logger) *Walker {
	return &Walker{analyzer: analyzer, logger: log}
}

func (w *Walker) Walk(ctx context.Context, path string) (models.ContentSequence, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, document.Unreadable(path, err)
	}
	if info.IsDir() {
		return nil, document.Unreadable(path, fmt.Errorf("is a directory"))
	}

	return document.AnalyzeImage(ctx, w.analyzer, path, w.logger)
}
