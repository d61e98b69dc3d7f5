package agent

import (
	"fmt"
	"strings"

	"github.com/feichai0017/testcase-generator/internal/agent/document"
	"github.com/feichai0017/testcase-generator/internal/agent/document/docx"
	"github.com/feichai0017/testcase-generator/internal/agent/document/image"
	"github.com/feichai0017/testcase-generator/internal/agent/document/pdf"
	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/pkg/logger"
)

// WalkerFactory maps lower-cased file extensions to walkers.
type WalkerFactory struct {
	walkers map[string]document.Walker
	logger  logger.Logger
}

// NewWalkerFactory registers the built-in walkers for every supported
// extension, all sharing one analyzer.
func NewWalkerFactory(analyzer document.ImageAnalyzer, scratch document.Scratch, log logger.Logger) *WalkerFactory {
	f := &WalkerFactory{
		walkers: make(map[string]document.Walker),
		logger:  log,
	}

	pdfWalker := pdf.NewWalker(analyzer, scratch, log.Named("pdf"))
	docxWalker := docx.NewWalker(analyzer, scratch, log.Named("docx"))
	imageWalker := image.NewWalker(analyzer, log.Named("image"))

	for _, ext := range []string{".pdf", ".docx", ".png", ".jpg", ".jpeg"} {
		fileType, _ := models.FileTypeOf(ext)
		switch fileType {
		case models.PDF:
			f.walkers[ext] = pdfWalker
		case models.Word:
			f.walkers[ext] = docxWalker
		case models.Image:
			f.walkers[ext] = imageWalker
		}
	}
	return f
}

// Register adds or replaces the walker for ext.
func (f *WalkerFactory) Register(ext string, w document.Walker) {
	f.walkers[strings.ToLower(ext)] = w
}

// GetWalker returns the walker for ext, matched case-insensitively.
func (f *WalkerFactory) GetWalker(ext string) (document.Walker, error) {
	w, ok := f.walkers[strings.ToLower(ext)]
	if !ok {
		f.logger.Warn("Unsupported file type", logger.String("ext", ext))
		return nil, fmt.Errorf("%w: unsupported file type %q", models.ErrInvalidUpload, ext)
	}
	return w, nil
}

// Extensions lists the registered extensions.
func (f *WalkerFactory) Extensions() []string {
	out := make([]string, 0, len(f.walkers))
	for ext := range f.walkers {
		out = append(out, ext)
	}
	return out
}
