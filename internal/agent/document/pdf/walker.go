// Package pdf walks PDF documents page by page.
package pdf

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/feichai0017/testcase-generator/internal/agent/document"
	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/pkg/logger"
)

func init() {
	// pdfcpu otherwise creates a config directory under $HOME on first use
	api.DisableConfigDir()
}

// pageImage is one embedded raster image, already decoded to a file format.
type pageImage struct {
	Data []byte
	Ext  string
}

// pageSource is the walker's view of an opened PDF. Pages are 1-based.
type pageSource interface {
	NumPages() int
	PageText(n int) (string, error)
	PageImages(n int) []pageImage
	Close() error
}

type Walker struct {
	analyzer document.ImageAnalyzer
	scratch  document.Scratch
	logger   logger.Logger
	open     func(path string) (pageSource, error)
}

func NewWalker(analyzer document.ImageAnalyzer, scratch document.Scratch, log logger.Logger) *Walker {
	return &Walker{
		analyzer: analyzer,
		scratch:  scratch,
		logger:   log,
		open:     openSource,
	}
}

// Walk emits, for each page in order, the page text (if any) followed by one
// (ImageText, Components) pair per embedded image on that page.
func (w *Walker) Walk(ctx context.Context, path string) (models.ContentSequence, error) {
	src, err := w.open(path)
	if err != nil {
		return nil, document.Unreadable(path, err)
	}
	defer src.Close()

	var seq models.ContentSequence
	for n := 1; n <= src.NumPages(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := src.PageText(n)
		if err != nil {
			return nil, document.Unreadable(path, fmt.Errorf("page %d: %w", n, err))
		}
		if text = strings.TrimSpace(text); text != "" {
			seq = append(seq, models.TextUnit(text))
		}

		for i, img := range src.PageImages(n) {
			err := w.scratch.WithFile(img.Data, img.Ext, func(imgPath string) error {
				pair, err := document.AnalyzeImage(ctx, w.analyzer, imgPath, w.logger)
				if err != nil {
					return err
				}
				seq = append(seq, pair...)
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("page %d image %d: %w", n, i+1, err)
			}
		}
	}

	w.logger.Debug("walked pdf",
		logger.String("path", path),
		logger.Int("pages", src.NumPages()),
		logger.Int("units", len(seq)),
	)
	return seq, nil
}

// docSource reads text with ledongthuc/pdf and images with pdfcpu, which
// decodes DCT and Flate image streams that the text reader cannot.
type docSource struct {
	file   *os.File
	reader *pdf.Reader
	images map[int][]pageImage
}

func openSource(path string) (src pageSource, err error) {
	var f *os.File
	defer func() {
		if p := recover(); p != nil {
			if f != nil {
				f.Close()
			}
			src, err = nil, fmt.Errorf("malformed pdf: %v", p)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}

	images, err := imageExtractor(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &docSource{file: f, reader: r, images: images}, nil
}

// imageExtractor is swapped in tests.
var imageExtractor = extractImages

func extractImages(rs io.ReadSeeker) (map[int][]pageImage, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pages, err := api.ExtractImagesRaw(rs, nil, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to extract images: %w", err)
	}

	type entry struct {
		objNr int
		img   pageImage
	}
	byPage := make(map[int][]entry)
	for _, m := range pages {
		for objNr, img := range m {
			data, err := io.ReadAll(img)
			if err != nil {
				return nil, fmt.Errorf("failed to read image object %d: %w", objNr, err)
			}
			ext := ""
			if img.FileType != "" {
				ext = "." + img.FileType
			}
			byPage[img.PageNr] = append(byPage[img.PageNr], entry{objNr: objNr, img: pageImage{Data: data, Ext: ext}})
		}
	}

	// map iteration is random; object number is the listing order
	out := make(map[int][]pageImage, len(byPage))
	for page, entries := range byPage {
		sort.Slice(entries, func(i, j int) bool { return entries[i].objNr < entries[j].objNr })
		for _, e := range entries {
			out[page] = append(out[page], e.img)
		}
	}
	return out, nil
}

func (s *docSource) NumPages() int {
	return s.reader.NumPage()
}

func (s *docSource) PageText(n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page content: %v", r)
		}
	}()

	page := s.reader.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func (s *docSource) PageImages(n int) []pageImage {
	return s.images[n]
}

func (s *docSource) Close() error {
	return s.file.Close()
}
