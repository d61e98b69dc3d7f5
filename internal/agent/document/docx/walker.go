// Package docx walks Word documents: body paragraphs first, then every image
// relationship of the main document part. The main part is located through
// the package relationships, so it need not be word/document.xml.
package docx

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/feichai0017/testcase-generator/internal/agent/document"
	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/pkg/logger"
)

const (
	packageRels         = "_rels/.rels"
	defaultDocumentPart = "word/document.xml"
)

type Walker struct {
	analyzer document.ImageAnalyzer
	scratch  document.Scratch
	logger   logger.Logger
}

func NewWalker(analyzer document.ImageAnalyzer, scratch document.Scratch, log logger.Logger) *Walker {
	return &Walker{analyzer: analyzer, scratch: scratch, logger: log}
}

// Walk emits one Text unit per non-blank body paragraph, then one
// (ImageText, Components) pair per image relationship, in relationship order.
// All paragraph text precedes all images regardless of where images sit.
func (w *Walker) Walk(ctx context.Context, p string) (models.ContentSequence, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, document.Unreadable(p, err)
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	mainPart, err := mainDocumentPart(files[packageRels])
	if err != nil {
		return nil, document.Unreadable(p, err)
	}
	docFile, ok := files[mainPart]
	if !ok {
		return nil, document.Unreadable(p, fmt.Errorf("missing %s", mainPart))
	}

	paragraphs, err := readParagraphs(docFile)
	if err != nil {
		return nil, document.Unreadable(p, err)
	}

	var seq models.ContentSequence
	for _, para := range paragraphs {
		if text := strings.TrimSpace(para); text != "" {
			seq = append(seq, models.TextUnit(text))
		}
	}

	rels, err := readImageRels(files[relsPartFor(mainPart)])
	if err != nil {
		return nil, document.Unreadable(p, err)
	}

	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		blob, ok := files[rel.resolve(path.Dir(mainPart))]
		if !ok {
			w.logger.Warn("image relationship points at a missing part",
				logger.String("id", rel.ID),
				logger.String("target", rel.Target),
			)
			continue
		}
		data, err := readPart(blob)
		if err != nil {
			return nil, document.Unreadable(p, err)
		}

		err = w.scratch.WithFile(data, path.Ext(rel.Target), func(imgPath string) error {
			pair, err := document.AnalyzeImage(ctx, w.analyzer, imgPath, w.logger)
			if err != nil {
				return err
			}
			seq = append(seq, pair...)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("image %s: %w", rel.ID, err)
		}
	}

	w.logger.Debug("walked docx",
		logger.String("path", p),
		logger.Int("paragraphs", len(paragraphs)),
		logger.Int("images", len(rels)),
	)
	return seq, nil
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// readParagraphs returns the text of every paragraph that is a direct child
// of w:body. Paragraphs in tables, text boxes and headers are not included.
func readParagraphs(f *zip.File) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var (
		stack      []string
		paragraphs []string
		current    strings.Builder
		inText     bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.Name, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			if !inBodyRun(stack[:len(stack)-1]) {
				inText = false
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			stack = stack[:len(stack)-1]
			if t.Name.Local == "t" {
				inText = false
			}
			if t.Name.Local == "p" && isBodyLevel(stack) {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}

// isBodyLevel reports whether stack ends at w:body, i.e. an element being
// closed there was a direct child of the body.
func isBodyLevel(stack []string) bool {
	return len(stack) == 2 && stack[0] == "document" && stack[1] == "body"
}

// inBodyRun reports whether stack is a run inside a body-level paragraph,
// either directly or through a hyperlink.
func inBodyRun(stack []string) bool {
	switch len(stack) {
	case 4:
		return isBodyLevel(stack[:2]) && stack[2] == "p" && stack[3] == "r"
	case 5:
		return isBodyLevel(stack[:2]) && stack[2] == "p" && stack[3] == "hyperlink" && stack[4] == "r"
	default:
		return false
	}
}

type relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

// resolve returns the zip entry name of the target. Relative targets are
// taken from dir, the directory of the part owning the relationship; the
// package root is "" or ".".
func (r relationship) resolve(dir string) string {
	if strings.HasPrefix(r.Target, "/") {
		return strings.TrimPrefix(path.Clean(r.Target), "/")
	}
	return strings.TrimPrefix(path.Clean(path.Join(dir, r.Target)), "/")
}

// relsPartFor names the relationships part of part, e.g.
// word/_rels/document2.xml.rels for word/document2.xml.
func relsPartFor(part string) string {
	return path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
}

func readRels(f *zip.File) ([]relationship, error) {
	data, err := readPart(f)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Relationships []relationship `xml:"Relationship"`
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.Name, err)
	}
	return doc.Relationships, nil
}

// mainDocumentPart follows the officeDocument relationship of the package.
// Both the transitional and the strict relationship types end in
// "/officeDocument". Packages without one fall back to word/document.xml.
func mainDocumentPart(f *zip.File) (string, error) {
	if f == nil {
		return defaultDocumentPart, nil
	}
	rels, err := readRels(f)
	if err != nil {
		return "", err
	}
	for _, rel := range rels {
		if strings.HasSuffix(rel.Type, "/officeDocument") && !strings.EqualFold(rel.TargetMode, "External") {
			return rel.resolve(""), nil
		}
	}
	return defaultDocumentPart, nil
}

// readImageRels returns internal relationships whose target mentions
// "image", in the order they are listed. A document without a rels part has
// no images.
func readImageRels(f *zip.File) ([]relationship, error) {
	if f == nil {
		return nil, nil
	}
	rels, err := readRels(f)
	if err != nil {
		return nil, err
	}

	var out []relationship
	for _, rel := range rels {
		if strings.EqualFold(rel.TargetMode, "External") {
			continue
		}
		if strings.Contains(rel.Target, "image") {
			out = append(out, rel)
		}
	}
	return out, nil
}
