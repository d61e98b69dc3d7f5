package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"

	"github.com/feichai0017/testcase-generator/internal/models"
)

// LineDetector is an offline detector that finds ruled tables by scanning for
// long dark horizontal and vertical runs. Every cell formed by adjacent rules
// is reported as a "table_cell" component.
type LineDetector struct {
	minLineLength int
	maxLineGap    int
	darkThreshold uint8
}

func NewLineDetector(minLineLength, maxLineGap int) *LineDetector {
	if minLineLength <= 0 {
		minLineLength = 50
	}
	if maxLineGap < 0 {
		maxLineGap = 0
	}
	return &LineDetector{minLineLength: minLineLength, maxLineGap: maxLineGap, darkThreshold: 128}
}

func (d *LineDetector) Detect(ctx context.Context, path string) ([]models.DetectedComponent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return d.detect(img), nil
}

func (d *LineDetector) detect(img image.Image) []models.DetectedComponent {
	gray := imaging.Grayscale(img)
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	dark := func(x, y int) bool { return gray.Pix[y*gray.Stride+x*4] < d.darkThreshold }

	var horizontal, vertical []image.Rectangle
	for y := 0; y < h; y++ {
		start := -1
		for x := 0; x <= w; x++ {
			if x < w && dark(x, y) {
				if start < 0 {
					start = x
				}
				continue
			}
			if start >= 0 && x-start >= d.minLineLength {
				horizontal = append(horizontal, image.Rect(start, y, x, y+1))
			}
			start = -1
		}
	}
	for x := 0; x < w; x++ {
		start := -1
		for y := 0; y <= h; y++ {
			if y < h && dark(x, y) {
				if start < 0 {
					start = y
				}
				continue
			}
			if start >= 0 && y-start >= d.minLineLength {
				vertical = append(vertical, image.Rect(x, start, x+1, y))
			}
			start = -1
		}
	}

	horizontal = d.mergeLines(horizontal, true)
	vertical = d.mergeLines(vertical, false)

	var out []models.DetectedComponent
	for i := 0; i+1 < len(horizontal); i++ {
		for j := 0; j+1 < len(vertical); j++ {
			out = append(out, models.DetectedComponent{
				Label: "table_cell",
				Box: models.Box{
					X1: vertical[j].Min.X,
					Y1: horizontal[i].Min.Y,
					X2: vertical[j+1].Max.X,
					Y2: horizontal[i+1].Max.Y,
				},
				Confidence: 1,
			})
		}
	}
	return out
}

// mergeLines collapses thick rules (adjacent runs within maxLineGap) into one.
func (d *LineDetector) mergeLines(lines []image.Rectangle, isHorizontal bool) []image.Rectangle {
	if len(lines) < 2 {
		return lines
	}
	merged := make([]image.Rectangle, 0, len(lines))
	current := lines[0]
	for _, l := range lines[1:] {
		if isHorizontal && l.Min.Y-current.Max.Y <= d.maxLineGap {
			current = image.Rect(min(current.Min.X, l.Min.X), current.Min.Y, max(current.Max.X, l.Max.X), l.Max.Y)
			continue
		}
		if !isHorizontal && l.Min.X-current.Max.X <= d.maxLineGap {
			current = image.Rect(current.Min.X, min(current.Min.Y, l.Min.Y), l.Max.X, max(current.Max.Y, l.Max.Y))
			continue
		}
		merged = append(merged, current)
		current = l
	}
	return append(merged, current)
}
