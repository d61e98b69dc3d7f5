package models

import (
	"fmt"
	"strings"
)

// ContentKind tags a ContentUnit.
type ContentKind int

const (
	KindText ContentKind = iota
	KindImageText
	KindComponents
)

func (k ContentKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImageText:
		return "image_text"
	case KindComponents:
		return "components"
	default:
		return fmt.Sprintf("ContentKind(%d)", int(k))
	}
}

// MarshalText lets kinds show up by name in JSON and logs.
func (k ContentKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ContentUnit is one typed piece of extracted content. Units are values and
// are never mutated after a walker emits them.
type ContentUnit struct {
	Kind    ContentKind `json:"kind"`
	Payload string      `json:"payload"`
}

func TextUnit(payload string) ContentUnit {
	return ContentUnit{Kind: KindText, Payload: payload}
}

func ImageTextUnit(payload string) ContentUnit {
	return ContentUnit{Kind: KindImageText, Payload: payload}
}

func ComponentsUnit(payload string) ContentUnit {
	return ContentUnit{Kind: KindComponents, Payload: payload}
}

// ContentSequence is ordered by reading order of the source document(s).
// Downstream stages must not reorder it.
type ContentSequence []ContentUnit

// Count returns how many units of kind k the sequence holds.
func (s ContentSequence) Count(k ContentKind) int {
	n := 0
	for _, u := range s {
		if u.Kind == k {
			n++
		}
	}
	return n
}

// Box is a detection rectangle in pixel coordinates.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// BoxFromFloats truncates detector output toward zero.
func BoxFromFloats(x1, y1, x2, y2 float64) Box {
	return Box{X1: int(x1), Y1: int(y1), X2: int(x2), Y2: int(y2)}
}

// DetectedComponent is one labelled box produced by the component detector.
type DetectedComponent struct {
	Label      string  `json:"label"`
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
}

// Summary renders the component as a single human readable line.
func (c DetectedComponent) Summary() string {
	return fmt.Sprintf("Detected component: %s at coordinates (%d, %d, %d, %d)",
		c.Label, c.Box.X1, c.Box.Y1, c.Box.X2, c.Box.Y2)
}

// SummarizeComponents builds the payload of a Components unit: one summary
// line per detection, each terminated by a newline.
func SummarizeComponents(components []DetectedComponent) string {
	var b strings.Builder
	for _, c := range components {
		b.WriteString(c.Summary())
		b.WriteByte('\n')
	}
	return b.String()
}
