package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/pkg/logger"
	"github.com/feichai0017/testcase-generator/pkg/ollama"
)

const detectPrompt = `List every user interface component visible in this image.
Answer with JSON only, in the form {"components":[{"label":"button","box":[x1,y1,x2,y2],"confidence":0.9}]}.
Use pixel coordinates of the top-left and bottom-right corners.
Allowed labels: button, text_field, checkbox, radio, dropdown, link, icon, image, label, table, menu, tab, dialog, other.`

var knownLabels = map[string]bool{
	"button": true, "text_field": true, "checkbox": true, "radio": true,
	"dropdown": true, "link": true, "icon": true, "image": true, "label": true,
	"table": true, "menu": true, "tab": true, "dialog": true, "other": true,
}

type ollamaChatter interface {
	Chat(ctx context.Context, msgs []ollama.Message, opts ollama.ChatOptions) (string, error)
}

// OllamaDetector asks a local vision model for component boxes.
type OllamaDetector struct {
	client ollamaChatter
	logger logger.Logger
}

func NewOllamaDetector(client ollamaChatter, log logger.Logger) *OllamaDetector {
	return &OllamaDetector{client: client, logger: log}
}

// NewOllamaLoader builds the client pool on first use.
func NewOllamaLoader(cfg ollama.Config, log logger.Logger) DetectorLoader {
	return func(ctx context.Context) (Detector, error) {
		if cfg.Model == "" {
			return nil, fmt.Errorf("ollama detector needs a vision model name")
		}
		return NewOllamaDetector(ollama.NewPool(cfg), log), nil
	}
}

type ollamaDetection struct {
	Label      string    `json:"label"`
	Box        []float64 `json:"box"`
	Confidence float64   `json:"confidence"`
}

func (d *OllamaDetector) Detect(ctx context.Context, path string) ([]models.DetectedComponent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	temp := 0.0
	reply, err := d.client.Chat(ctx, []ollama.Message{
		{Role: "user", Content: detectPrompt, Images: [][]byte{data}},
	}, ollama.ChatOptions{Temperature: &temp, JSON: true})
	if err != nil {
		return nil, fmt.Errorf("failed to analyze image with ollama: %w", err)
	}

	return parseOllamaDetections(reply)
}

func parseOllamaDetections(reply string) ([]models.DetectedComponent, error) {
	var payload struct {
		Components []ollamaDetection `json:"components"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(reply)), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode detections: %w", err)
	}

	out := make([]models.DetectedComponent, 0, len(payload.Components))
	for _, c := range payload.Components {
		if len(c.Box) != 4 {
			continue
		}
		label := strings.ToLower(strings.TrimSpace(c.Label))
		label = strings.ReplaceAll(label, " ", "_")
		if !knownLabels[label] {
			label = "other"
		}
		out = append(out, models.DetectedComponent{
			Label:      label,
			Box:        models.BoxFromFloats(c.Box[0], c.Box[1], c.Box[2], c.Box[3]),
			Confidence: c.Confidence,
		})
	}
	return out, nil
}
