package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/pkg/logger"
)

type TextractConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
}

// textractAPI is the subset of the Textract client the detector uses.
type textractAPI interface {
	AnalyzeDocument(ctx context.Context, params *textract.AnalyzeDocumentInput, optFns ...func(*textract.Options)) (*textract.AnalyzeDocumentOutput, error)
}

// Layout analysis block types. Older SDK releases lack the typed constants.
var textractLabels = map[string]string{
	"LAYOUT_TITLE":          "title",
	"LAYOUT_HEADER":         "header",
	"LAYOUT_FOOTER":         "footer",
	"LAYOUT_SECTION_HEADER": "section_header",
	"LAYOUT_PAGE_NUMBER":    "page_number",
	"LAYOUT_LIST":           "list",
	"LAYOUT_FIGURE":         "figure",
	"LAYOUT_TABLE":          "table",
	"LAYOUT_KEY_VALUE":      "key_value",
	"LAYOUT_TEXT":           "text",
	"TABLE":                 "table",
	"SELECTION_ELEMENT":     "checkbox",
	"KEY_VALUE_SET":         "form_field",
	"SIGNATURE":             "signature",
}

// TextractDetector maps Textract layout, table and form blocks to components.
type TextractDetector struct {
	client textractAPI
	logger logger.Logger
}

func NewTextractDetector(client textractAPI, log logger.Logger) *TextractDetector {
	return &TextractDetector{client: client, logger: log}
}

// NewTextractLoader resolves AWS credentials on first use.
func NewTextractLoader(cfg TextractConfig, log logger.Logger) DetectorLoader {
	return func(ctx context.Context) (Detector, error) {
		opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
		if cfg.AccessKey != "" && cfg.SecretKey != "" {
			opts = append(opts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
			))
		}

		awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("unable to load AWS config: %w", err)
		}

		client := textract.NewFromConfig(awsCfg, func(o *textract.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		})
		return NewTextractDetector(client, log), nil
	}
}

func (d *TextractDetector) Detect(ctx context.Context, path string) ([]models.DetectedComponent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	dims, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image size: %w", err)
	}

	result, err := d.client.AnalyzeDocument(ctx, &textract.AnalyzeDocumentInput{
		Document: &types.Document{Bytes: data},
		FeatureTypes: []types.FeatureType{
			types.FeatureTypeTables,
			types.FeatureTypeForms,
			types.FeatureType("LAYOUT"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to analyze document: %w", err)
	}

	return blocksToComponents(result.Blocks, dims.Width, dims.Height), nil
}

func blocksToComponents(blocks []types.Block, width, height int) []models.DetectedComponent {
	var out []models.DetectedComponent
	for _, block := range blocks {
		label, ok := textractLabels[string(block.BlockType)]
		if !ok {
			continue
		}
		// only the key side of a key/value pair is a component
		if block.BlockType == types.BlockTypeKeyValueSet &&
			(len(block.EntityTypes) == 0 || block.EntityTypes[0] != types.EntityTypeKey) {
			continue
		}
		if block.Geometry == nil || block.Geometry.BoundingBox == nil {
			continue
		}

		bb := block.Geometry.BoundingBox
		w, h := float64(width), float64(height)
		left, top := float64(bb.Left)*w, float64(bb.Top)*h

		var confidence float64
		if block.Confidence != nil {
			confidence = float64(*block.Confidence) / 100
		}

		out = append(out, models.DetectedComponent{
			Label:      label,
			Box:        models.BoxFromFloats(left, top, left+float64(bb.Width)*w, top+float64(bb.Height)*h),
			Confidence: confidence,
		})
	}
	return out
}
