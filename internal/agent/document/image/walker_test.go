package image

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/pkg/logger"
)

type fixedAnalyzer struct {
	text  string
	comps []models.DetectedComponent
}

func (f fixedAnalyzer) TextFromImage(context.Context, string) (string, error) {
	return f.text, nil
}

func (f fixedAnalyzer) DetectComponents(context.Context, string) ([]models.DetectedComponent, error) {
	return f.comps, nil
}

func TestWalkStandaloneImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mockup.jpg")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xd8, 0xff}, 0o600))

	a := fixedAnalyzer{comps: []models.DetectedComponent{
		{Label: "button", Box: models.BoxFromFloats(10.0, 20.0, 30.0, 40.0), Confidence: 0.9},
	}}

	seq, err := NewWalker(a, logger.NewNop()).Walk(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, models.ContentSequence{
		{Kind: models.KindImageText, Payload: ""},
		{Kind: models.KindComponents, Payload: "Detected component: button at coordinates (10, 20, 30, 40)\n"},
	}, seq)
	assert.Zero(t, seq.Count(models.KindText))
}

func TestWalkMissingImage(t *testing.T) {
	_, err := NewWalker(fixedAnalyzer{}, logger.NewNop()).Walk(context.Background(), filepath.Join(t.TempDir(), "gone.png"))
	assert.ErrorIs(t, err, models.ErrUnreadableDocument)
}
