package document

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/pkg/logger"
)

type stubAnalyzer struct {
	text    string
	textErr error
	comps   []models.DetectedComponent
	compErr error
}

func (s stubAnalyzer) TextFromImage(context.Context, string) (string, error) {
	return s.text, s.textErr
}

func (s stubAnalyzer) DetectComponents(context.Context, string) ([]models.DetectedComponent, error) {
	return s.comps, s.compErr
}

func TestAnalyzeImageEmitsPair(t *testing.T) {
	a := stubAnalyzer{comps: []models.DetectedComponent{{Label: "button", Box: models.Box{X1: 10, Y1: 20, X2: 30, Y2: 40}, Confidence: 0.9}}}

	got, err := AnalyzeImage(context.Background(), a, "x.jpg", logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, models.ContentSequence{
		{Kind: models.KindImageText, Payload: ""},
		{Kind: models.KindComponents, Payload: "Detected component: button at coordinates (10, 20, 30, 40)\n"},
	}, got)
}

func TestAnalyzeImageDegradesPerImageFailures(t *testing.T) {
	log := logger.NewTestLogger()
	a := stubAnalyzer{textErr: errors.New("ocr"), compErr: errors.New("inference")}

	got, err := AnalyzeImage(context.Background(), a, "x.png", log)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "", got[0].Payload)
	assert.Equal(t, "", got[1].Payload)
	assert.Equal(t, 2, log.Count("WARN"))
}

func TestAnalyzeImageAbortsWhenDetectorUnavailable(t *testing.T) {
	a := stubAnalyzer{compErr: models.ErrDetectorUnavailable}

	_, err := AnalyzeImage(context.Background(), a, "x.png", logger.NewNop())
	assert.ErrorIs(t, err, models.ErrDetectorUnavailable)
}

func TestScratchRemovesFileOnEveryPath(t *testing.T) {
	dir := t.TempDir()
	s := Scratch{Dir: dir}

	var seen string
	err := s.WithFile([]byte("data"), ".png", func(path string) error {
		seen = path
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "data", string(data))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(seen, ".png"))
	_, statErr := os.Stat(seen)
	assert.True(t, os.IsNotExist(statErr))

	boom := errors.New("boom")
	err = s.WithFile([]byte("data"), ".png", func(path string) error { return boom })
	assert.ErrorIs(t, err, boom)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScratchNamesAreUnique(t *testing.T) {
	s := Scratch{Dir: t.TempDir()}
	err := s.WithFile([]byte("a"), ".jpg", func(outer string) error {
		return s.WithFile([]byte("b"), ".jpg", func(inner string) error {
			assert.NotEqual(t, outer, inner)
			assert.Equal(t, filepath.Dir(outer), filepath.Dir(inner))
			return nil
		})
	})
	require.NoError(t, err)
}

func TestScratchSniffsExtension(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	err := Scratch{Dir: t.TempDir()}.WithFile(png, "", func(path string) error {
		assert.Equal(t, ".png", filepath.Ext(path))
		return nil
	})
	require.NoError(t, err)
}
