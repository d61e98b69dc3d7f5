package vision

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/pkg/logger"
	"github.com/feichai0017/testcase-generator/pkg/ollama"
)

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "img.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func whiteImage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func TestSharedDetectorLoadsOnce(t *testing.T) {
	var loads int32
	shared := NewSharedDetector(func(context.Context) (Detector, error) {
		atomic.AddInt32(&loads, 1)
		return NoopDetector{}, nil
	}, logger.NewTestLogger())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := shared.Detect(context.Background(), "unused")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
}

func TestSharedDetectorRetriesFailedLoad(t *testing.T) {
	calls := 0
	shared := NewSharedDetector(func(context.Context) (Detector, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("weights missing")
		}
		return NoopDetector{}, nil
	}, logger.NewTestLogger())

	_, err := shared.Get(context.Background())
	require.ErrorIs(t, err, models.ErrDetectorUnavailable)

	_, err = shared.Get(context.Background())
	require.NoError(t, err)
	_, err = shared.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

type mockRecognizer struct{ mock.Mock }

func (m *mockRecognizer) Recognize(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}

func TestAnalyzerCachesByContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	require.NoError(t, os.WriteFile(a, []byte("same bytes"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("same bytes"), 0o600))

	rec := &mockRecognizer{}
	rec.On("Recognize", mock.Anything, a).Return("Login", nil).Once()

	detections := 0
	det := DetectorFunc(func(context.Context, string) ([]models.DetectedComponent, error) {
		detections++
		return []models.DetectedComponent{{Label: "button"}}, nil
	})

	analyzer, err := NewAnalyzer(rec, det, logger.NewTestLogger(), WithCache(8))
	require.NoError(t, err)

	for _, p := range []string{a, b} {
		text, err := analyzer.TextFromImage(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, "Login", text)

		comps, err := analyzer.DetectComponents(context.Background(), p)
		require.NoError(t, err)
		assert.Len(t, comps, 1)
	}

	rec.AssertExpectations(t)
	assert.Equal(t, 1, detections)
}

func TestAnalyzerPropagatesErrors(t *testing.T) {
	rec := &mockRecognizer{}
	rec.On("Recognize", mock.Anything, "x.png").Return("", errors.New("tesseract crashed"))
	det := DetectorFunc(func(context.Context, string) ([]models.DetectedComponent, error) {
		return nil, models.ErrDetectorUnavailable
	})

	analyzer, err := NewAnalyzer(rec, det, logger.NewNop())
	require.NoError(t, err)

	_, err = analyzer.TextFromImage(context.Background(), "x.png")
	assert.Error(t, err)
	_, err = analyzer.DetectComponents(context.Background(), "x.png")
	assert.ErrorIs(t, err, models.ErrDetectorUnavailable)
}

func TestParseOllamaDetections(t *testing.T) {
	got, err := parseOllamaDetections(`{"components":[
		{"label":"Button","box":[10.9,20.2,30.7,40.1],"confidence":0.8},
		{"label":"spaceship","box":[1,2,3,4],"confidence":0.1},
		{"label":"link","box":[1,2,3]}
	]}`)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Detected component: button at coordinates (10, 20, 30, 40)", got[0].Summary())
	assert.Equal(t, "other", got[1].Label)

	_, err = parseOllamaDetections("not json")
	assert.Error(t, err)
}

type fakeChatter struct {
	reply string
	got   []ollama.Message
}

func (f *fakeChatter) Chat(_ context.Context, msgs []ollama.Message, opts ollama.ChatOptions) (string, error) {
	f.got = msgs
	return f.reply, nil
}

func TestOllamaDetectorSendsImage(t *testing.T) {
	path := writePNG(t, whiteImage(4, 4))
	chat := &fakeChatter{reply: `{"components":[]}`}

	got, err := NewOllamaDetector(chat, logger.NewNop()).Detect(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.Len(t, chat.got, 1)
	assert.Len(t, chat.got[0].Images, 1)
}

type fakeTextract struct {
	out *textract.AnalyzeDocumentOutput
	in  *textract.AnalyzeDocumentInput
}

func (f *fakeTextract) AnalyzeDocument(_ context.Context, in *textract.AnalyzeDocumentInput, _ ...func(*textract.Options)) (*textract.AnalyzeDocumentOutput, error) {
	f.in = in
	return f.out, nil
}

func TestTextractDetectorScalesBoxes(t *testing.T) {
	path := writePNG(t, whiteImage(200, 100))
	client := &fakeTextract{out: &textract.AnalyzeDocumentOutput{Blocks: []types.Block{
		{BlockType: types.BlockTypeLine, Geometry: &types.Geometry{BoundingBox: &types.BoundingBox{Width: 1, Height: 1}}},
		{
			BlockType:  types.BlockTypeSelectionElement,
			Confidence: aws.Float32(95),
			Geometry:   &types.Geometry{BoundingBox: &types.BoundingBox{Left: 0.05, Top: 0.2, Width: 0.1, Height: 0.2}},
		},
		{
			BlockType:   types.BlockTypeKeyValueSet,
			EntityTypes: []types.EntityType{types.EntityTypeValue},
			Geometry:    &types.Geometry{BoundingBox: &types.BoundingBox{Width: 0.5, Height: 0.5}},
		},
	}}}

	got, err := NewTextractDetector(client, logger.NewNop()).Detect(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "checkbox", got[0].Label)
	assert.Equal(t, models.Box{X1: 10, Y1: 20, X2: 30, Y2: 40}, got[0].Box)
	assert.InDelta(t, 0.95, got[0].Confidence, 1e-6)
	assert.Contains(t, client.in.FeatureTypes, types.FeatureTypeTables)
}

func TestLineDetectorFindsGridCells(t *testing.T) {
	img := whiteImage(120, 120)
	black := color.Gray{Y: 0}
	for _, y := range []int{10, 60, 110} {
		for x := 10; x <= 110; x++ {
			img.SetGray(x, y, black)
		}
	}
	for _, x := range []int{10, 110} {
		for y := 10; y <= 110; y++ {
			img.SetGray(x, y, black)
		}
	}

	got, err := NewLineDetector(60, 1).Detect(context.Background(), writePNG(t, img))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "table_cell", got[0].Label)
	assert.Equal(t, models.Box{X1: 10, Y1: 10, X2: 111, Y2: 61}, got[0].Box)
}

func TestNewDetectorLoader(t *testing.T) {
	load, err := NewDetectorLoader(DetectorConfig{Backend: "none"}, logger.NewNop())
	require.NoError(t, err)
	d, err := load(context.Background())
	require.NoError(t, err)
	assert.IsType(t, NoopDetector{}, d)

	_, err = NewDetectorLoader(DetectorConfig{Backend: "yolo"}, logger.NewNop())
	assert.Error(t, err)
}

func TestBuildChainHonorsFlags(t *testing.T) {
	assert.Empty(t, BuildChain(PreprocessConfig{}))

	cfg := DefaultPreprocessConfig()
	cfg.Threshold = true
	chain := BuildChain(cfg)
	out, err := applyChain(whiteImage(8, 8), chain)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), out.Bounds())
}
