package vision

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

// Preprocessor transforms an image before OCR.
type Preprocessor interface {
	Process(img image.Image) (image.Image, error)
}

// PreprocessConfig selects the steps of the OCR preprocessing chain.
type PreprocessConfig struct {
	Enabled           bool    `yaml:"enabled"`
	Denoise           bool    `yaml:"denoise"`
	DenoiseStrength   float64 `yaml:"denoise_strength"`
	ContrastNormalize bool    `yaml:"contrast_normalize"`
	Threshold         bool    `yaml:"threshold"`
	AdaptiveBlockSize int     `yaml:"adaptive_block_size"`
	AdaptiveConstant  float64 `yaml:"adaptive_constant"`
	Sharpen           bool    `yaml:"sharpen"`
	SharpenStrength   float64 `yaml:"sharpen_strength"`
}

// DefaultPreprocessConfig is a light chain that keeps screenshots legible.
func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{
		Enabled:           true,
		DenoiseStrength:   0.5,
		ContrastNormalize: true,
		AdaptiveBlockSize: 11,
		AdaptiveConstant:  2,
		Sharpen:           true,
		SharpenStrength:   0.5,
	}
}

// BuildChain returns the preprocessors enabled by cfg, in application order.
func BuildChain(cfg PreprocessConfig) []Preprocessor {
	if !cfg.Enabled {
		return nil
	}
	chain := []Preprocessor{grayscale{}}
	if cfg.Denoise {
		chain = append(chain, denoise{sigma: cfg.DenoiseStrength})
	}
	if cfg.ContrastNormalize {
		chain = append(chain, contrast{percentage: 20})
	}
	if cfg.Threshold {
		chain = append(chain, adaptiveThreshold{blockSize: cfg.AdaptiveBlockSize, constant: cfg.AdaptiveConstant})
	}
	if cfg.Sharpen {
		chain = append(chain, sharpen{sigma: cfg.SharpenStrength})
	}
	return chain
}

func applyChain(img image.Image, chain []Preprocessor) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}
	var err error
	result := img
	for _, p := range chain {
		result, err = p.Process(result)
		if err != nil {
			return nil, fmt.Errorf("preprocessing failed: %w", err)
		}
		if result == nil {
			return nil, fmt.Errorf("preprocessor returned nil image")
		}
	}
	return result, nil
}

type grayscale struct{}

func (grayscale) Process(img image.Image) (image.Image, error) {
	return imaging.Grayscale(img), nil
}

type denoise struct{ sigma float64 }

func (p denoise) Process(img image.Image) (image.Image, error) {
	return imaging.Blur(img, p.sigma), nil
}

type contrast struct{ percentage float64 }

func (p contrast) Process(img image.Image) (image.Image, error) {
	return imaging.AdjustContrast(img, p.percentage), nil
}

type sharpen struct{ sigma float64 }

func (p sharpen) Process(img image.Image) (image.Image, error) {
	return imaging.Sharpen(img, p.sigma), nil
}

// adaptiveThreshold binarizes against the mean of a blockSize window.
type adaptiveThreshold struct {
	blockSize int
	constant  float64
}

func (p adaptiveThreshold) Process(img image.Image) (image.Image, error) {
	gray := imaging.Grayscale(img)
	bounds := gray.Bounds()
	result := image.NewGray(bounds)
	draw.Draw(result, bounds, &image.Uniform{color.White}, image.Point{}, draw.Src)

	w, h := bounds.Dx(), bounds.Dy()
	// summed-area table over the luma channel
	integral := make([]int, (w+1)*(h+1))
	luma := func(x, y int) int { return int(gray.Pix[y*gray.Stride+x*4]) }
	for y := 0; y < h; y++ {
		row := 0
		for x := 0; x < w; x++ {
			row += luma(x, y)
			integral[(y+1)*(w+1)+x+1] = integral[y*(w+1)+x+1] + row
		}
	}

	half := p.blockSize / 2
	if half < 1 {
		half = 1
	}
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-half), min(h-1, y+half)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-half), min(w-1, x+half)
			count := (x1 - x0 + 1) * (y1 - y0 + 1)
			sum := integral[(y1+1)*(w+1)+x1+1] - integral[y0*(w+1)+x1+1] - integral[(y1+1)*(w+1)+x0] + integral[y0*(w+1)+x0]
			mean := float64(sum) / float64(count)
			if float64(luma(x, y)) < mean-p.constant {
				result.SetGray(bounds.Min.X+x, bounds.Min.Y+y, color.Gray{Y: 0})
			}
		}
	}
	return result, nil
}
