package cv

import (
	"image"

	"gocv.io/x/gocv"
)

// PreprocessConfig tunes the grayscale conditioning used for estimation.
type PreprocessConfig struct {
	// Scale is applied before CLAHE and undone afterwards.
	Scale       float64 `toml:"scale"`
	ClipLimit   float64 `toml:"clip_limit"`
	TileGrid    int     `toml:"tile_grid"`
	MedianKsize int     `toml:"median_ksize"`
}

func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{
		Scale:       0.5,
		ClipLimit:   2.0,
		TileGrid:    8,
		MedianKsize: 3,
	}
}

// Preprocessor converts frames to contrast-equalized, denoised grayscale.
type Preprocessor struct {
	cfg   PreprocessConfig
	clahe gocv.CLAHE
}

func NewPreprocessor(cfg PreprocessConfig) *Preprocessor {
	return &Preprocessor{
		cfg:   cfg,
		clahe: gocv.NewCLAHEWithParams(cfg.ClipLimit, image.Pt(cfg.TileGrid, cfg.TileGrid)),
	}
}

// ToGray returns a new single-channel image the size of m.
func (p *Preprocessor) ToGray(m gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if m.Channels() == 1 {
		m.CopyTo(&gray)
	} else {
		gocv.CvtColor(m, &gray, gocv.ColorBGRToGray)
	}

	full := image.Pt(gray.Cols(), gray.Rows())
	scaled := gray
	if p.cfg.Scale > 0 && p.cfg.Scale < 1 {
		scaled = gocv.NewMat()
		gocv.Resize(gray, &scaled, image.Pt(0, 0), p.cfg.Scale, p.cfg.Scale, gocv.InterpolationArea)
		gray.Close()
	}

	equalized := gocv.NewMat()
	p.clahe.Apply(scaled, &equalized)
	scaled.Close()

	if p.cfg.MedianKsize >= 3 && p.cfg.MedianKsize%2 == 1 {
		blurred := gocv.NewMat()
		gocv.MedianBlur(equalized, &blurred, p.cfg.MedianKsize)
		equalized.Close()
		equalized = blurred
	}

	if equalized.Cols() == full.X && equalized.Rows() == full.Y {
		return equalized
	}
	out := gocv.NewMat()
	gocv.Resize(equalized, &out, full, 0, 0, gocv.InterpolationLinear)
	equalized.Close()
	return out
}

func (p *Preprocessor) Close() error {
	return p.clahe.Close()
}
