package cv

import (
	"math"

	"gocv.io/x/gocv"

	"steadytrack/stabilizer"
)

// EstimatorConfig tunes feature matching and robust homography fitting.
type EstimatorConfig struct {
	FastThreshold   int     `toml:"fast_threshold"`
	NonMaxSuppress  bool    `toml:"non_max_suppression"`
	MinKeypoints    int     `toml:"min_keypoints"`
	MinMatches      int     `toml:"min_matches"`
	Ratio           float64 `toml:"ratio"`
	RansacThreshold float64 `toml:"ransac_threshold"`
	RansacIters     int     `toml:"ransac_iterations"`
	Confidence      float64 `toml:"confidence"`
}

func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		FastThreshold:   20,
		NonMaxSuppress:  true,
		MinKeypoints:    10,
		MinMatches:      8,
		Ratio:           0.75,
		RansacThreshold: 3.0,
		RansacIters:     2000,
		Confidence:      0.995,
	}
}

// HomographyEstimator finds the projective transform between two
// grayscale images: FAST keypoints, AKAZE descriptors, Hamming knn
// matching with a ratio test and RANSAC fitting.
type HomographyEstimator struct {
	cfg     EstimatorConfig
	fast    gocv.FastFeatureDetector
	akaze   gocv.AKAZE
	matcher gocv.BFMatcher
}

func NewHomographyEstimator(cfg EstimatorConfig) *HomographyEstimator {
	return &HomographyEstimator{
		cfg:     cfg,
		fast:    gocv.NewFastFeatureDetectorWithParams(cfg.FastThreshold, cfg.NonMaxSuppress, gocv.FastFeatureDetectorType916),
		akaze:   gocv.NewAKAZE(),
		matcher: gocv.NewBFMatcherWithParams(gocv.NormHamming, false),
	}
}

// Estimate maps prev onto curr. It reports false when there is not enough
// texture or agreement to trust a fit.
func (e *HomographyEstimator) Estimate(prev, curr gocv.Mat) (stabilizer.Transform, bool) {
	k1, d1, ok := e.describe(prev)
	if !ok {
		return stabilizer.Transform{}, false
	}
	defer d1.Close()
	k2, d2, ok := e.describe(curr)
	if !ok {
		return stabilizer.Transform{}, false
	}
	defer d2.Close()

	good := ratioFilter(e.matcher.KnnMatch(d1, d2, 2), e.cfg.Ratio)
	if len(good) < e.cfg.MinMatches {
		return stabilizer.Transform{}, false
	}

	src := gocv.NewMatWithSize(len(good), 1, gocv.MatTypeCV64FC2)
	defer src.Close()
	dst := gocv.NewMatWithSize(len(good), 1, gocv.MatTypeCV64FC2)
	defer dst.Close()
	for i, m := range good {
		p, q := k1[m.QueryIdx], k2[m.TrainIdx]
		src.SetDoubleAt(i, 0, p.X)
		src.SetDoubleAt(i, 1, p.Y)
		dst.SetDoubleAt(i, 0, q.X)
		dst.SetDoubleAt(i, 1, q.Y)
	}

	mask := gocv.NewMat()
	defer mask.Close()
	h := gocv.FindHomography(src, &dst, gocv.HomographyMethodRANSAC, e.cfg.RansacThreshold, &mask, e.cfg.RansacIters, e.cfg.Confidence)
	defer h.Close()
	return transformFromMat(h)
}

func (e *HomographyEstimator) describe(img gocv.Mat) ([]gocv.KeyPoint, gocv.Mat, bool) {
	kps := e.fast.Detect(img)
	if len(kps) < e.cfg.MinKeypoints {
		return nil, gocv.Mat{}, false
	}
	mask := gocv.NewMat()
	defer mask.Close()
	kps, desc := e.akaze.Compute(img, mask, kps)
	if desc.Empty() || len(kps) < e.cfg.MinKeypoints {
		desc.Close()
		return nil, gocv.Mat{}, false
	}
	return kps, desc, true
}

func (e *HomographyEstimator) Close() error {
	e.fast.Close()
	e.akaze.Close()
	return e.matcher.Close()
}

// ratioFilter keeps the best match of each pair whose distance clearly beats
// the runner-up.
func ratioFilter(matches [][]gocv.DMatch, ratio float64) []gocv.DMatch {
	good := make([]gocv.DMatch, 0, len(matches))
	for _, m := range matches {
		if len(m) == 2 && m[0].Distance < ratio*m[1].Distance {
			good = append(good, m[0])
		}
	}
	return good
}

func transformFromMat(h gocv.Mat) (stabilizer.Transform, bool) {
	if h.Empty() || h.Rows() != 3 || h.Cols() != 3 {
		return stabilizer.Transform{}, false
	}
	var t stabilizer.Transform
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			v := h.GetDoubleAt(r, c)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return stabilizer.Transform{}, false
			}
			t[r*3+c] = v
		}
	}
	return t, true
}

func matFromTransform(t stabilizer.Transform) gocv.Mat {
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, t.At(r, c))
		}
	}
	return m
}
