// Package stabilizer removes camera shake by averaging recent frame-to-frame
// transforms and warping each frame by the inverse of that average.
package stabilizer

import (
	"github.com/rs/zerolog"

	"steadytrack/frame"
)

// Config holds stabilizer settings.
type Config struct {
	MaxHistory int
}

// DefaultConfig returns the default stabilizer configuration.
func DefaultConfig() Config {
	return Config{
		MaxHistory: 15,
	}
}

// Estimator finds the transform mapping prev onto curr. It reports false
// when no transform could be estimated.
type Estimator[F any] interface {
	Estimate(prev, curr F) (Transform, bool)
}

// Warper applies a projective transform to src and returns a new frame of
// the same size.
type Warper[F any] interface {
	Warp(src F, m Transform) (F, error)
}

// Stabilizer owns the transform history and the previous processed image.
// It is not safe for concurrent use; the capture loop owns it.
type Stabilizer[F any] struct {
	est     Estimator[F]
	warp    Warper[F]
	ops     frame.Ops[F]
	log     zerolog.Logger
	history *History

	prev    F
	hasPrev bool
}

// New creates a stabilizer.
func New[F any](cfg Config, est Estimator[F], warp Warper[F], ops frame.Ops[F], log zerolog.Logger) *Stabilizer[F] {
	return &Stabilizer[F]{
		est:     est,
		warp:    warp,
		ops:     ops,
		log:     log.With().Str("component", "stabilizer").Logger(),
		history: NewHistory(cfg.MaxHistory),
	}
}

// Stabilize takes ownership of raw and gray and returns the output frame,
// which the caller owns. gray becomes the reference for the next call
// whether or not estimation succeeds. With an empty history raw is
// returned unchanged.
func (s *Stabilizer[F]) Stabilize(raw, gray F) F {
	if s.hasPrev {
		if t, ok := s.est.Estimate(s.prev, gray); ok {
			if n, ok := t.Normalize(); ok {
				s.history.Push(n)
			} else {
				s.log.Debug().Msg("non-finite transform rejected")
			}
		} else {
			s.log.Debug().Msg("motion estimation failed")
		}
		s.ops.Free(s.prev)
	}
	s.prev = gray
	s.hasPrev = true

	avg, ok := s.history.Mean()
	if !ok {
		return raw
	}
	inv, err := avg.Inverse()
	if err != nil {
		s.log.Debug().Err(err).Msg("averaged transform not invertible")
		return raw
	}
	out, err := s.warp.Warp(raw, inv)
	if err != nil {
		s.log.Warn().Err(err).Msg("warp failed")
		return raw
	}
	s.ops.Free(raw)
	return out
}

// Reset discards the previous image and clears the history.
func (s *Stabilizer[F]) Reset() {
	if s.hasPrev {
		s.ops.Free(s.prev)
	}
	var zero F
	s.prev = zero
	s.hasPrev = false
	s.history.Reset()
}

// History exposes the transform window for inspection.
func (s *Stabilizer[F]) History() *History {
	return s.history
}

// Close releases the retained reference image.
func (s *Stabilizer[F]) Close() {
	s.Reset()
}
