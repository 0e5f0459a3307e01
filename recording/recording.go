// Package recording writes the rendered output to a video file.
package recording

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// Config holds video recording settings.
type Config struct {
	Dir    string   `toml:"dir"`
	FPS    float64  `toml:"fps"`
	Codecs []string `toml:"codecs"`
}

// DefaultConfig returns the default recording configuration.
func DefaultConfig() Config {
	return Config{
		Dir:    ".",
		FPS:    30.0,
		Codecs: []string{"H264", "avc1", "x264", "mp4v"},
	}
}

var errNotRecording = errors.New("no active recording")

// Recorder records rendered frames. Toggling on arms it; the file is opened
// on the next frame so its size is known.
type Recorder struct {
	cfg      Config
	log      zerolog.Logger
	now      func() time.Time
	armed    bool
	vw       *gocv.VideoWriter
	filename string
	started  time.Time
}

// New creates an idle recorder.
func New(cfg Config, log zerolog.Logger) *Recorder {
	return &Recorder{
		cfg: cfg,
		log: log.With().Str("component", "recording").Logger(),
		now: time.Now,
	}
}

// Toggle starts or stops recording.
func (r *Recorder) Toggle() error {
	if r.armed {
		return r.Stop()
	}
	r.armed = true
	r.started = r.now()
	r.filename = r.nextFilename()
	return nil
}

// Stop closes the current file.
func (r *Recorder) Stop() error {
	if !r.armed {
		return errNotRecording
	}
	r.armed = false
	if r.vw == nil {
		return nil
	}
	vw := r.vw
	r.vw = nil
	if err := vw.Close(); err != nil {
		return fmt.Errorf("close video writer: %w", err)
	}
	r.log.Info().Str("file", r.filename).Dur("duration", r.now().Sub(r.started)).Msg("recording stopped")
	return nil
}

// Write appends frame when recording, opening the file on first use.
func (r *Recorder) Write(frame gocv.Mat) error {
	if !r.armed {
		return nil
	}
	if r.vw == nil {
		if err := r.open(frame.Cols(), frame.Rows()); err != nil {
			r.armed = false
			return err
		}
	}
	return r.vw.Write(frame)
}

func (r *Recorder) open(width, height int) error {
	var (
		vw    *gocv.VideoWriter
		err   error
		codec string
	)
	for _, fourcc := range r.cfg.Codecs {
		vw, err = gocv.VideoWriterFile(r.filename, fourcc, r.cfg.FPS, width, height, true)
		if err == nil && vw.IsOpened() {
			codec = fourcc
			break
		}
		if vw != nil {
			vw.Close()
			vw = nil
		}
	}
	if vw == nil {
		return fmt.Errorf("could not create video writer with any of %v: %v", r.cfg.Codecs, err)
	}
	r.vw = vw
	r.log.Info().Str("file", r.filename).Str("codec", codec).Msg("recording started")
	return nil
}

func (r *Recorder) nextFilename() string {
	name := fmt.Sprintf("steadytrack_%s.mp4", r.now().Format("20060102_150405"))
	return filepath.Join(r.cfg.Dir, name)
}

// Recording reports whether recording is on.
func (r *Recorder) Recording() bool {
	return r.armed
}

// Duration returns how long the current recording has been running.
func (r *Recorder) Duration() time.Duration {
	if !r.armed {
		return 0
	}
	return r.now().Sub(r.started)
}

// Filename returns the current or last output file.
func (r *Recorder) Filename() string {
	return r.filename
}

// Close stops an active recording.
func (r *Recorder) Close() {
	if r.armed {
		if err := r.Stop(); err != nil {
			r.log.Warn().Err(err).Msg("stop recording")
		}
	}
}
