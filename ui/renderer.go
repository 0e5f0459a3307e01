// Package ui shows the stabilized frames with their overlays in a window.
package ui

import (
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"steadytrack/logging"
	"steadytrack/playback"
	"steadytrack/recording"
)

// Renderer draws overlays on a copy of each frame, records it when asked
// and shows it.
type Renderer struct {
	cfg    Config
	window *gocv.Window
	ring   *logging.Ring
	rec    *recording.Recorder
	log    zerolog.Logger
	debug  bool
}

// NewRenderer opens the window unless cfg.Headless is set. ring and rec may
// be nil.
func NewRenderer(cfg Config, ring *logging.Ring, rec *recording.Recorder, log zerolog.Logger) *Renderer {
	r := &Renderer{
		cfg:   cfg,
		ring:  ring,
		rec:   rec,
		log:   log.With().Str("component", "ui").Logger(),
		debug: cfg.Debug,
	}
	if !cfg.Headless {
		r.window = gocv.NewWindow(cfg.WindowTitle)
	}
	return r
}

// Render implements playback.Renderer.
func (r *Renderer) Render(frame gocv.Mat, v playback.View) {
	if frame.Empty() {
		return
	}
	canvas := frame.Clone()
	defer canvas.Close()

	d := drawer{canvas: &canvas, cfg: r.cfg, log: r.log}
	d.DrawTrackingBox(v)
	d.DrawSelection(v)
	d.DrawStatus(v)
	if v.Initializing {
		d.DrawBanner()
	}
	if r.rec != nil && r.rec.Recording() {
		d.DrawRecordingStatus(r.rec.Duration())
	}
	if r.cfg.ShowLegend {
		d.DrawHelpText()
	}
	if r.debug && r.ring != nil {
		d.DrawDebugLogs(r.ring.Lines())
	}

	if r.rec != nil {
		if err := r.rec.Write(canvas); err != nil {
			r.log.Warn().Err(err).Msg("recording error")
		}
	}
	if r.window != nil {
		r.window.IMShow(canvas)
	}
}

// WaitKey pumps window events for up to delay ms and returns the key
// pressed, or -1.
func (r *Renderer) WaitKey(delay int) int {
	if r.window == nil {
		time.Sleep(time.Duration(delay) * time.Millisecond)
		return -1
	}
	return r.window.WaitKey(delay)
}

// ToggleRecording starts or stops recording the rendered output.
func (r *Renderer) ToggleRecording() {
	if r.rec == nil {
		return
	}
	if err := r.rec.Toggle(); err != nil {
		r.log.Warn().Err(err).Msg("recording error")
	}
}

// ToggleDebug shows or hides the debug log panel.
func (r *Renderer) ToggleDebug() {
	r.debug = !r.debug
	if r.debug {
		r.log.Info().Msg("debug overlay enabled")
	} else {
		r.log.Info().Msg("debug overlay disabled")
	}
}

// Debug reports whether the debug panel is shown.
func (r *Renderer) Debug() bool {
	return r.debug
}

// Close stops recording and closes the window.
func (r *Renderer) Close() error {
	if r.rec != nil {
		r.rec.Close()
	}
	if r.window != nil {
		return r.window.Close()
	}
	return nil
}

// Instructions are the control hints logged at startup.
func Instructions() []string {
	return []string{
		"Move the selection with the arrow keys or i/j/k/l, resize it with +/-",
		"Press ENTER to start tracking the selection",
		"Press p or space to pause; selections on a paused frame track from that frame",
		"Press r to reset tracking",
		"Press v to start/stop video recording",
		"Press d to toggle the debug log panel",
		"Press q or ESC to quit",
	}
}
