package cv

import (
	"errors"
	"fmt"
	"image"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// ErrSourceUnavailable is returned when a camera or file cannot be opened.
var ErrSourceUnavailable = errors.New("video source unavailable")

// Capture is a camera or video file.
type Capture struct {
	vc   *gocv.VideoCapture
	name string
	live bool
	fps  float64
	size image.Point
	log  zerolog.Logger
}

// OpenCapture opens device, which is an existing file path or a camera id.
func OpenCapture(device string, log zerolog.Logger) (*Capture, error) {
	log = log.With().Str("component", "capture").Logger()

	var (
		vc   *gocv.VideoCapture
		err  error
		live bool
	)
	if _, statErr := os.Stat(device); statErr == nil {
		vc, err = gocv.VideoCaptureFile(device)
	} else {
		id, convErr := strconv.Atoi(device)
		if convErr != nil {
			return nil, fmt.Errorf("%w: %q is neither a file nor a camera id", ErrSourceUnavailable, device)
		}
		vc, err = gocv.VideoCaptureDevice(id)
		live = true
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, device)
	}

	c := &Capture{
		vc:   vc,
		name: device,
		live: live,
		fps:  vc.Get(gocv.VideoCaptureFPS),
		size: image.Pt(
			int(vc.Get(gocv.VideoCaptureFrameWidth)),
			int(vc.Get(gocv.VideoCaptureFrameHeight)),
		),
		log: log,
	}
	log.Info().
		Str("source", device).
		Bool("live", live).
		Float64("fps", c.fps).
		Int("width", c.size.X).
		Int("height", c.size.Y).
		Msg("source opened")
	return c, nil
}

// Next reads the next frame. It reports false at end of stream.
func (c *Capture) Next() (gocv.Mat, bool) {
	m := gocv.NewMat()
	if ok := c.vc.Read(&m); !ok || m.Empty() {
		m.Close()
		return gocv.Mat{}, false
	}
	if c.size.X == 0 || c.size.Y == 0 {
		c.size = image.Pt(m.Cols(), m.Rows())
	}
	return m, true
}

func (c *Capture) Live() bool { return c.live }

func (c *Capture) FPS() float64 { return c.fps }

func (c *Capture) Size() image.Point { return c.size }

// Close releases the device.
func (c *Capture) Close() error {
	c.log.Debug().Str("source", c.name).Msg("source closed")
	return c.vc.Close()
}
