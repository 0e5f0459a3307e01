package ui

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"steadytrack/playback"
	"steadytrack/tracking"
)

var (
	Blue   = color.RGBA{B: 255}
	Red    = color.RGBA{R: 255}
	Green  = color.RGBA{G: 255}
	Yellow = color.RGBA{R: 255, G: 255}
	Orange = color.RGBA{R: 255, G: 165}
	White  = color.RGBA{R: 255, G: 255, B: 255}
	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 120}
)

// Config holds UI settings.
type Config struct {
	WindowTitle    string  `toml:"window_title"`
	Headless       bool    `toml:"headless"`
	Debug          bool    `toml:"debug"`
	ShowLegend     bool    `toml:"show_legend"`
	MaxDebugLines  int     `toml:"max_debug_lines"`
	HelpFontSize   float64 `toml:"help_font_size"`
	StatusFontSize float64 `toml:"status_font_size"`
	DebugFontSize  float64 `toml:"debug_font_size"`
	HelpOffsetY    int     `toml:"help_offset_y"`
}

// DefaultConfig returns the default UI configuration.
func DefaultConfig() Config {
	return Config{
		WindowTitle:    "steadytrack",
		ShowLegend:     true,
		MaxDebugLines:  10,
		HelpFontSize:   0.9,
		StatusFontSize: 1.5,
		DebugFontSize:  0.8,
		HelpOffsetY:    60,
	}
}

const legendText = "p/space=pause  arrows/ijkl=move  +/-=size  enter=track  r=reset  v=rec  d=debug  q=quit"

// stateColor is the box colour for a tracking state.
func stateColor(s tracking.State) color.RGBA {
	switch s {
	case tracking.Tracking:
		return Green
	case tracking.Lost:
		return Orange
	default:
		return Red
	}
}

// statusText is the top-left status line.
func statusText(v playback.View) string {
	text := fmt.Sprintf("%s | %s", v.State, v.Mode)
	if v.Backlog > 0 {
		text += fmt.Sprintf(" | backlog %d", v.Backlog)
	}
	if v.FPS > 0 {
		text += fmt.Sprintf(" | %.1f fps", v.FPS)
	}
	return text
}

// recordingText formats the recording timer as REC mm:ss.
func recordingText(d time.Duration) string {
	return fmt.Sprintf("REC %02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// truncate shortens s to at most n runes, marking the cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// dashes splits the segment a-b into dash-long pieces with equal gaps.
func dashes(a, b image.Point, dash int) [][2]image.Point {
	if dash < 1 {
		dash = 1
	}
	d := b.Sub(a)
	length := max(abs(d.X), abs(d.Y))
	if length == 0 {
		return nil
	}
	var out [][2]image.Point
	for start := 0; start < length; start += 2 * dash {
		end := min(start+dash, length)
		out = append(out, [2]image.Point{
			a.Add(d.Mul(start).Div(length)),
			a.Add(d.Mul(end).Div(length)),
		})
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// drawer draws overlays onto a canvas, logging failures instead of
// interrupting the frame.
type drawer struct {
	canvas *gocv.Mat
	cfg    Config
	log    zerolog.Logger
}

func (d drawer) rect(r image.Rectangle, c color.RGBA, thickness int) {
	if err := gocv.Rectangle(d.canvas, r, c, thickness); err != nil {
		d.log.Debug().Err(err).Msg("draw rectangle")
	}
}

func (d drawer) text(s string, at image.Point, scale float64, c color.RGBA, thickness int) {
	if err := gocv.PutText(d.canvas, s, at, gocv.FontHersheyPlain, scale, c, thickness); err != nil {
		d.log.Debug().Err(err).Msg("draw text")
	}
}

func (d drawer) line(a, b image.Point, c color.RGBA, thickness int) {
	if err := gocv.Line(d.canvas, a, b, c, thickness); err != nil {
		d.log.Debug().Err(err).Msg("draw line")
	}
}

// DrawTrackingBox draws the tracked box coloured by state.
func (d drawer) DrawTrackingBox(v playback.View) {
	if v.State == tracking.Idle || v.Box.Empty() {
		return
	}
	d.rect(v.Box, stateColor(v.State), 3)
}

// DrawSelection draws the dashed selection box and a crosshair at the
// pointer.
func (d drawer) DrawSelection(v playback.View) {
	r := v.Selection
	corners := []image.Point{r.Min, image.Pt(r.Max.X, r.Min.Y), r.Max, image.Pt(r.Min.X, r.Max.Y)}
	for i, a := range corners {
		b := corners[(i+1)%len(corners)]
		for _, seg := range dashes(a, b, 6) {
			d.line(seg[0], seg[1], Yellow, 1)
		}
	}
	p := v.Pointer
	d.line(image.Pt(p.X-10, p.Y), image.Pt(p.X+10, p.Y), Yellow, 1)
	d.line(image.Pt(p.X, p.Y-10), image.Pt(p.X, p.Y+10), Yellow, 1)
}

// DrawStatus draws the state, mode, backlog and FPS readout.
func (d drawer) DrawStatus(v playback.View) {
	d.text(statusText(v), image.Pt(10, 30), d.cfg.StatusFontSize, stateColor(v.State), 2)
}

// DrawBanner draws the initialization banner centred on the frame.
func (d drawer) DrawBanner() {
	const banner = "INITIALIZING TRACKER..."
	size := gocv.GetTextSize(banner, gocv.FontHersheyPlain, d.cfg.StatusFontSize, 2)
	at := image.Pt((d.canvas.Cols()-size.X)/2, d.canvas.Rows()/2)
	d.rect(image.Rect(at.X-10, at.Y-size.Y-10, at.X+size.X+10, at.Y+10), Black, -1)
	d.text(banner, at, d.cfg.StatusFontSize, Yellow, 2)
}

// DrawRecordingStatus draws the recording timer.
func (d drawer) DrawRecordingStatus(elapsed time.Duration) {
	d.text(recordingText(elapsed), image.Pt(10, 60), d.cfg.StatusFontSize, Red, 2)
}

// DrawHelpText draws the key legend in the bottom corner.
func (d drawer) DrawHelpText() {
	helpY := d.canvas.Rows() - d.cfg.HelpOffsetY
	size := gocv.GetTextSize(legendText, gocv.FontHersheyPlain, d.cfg.HelpFontSize, 1)
	d.rect(image.Rect(5, helpY-5, size.X+15, helpY+size.Y+5), Black, -1)
	d.text(legendText, image.Pt(10, helpY+10), d.cfg.HelpFontSize, White, 1)
}

// DrawDebugLogs draws the most recent log lines on the right side.
func (d drawer) DrawDebugLogs(lines []string) {
	if len(lines) == 0 {
		return
	}
	if n := d.cfg.MaxDebugLines; n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	const (
		startY     = 100
		lineHeight = 20
		maxWidth   = 400
		padding    = 10
	)
	frameWidth := d.canvas.Cols()
	height := (len(lines)+1)*lineHeight + padding*2
	d.rect(image.Rect(frameWidth-maxWidth-padding, startY-lineHeight-padding, frameWidth-padding, startY+height-lineHeight-padding), Black, -1)

	d.text(fmt.Sprintf("Debug Logs (%d):", len(lines)), image.Pt(frameWidth-maxWidth, startY), d.cfg.DebugFontSize, Yellow, 1)
	for i, line := range lines {
		y := startY + (i+1)*lineHeight
		d.text(truncate(line, 50), image.Pt(frameWidth-maxWidth, y), d.cfg.DebugFontSize, White, 1)
	}
}
