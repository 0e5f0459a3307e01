package playback

import (
	"context"
	"image"
	"math"
	"time"

	"github.com/rs/zerolog"

	"steadytrack/frame"
	"steadytrack/stabilizer"
	"steadytrack/tracking"
	"steadytrack/utils"
)

// Source yields captured frames. Next reports false once exhausted.
type Source[F any] interface {
	Next() (F, bool)
	// Live is true for cameras; recorded files are paced and can be frozen.
	Live() bool
	FPS() float64
	Size() image.Point
}

// Preprocessor produces the conditioned grayscale image used for motion
// estimation. The caller owns the returned image.
type Preprocessor[F any] interface {
	ToGray(frame F) F
}

// Renderer displays a frame. It must not retain frame after returning.
type Renderer[F any] interface {
	Render(frame F, view View)
}

// Input services user interaction once per iteration, waiting up to wait.
type Input interface {
	Poll(c Controls, wait time.Duration)
}

// Reloader returns updated tracking thresholds when they changed.
type Reloader interface {
	Reload() (tracking.Config, bool)
}

// Controls are the commands user input can issue.
type Controls interface {
	MovePointer(dx, dy int)
	SetPointer(p image.Point)
	ResizeSelection(delta int)
	ConfirmSelection()
	TogglePause()
	ResetTracking()
	Quit()
}

// View is what the renderer needs to draw one frame.
type View struct {
	Mode         Mode
	State        tracking.State
	Box          image.Rectangle
	Pointer      image.Point
	Selection    image.Rectangle
	Initializing bool
	Backlog      int
	FPS          float64
}

// Config holds the playback settings and the settings of the stages the
// controller builds.
type Config struct {
	Stabilizer stabilizer.Config
	Tracking   tracking.Config

	// BacklogCapacity bounds the catch-up buffer. Zero derives it from
	// BufferSeconds * max(MinFPS, source FPS).
	BacklogCapacity int
	BufferSeconds   float64
	MinFPS          float64
	Overflow        OverflowPolicy
	// CatchUpBatch is how many buffered frames are processed per iteration
	// in catch-up mode.
	CatchUpBatch int
	// InitQueueCapacity bounds waiting init requests; zero is unbounded.
	InitQueueCapacity int

	SelectionWidth  int
	SelectionHeight int
	MinSelection    int
	// PaceFiles plays recorded sources at their native frame interval.
	PaceFiles bool
}

// DefaultConfig returns the default playback configuration.
func DefaultConfig() Config {
	return Config{
		Stabilizer:        stabilizer.DefaultConfig(),
		Tracking:          tracking.DefaultConfig(),
		BufferSeconds:     2,
		MinFPS:            30,
		Overflow:          DropOldest,
		CatchUpBatch:      2,
		InitQueueCapacity: 4,
		SelectionWidth:    80,
		SelectionHeight:   80,
		MinSelection:      20,
		PaceFiles:         true,
	}
}

// Deps are the external collaborators of the controller.
type Deps[F any] struct {
	Source       Source[F]
	Preprocessor Preprocessor[F]
	Estimator    stabilizer.Estimator[F]
	Warper       stabilizer.Warper[F]
	Trackers     tracking.Factory[F]
	Renderer     Renderer[F]
	Input        Input
	Ops          frame.Ops[F]
	// Reloader is optional.
	Reloader Reloader
}

// Controller is the main loop. Apart from the init worker it owns, every
// method runs on the calling goroutine.
type Controller[F any] struct {
	cfg  Config
	deps Deps[F]
	log  zerolog.Logger
	now  func() time.Time

	stab    *stabilizer.Stabilizer[F]
	machine *tracking.Machine[F]
	handoff *tracking.Handoff[F]
	worker  *tracking.Worker[F]
	backlog *Backlog[F]

	current  slot[F]
	last     slot[F]
	snapshot slot[F]

	paused   bool
	quit     bool
	pointer  image.Point
	selW     int
	selH     int
	bounds   image.Rectangle
	interval time.Duration
	iterAt   time.Time
	lastTick time.Time
	fps      float64
	stalls   int
}

// slot holds at most one owned frame.
type slot[F any] struct {
	f   F
	set bool
}

// New wires a controller. The init worker is started by Run.
func New[F any](cfg Config, deps Deps[F], log zerolog.Logger) *Controller[F] {
	stab := stabilizer.New(cfg.Stabilizer, deps.Estimator, deps.Warper, deps.Ops, log)
	handoff := &tracking.Handoff[F]{}
	c := &Controller[F]{
		cfg:     cfg,
		deps:    deps,
		log:     log.With().Str("component", "playback").Logger(),
		now:     time.Now,
		stab:    stab,
		machine: tracking.NewMachine[F](cfg.Tracking, stab, log),
		handoff: handoff,
		worker:  tracking.NewWorker(deps.Trackers, handoff, deps.Ops, cfg.InitQueueCapacity, log),
		selW:    cfg.SelectionWidth,
		selH:    cfg.SelectionHeight,
	}

	size := deps.Source.Size()
	if size.X > 0 && size.Y > 0 {
		c.bounds = image.Rect(0, 0, size.X, size.Y)
		c.pointer = image.Pt(size.X/2, size.Y/2)
	}

	fps := deps.Source.FPS()
	capacity := cfg.BacklogCapacity
	if capacity <= 0 {
		capacity = int(cfg.BufferSeconds * math.Max(cfg.MinFPS, fps))
	}
	c.backlog = NewBacklog(capacity, cfg.Overflow, deps.Ops)

	if cfg.PaceFiles && !deps.Source.Live() && fps > 1 {
		c.interval = time.Duration(float64(time.Second) / fps)
	}

	c.log.Info().
		Int("backlog", capacity).
		Str("overflow", cfg.Overflow.String()).
		Dur("interval", c.interval).
		Bool("live", deps.Source.Live()).
		Msg("playback ready")
	return c
}

// Run loops until the source is exhausted, the user quits or ctx is done.
func (c *Controller[F]) Run(ctx context.Context) error {
	c.worker.Start()
	for {
		if ctx.Err() != nil {
			c.log.Info().Msg("cancelled")
			return nil
		}
		if !c.Step() {
			return nil
		}
	}
}

// Step runs one loop iteration and reports whether the loop should go on.
func (c *Controller[F]) Step() bool {
	if c.quit {
		return false
	}
	c.iterAt = c.now()

	c.applyReload()
	c.swapPending()

	if !c.capture() {
		c.log.Info().Msg("source exhausted")
		return false
	}

	switch c.Mode() {
	case Paused:
		c.handlePaused()
	case CatchUp:
		c.handleCatchUp()
	default:
		c.handleLive()
	}

	if c.deps.Input != nil {
		c.deps.Input.Poll(c, c.wait())
	}
	return !c.quit
}

// Mode returns the mode the next iteration will use.
func (c *Controller[F]) Mode() Mode {
	switch {
	case c.paused:
		return Paused
	case c.backlog.Len() > 0:
		return CatchUp
	default:
		return Live
	}
}

func (c *Controller[F]) applyReload() {
	if c.deps.Reloader == nil {
		return
	}
	if cfg, ok := c.deps.Reloader.Reload(); ok {
		c.machine.SetConfig(cfg)
		c.log.Info().
			Int("confirm_lost", cfg.ConfirmLost).
			Int("max_lost", cfg.MaxLost).
			Float64("confidence_threshold", cfg.ConfidenceThreshold).
			Msg("tracking thresholds reloaded")
	}
}

// swapPending promotes a published candidate to the active tracker.
func (c *Controller[F]) swapPending() {
	cand, ok := c.handoff.TakePendingIfAny()
	if !ok {
		return
	}
	c.machine.Activate(cand.Tracker, cand.Box)
	c.log.Info().Str("request", cand.RequestID.String()).Msg("tracker swapped in")
}

// capture pulls and stabilizes the next frame into the current slot. It
// returns false only when the source is exhausted.
func (c *Controller[F]) capture() bool {
	if c.paused && !c.deps.Source.Live() {
		return true
	}
	if c.cfg.Overflow == StallCapture && c.backlog.Full() {
		c.stalls++
		return true
	}

	raw, ok := c.deps.Source.Next()
	if !ok {
		return false
	}
	gray := c.deps.Preprocessor.ToGray(raw)
	c.put(&c.current, c.stab.Stabilize(raw, gray))
	c.tickFPS()
	return true
}

func (c *Controller[F]) handlePaused() {
	if f, ok := c.take(&c.current); ok {
		c.buffer(f)
	}
	if c.snapshot.set {
		c.deps.Renderer.Render(c.snapshot.f, c.view())
	}
}

func (c *Controller[F]) handleCatchUp() {
	if f, ok := c.take(&c.current); ok {
		c.buffer(f)
	}
	batch := c.cfg.CatchUpBatch
	if batch < 1 {
		batch = 1
	}
	for i := 0; i < batch; i++ {
		f, ok := c.backlog.Pop()
		if !ok {
			break
		}
		c.process(f)
	}
	c.renderLast()
}

func (c *Controller[F]) handleLive() {
	if f, ok := c.take(&c.current); ok {
		c.process(f)
	}
	c.renderLast()
}

func (c *Controller[F]) buffer(f F) {
	before := c.backlog.Dropped()
	if !c.backlog.Push(f) {
		c.deps.Ops.Free(f)
		return
	}
	if c.backlog.Dropped() != before {
		c.log.Debug().Int("dropped", c.backlog.Dropped()).Msg("backlog full, oldest frame dropped")
	}
}

// process runs one frame through the tracking state machine. While an
// initialization is in flight the update is skipped.
func (c *Controller[F]) process(f F) {
	c.put(&c.last, f)
	if c.handoff.Initializing() {
		return
	}
	if c.machine.State() != tracking.Idle {
		c.machine.Step(f)
	}
}

func (c *Controller[F]) renderLast() {
	if c.last.set {
		c.deps.Renderer.Render(c.last.f, c.view())
	}
}

func (c *Controller[F]) view() View {
	return View{
		Mode:         c.Mode(),
		State:        c.machine.State(),
		Box:          c.machine.Box(),
		Pointer:      c.pointer,
		Selection:    c.Selection(),
		Initializing: c.handoff.Initializing(),
		Backlog:      c.backlog.Len(),
		FPS:          c.fps,
	}
}

// wait is how long input may block: the rest of the frame interval for
// paced files, otherwise the minimum.
func (c *Controller[F]) wait() time.Duration {
	const minWait = time.Millisecond
	if c.paused {
		return 30 * time.Millisecond
	}
	if c.interval == 0 || c.Mode() == CatchUp {
		return minWait
	}
	remaining := c.interval - c.now().Sub(c.iterAt)
	if remaining < minWait {
		return minWait
	}
	return remaining
}

func (c *Controller[F]) tickFPS() {
	now := c.now()
	if !c.lastTick.IsZero() {
		if dt := now.Sub(c.lastTick).Seconds(); dt > 0 {
			inst := 1 / dt
			if c.fps == 0 {
				c.fps = inst
			} else {
				c.fps = 0.9*c.fps + 0.1*inst
			}
		}
	}
	c.lastTick = now
}

func (c *Controller[F]) put(s *slot[F], f F) {
	if s.set {
		c.deps.Ops.Free(s.f)
	}
	s.f = f
	s.set = true
}

func (c *Controller[F]) take(s *slot[F]) (F, bool) {
	var zero F
	if !s.set {
		return zero, false
	}
	f := s.f
	s.f = zero
	s.set = false
	return f, true
}

func (c *Controller[F]) clear(s *slot[F]) {
	if f, ok := c.take(s); ok {
		c.deps.Ops.Free(f)
	}
}

// Selection returns the selection rectangle centred on the pointer.
func (c *Controller[F]) Selection() image.Rectangle {
	return utils.SelectionRect(c.pointer, c.selW, c.selH, c.bounds)
}

// MovePointer moves the pointer by (dx, dy).
func (c *Controller[F]) MovePointer(dx, dy int) {
	c.SetPointer(c.pointer.Add(image.Pt(dx, dy)))
}

// SetPointer places the pointer, clamped to the frame.
func (c *Controller[F]) SetPointer(p image.Point) {
	c.pointer = utils.ClampPoint(p, c.bounds)
}

// ResizeSelection grows or shrinks the selection box by delta pixels.
func (c *Controller[F]) ResizeSelection(delta int) {
	maxW, maxH := math.MaxInt32, math.MaxInt32
	if !c.bounds.Empty() {
		maxW, maxH = c.bounds.Dx(), c.bounds.Dy()
	}
	c.selW = utils.ClampInt(c.selW+delta, c.cfg.MinSelection, maxW)
	c.selH = utils.ClampInt(c.selH+delta, c.cfg.MinSelection, maxH)
}

// ConfirmSelection submits an initialization request for the selection on
// the frozen frame when paused, otherwise on the latest processed frame.
func (c *Controller[F]) ConfirmSelection() {
	src := c.last
	if c.paused {
		src = c.snapshot
	}
	if !src.set {
		c.log.Debug().Msg("no frame to initialize on")
		return
	}
	if _, ok := c.worker.Submit(src.f, c.Selection()); !ok {
		c.log.Warn().Msg("init worker closed, request dropped")
	}
}

// TogglePause freezes or resumes playback. Frames captured while paused
// from a live source are buffered and drained in catch-up mode.
func (c *Controller[F]) TogglePause() {
	c.paused = !c.paused
	if c.paused {
		if c.last.set {
			c.put(&c.snapshot, c.deps.Ops.Copy(c.last.f))
		}
		c.log.Info().Msg("paused")
		return
	}
	c.clear(&c.snapshot)
	c.log.Info().Int("backlog", c.backlog.Len()).Msg("resumed")
}

// ResetTracking drops the active tracker and the motion history.
func (c *Controller[F]) ResetTracking() {
	c.machine.Release()
	c.stab.Reset()
	c.log.Info().Msg("tracking reset")
}

// Quit ends the loop after the current iteration.
func (c *Controller[F]) Quit() {
	c.quit = true
}

// State returns the tracking state.
func (c *Controller[F]) State() tracking.State {
	return c.machine.State()
}

// Machine exposes the tracking state machine.
func (c *Controller[F]) Machine() *tracking.Machine[F] {
	return c.machine
}

// Backlog exposes the catch-up buffer.
func (c *Controller[F]) Backlog() *Backlog[F] {
	return c.backlog
}

// Stabilizer exposes the stabilization engine.
func (c *Controller[F]) Stabilizer() *stabilizer.Stabilizer[F] {
	return c.stab
}

// Initializing reports whether an init request is outstanding.
func (c *Controller[F]) Initializing() bool {
	return c.handoff.Initializing()
}

// Stalls counts iterations that skipped capture because the backlog was full.
func (c *Controller[F]) Stalls() int {
	return c.stalls
}

// Close stops the init worker, then releases the tracker and every frame
// the controller still holds.
func (c *Controller[F]) Close() {
	c.worker.Close()
	c.machine.Release()
	c.stab.Close()
	c.backlog.Clear()
	c.clear(&c.current)
	c.clear(&c.last)
	c.clear(&c.snapshot)
	c.log.Info().Msg("playback closed")
}
