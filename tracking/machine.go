package tracking

import (
	"image"

	"github.com/rs/zerolog"
)

// Config holds the state machine thresholds.
type Config struct {
	// WarmupFrames is the number of updates after a hand-off during which
	// the drift veto is not evaluated.
	WarmupFrames int
	// IoUThreshold and ConfidenceThreshold must both be undercut for the
	// drift veto to turn a successful update into a failure.
	IoUThreshold        float64
	ConfidenceThreshold float64
	// ConfirmLost consecutive failures move Tracking to Lost.
	ConfirmLost int
	// MaxLost consecutive lost iterations move Lost to Idle.
	MaxLost int
	// ResumeOnRecovery keeps updating the tracker while Lost and returns to
	// Tracking on the first accepted update. When false only a fresh
	// hand-off leaves Lost.
	ResumeOnRecovery bool
}

// DefaultConfig returns the default tracking configuration.
func DefaultConfig() Config {
	return Config{
		WarmupFrames:        10,
		IoUThreshold:        0.10,
		ConfidenceThreshold: 0.35,
		ConfirmLost:         3,
		MaxLost:             45,
	}
}

// HistoryResetter is cleared whenever a new tracker is swapped in.
type HistoryResetter interface {
	Reset()
}

// Counters are the consecutive-event counters of the machine.
type Counters struct {
	Failures        int
	LostIterations  int
	FramesSinceInit int
}

// Result describes one Step.
type Result struct {
	State  State
	Box    image.Rectangle
	OK     bool
	Vetoed bool
}

// Machine is the Idle -> Tracking -> Lost -> Idle state machine. It is owned
// by the capture loop and not safe for concurrent use.
type Machine[F any] struct {
	cfg     Config
	history HistoryResetter
	log     zerolog.Logger

	state    State
	active   Tracker[F]
	box      image.Rectangle
	lastGood image.Rectangle
	counters Counters
	lastOK   bool
	lastVeto bool
}

// NewMachine creates an idle machine. history may be nil.
func NewMachine[F any](cfg Config, history HistoryResetter, log zerolog.Logger) *Machine[F] {
	return &Machine[F]{
		cfg:     cfg,
		history: history,
		log:     log.With().Str("component", "tracking").Logger(),
	}
}

// SetConfig replaces the thresholds. Counters are kept.
func (m *Machine[F]) SetConfig(cfg Config) {
	m.cfg = cfg
}

// Config returns the active thresholds.
func (m *Machine[F]) Config() Config {
	return m.cfg
}

// Activate promotes t to the active tracker locked on box. Any previous
// tracker is closed, counters are cleared and the motion history is reset.
func (m *Machine[F]) Activate(t Tracker[F], box image.Rectangle) {
	if m.active != nil {
		m.closeActive()
	}
	m.active = t
	m.state = Tracking
	m.box = box
	m.lastGood = box
	m.counters = Counters{}
	if m.history != nil {
		m.history.Reset()
	}
	m.log.Info().
		Int("x", box.Min.X).Int("y", box.Min.Y).
		Int("w", box.Dx()).Int("h", box.Dy()).
		Msg("tracker activated")
}

// Step advances the machine by one frame.
func (m *Machine[F]) Step(frame F) Result {
	switch m.state {
	case Tracking:
		m.stepTracking(frame)
	case Lost:
		m.stepLost(frame)
	}
	return Result{State: m.state, Box: m.box, OK: m.lastOK, Vetoed: m.lastVeto}
}

func (m *Machine[F]) stepTracking(frame F) {
	if !m.update(frame) {
		m.counters.Failures++
		if m.counters.Failures >= m.cfg.ConfirmLost {
			m.state = Lost
			m.log.Warn().Int("failures", m.counters.Failures).Msg("target lost")
			m.countLost()
		}
		return
	}
	m.accept()
}

func (m *Machine[F]) stepLost(frame F) {
	if !m.cfg.ResumeOnRecovery {
		m.lastOK, m.lastVeto = false, false
		m.countLost()
		return
	}
	if !m.update(frame) {
		m.counters.Failures++
		m.countLost()
		return
	}
	m.state = Tracking
	m.accept()
	m.log.Info().Msg("target reacquired")
}

// update runs the tracker and the drift veto and reports the final verdict.
func (m *Machine[F]) update(frame F) bool {
	m.counters.FramesSinceInit++
	m.lastVeto = false

	candidate, ok := m.active.Update(frame)
	if ok && m.counters.FramesSinceInit > m.cfg.WarmupFrames {
		conf := confidenceOf(m.active)
		if Drifted(m.lastGood, candidate, conf, m.cfg.IoUThreshold, m.cfg.ConfidenceThreshold) {
			m.log.Debug().
				Float64("iou", IoU(m.lastGood, candidate)).
				Float64("confidence", conf).
				Msg("drift veto")
			ok = false
			m.lastVeto = true
		}
	}
	m.lastOK = ok
	if ok {
		m.box = candidate
	}
	return ok
}

func (m *Machine[F]) accept() {
	m.counters.Failures = 0
	m.counters.LostIterations = 0
	m.lastGood = m.box
}

func (m *Machine[F]) countLost() {
	m.counters.LostIterations++
	if m.counters.LostIterations >= m.cfg.MaxLost {
		m.log.Warn().Int("lost_iterations", m.counters.LostIterations).Msg("target abandoned")
		m.Release()
	}
}

// Release closes the active tracker and returns to Idle.
func (m *Machine[F]) Release() {
	m.closeActive()
	m.state = Idle
	m.box = image.Rectangle{}
	m.counters = Counters{}
	m.lastOK, m.lastVeto = false, false
}

func (m *Machine[F]) closeActive() {
	if m.active == nil {
		return
	}
	if err := m.active.Close(); err != nil {
		m.log.Warn().Err(err).Msg("close tracker")
	}
	m.active = nil
}

// State returns the current state.
func (m *Machine[F]) State() State {
	return m.state
}

// Box returns the most recent accepted box.
func (m *Machine[F]) Box() image.Rectangle {
	return m.box
}

// LastGood returns the last-known-good box.
func (m *Machine[F]) LastGood() image.Rectangle {
	return m.lastGood
}

// Counters returns a snapshot of the counters.
func (m *Machine[F]) Counters() Counters {
	return m.counters
}

// HasTracker reports whether an active tracker is held.
func (m *Machine[F]) HasTracker() bool {
	return m.active != nil
}
