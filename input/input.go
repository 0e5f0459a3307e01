// Package input maps keyboard events to playback commands.
package input

import (
	"time"

	"github.com/rs/zerolog"

	"steadytrack/playback"
)

// Key codes returned by the window event loop.
const (
	keyEnter    = 13
	keyEnterLF  = 10
	keyEsc      = 27
	keySpace    = ' '
	keyUp       = 0
	keyDown     = 1
	keyLeft     = 2
	keyRight    = 3
	keyLeftGTK  = 81
	keyUpGTK    = 82
	keyRightGTK = 83
	keyDownGTK  = 84
)

const (
	defaultStep   = 10
	defaultGrowth = 20
)

// KeySource waits up to delay ms for a key press and returns its code, or
// -1 when none arrived.
type KeySource interface {
	WaitKey(delay int) int
}

// Toggles are the display-side switches the keyboard can flip.
type Toggles interface {
	ToggleRecording()
	ToggleDebug()
}

// Config holds keyboard step sizes.
type Config struct {
	PointerStep int `toml:"pointer_step"`
	ResizeStep  int `toml:"resize_step"`
}

func DefaultConfig() Config {
	return Config{
		PointerStep: defaultStep,
		ResizeStep:  defaultGrowth,
	}
}

// Keyboard implements playback.Input.
type Keyboard struct {
	cfg     Config
	keys    KeySource
	toggles Toggles
	log     zerolog.Logger
}

// NewKeyboard creates a keyboard input. toggles may be nil.
func NewKeyboard(cfg Config, keys KeySource, toggles Toggles, log zerolog.Logger) *Keyboard {
	if cfg.PointerStep <= 0 {
		cfg.PointerStep = defaultStep
	}
	if cfg.ResizeStep <= 0 {
		cfg.ResizeStep = defaultGrowth
	}
	return &Keyboard{
		cfg:     cfg,
		keys:    keys,
		toggles: toggles,
		log:     log.With().Str("component", "input").Logger(),
	}
}

// Poll waits for at most one key press and applies it.
func (k *Keyboard) Poll(c playback.Controls, wait time.Duration) {
	delay := int(wait / time.Millisecond)
	if delay < 1 {
		delay = 1
	}
	key := k.keys.WaitKey(delay)
	if key < 0 {
		return
	}
	k.Handle(key&0xFF, c)
}

// Handle applies one key.
func (k *Keyboard) Handle(key int, c playback.Controls) {
	step := k.cfg.PointerStep
	switch key {
	case keyEsc, 'q':
		k.log.Info().Msg("quit requested")
		c.Quit()

	case 'p', keySpace:
		c.TogglePause()

	case keyUp, keyUpGTK, 'i':
		c.MovePointer(0, -step)
	case keyDown, keyDownGTK, 'k':
		c.MovePointer(0, step)
	case keyLeft, keyLeftGTK, 'j':
		c.MovePointer(-step, 0)
	case keyRight, keyRightGTK, 'l':
		c.MovePointer(step, 0)

	case '+', '=':
		c.ResizeSelection(k.cfg.ResizeStep)
	case '-', '_':
		c.ResizeSelection(-k.cfg.ResizeStep)

	case keyEnter, keyEnterLF:
		c.ConfirmSelection()

	case 'r':
		c.ResetTracking()

	case 'v':
		if k.toggles != nil {
			k.toggles.ToggleRecording()
		}
	case 'd':
		if k.toggles != nil {
			k.toggles.ToggleDebug()
		}
	}
}
