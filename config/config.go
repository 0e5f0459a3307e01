// Package config assembles the runtime configuration from defaults, a TOML
// file, STEADYTRACK_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"steadytrack/cv"
	"steadytrack/input"
	"steadytrack/logging"
	"steadytrack/playback"
	"steadytrack/recording"
	"steadytrack/ui"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete runtime configuration.
type Config struct {
	Source     string
	LogLevel   string
	Tracker    string
	Playback   playback.Config
	Preprocess cv.PreprocessConfig
	Estimator  cv.EstimatorConfig
	UI         ui.Config
	Input      input.Config
	Recording  recording.Config
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		LogLevel:   "info",
		Tracker:    cv.TrackerCSRT,
		Playback:   playback.DefaultConfig(),
		Preprocess: cv.DefaultPreprocessConfig(),
		Estimator:  cv.DefaultEstimatorConfig(),
		UI:         ui.DefaultConfig(),
		Input:      input.DefaultConfig(),
		Recording:  recording.DefaultConfig(),
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Source == "" {
		return invalid("source is required (camera id or video file)")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return invalid("%v", err)
	}
	if _, err := cv.TrackerFactory(c.Tracker); err != nil {
		return invalid("%v", err)
	}

	p := c.Playback
	if p.Stabilizer.MaxHistory < 1 {
		return invalid("max history must be at least 1")
	}
	t := p.Tracking
	if t.ConfirmLost < 1 {
		return invalid("confirm-lost must be at least 1")
	}
	if t.MaxLost < 1 {
		return invalid("max-lost must be at least 1")
	}
	if t.WarmupFrames < 0 {
		return invalid("warmup frames must not be negative")
	}
	if t.IoUThreshold < 0 || t.IoUThreshold > 1 {
		return invalid("iou threshold must be within [0, 1]")
	}
	if t.ConfidenceThreshold < 0 {
		return invalid("confidence threshold must not be negative")
	}
	if p.BacklogCapacity < 0 {
		return invalid("backlog capacity must not be negative")
	}
	if p.BacklogCapacity == 0 && (p.BufferSeconds <= 0 || p.MinFPS <= 0) {
		return invalid("buffer seconds and min fps must be positive when backlog capacity is derived")
	}
	if p.CatchUpBatch < 1 {
		return invalid("catch-up batch must be at least 1")
	}
	if p.InitQueueCapacity < 0 {
		return invalid("init queue capacity must not be negative")
	}
	if p.MinSelection < 1 || p.SelectionWidth < p.MinSelection || p.SelectionHeight < p.MinSelection {
		return invalid("selection size must be at least %d", p.MinSelection)
	}

	if s := c.Preprocess.Scale; s <= 0 || s > 1 {
		return invalid("preprocess scale must be within (0, 1]")
	}
	if c.Preprocess.TileGrid < 1 {
		return invalid("clahe tile grid must be at least 1")
	}
	if r := c.Estimator.Ratio; r <= 0 || r >= 1 {
		return invalid("match ratio must be within (0, 1)")
	}
	if c.Estimator.MinMatches < 4 {
		return invalid("a homography needs at least 4 matches")
	}
	if c.Recording.FPS <= 0 {
		return invalid("recording fps must be positive")
	}
	if len(c.Recording.Codecs) == 0 {
		return invalid("at least one recording codec is required")
	}
	return nil
}

// configSetter applies values unless the matching flag was set explicitly.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setOverflow(flag, value string, dst *playback.OverflowPolicy) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	p, err := playback.ParseOverflowPolicy(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = p
	return nil
}

func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

func (s *configSetter) setBoolFromString(flag, value string, dst *bool) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = b
	return nil
}

// DefaultConfigPath returns ~/.steadytrack/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".steadytrack", "config.toml")
	}
	return ""
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
