package config

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"steadytrack/tracking"
)

// Watcher reloads the tracking thresholds when the config file changes.
// It is polled by the capture loop and never blocks.
type Watcher struct {
	path    string
	base    Config
	changed map[string]bool
	fs      *fsnotify.Watcher
	log     zerolog.Logger
	current tracking.Config
}

// NewWatcher watches path. base is the configuration resolved at startup;
// reloads re-apply the file and the environment on top of it, so flags
// keep precedence.
func NewWatcher(path string, base Config, changed map[string]bool, log zerolog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	// Watch the directory: editors often replace the file instead of
	// writing it in place.
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	return &Watcher{
		path:    abs,
		base:    base,
		changed: changed,
		fs:      fw,
		log:     log.With().Str("component", "config").Logger(),
		current: base.Playback.Tracking,
	}, nil
}

// Reload drains pending file events and, if the file changed and yields
// different valid tracking thresholds, returns them.
func (w *Watcher) Reload() (tracking.Config, bool) {
	if !w.drain() {
		return tracking.Config{}, false
	}

	cfg := w.base
	fc, err := LoadFileConfig(w.path)
	if err != nil {
		w.log.Warn().Err(err).Msg("config reload failed")
		return tracking.Config{}, false
	}
	if err := ApplyFileConfig(&cfg, fc, w.changed); err != nil {
		w.log.Warn().Err(err).Msg("config reload failed")
		return tracking.Config{}, false
	}
	if err := ApplyEnvConfig(&cfg, w.changed); err != nil {
		w.log.Warn().Err(err).Msg("config reload failed")
		return tracking.Config{}, false
	}
	if err := cfg.Validate(); err != nil {
		w.log.Warn().Err(err).Msg("reloaded config rejected")
		return tracking.Config{}, false
	}

	next := cfg.Playback.Tracking
	if next == w.current {
		return tracking.Config{}, false
	}
	w.current = next
	return next, true
}

// drain reports whether any event touched the config file.
func (w *Watcher) drain() bool {
	touched := false
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return touched
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				touched = true
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return touched
			}
			w.log.Warn().Err(err).Msg("config watcher error")
		default:
			return touched
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
