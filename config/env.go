package config

import (
	"os"
	"strings"
)

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "STEADYTRACK_"

// ApplyEnvConfig applies STEADYTRACK_* environment variables, skipping
// explicitly set flags. It returns an error on malformed values.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	return applyEnv(cfg, changed, os.Getenv)
}

func applyEnv(cfg *Config, changed map[string]bool, getenv func(string) string) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return getenv(EnvPrefix + name) }

	s.setString("source", env("SOURCE"), &cfg.Source)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)
	s.setString("tracker", env("TRACKER"), &cfg.Tracker)
	s.setString("record-dir", env("RECORD_DIR"), &cfg.Recording.Dir)

	p := &cfg.Playback
	t := &p.Tracking
	ints := []struct {
		flag, name string
		dst        *int
	}{
		{"history", "MAX_HISTORY", &p.Stabilizer.MaxHistory},
		{"warmup", "WARMUP_FRAMES", &t.WarmupFrames},
		{"confirm-lost", "CONFIRM_LOST", &t.ConfirmLost},
		{"max-lost", "MAX_LOST", &t.MaxLost},
		{"backlog", "BACKLOG_CAPACITY", &p.BacklogCapacity},
		{"catch-up-batch", "CATCH_UP_BATCH", &p.CatchUpBatch},
		{"init-queue", "INIT_QUEUE_CAPACITY", &p.InitQueueCapacity},
	}
	for _, v := range ints {
		if err := s.setIntFromString(v.flag, env(v.name), v.dst); err != nil {
			return err
		}
	}

	floats := []struct {
		flag, name string
		dst        *float64
	}{
		{"iou-threshold", "IOU_THRESHOLD", &t.IoUThreshold},
		{"confidence-threshold", "CONFIDENCE_THRESHOLD", &t.ConfidenceThreshold},
		{"buffer-seconds", "BUFFER_SECONDS", &p.BufferSeconds},
		{"min-fps", "MIN_FPS", &p.MinFPS},
		{"record-fps", "RECORD_FPS", &cfg.Recording.FPS},
	}
	for _, v := range floats {
		if err := s.setFloatFromString(v.flag, env(v.name), v.dst); err != nil {
			return err
		}
	}

	bools := []struct {
		flag, name string
		dst        *bool
	}{
		{"resume", "RESUME_ON_RECOVERY", &t.ResumeOnRecovery},
		{"pace", "PACE_FILES", &p.PaceFiles},
		{"headless", "HEADLESS", &cfg.UI.Headless},
		{"debug", "DEBUG", &cfg.UI.Debug},
	}
	for _, v := range bools {
		if err := s.setBoolFromString(v.flag, env(v.name), v.dst); err != nil {
			return err
		}
	}

	if err := s.setOverflow("overflow", env("OVERFLOW"), &p.Overflow); err != nil {
		return err
	}
	if codecs := env("CODECS"); codecs != "" && !changed["codecs"] {
		cfg.Recording.Codecs = splitList(codecs)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
