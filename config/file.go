package config

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors Config for TOML. Pointers distinguish an explicit
// false from an absent key.
type fileConfig struct {
	Source   string `toml:"source"`
	LogLevel string `toml:"log_level"`
	Tracker  string `toml:"tracker"`

	Stabilizer struct {
		MaxHistory int `toml:"max_history"`
	} `toml:"stabilizer"`

	Tracking struct {
		WarmupFrames        int     `toml:"warmup_frames"`
		IoUThreshold        float64 `toml:"iou_threshold"`
		ConfidenceThreshold float64 `toml:"confidence_threshold"`
		ConfirmLost         int     `toml:"confirm_lost"`
		MaxLost             int     `toml:"max_lost"`
		ResumeOnRecovery    *bool   `toml:"resume_on_recovery"`
	} `toml:"tracking"`

	Playback struct {
		BacklogCapacity   int     `toml:"backlog_capacity"`
		BufferSeconds     float64 `toml:"buffer_seconds"`
		MinFPS            float64 `toml:"min_fps"`
		Overflow          string  `toml:"overflow"`
		CatchUpBatch      int     `toml:"catch_up_batch"`
		InitQueueCapacity int     `toml:"init_queue_capacity"`
		SelectionWidth    int     `toml:"selection_width"`
		SelectionHeight   int     `toml:"selection_height"`
		MinSelection      int     `toml:"min_selection"`
		PaceFiles         *bool   `toml:"pace_files"`
	} `toml:"playback"`

	Preprocess struct {
		Scale       float64 `toml:"scale"`
		ClipLimit   float64 `toml:"clip_limit"`
		TileGrid    int     `toml:"tile_grid"`
		MedianKsize int     `toml:"median_ksize"`
	} `toml:"preprocess"`

	Estimator struct {
		FastThreshold   int     `toml:"fast_threshold"`
		MinKeypoints    int     `toml:"min_keypoints"`
		MinMatches      int     `toml:"min_matches"`
		Ratio           float64 `toml:"ratio"`
		RansacThreshold float64 `toml:"ransac_threshold"`
		RansacIters     int     `toml:"ransac_iterations"`
		Confidence      float64 `toml:"confidence"`
	} `toml:"estimator"`

	UI struct {
		WindowTitle   string `toml:"window_title"`
		Headless      *bool  `toml:"headless"`
		Debug         *bool  `toml:"debug"`
		ShowLegend    *bool  `toml:"show_legend"`
		MaxDebugLines int    `toml:"max_debug_lines"`
	} `toml:"ui"`

	Input struct {
		PointerStep int `toml:"pointer_step"`
		ResizeStep  int `toml:"resize_step"`
	} `toml:"input"`

	Recording struct {
		Dir    string   `toml:"dir"`
		FPS    float64  `toml:"fps"`
		Codecs []string `toml:"codecs"`
	} `toml:"recording"`
}

// LoadFileConfig reads and parses a TOML config file. Unknown keys are
// rejected so typos surface.
func LoadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	f, err := os.Open(path)
	if err != nil {
		return fc, err
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return fc, fmt.Errorf("%s: %w", path, err)
	}
	return fc, nil
}

// ApplyFileConfig applies file values to cfg, skipping explicitly set flags.
func ApplyFileConfig(cfg *Config, fc fileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("source", fc.Source, &cfg.Source)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("tracker", fc.Tracker, &cfg.Tracker)

	p := &cfg.Playback
	s.setInt("history", fc.Stabilizer.MaxHistory, &p.Stabilizer.MaxHistory)

	t := &p.Tracking
	s.setInt("warmup", fc.Tracking.WarmupFrames, &t.WarmupFrames)
	s.setFloat("iou-threshold", fc.Tracking.IoUThreshold, &t.IoUThreshold)
	s.setFloat("confidence-threshold", fc.Tracking.ConfidenceThreshold, &t.ConfidenceThreshold)
	s.setInt("confirm-lost", fc.Tracking.ConfirmLost, &t.ConfirmLost)
	s.setInt("max-lost", fc.Tracking.MaxLost, &t.MaxLost)
	s.setBool("resume", fc.Tracking.ResumeOnRecovery, &t.ResumeOnRecovery)

	s.setInt("backlog", fc.Playback.BacklogCapacity, &p.BacklogCapacity)
	s.setFloat("buffer-seconds", fc.Playback.BufferSeconds, &p.BufferSeconds)
	s.setFloat("min-fps", fc.Playback.MinFPS, &p.MinFPS)
	if err := s.setOverflow("overflow", fc.Playback.Overflow, &p.Overflow); err != nil {
		return err
	}
	s.setInt("catch-up-batch", fc.Playback.CatchUpBatch, &p.CatchUpBatch)
	s.setInt("init-queue", fc.Playback.InitQueueCapacity, &p.InitQueueCapacity)
	s.setInt("selection-width", fc.Playback.SelectionWidth, &p.SelectionWidth)
	s.setInt("selection-height", fc.Playback.SelectionHeight, &p.SelectionHeight)
	s.setInt("min-selection", fc.Playback.MinSelection, &p.MinSelection)
	s.setBool("pace", fc.Playback.PaceFiles, &p.PaceFiles)

	s.setFloat("scale", fc.Preprocess.Scale, &cfg.Preprocess.Scale)
	s.setFloat("clip-limit", fc.Preprocess.ClipLimit, &cfg.Preprocess.ClipLimit)
	s.setInt("tile-grid", fc.Preprocess.TileGrid, &cfg.Preprocess.TileGrid)
	s.setInt("median-ksize", fc.Preprocess.MedianKsize, &cfg.Preprocess.MedianKsize)

	e := &cfg.Estimator
	s.setInt("fast-threshold", fc.Estimator.FastThreshold, &e.FastThreshold)
	s.setInt("min-keypoints", fc.Estimator.MinKeypoints, &e.MinKeypoints)
	s.setInt("min-matches", fc.Estimator.MinMatches, &e.MinMatches)
	s.setFloat("ratio", fc.Estimator.Ratio, &e.Ratio)
	s.setFloat("ransac-threshold", fc.Estimator.RansacThreshold, &e.RansacThreshold)
	s.setInt("ransac-iterations", fc.Estimator.RansacIters, &e.RansacIters)
	s.setFloat("ransac-confidence", fc.Estimator.Confidence, &e.Confidence)

	s.setString("window-title", fc.UI.WindowTitle, &cfg.UI.WindowTitle)
	s.setBool("headless", fc.UI.Headless, &cfg.UI.Headless)
	s.setBool("debug", fc.UI.Debug, &cfg.UI.Debug)
	s.setBool("legend", fc.UI.ShowLegend, &cfg.UI.ShowLegend)
	s.setInt("debug-lines", fc.UI.MaxDebugLines, &cfg.UI.MaxDebugLines)

	s.setInt("pointer-step", fc.Input.PointerStep, &cfg.Input.PointerStep)
	s.setInt("resize-step", fc.Input.ResizeStep, &cfg.Input.ResizeStep)

	s.setString("record-dir", fc.Recording.Dir, &cfg.Recording.Dir)
	s.setFloat("record-fps", fc.Recording.FPS, &cfg.Recording.FPS)
	if len(fc.Recording.Codecs) > 0 && !changed["codecs"] {
		cfg.Recording.Codecs = append([]string(nil), fc.Recording.Codecs...)
	}
	return nil
}
