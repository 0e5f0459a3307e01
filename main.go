package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"
	"gocv.io/x/gocv"

	"steadytrack/config"
	"steadytrack/cv"
	"steadytrack/input"
	"steadytrack/logging"
	"steadytrack/playback"
	"steadytrack/recording"
	"steadytrack/ui"
)

var longHelp = strings.TrimSpace(`
Track a single object in a live or recorded video while removing camera shake.

Frames are stabilized by averaging recent frame-to-frame homographies and
warping by the inverse. Trackers are (re)initialized on a background worker,
so capture never waits for them. Pause to pick a target on a frozen frame;
frames captured meanwhile are replayed in catch-up mode.
`)

var exampleUsage = strings.TrimSpace(`
  steadytrack 0
  steadytrack flight.mp4 --tracker kcf --max-lost 60
  steadytrack --config $HOME/.steadytrack/config.toml --overflow stall-capture 1
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := config.DefaultConfig()
	var (
		cfgPath  string
		overflow string
	)

	bootLog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	root := &cobra.Command{
		Use:           "steadytrack [camera-id | video-file]",
		Short:         "Stabilized single-object tracking for cameras and video files",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = config.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if changed["overflow"] {
				p, err := playback.ParseOverflowPolicy(overflow)
				if err != nil {
					return err
				}
				cfg.Playback.Overflow = p
			}

			watchFile := cfgFile != "" && config.FileExists(cfgFile)
			if watchFile {
				fc, err := config.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := config.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}
			if err := config.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Source = args[0]
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ring := logging.NewRing(cfg.UI.MaxDebugLines)
			log, err := logging.New(cfg.LogLevel, os.Stderr, ring)
			if err != nil {
				return err
			}
			log.Info().Interface("config", cfg).Msg("configuration")

			var reloader *config.Watcher
			if watchFile {
				reloader, err = config.NewWatcher(cfgFile, cfg, changed, log)
				if err != nil {
					log.Warn().Err(err).Msg("config hot reload disabled")
				} else {
					defer reloader.Close()
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, ring, reloader, log)
		},
	}

	flags := root.Flags()
	p := &cfg.Playback
	flags.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.steadytrack/config.toml)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	flags.StringVar(&cfg.Tracker, "tracker", cfg.Tracker, "tracker kind: csrt, kcf or mil")

	flags.IntVar(&p.Stabilizer.MaxHistory, "history", p.Stabilizer.MaxHistory, "number of transforms averaged by the stabilizer")

	flags.IntVar(&p.Tracking.WarmupFrames, "warmup", p.Tracking.WarmupFrames, "updates after a hand-off before the drift veto applies")
	flags.Float64Var(&p.Tracking.IoUThreshold, "iou-threshold", p.Tracking.IoUThreshold, "drift veto overlap threshold")
	flags.Float64Var(&p.Tracking.ConfidenceThreshold, "confidence-threshold", p.Tracking.ConfidenceThreshold, "drift veto confidence threshold")
	flags.IntVar(&p.Tracking.ConfirmLost, "confirm-lost", p.Tracking.ConfirmLost, "consecutive failures before the target is lost")
	flags.IntVar(&p.Tracking.MaxLost, "max-lost", p.Tracking.MaxLost, "lost iterations before the tracker is released")
	flags.BoolVar(&p.Tracking.ResumeOnRecovery, "resume", p.Tracking.ResumeOnRecovery, "keep updating while lost and resume on success")

	flags.IntVar(&p.BacklogCapacity, "backlog", p.BacklogCapacity, "catch-up buffer size in frames (0 derives it from --buffer-seconds)")
	flags.Float64Var(&p.BufferSeconds, "buffer-seconds", p.BufferSeconds, "catch-up buffer length in seconds")
	flags.Float64Var(&p.MinFPS, "min-fps", p.MinFPS, "frame rate assumed when sizing the catch-up buffer")
	flags.StringVar(&overflow, "overflow", p.Overflow.String(), "full backlog policy: drop-oldest or stall-capture")
	flags.IntVar(&p.CatchUpBatch, "catch-up-batch", p.CatchUpBatch, "buffered frames processed per iteration while catching up")
	flags.IntVar(&p.InitQueueCapacity, "init-queue", p.InitQueueCapacity, "waiting init requests kept (0 keeps all)")
	flags.IntVar(&p.SelectionWidth, "selection-width", p.SelectionWidth, "initial selection width")
	flags.IntVar(&p.SelectionHeight, "selection-height", p.SelectionHeight, "initial selection height")
	flags.BoolVar(&p.PaceFiles, "pace", p.PaceFiles, "play video files at their native frame rate")

	flags.BoolVar(&cfg.UI.Headless, "headless", cfg.UI.Headless, "run without a window")
	flags.BoolVar(&cfg.UI.Debug, "debug", cfg.UI.Debug, "show the debug log panel")
	flags.StringVar(&cfg.Recording.Dir, "record-dir", cfg.Recording.Dir, "directory for recordings")
	flags.Float64Var(&cfg.Recording.FPS, "record-fps", cfg.Recording.FPS, "recording frame rate")

	if err := root.Execute(); err != nil {
		bootLog.Error().Err(err).Msg("steadytrack")
		os.Exit(1)
	}
}

// run opens the source, wires the pipeline and blocks until the loop ends.
func run(ctx context.Context, cfg config.Config, ring *logging.Ring, reloader *config.Watcher, log zerolog.Logger) error {
	capture, err := cv.OpenCapture(cfg.Source, log)
	if err != nil {
		return err
	}
	defer capture.Close()

	trackers, err := cv.TrackerFactory(cfg.Tracker)
	if err != nil {
		return err
	}

	pre := cv.NewPreprocessor(cfg.Preprocess)
	defer pre.Close()
	est := cv.NewHomographyEstimator(cfg.Estimator)
	defer est.Close()

	rec := recording.New(cfg.Recording, log)
	renderer := ui.NewRenderer(cfg.UI, ring, rec, log)
	defer renderer.Close()
	keyboard := input.NewKeyboard(cfg.Input, renderer, renderer, log)

	deps := playback.Deps[gocv.Mat]{
		Source:       capture,
		Preprocessor: pre,
		Estimator:    est,
		Warper:       cv.Warper{},
		Trackers:     trackers,
		Renderer:     renderer,
		Input:        keyboard,
		Ops:          cv.MatOps(),
	}
	if reloader != nil {
		deps.Reloader = reloader
	}

	ctrl := playback.New(cfg.Playback, deps, log)
	defer ctrl.Close()

	for _, line := range ui.Instructions() {
		log.Info().Msg(line)
	}
	return ctrl.Run(ctx)
}
