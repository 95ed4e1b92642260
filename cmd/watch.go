package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/andresmejia3/itemwatch/internal/catalog"
	"github.com/andresmejia3/itemwatch/internal/display"
	"github.com/andresmejia3/itemwatch/internal/metrics"
	"github.com/andresmejia3/itemwatch/internal/pipeline"
	"github.com/andresmejia3/itemwatch/internal/presence"
	"github.com/andresmejia3/itemwatch/internal/screen"
	"github.com/andresmejia3/itemwatch/internal/server"
	"github.com/andresmejia3/itemwatch/internal/utils"
	"github.com/andresmejia3/itemwatch/internal/worker"
)

// WatchOptions holds the flags of the watch loop.
type WatchOptions struct {
	Workers         int
	Threshold       float64
	TTL             time.Duration
	Interval        time.Duration
	ReplayPath      string
	Realtime        bool
	ListenAddr      string
	SkipFailed      bool
	SimilarityGate  bool
	MaxHashDistance int
	ClearScreen     bool
}

var watchOpts WatchOptions

func init() {
	f := rootCmd.Flags()
	f.IntVarP(&watchOpts.Workers, "workers", "w", cfg.Workers, "Number of matching workers")
	f.Float64VarP(&watchOpts.Threshold, "threshold", "t", cfg.Threshold, "Match score a template must exceed")
	f.DurationVar(&watchOpts.TTL, "ttl", cfg.TTL, "How long an item stays displayed after it was last seen")
	f.DurationVarP(&watchOpts.Interval, "interval", "i", cfg.Interval, "Minimum time between cycles (0 runs back to back)")
	f.StringVarP(&watchOpts.ReplayPath, "replay", "r", "", "Read frames from a recorded video instead of the screen")
	f.BoolVar(&watchOpts.Realtime, "realtime", false, "Replay the video at its own frame rate")
	f.StringVar(&watchOpts.ListenAddr, "listen", cfg.ListenAddr, "Serve the active set and metrics over HTTP on this address")
	f.BoolVar(&watchOpts.SkipFailed, "skip-failed-workers", cfg.SkipFailed, "Drop a failed worker's results instead of stopping")
	f.BoolVar(&watchOpts.SimilarityGate, "similarity-gate", cfg.SimilarityGate, "Reuse the last detections when the frame has not changed")
	f.IntVar(&watchOpts.MaxHashDistance, "max-hash-distance", cfg.MaxHashDistance, "Largest perceptual hash distance the similarity gate treats as unchanged")
	f.BoolVar(&watchOpts.ClearScreen, "clear", cfg.ClearScreen, "Clear the terminal before every redraw")
}

// validateWatchFlags ensures all CLI arguments are valid before loading the catalog.
func validateWatchFlags(root string, opts *WatchOptions) error {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("catalog root %s does not exist", root)
		}
		return fmt.Errorf("unable to access catalog root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("catalog root %s is not a directory", root)
	}
	if opts.Workers < 1 {
		return fmt.Errorf("invalid worker count: must be >= 1, got %d", opts.Workers)
	}
	if opts.Threshold < 0 || opts.Threshold >= 1.0 {
		return fmt.Errorf("invalid threshold: must be in [0.0, 1.0), got %f", opts.Threshold)
	}
	if opts.TTL <= 0 {
		return fmt.Errorf("invalid ttl: must be positive, got %v", opts.TTL)
	}
	if opts.Interval < 0 {
		return fmt.Errorf("invalid interval: must not be negative, got %v", opts.Interval)
	}
	if opts.MaxHashDistance < 0 || opts.MaxHashDistance > 64 {
		return fmt.Errorf("invalid max-hash-distance: must be between 0 and 64, got %d", opts.MaxHashDistance)
	}
	if opts.ReplayPath != "" {
		info, err := os.Stat(opts.ReplayPath)
		if err != nil {
			return fmt.Errorf("unable to access replay file: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("replay path %s is a directory, expected a video file", opts.ReplayPath)
		}
	}
	return nil
}

func policyFor(opts WatchOptions) worker.Policy {
	if opts.SkipFailed {
		return worker.Skip
	}
	return worker.Abort
}

// runWatch orchestrates the watch loop: catalog, descriptions, worker pool, frame source and displays.
func runWatch(ctx context.Context, root string, opts WatchOptions) error {
	if err := validateWatchFlags(root, &opts); err != nil {
		utils.ShowError("Invalid arguments", err, nil)
		return err
	}

	// 1. Catalog
	templates, err := catalog.Load(root, os.Stderr)
	if err != nil {
		utils.ShowError("Failed to load catalog", err, nil)
		return err
	}
	if len(templates) == 0 {
		fmt.Fprintf(os.Stderr, "⚠️  No sprites found under %s, nothing will ever match.\n", root)
	}

	// 2. Descriptions
	set, err := newLoader().Load(ctx)
	if err != nil {
		utils.ShowError("Failed to load descriptions", err, nil)
		return err
	}
	fmt.Fprintf(os.Stderr, "📖 Loaded %d descriptions\n", set.Len())

	// 3. Worker pool
	fmt.Fprintf(os.Stderr, "⚙️  Spawning %d matching workers over %d sprites...\n", opts.Workers, len(templates))
	pool, err := worker.NewPool(templates, worker.Options{
		Workers:   opts.Workers,
		Threshold: opts.Threshold,
		Policy:    policyFor(opts),
	})
	if err != nil {
		utils.ShowError("Failed to start worker pool", err, nil)
		return err
	}
	defer pool.Close()

	// 4. Frame source
	var (
		grabber screen.Grabber
		replay  *screen.Replay
	)
	if opts.ReplayPath != "" {
		replay, err = screen.NewReplay(opts.ReplayPath, opts.Realtime)
		if err != nil {
			utils.ShowError("Failed to start replay", err, nil)
			return err
		}
		grabber = replay
		fmt.Fprintf(os.Stderr, "📼 Replaying %s\n", opts.ReplayPath)
	} else {
		grabber, err = screen.New()
		if err != nil {
			utils.ShowError("Failed to open screen capture", err, nil)
			return err
		}
	}
	source := screen.NewSource(grabber)
	defer source.Close()

	// 5. Displays
	m := metrics.New()
	displays := display.Multi{display.NewTerminal(os.Stdout, opts.ClearScreen)}
	if opts.ListenAddr != "" {
		srv := server.New(sessionID, m)
		defer srv.Close()
		displays = append(displays, srv)

		httpServer := &http.Server{
			Addr:         opts.ListenAddr,
			Handler:      srv.Handler(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("http server starting", "addr", opts.ListenAddr)
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("http shutdown error", "error", err)
			}
		}()
	}

	// 6. Control loop
	cycle := &pipeline.Cycle{
		Source:   source,
		Pool:     pool,
		Tracker:  presence.NewTracker(set, opts.TTL),
		Display:  displays,
		Metrics:  m,
		Interval: opts.Interval,
	}
	if opts.SimilarityGate {
		cycle.Gate = &pipeline.Gate{MaxDistance: opts.MaxHashDistance}
	}

	slog.Info("watch started", "workers", opts.Workers, "sprites", len(templates),
		"threshold", opts.Threshold, "ttl", opts.TTL, "policy", policyFor(opts))

	if err := cycle.Run(ctx); err != nil {
		var cmd *utils.SafeCommand
		if replay != nil {
			cmd = replay.Command()
		}
		utils.ShowError("Watch loop stopped", err, cmd)
		return err
	}

	fmt.Fprintf(os.Stderr, "\n🏁 Stopped after %d cycles (%d frames, %d skipped, %d failed batches).\n",
		m.Cycles.Load(), m.FramesCaptured.Load(), m.FramesSkipped.Load(), pool.Failed())
	return nil
}
