// Package pipeline runs the capture → match → track → display loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/andresmejia3/itemwatch/internal/display"
	"github.com/andresmejia3/itemwatch/internal/matcher"
	"github.com/andresmejia3/itemwatch/internal/metrics"
	"github.com/andresmejia3/itemwatch/internal/presence"
	"github.com/andresmejia3/itemwatch/internal/types"
)

// Source yields the frames for one cycle. io.EOF ends the run cleanly.
type Source interface {
	Next(ctx context.Context) ([]*image.Gray, error)
}

// Distributor matches the catalog against a set of frames.
type Distributor interface {
	Distribute(ctx context.Context, frames []*image.Gray) ([]types.MatchResult, error)
	Failed() uint64
}

// Cycle wires one control loop. Only the goroutine calling Step or Run may touch it.
// Source, Pool, Tracker and Display are required. The other fields may be left zero.
type Cycle struct {
	Source  Source
	Pool    Distributor
	Tracker *presence.Tracker
	Display display.Display

	Now      func() time.Time
	Metrics  *metrics.Metrics
	Gate     *Gate
	Interval time.Duration
	Logger   *slog.Logger

	lastIDs []uint32
}

func (c *Cycle) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Cycle) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Step runs a single cycle.
func (c *Cycle) Step(ctx context.Context) error {
	start := time.Now()

	frames, err := c.Source.Next(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		if c.Metrics != nil {
			c.Metrics.CaptureErrors.Add(1)
		}
		return fmt.Errorf("frame capture failed: %w", err)
	}
	if c.Metrics != nil {
		c.Metrics.FramesCaptured.Add(uint64(len(frames)))
	}

	ids := c.lastIDs
	if c.Gate != nil && c.Gate.Unchanged(frames) {
		if c.Metrics != nil {
			c.Metrics.FramesSkipped.Add(uint64(len(frames)))
		}
	} else {
		results, err := c.Pool.Distribute(ctx, frames)
		if c.Metrics != nil {
			c.Metrics.FailedBatches.Store(c.Pool.Failed())
		}
		if err != nil {
			return err
		}
		if c.Metrics != nil {
			c.Metrics.Detections.Add(uint64(len(results)))
		}
		ids = matcher.UniqueIDs(results)
		c.lastIDs = ids
	}

	now := c.now()
	if err := c.Tracker.Update(ids, now); err != nil {
		return err
	}
	evicted := c.Tracker.Evict(now)
	if len(evicted) > 0 {
		c.logger().Debug("evicted", "ids", evicted)
	}

	if err := c.Display.Show(c.Tracker.Active()); err != nil {
		return fmt.Errorf("display failed: %w", err)
	}

	if c.Metrics != nil {
		c.Metrics.Evictions.Add(uint64(len(evicted)))
		c.Metrics.ActiveItems.Store(uint64(c.Tracker.Len()))
		c.Metrics.ObserveCycle(time.Since(start))
	}
	return nil
}

// Run steps until ctx is cancelled or the source is exhausted, both of which
// return nil. Any other error stops the loop and is returned.
func (c *Cycle) Run(ctx context.Context) error {
	var timer *time.Timer
	for {
		started := time.Now()
		if err := c.Step(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				c.logger().Info("frame source exhausted")
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		wait := c.Interval - time.Since(started)
		if wait <= 0 {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		if timer == nil {
			timer = time.NewTimer(wait)
			defer timer.Stop()
		} else {
			timer.Reset(wait)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}
