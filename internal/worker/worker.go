// Package worker runs template matching on a fixed pool of long-lived goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/andresmejia3/itemwatch/internal/matcher"
	"github.com/andresmejia3/itemwatch/internal/types"
)

// Policy decides what a round does when one of its batches fails.
type Policy int

const (
	// Abort fails the whole round with the first batch error.
	Abort Policy = iota
	// Skip drops failed batches and returns what the other workers found.
	Skip
)

func (p Policy) String() string {
	if p == Skip {
		return "skip"
	}
	return "abort"
}

// ErrClosed is returned by Distribute after Close.
var ErrClosed = errors.New("worker pool closed")

// MatchFunc matches one prepared template against one frame.
type MatchFunc func(frame *image.Gray, p *matcher.Prepared, threshold float64) (types.MatchResult, bool)

// Options configures a Pool.
type Options struct {
	Workers   int
	Threshold float64
	Policy    Policy
	// Match defaults to (*matcher.Prepared).Match.
	Match MatchFunc
}

// Batch is the outcome of one job: one worker's slice of the catalog against one frame.
type Batch struct {
	Worker  int
	Frame   int
	Results []types.MatchResult
	Err     error
}

type job struct {
	worker int
	frame  int
	img    *image.Gray
	lo, hi int
	out    chan<- Batch
}

// Pool owns the prepared catalog and the worker goroutines.
// Workers live until Close; each round reuses them.
type Pool struct {
	templates []*matcher.Prepared
	slices    [][2]int
	opts      Options

	jobs chan job
	wg   sync.WaitGroup
	once sync.Once

	// mu guards closed and keeps Close from closing jobs while a round is sending.
	mu     sync.RWMutex
	closed bool
	failed atomic.Uint64
}

// NewPool prepares templates and starts opts.Workers goroutines.
func NewPool(templates []*types.Template, opts Options) (*Pool, error) {
	if opts.Workers < 1 {
		return nil, fmt.Errorf("invalid worker count %d: must be >= 1", opts.Workers)
	}
	if opts.Match == nil {
		opts.Match = func(frame *image.Gray, p *matcher.Prepared, threshold float64) (types.MatchResult, bool) {
			return p.Match(frame, threshold)
		}
	}

	prepared := make([]*matcher.Prepared, len(templates))
	for i, t := range templates {
		prepared[i] = matcher.Prepare(t)
	}

	p := &Pool{
		templates: prepared,
		slices:    Partition(len(prepared), opts.Workers),
		opts:      opts,
		jobs:      make(chan job, opts.Workers),
	}

	for i := 0; i < opts.Workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				j.out <- p.run(j)
			}
		}()
	}
	return p, nil
}

// Workers returns the pool size.
func (p *Pool) Workers() int {
	return p.opts.Workers
}

// Failed returns the number of batches that have failed since the pool started.
func (p *Pool) Failed() uint64 {
	return p.failed.Load()
}

// run matches one slice of the catalog. A panic in the matcher is reported as the batch error.
func (p *Pool) run(j job) (b Batch) {
	b = Batch{Worker: j.worker, Frame: j.frame}
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("worker panic", "worker", j.worker, "panic", r, "stack", string(debug.Stack()))
			b.Results = nil
			b.Err = fmt.Errorf("worker %d panicked: %v", j.worker, r)
		}
	}()

	for _, t := range p.templates[j.lo:j.hi] {
		if res, ok := p.opts.Match(j.img, t, p.opts.Threshold); ok {
			b.Results = append(b.Results, res)
		}
	}
	return b
}

// Distribute matches the whole catalog against every frame.
// It sends exactly one job per worker per frame and waits for all len(frames)*Workers
// batches before returning, regardless of failures.
// It is safe to call concurrently with Close; a round that starts after Close gets ErrClosed.
func (p *Pool) Distribute(ctx context.Context, frames []*image.Gray) ([]types.MatchResult, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrClosed
	}

	total := len(frames) * p.opts.Workers
	// Buffered to the full round so workers never block on a caller that gave up.
	out := make(chan Batch, total)

	sent := 0
send:
	for fi, frame := range frames {
		for w, s := range p.slices {
			select {
			case p.jobs <- job{worker: w, frame: fi, img: frame, lo: s[0], hi: s[1], out: out}:
				sent++
			case <-ctx.Done():
				break send
			}
		}
	}
	p.mu.RUnlock()

	var results []types.MatchResult
	var firstErr error
	for received := 0; received < sent; received++ {
		var b Batch
		select {
		case b = <-out:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		if b.Err != nil {
			p.failed.Add(1)
			if p.opts.Policy == Skip {
				slog.Warn("dropping failed batch", "worker", b.Worker, "frame", b.Frame, "error", b.Err)
				continue
			}
			if firstErr == nil {
				firstErr = b.Err
			}
			continue
		}
		results = append(results, b.Results...)
	}

	if sent < total {
		return nil, ctx.Err()
	}
	if firstErr != nil {
		return nil, fmt.Errorf("matching round failed: %w", firstErr)
	}
	return results, nil
}

// Close stops the workers. It waits for rounds that are still sending, and
// jobs already queued still run.
func (p *Pool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
		p.wg.Wait()
	})
}
