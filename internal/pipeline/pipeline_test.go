package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/andresmejia3/itemwatch/internal/metrics"
	"github.com/andresmejia3/itemwatch/internal/presence"
	"github.com/andresmejia3/itemwatch/internal/types"
	"github.com/andresmejia3/itemwatch/internal/worker"
)

// seqSource returns its frames one cycle at a time, then io.EOF.
type seqSource struct {
	frames []*image.Gray
	next   int
}

func (s *seqSource) Next(ctx context.Context) ([]*image.Gray, error) {
	if s.next >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.next]
	s.next++
	return []*image.Gray{f}, nil
}

type recorder struct {
	shown  [][]uint32
	titles [][]string
}

func (r *recorder) Show(entries []presence.Entry) error {
	ids := make([]uint32, len(entries))
	titles := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		titles[i] = e.Description.Title
	}
	r.shown = append(r.shown, ids)
	r.titles = append(r.titles, titles)
	return nil
}

type mapLookup map[uint32]types.Description

func (m mapLookup) Lookup(id uint32) (types.Description, bool) {
	d, ok := m[id]
	return d, ok
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func gray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func fullMask(w, h int) *image.Gray {
	return gray(w, h, 255)
}

// catalog returns T3, a 4x4 checker of 100/150, and T9, a 2x1 [255 0] edge
// whose best score on any frame with values in [100,150] is 150/sqrt(150²+100²) ≈ 0.83.
func catalog() []*types.Template {
	t3 := image.NewGray(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			v := uint8(150)
			if (x+y)%2 == 0 {
				v = 100
			}
			t3.SetGray(x, y, color.Gray{Y: v})
		}
	}
	t9 := image.NewGray(image.Rect(0, 0, 2, 1))
	t9.Pix[0] = 255
	t9.Pix[1] = 0

	return []*types.Template{
		{ID: 3, Name: "collectibles_003_x.png", Image: t3, Mask: fullMask(4, 4)},
		{ID: 9, Name: "collectibles_009_x.png", Image: t9, Mask: fullMask(2, 1)},
	}
}

// frameWithT3 is a 16x16 frame of 120 with T3 pasted at (5,6).
func frameWithT3() *image.Gray {
	f := gray(16, 16, 120)
	t3 := catalog()[0].Image
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			f.SetGray(5+x, 6+y, t3.GrayAt(x, y))
		}
	}
	return f
}

func lookup() mapLookup {
	return mapLookup{
		3: {ID: 3, Title: "The Inner Eye"},
		9: {ID: 9, Title: "The Bean"},
	}
}

func newPool(t *testing.T) *worker.Pool {
	t.Helper()
	pool, err := worker.NewPool(catalog(), worker.Options{Workers: 2, Threshold: 0.85})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestEndToEndDetection(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	rec := &recorder{}
	m := metrics.New()
	c := &Cycle{
		Source:  &seqSource{frames: []*image.Gray{frameWithT3()}},
		Pool:    newPool(t),
		Tracker: presence.NewTracker(lookup(), 2*time.Second),
		Display: rec,
		Now:     clock.Now,
		Metrics: m,
	}

	if err := c.Step(context.Background()); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if !reflect.DeepEqual(rec.shown, [][]uint32{{3}}) {
		t.Errorf("Expected display [[3]], got %v", rec.shown)
	}
	if !reflect.DeepEqual(rec.titles, [][]string{{"The Inner Eye"}}) {
		t.Errorf("Expected title [[The Inner Eye]], got %v", rec.titles)
	}
	if m.Detections.Load() != 1 || m.ActiveItems.Load() != 1 || m.Cycles.Load() != 1 {
		t.Errorf("Unexpected metrics: detections=%d active=%d cycles=%d",
			m.Detections.Load(), m.ActiveItems.Load(), m.Cycles.Load())
	}
}

func TestPresenceAcrossCycles(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	rec := &recorder{}
	blank := gray(16, 16, 0)
	c := &Cycle{
		Source:  &seqSource{frames: []*image.Gray{frameWithT3(), blank, blank}},
		Pool:    newPool(t),
		Tracker: presence.NewTracker(lookup(), 2*time.Second),
		Display: rec,
		Now:     clock.Now,
	}

	for _, at := range []time.Duration{0, 1500 * time.Millisecond, 2100 * time.Millisecond} {
		clock.t = time.Unix(0, 0).Add(at)
		if err := c.Step(context.Background()); err != nil {
			t.Fatalf("Step at %v failed: %v", at, err)
		}
	}

	want := [][]uint32{{3}, {3}, {}}
	if !reflect.DeepEqual(rec.shown, want) {
		t.Errorf("Expected display %v, got %v", want, rec.shown)
	}

	if err := c.Step(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF from exhausted source, got %v", err)
	}
}

func TestUnknownIDIsFatal(t *testing.T) {
	c := &Cycle{
		Source:  &seqSource{frames: []*image.Gray{frameWithT3()}},
		Pool:    newPool(t),
		Tracker: presence.NewTracker(mapLookup{9: {ID: 9}}, 2*time.Second),
		Display: &recorder{},
	}

	if err := c.Run(context.Background()); !errors.Is(err, presence.ErrUnknownID) {
		t.Errorf("Expected ErrUnknownID, got %v", err)
	}
}

type countingPool struct {
	calls int
	ids   []uint32
	err   error
}

func (p *countingPool) Distribute(ctx context.Context, frames []*image.Gray) ([]types.MatchResult, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	var out []types.MatchResult
	for _, id := range p.ids {
		out = append(out, types.MatchResult{TemplateID: id})
	}
	return out, nil
}

func (p *countingPool) Failed() uint64 { return 0 }

func TestRunStopsAtEndOfSource(t *testing.T) {
	pool := &countingPool{ids: []uint32{9}}
	rec := &recorder{}
	c := &Cycle{
		Source:  &seqSource{frames: []*image.Gray{gray(8, 8, 1), gray(8, 8, 2)}},
		Pool:    pool,
		Tracker: presence.NewTracker(lookup(), time.Second),
		Display: rec,
	}

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v, want nil at end of source", err)
	}
	if pool.calls != 2 || len(rec.shown) != 2 {
		t.Errorf("Expected 2 cycles, got %d distributions and %d displays", pool.calls, len(rec.shown))
	}
}

func TestRunReturnsRoundFailure(t *testing.T) {
	boom := errors.New("matching round failed")
	c := &Cycle{
		Source:  &seqSource{frames: []*image.Gray{gray(8, 8, 1)}},
		Pool:    &countingPool{err: boom},
		Tracker: presence.NewTracker(lookup(), time.Second),
		Display: &recorder{},
	}

	if err := c.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Expected round failure, got %v", err)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	frames := make([]*image.Gray, 100)
	for i := range frames {
		frames[i] = gray(8, 8, 1)
	}
	rec := &recorder{}
	c := &Cycle{
		Source:   &seqSource{frames: frames},
		Pool:     &countingPool{},
		Tracker:  presence.NewTracker(lookup(), time.Second),
		Display:  displayFunc(func(e []presence.Entry) error { cancel(); return rec.Show(e) }),
		Interval: time.Hour,
	}

	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run returned %v, want nil on cancellation", err)
	}
	if len(rec.shown) != 1 {
		t.Errorf("Expected 1 cycle before cancellation, got %d", len(rec.shown))
	}
}

type displayFunc func([]presence.Entry) error

func (f displayFunc) Show(e []presence.Entry) error { return f(e) }

func TestGateReusesDetections(t *testing.T) {
	frame := frameWithT3()
	pool := &countingPool{ids: []uint32{3}}
	rec := &recorder{}
	m := metrics.New()
	c := &Cycle{
		Source:  &seqSource{frames: []*image.Gray{frame, frame, gray(16, 16, 0)}},
		Pool:    pool,
		Tracker: presence.NewTracker(lookup(), time.Second),
		Display: rec,
		Gate:    &Gate{MaxDistance: 0},
		Metrics: m,
	}

	for i := 0; i < 2; i++ {
		if err := c.Step(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if pool.calls != 1 {
		t.Errorf("Expected the identical second frame to skip matching, got %d distributions", pool.calls)
	}
	if m.FramesSkipped.Load() != 1 {
		t.Errorf("Expected 1 skipped frame, got %d", m.FramesSkipped.Load())
	}
	if !reflect.DeepEqual(rec.shown, [][]uint32{{3}, {3}}) {
		t.Errorf("Expected reused detections, got %v", rec.shown)
	}

	if err := c.Step(context.Background()); err != nil {
		t.Fatal(err)
	}
	if pool.calls != 2 {
		t.Errorf("Expected a changed frame to be matched, got %d distributions", pool.calls)
	}
}
