package worker

import (
	"context"
	"errors"
	"image"
	"reflect"
	"sync"
	"testing"

	"github.com/andresmejia3/itemwatch/internal/matcher"
	"github.com/andresmejia3/itemwatch/internal/types"
)

func TestPartition(t *testing.T) {
	for n := 0; n <= 40; n++ {
		for w := 1; w <= 12; w++ {
			slices := Partition(n, w)
			if len(slices) != w {
				t.Fatalf("Partition(%d,%d): expected %d slices, got %d", n, w, w, len(slices))
			}
			next := 0
			for k, s := range slices {
				if s[0] != next {
					t.Fatalf("Partition(%d,%d): slice %d starts at %d, expected %d", n, w, k, s[0], next)
				}
				if s[1] < s[0] {
					t.Fatalf("Partition(%d,%d): slice %d is inverted: %v", n, w, k, s)
				}
				next = s[1]
			}
			if next != n {
				t.Fatalf("Partition(%d,%d): covered %d entries, expected %d", n, w, next, n)
			}
		}
	}
}

func TestPartitionShape(t *testing.T) {
	tests := []struct {
		n, w int
		want [][2]int
	}{
		{10, 4, [][2]int{{0, 3}, {3, 6}, {6, 9}, {9, 10}}},
		{2, 4, [][2]int{{0, 1}, {1, 2}, {2, 2}, {2, 2}}},
		{8, 2, [][2]int{{0, 4}, {4, 8}}},
	}
	for _, tt := range tests {
		if got := Partition(tt.n, tt.w); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Partition(%d,%d) = %v, want %v", tt.n, tt.w, got, tt.want)
		}
	}
}

// fakeTemplates builds n 1x1 templates; a fake MatchFunc decides hits by id.
func fakeTemplates(n int) []*types.Template {
	out := make([]*types.Template, n)
	for i := range out {
		img := image.NewGray(image.Rect(0, 0, 1, 1))
		img.Pix[0] = 1
		mask := image.NewGray(image.Rect(0, 0, 1, 1))
		mask.Pix[0] = 255
		out[i] = &types.Template{ID: uint32(i + 1), Image: img, Mask: mask}
	}
	return out
}

func hitEven(_ *image.Gray, p *matcher.Prepared, _ float64) (types.MatchResult, bool) {
	return types.MatchResult{TemplateID: p.ID, Score: 1}, p.ID%2 == 0
}

func TestDistributeCollectsAllSlices(t *testing.T) {
	tests := []struct {
		name      string
		templates int
		workers   int
		frames    int
	}{
		{"More templates than workers", 11, 4, 1},
		{"More workers than templates", 2, 5, 1},
		{"Several frames", 9, 3, 3},
		{"Empty catalog", 0, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := NewPool(fakeTemplates(tt.templates), Options{Workers: tt.workers, Match: hitEven})
			if err != nil {
				t.Fatal(err)
			}
			defer pool.Close()

			frames := make([]*image.Gray, tt.frames)
			for i := range frames {
				frames[i] = image.NewGray(image.Rect(0, 0, 4, 4))
			}

			results, err := pool.Distribute(context.Background(), frames)
			if err != nil {
				t.Fatalf("Distribute failed: %v", err)
			}

			var want []uint32
			for id := 2; id <= tt.templates; id += 2 {
				want = append(want, uint32(id))
			}
			if want == nil {
				want = []uint32{}
			}
			if got := matcher.UniqueIDs(results); !reflect.DeepEqual(got, want) {
				t.Errorf("Expected ids %v, got %v", want, got)
			}
			if len(results) != len(want)*tt.frames {
				t.Errorf("Expected %d raw results, got %d", len(want)*tt.frames, len(results))
			}
		})
	}
}

func TestDistributeOneJobPerWorkerPerFrame(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[uint32]int)
	count := func(frame *image.Gray, p *matcher.Prepared, th float64) (types.MatchResult, bool) {
		mu.Lock()
		seen[p.ID]++
		mu.Unlock()
		return types.MatchResult{}, false
	}

	pool, err := NewPool(fakeTemplates(7), Options{Workers: 3, Match: count})
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	frames := []*image.Gray{image.NewGray(image.Rect(0, 0, 2, 2)), image.NewGray(image.Rect(0, 0, 2, 2))}
	for round := 0; round < 2; round++ {
		if _, err := pool.Distribute(context.Background(), frames); err != nil {
			t.Fatal(err)
		}
	}

	for id := uint32(1); id <= 7; id++ {
		if seen[id] != 4 {
			t.Errorf("Template %d matched %d times, expected 4 (2 frames x 2 rounds)", id, seen[id])
		}
	}
}

func TestDistributeFailurePolicies(t *testing.T) {
	explode := func(frame *image.Gray, p *matcher.Prepared, th float64) (types.MatchResult, bool) {
		if p.ID == 1 {
			panic("corrupt template")
		}
		return types.MatchResult{TemplateID: p.ID}, true
	}
	frames := []*image.Gray{image.NewGray(image.Rect(0, 0, 2, 2))}

	t.Run("Abort", func(t *testing.T) {
		pool, err := NewPool(fakeTemplates(4), Options{Workers: 2, Match: explode})
		if err != nil {
			t.Fatal(err)
		}
		defer pool.Close()

		if _, err := pool.Distribute(context.Background(), frames); err == nil {
			t.Fatal("Expected error, got nil")
		}
		if pool.Failed() != 1 {
			t.Errorf("Expected 1 failed batch, got %d", pool.Failed())
		}

		// The pool stays usable after a failed round.
		if _, err := pool.Distribute(context.Background(), frames); err == nil {
			t.Error("Expected the second round to fail the same way")
		}
	})

	t.Run("Skip", func(t *testing.T) {
		pool, err := NewPool(fakeTemplates(4), Options{Workers: 2, Policy: Skip, Match: explode})
		if err != nil {
			t.Fatal(err)
		}
		defer pool.Close()

		results, err := pool.Distribute(context.Background(), frames)
		if err != nil {
			t.Fatalf("Expected partial results, got error %v", err)
		}
		// Worker 0 owns ids 1-2 and fails; worker 1 owns ids 3-4.
		if got := matcher.UniqueIDs(results); !reflect.DeepEqual(got, []uint32{3, 4}) {
			t.Errorf("Expected ids [3 4], got %v", got)
		}
	})
}

func TestDistributeAfterClose(t *testing.T) {
	pool, err := NewPool(fakeTemplates(1), Options{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	pool.Close()
	pool.Close()

	if _, err := pool.Distribute(context.Background(), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestDistributeConcurrentWithClose(t *testing.T) {
	for i := 0; i < 50; i++ {
		pool, err := NewPool(fakeTemplates(8), Options{Workers: 4, Match: hitEven})
		if err != nil {
			t.Fatal(err)
		}
		frames := []*image.Gray{image.NewGray(image.Rect(0, 0, 4, 4))}

		var wg sync.WaitGroup
		errs := make(chan error, 4)
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := pool.Distribute(context.Background(), frames); err != nil {
					errs <- err
				}
			}()
		}
		pool.Close()
		wg.Wait()
		close(errs)

		for err := range errs {
			if !errors.Is(err, ErrClosed) {
				t.Fatalf("Expected nil or ErrClosed, got %v", err)
			}
		}
	}
}

func TestNewPoolRejectsZeroWorkers(t *testing.T) {
	if _, err := NewPool(fakeTemplates(1), Options{Workers: 0}); err == nil {
		t.Error("Expected error for zero workers, got nil")
	}
}
