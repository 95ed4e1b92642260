package pipeline

import (
	"image"

	"github.com/corona10/goimagehash"
)

// Gate detects frames that are perceptually identical to the previous cycle's,
// letting the cycle reuse the last detections instead of matching again.
type Gate struct {
	// MaxDistance is the largest pHash Hamming distance still considered unchanged.
	MaxDistance int
	last        []*goimagehash.ImageHash
}

// Unchanged hashes frames and reports whether every one is within MaxDistance
// of the frame at the same position last time. The hashes are remembered either way.
func (g *Gate) Unchanged(frames []*image.Gray) bool {
	hashes := make([]*goimagehash.ImageHash, len(frames))
	for i, f := range frames {
		h, err := goimagehash.PerceptionHash(f)
		if err != nil {
			g.last = nil
			return false
		}
		hashes[i] = h
	}

	same := len(g.last) == len(hashes) && len(hashes) > 0
	for i := 0; same && i < len(hashes); i++ {
		d, err := g.last[i].Distance(hashes[i])
		same = err == nil && d <= g.MaxDistance
	}
	g.last = hashes
	return same
}

// Reset forgets the previous frames.
func (g *Gate) Reset() {
	g.last = nil
}
