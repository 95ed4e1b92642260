// Package matcher implements masked normalized cross-correlation of catalog templates against frames.
package matcher

import (
	"image"
	"math"

	"github.com/andresmejia3/itemwatch/internal/types"
)

// DefaultThreshold is the minimum score (exclusive) for a detection.
const DefaultThreshold = 0.85

// maskedPixel is one template pixel with non-zero mask weight.
type maskedPixel struct {
	dx, dy int
	tm2    float64 // T * m * m
	m2     float64 // m * m
}

// Prepared holds the per-template terms that do not depend on the frame.
// It is read-only after Prepare returns and safe for concurrent use.
type Prepared struct {
	ID     uint32
	size   image.Point
	pixels []maskedPixel
	sumT2  float64 // Σ (T * m)^2
}

// Prepare precomputes the sparse masked pixel list of t.
func Prepare(t *types.Template) *Prepared {
	b := t.Image.Bounds()
	mb := t.Mask.Bounds()
	p := &Prepared{ID: t.ID, size: b.Size()}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			mv := t.Mask.GrayAt(mb.Min.X+x, mb.Min.Y+y).Y
			if mv == 0 {
				continue
			}
			m := float64(mv) / 255.0
			tv := float64(t.Image.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			p.pixels = append(p.pixels, maskedPixel{
				dx:  x,
				dy:  y,
				tm2: tv * m * m,
				m2:  m * m,
			})
			p.sumT2 += (tv * m) * (tv * m)
		}
	}
	return p
}

// Size returns the template dimensions.
func (p *Prepared) Size() image.Point {
	return p.size
}

// ScoreAt returns the correlation score with the template's top-left corner at
// (x, y) relative to the frame's bounds. Degenerate windows yield NaN.
func (p *Prepared) ScoreAt(frame *image.Gray, x, y int) float64 {
	base := frame.PixOffset(frame.Rect.Min.X+x, frame.Rect.Min.Y+y)
	var num, sumI2 float64
	for _, px := range p.pixels {
		iv := float64(frame.Pix[base+px.dy*frame.Stride+px.dx])
		num += px.tm2 * iv
		sumI2 += px.m2 * iv * iv
	}
	return num / math.Sqrt(p.sumT2*sumI2)
}

// Match slides the template over every valid offset of frame and reports the
// best-scoring position. The second return value is false when the template
// does not fit, the best score is not finite, or it does not exceed threshold.
// Ties resolve to the first offset in row-major order.
func (p *Prepared) Match(frame *image.Gray, threshold float64) (types.MatchResult, bool) {
	fs := frame.Bounds().Size()
	if p.size.X > fs.X || p.size.Y > fs.Y || p.size.X == 0 || p.size.Y == 0 {
		return types.MatchResult{}, false
	}

	best := math.Inf(-1)
	var bestAt image.Point
	found := false
	for y := 0; y <= fs.Y-p.size.Y; y++ {
		for x := 0; x <= fs.X-p.size.X; x++ {
			s := p.ScoreAt(frame, x, y)
			if math.IsNaN(s) {
				continue
			}
			if !found || s > best {
				best = s
				bestAt = image.Pt(x, y)
				found = true
			}
		}
	}

	if !found || math.IsInf(best, 0) || !(best > threshold) {
		return types.MatchResult{}, false
	}
	return types.MatchResult{
		TemplateID: p.ID,
		Score:      best,
		TopLeft:    bestAt,
		Size:       p.size,
	}, true
}

// Match is a convenience wrapper that prepares t and matches it once.
func Match(frame *image.Gray, t *types.Template, threshold float64) (types.MatchResult, bool) {
	return Prepare(t).Match(frame, threshold)
}
