package screen

import (
	"context"
	"image"

	"golang.org/x/image/draw"
)

// Normalize squashes img to Width x Height grayscale and crops the border,
// returning a FrameWidth x FrameHeight image anchored at the origin.
func Normalize(img image.Image) *image.Gray {
	scaled := image.NewGray(image.Rect(0, 0, Width, Height))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	out := image.NewGray(image.Rect(0, 0, FrameWidth, FrameHeight))
	for y := 0; y < FrameHeight; y++ {
		src := scaled.Pix[(y+CropY)*scaled.Stride+CropX:]
		copy(out.Pix[y*out.Stride:y*out.Stride+FrameWidth], src[:FrameWidth])
	}
	return out
}

// Source turns a Grabber into normalized frames for the matching pipeline.
type Source struct {
	grabber Grabber
}

// NewSource wraps g.
func NewSource(g Grabber) *Source {
	return &Source{grabber: g}
}

// Next captures one image and returns it as a single normalized frame.
func (s *Source) Next(ctx context.Context) ([]*image.Gray, error) {
	img, err := s.grabber.Grab(ctx)
	if err != nil {
		return nil, err
	}
	return []*image.Gray{Normalize(img)}, nil
}

// Close releases the underlying grabber.
func (s *Source) Close() error {
	return s.grabber.Close()
}
