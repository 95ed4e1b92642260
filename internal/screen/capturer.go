// Package screen acquires frames from the live display or a recorded video
// and normalizes them for matching.
package screen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"os"
)

// ErrUnsupported is returned by New on platforms without a capture backend.
var ErrUnsupported = errors.New("screen capture not supported on this platform")

// Grabber yields raw full-resolution images.
type Grabber interface {
	Grab(ctx context.Context) (image.Image, error)
	Close() error
}

// backend implements platform-specific raw capture
type backend interface {
	captureRaw(ctx context.Context) ([]byte, error)
}

// baseCapturer decodes whatever the platform backend writes.
type baseCapturer struct {
	backend
	tempDir string
}

func newBase(b backend, tempDir string) *baseCapturer {
	return &baseCapturer{backend: b, tempDir: tempDir}
}

func (c *baseCapturer) Grab(ctx context.Context) (image.Image, error) {
	data, err := c.captureRaw(ctx)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}
	return img, nil
}

func (c *baseCapturer) Close() error {
	if c.tempDir != "" {
		return os.RemoveAll(c.tempDir)
	}
	return nil
}
