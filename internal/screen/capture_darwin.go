//go:build darwin

package screen

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

type darwinBackend struct{ tempDir string }

func (d *darwinBackend) captureRaw(ctx context.Context) ([]byte, error) {
	tmpFile := filepath.Join(d.tempDir, "screenshot.png")
	// -x: no sound, -m: main display only
	cmd := exec.CommandContext(ctx, "screencapture", "-x", "-t", "png", "-m", tmpFile)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("screencapture failed: %w: %s", err, out)
	}
	data, err := os.ReadFile(tmpFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read screenshot: %w", err)
	}
	os.Remove(tmpFile)
	return data, nil
}

// New creates a platform-specific screen grabber
func New() (Grabber, error) {
	tmpDir, err := os.MkdirTemp("", "itemwatch-screen-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	return newBase(&darwinBackend{tempDir: tmpDir}, tmpDir), nil
}
