//go:build linux

package screen

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

type linuxBackend struct{ tempDir string }

func (l *linuxBackend) captureRaw(ctx context.Context) ([]byte, error) {
	tmpFile := filepath.Join(l.tempDir, "screenshot.png")
	// Try gnome-screenshot first, fall back to scrot
	var cmd *exec.Cmd
	if _, err := exec.LookPath("gnome-screenshot"); err == nil {
		cmd = exec.CommandContext(ctx, "gnome-screenshot", "-f", tmpFile)
	} else if _, err := exec.LookPath("scrot"); err == nil {
		cmd = exec.CommandContext(ctx, "scrot", "-o", tmpFile)
	} else {
		return nil, fmt.Errorf("no screenshot tool found (install gnome-screenshot or scrot)")
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w: %s", err, out)
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
	return newBase(&linuxBackend{tempDir: tmpDir}, tmpDir), nil
}
