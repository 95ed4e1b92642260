package screen

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	"github.com/andresmejia3/itemwatch/internal/utils"
)

const megabyte = 1024 * 1024

// MJPEGReader splits a concatenated JPEG stream into images.
type MJPEGReader struct {
	scanner *bufio.Scanner
}

// NewMJPEGReader reads frames from r until EOF.
func NewMJPEGReader(r io.Reader) *MJPEGReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)
	return &MJPEGReader{scanner: scanner}
}

// Grab decodes the next frame. It returns io.EOF once the stream is exhausted.
func (m *MJPEGReader) Grab(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !m.scanner.Scan() {
		if err := m.scanner.Err(); err != nil {
			return nil, fmt.Errorf("frame scanner failed: %w", err)
		}
		return nil, io.EOF
	}
	img, err := jpeg.Decode(bytes.NewReader(m.scanner.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

func (m *MJPEGReader) Close() error { return nil }

// Replay decodes a recorded video through ffmpeg.
type Replay struct {
	*MJPEGReader
	cmd *utils.SafeCommand
	out io.ReadCloser
}

// NewReplay starts ffmpeg on path. With realtime set frames arrive at the
// video's own rate instead of as fast as they decode.
func NewReplay(path string, realtime bool) (*Replay, error) {
	cmd := utils.NewFFmpegCmd(path, realtime)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create FFmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start FFmpeg: %w", err)
	}
	return &Replay{MJPEGReader: NewMJPEGReader(out), cmd: cmd, out: out}, nil
}

// Command exposes the ffmpeg process so callers can report its stderr.
func (r *Replay) Command() *utils.SafeCommand {
	return r.cmd
}

// Close stops ffmpeg and reaps it.
func (r *Replay) Close() error {
	r.out.Close() // Ensure pipe is closed to prevent leaks/zombies
	if r.cmd.Process != nil {
		r.cmd.Process.Kill()
	}
	r.cmd.Wait()
	return nil
}
