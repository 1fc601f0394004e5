package forge

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
)

// FrameSource yields one rendered frame per call. The render
// collaborator provides the implementation.
type FrameSource interface {
	CaptureFrame() (image.Image, error)
}

// CaptureSession writes a sequence of frames to PNG files. Cancellation
// is cooperative: the flag is checked between frames, never mid-encode,
// so every file on disk is complete.
type CaptureSession struct {
	source FrameSource
	dir    string
	log    Logger

	cancelled atomic.Bool
	written   atomic.Int32
}

func NewCaptureSession(source FrameSource, dir string, log Logger) *CaptureSession {
	if log == nil {
		log = NewNopLogger()
	}
	return &CaptureSession{source: source, dir: dir, log: log}
}

// Cancel requests a stop. The frame currently being written still
// completes.
func (s *CaptureSession) Cancel() { s.cancelled.Store(true) }

// Written reports how many frames have been flushed so far.
func (s *CaptureSession) Written() int { return int(s.written.Load()) }

// Run captures up to frameCount frames, stopping early on Cancel or ctx
// expiry. Returns the paths written; a partial sequence is not an error.
func (s *CaptureSession) Run(ctx context.Context, frameCount int) ([]string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, err
	}

	var paths []string
	for i := 0; i < frameCount; i++ {
		if s.cancelled.Load() {
			s.log.Infof("capture cancelled after %d frames", len(paths))
			return paths, nil
		}
		select {
		case <-ctx.Done():
			return paths, ctx.Err()
		default:
		}

		img, err := s.source.CaptureFrame()
		if err != nil {
			return paths, fmt.Errorf("capture frame %d: %w", i, err)
		}

		path := filepath.Join(s.dir, fmt.Sprintf("frame_%04d.png", i))
		if err := writePNG(path, img); err != nil {
			return paths, err
		}
		paths = append(paths, path)
		s.written.Add(1)
	}
	return paths, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
