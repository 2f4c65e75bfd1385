// Package sink files captured frames: it scales and JPEG-encodes them, writes
// them to a staging location, and moves them into the output directory.
package sink

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/draw"

	"github.com/snaplapse/snaplapse/internal/logging"
)

var logger = logging.NewLogger("snaplapse/sink")

// timestampLayout produces names that sort lexicographically in
// chronological order.
const timestampLayout = "20060102_150405"

// Settings are the encode parameters applied to a frame.
type Settings struct {
	// Width and Height are the output dimensions. Frames with different
	// bounds are scaled. Zero means keep the frame's own size.
	Width, Height int
	// Quality is the JPEG quality, 1-100.
	Quality int
}

// Sink encodes frames and moves them into the output directory. The output
// directory is only created once a frame has actually been captured.
type Sink struct {
	dir      string
	prefix   string
	settings Settings
	stageDir string
}

// New returns a sink filing frames into dir under the given name prefix.
func New(dir, prefix string, settings Settings) *Sink {
	return &Sink{
		dir:      dir,
		prefix:   prefix,
		settings: settings,
		stageDir: os.TempDir(),
	}
}

// Timestamp formats t the way frame and video file names embed it.
func Timestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// FileName returns the frame file name for a capture taken at t.
func (s *Sink) FileName(t time.Time) string {
	return fmt.Sprintf("%s_%s.jpg", s.prefix, Timestamp(t))
}

// Apply temporarily replaces the sink's encode settings and returns a restore
// func. The caller must invoke restore on every exit path; the session's
// single capture goroutine guarantees nothing encodes in between.
func (s *Sink) Apply(override Settings) (restore func()) {
	prev := s.settings
	s.settings = override
	return func() { s.settings = prev }
}

// Encode scales img to the current settings and JPEG-encodes it into w.
func (s *Sink) Encode(w io.Writer, img image.Image) error {
	out := img
	if s.settings.Width > 0 && s.settings.Height > 0 {
		bounds := img.Bounds()
		if bounds.Dx() != s.settings.Width || bounds.Dy() != s.settings.Height {
			scaled := image.NewRGBA(image.Rect(0, 0, s.settings.Width, s.settings.Height))
			draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Src, nil)
			out = scaled
		}
	}

	return jpeg.Encode(w, out, &jpeg.Options{Quality: s.settings.Quality})
}

// WriteFile encodes img into a file at path with the current settings. The
// file is removed again if encoding fails partway.
func (s *Sink) WriteFile(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	err = s.Encode(f, img)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// SaveFrame encodes img into the staging directory and moves it into the
// output directory, returning the final path.
func (s *Sink) SaveFrame(img image.Image, now time.Time) (string, error) {
	staged := filepath.Join(s.stageDir, s.FileName(now))
	if err := s.WriteFile(img, staged); err != nil {
		return "", fmt.Errorf("sink: encode %s: %w", staged, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		os.Remove(staged)
		return "", fmt.Errorf("sink: create output dir: %w", err)
	}

	final := filepath.Join(s.dir, filepath.Base(staged))
	if err := moveFile(staged, final); err != nil {
		return "", fmt.Errorf("sink: move %s: %w", staged, err)
	}
	return final, nil
}

// moveFile renames src to dst, falling back to copy plus delete when rename
// doesn't work across filesystem boundaries.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	logger.Debugf("rename failed, copying instead: %v", err)
	return copyThenDelete(src, dst)
}

func copyThenDelete(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return err
	}

	return os.Remove(src)
}
