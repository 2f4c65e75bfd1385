// Package assemble turns a directory of timestamped frames into a single
// video file.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNoFrames is returned when the output directory holds no matching frames.
var ErrNoFrames = errors.New("no frames found")

// Quality selects the video encode quality tier.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// CRF maps the tier to an H.264 constant rate factor.
func (q Quality) CRF() int {
	switch q {
	case QualityLow:
		return 28
	case QualityHigh:
		return 18
	default:
		return 23
	}
}

// Options are the video encode parameters.
type Options struct {
	FPS     int
	Quality Quality
}

// Encoder encodes an ordered list of frame files into a video at outPath.
type Encoder interface {
	Encode(ctx context.Context, frames []string, outPath string, opts Options) error
}

// Gather lists the frame files under dir whose names carry prefix, sorted
// lexicographically. The timestamp embedded in the names makes that order
// chronological. A missing directory yields an empty list, not an error.
func Gather(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var frames []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.EqualFold(filepath.Ext(name), ".jpg") {
			frames = append(frames, filepath.Join(dir, name))
		}
	}

	sort.Strings(frames)
	return frames, nil
}

// Assemble gathers the frames under dir and encodes them into a freshly
// timestamped video next to them, returning the output path. No output file
// is left behind on failure.
func Assemble(ctx context.Context, enc Encoder, dir, prefix string, opts Options, now time.Time) (string, error) {
	frames, err := Gather(dir, prefix)
	if err != nil {
		return "", fmt.Errorf("assemble: %w", err)
	}
	if len(frames) == 0 {
		return "", ErrNoFrames
	}

	outPath := filepath.Join(dir, fmt.Sprintf("%s_%s.mp4", prefix, now.Format("20060102_150405")))
	if err := enc.Encode(ctx, frames, outPath, opts); err != nil {
		return "", fmt.Errorf("assemble: %w", err)
	}
	return outPath, nil
}
