package assemble

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/snaplapse/snaplapse/internal/logging"
)

var logger = logging.NewLogger("snaplapse/assemble")

// FFmpeg encodes frames by piping them to the ffmpeg binary over stdin, so
// the frame order is exactly the order given and no glob patterns hit the
// shell.
type FFmpeg struct {
	// Path overrides the binary name. Empty means "ffmpeg" from PATH.
	Path string
}

func (f *FFmpeg) Encode(ctx context.Context, frames []string, outPath string, opts Options) error {
	bin := f.Path
	if bin == "" {
		bin = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-f", "image2pipe",
		"-framerate", strconv.Itoa(opts.FPS),
		"-i", "-",
		"-c:v", "libx264",
		"-crf", strconv.Itoa(opts.Quality.CRF()),
		"-pix_fmt", "yuv420p",
		outPath,
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", bin, err)
	}

	logger.Debugf("encoding %d frames into %s", len(frames), outPath)
	feedErr := feedFrames(stdin, frames)
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("%s: %w: %s", bin, err, stderr.String())
	}
	if feedErr != nil {
		os.Remove(outPath)
		return feedErr
	}
	return nil
}

func feedFrames(w io.Writer, frames []string) error {
	for _, path := range frames {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
