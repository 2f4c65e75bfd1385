package snaplapse

import (
	"fmt"
	"path/filepath"

	"github.com/snaplapse/snaplapse/pkg/assemble"
)

// Resolution is the fixed output resolution preset for captured frames.
type Resolution string

const (
	Resolution1080p Resolution = "1080p"
	Resolution720p  Resolution = "720p"
)

// Dims returns the pixel dimensions of the preset.
func (r Resolution) Dims() (width, height int) {
	if r == Resolution720p {
		return 1280, 720
	}
	return 1920, 1080
}

// Config holds every user-set value. It is immutable during a session; edits
// take effect the next time a session starts.
type Config struct {
	// DocumentPath is the saved host document the timelapse belongs to.
	// Starting a session requires it: frames default to living next to it.
	DocumentPath string
	// OutputDir is where frames and videos land. Empty means a "timelapse"
	// folder next to the document.
	OutputDir string
	// Prefix is the file name prefix for frames and videos.
	Prefix string
	// Interval is the seconds between captures, at least 1.
	Interval int
	// Quality is the JPEG quality of captured frames, 1-100.
	Quality int
	// Resolution selects the frame resolution preset.
	Resolution Resolution
	// FPS is the assembled video frame rate, 1-120.
	FPS int
	// VideoQuality selects the assembled video quality tier.
	VideoQuality assemble.Quality
	// SkipUnchanged skips frames whose probe fingerprint matches the
	// previous one.
	SkipUnchanged bool
}

// DefaultConfig returns the configuration the host UI starts from.
func DefaultConfig() Config {
	return Config{
		Prefix:        "snap",
		Interval:      10,
		Quality:       70,
		Resolution:    Resolution1080p,
		FPS:           24,
		VideoQuality:  assemble.QualityMedium,
		SkipUnchanged: true,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Prefix == "" {
		c.Prefix = def.Prefix
	}
	if c.Interval == 0 {
		c.Interval = def.Interval
	}
	if c.Quality == 0 {
		c.Quality = def.Quality
	}
	if c.Resolution == "" {
		c.Resolution = def.Resolution
	}
	if c.FPS == 0 {
		c.FPS = def.FPS
	}
	if c.VideoQuality == "" {
		c.VideoQuality = def.VideoQuality
	}
}

func (c *Config) validate() error {
	if c.Interval < 1 {
		return fmt.Errorf("config: interval must be at least 1 second, got %d", c.Interval)
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("config: quality must be within 1-100, got %d", c.Quality)
	}
	switch c.Resolution {
	case Resolution1080p, Resolution720p:
	default:
		return fmt.Errorf("config: unknown resolution %q", c.Resolution)
	}
	if c.FPS < 1 || c.FPS > 120 {
		return fmt.Errorf("config: fps must be within 1-120, got %d", c.FPS)
	}
	switch c.VideoQuality {
	case assemble.QualityLow, assemble.QualityMedium, assemble.QualityHigh:
	default:
		return fmt.Errorf("config: unknown video quality %q", c.VideoQuality)
	}
	return nil
}

// outputDir resolves the effective output directory.
func (c *Config) outputDir() string {
	if c.OutputDir != "" {
		return c.OutputDir
	}
	return filepath.Join(filepath.Dir(c.DocumentPath), "timelapse")
}
