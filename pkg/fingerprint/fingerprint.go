// Package fingerprint implements the skip-unchanged heuristic: a tiny probe
// encode of each frame is digested and compared against the previous one.
// Lossy encoding noise can flag false changes and downscaling can mask real
// ones; the digest is a heuristic, not a guarantee.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
)

// Probe encode parameters. Small enough that the probe costs almost nothing
// next to a full frame encode.
const (
	ProbeWidth   = 128
	ProbeHeight  = 72
	ProbeQuality = 70
)

// Sum digests encoded probe bytes.
func Sum(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// Tracker remembers the digest of the previous probe frame.
type Tracker struct {
	last string
}

// Changed records sum and reports whether it differs from the previous one.
// An empty sum (a failed probe) always counts as changed.
func (t *Tracker) Changed(sum string) bool {
	if sum != "" && sum == t.last {
		return false
	}
	t.last = sum
	return true
}

// Reset forgets the previous digest so the next frame is always kept.
func (t *Tracker) Reset() {
	t.last = ""
}
