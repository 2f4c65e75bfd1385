// Package screen registers one frame source per active display. The primary
// display gets high priority so it is picked by default.
package screen

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
	"github.com/snaplapse/snaplapse/pkg/source"
)

type display struct {
	index int
}

func init() {
	activeDisplays := screenshot.NumActiveDisplays()
	for i := 0; i < activeDisplays; i++ {
		priority := source.PriorityNormal
		if i == 0 {
			priority = source.PriorityHigh
		}

		source.GetManager().Register(&display{index: i}, source.Info{
			Label:    fmt.Sprintf("display %d", i),
			Priority: priority,
		})
	}
}

func (d *display) Open() error {
	return nil
}

func (d *display) Close() error {
	return nil
}

func (d *display) Capture() (image.Image, error) {
	return screenshot.CaptureDisplay(d.index)
}

func (d *display) Bounds() image.Rectangle {
	return screenshot.GetDisplayBounds(d.index)
}
