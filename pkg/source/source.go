package source

import "image"

// Source produces still frames of whatever the host application is currently
// displaying. Implementations must be safe to reopen after Close.
type Source interface {
	Open() error
	Close() error
	Capture() (image.Image, error)
	Bounds() image.Rectangle
}

// Priority describes how likely a source gets selected when several are
// registered.
type Priority float32

const (
	// PriorityHigh is the highest priority level, used for the primary display.
	PriorityHigh Priority = 0.75
	// PriorityNormal is the default priority level.
	PriorityNormal Priority = 0.5
	// PriorityLow is the lowest priority level.
	PriorityLow Priority = 0.25
)

// Info describes a registered source.
type Info struct {
	Label    string
	Priority Priority
}

// Registered is a Source that has been registered to the manager. The manager
// assigns it an ID and guards its lifecycle with a state machine.
type Registered interface {
	Source
	ID() string
	Info() Info
	Status() State
	// Start marks the source as actively feeding a capture session.
	Start() error
	// Stop returns a started source to the opened state.
	Stop() error
}
