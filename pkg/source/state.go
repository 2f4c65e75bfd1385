package source

import "fmt"

// State represents a source's lifecycle state
type State string

const (
	// StateClosed means that the source has not been opened. In this state,
	// nothing is known about the underlying display yet and Capture will fail.
	StateClosed State = "closed"
	// StateOpened means that the source is ready and its bounds are known.
	// Trial captures run in this state.
	StateOpened State = "opened"
	// StateRunning means that a capture session is actively pulling frames
	// from the source.
	StateRunning State = "running"
)

// Update updates current state, s, to next. If f fails to execute,
// s will stay unchanged. Otherwise, s will be updated to next
func (s *State) Update(next State, f func() error) error {
	type checkFunc func() error
	m := map[State]checkFunc{
		StateOpened:  s.toOpened,
		StateClosed:  s.toClosed,
		StateRunning: s.toRunning,
	}

	err := m[next]()
	if err != nil {
		return err
	}

	err = f()
	if err == nil {
		*s = next
	}
	return err
}

func (s *State) toOpened() error {
	if *s != StateClosed {
		return fmt.Errorf("invalid state: source is already opened")
	}
	return nil
}

func (s *State) toClosed() error {
	return nil
}

func (s *State) toRunning() error {
	if *s == StateClosed {
		return fmt.Errorf("invalid state: source is closed")
	}

	if *s == StateRunning {
		return fmt.Errorf("invalid state: source is already running")
	}

	return nil
}
