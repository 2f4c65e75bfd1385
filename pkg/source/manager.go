package source

import (
	"errors"
	"image"
	"sync"

	"github.com/google/uuid"
)

var errNoSource = errors.New("no frame source has been registered")

type manager struct {
	mu      sync.RWMutex
	sources map[string]*sourceWrapper
}

var defaultManager = &manager{
	sources: make(map[string]*sourceWrapper),
}

// GetManager returns the manager singleton holding every registered source.
func GetManager() *manager {
	return defaultManager
}

// Wrap guards s with an ID and a lifecycle state machine without registering
// it to the manager.
func Wrap(s Source, info Info) Registered {
	return &sourceWrapper{
		Source: s,
		id:     uuid.NewString(),
		info:   info,
		state:  StateClosed,
	}
}

// Register wraps s with an ID and a state guard and adds it to the manager.
func (m *manager) Register(s Source, info Info) error {
	w := Wrap(s, info).(*sourceWrapper)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[w.id] = w
	return nil
}

// FilterFn decides if a source should be included in the query results
type FilterFn func(Registered) bool

// FilterLabel returns a filter that matches the source label exactly.
func FilterLabel(label string) FilterFn {
	return func(r Registered) bool {
		return r.Info().Label == label
	}
}

func (m *manager) Query(f FilterFn) []Registered {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Registered, 0)
	for _, w := range m.sources {
		if f(w) {
			results = append(results, w)
		}
	}

	return results
}

// Select returns the registered source with the highest priority, or an error
// if nothing has been registered.
func (m *manager) Select() (Registered, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *sourceWrapper
	for _, w := range m.sources {
		if best == nil || w.info.Priority > best.info.Priority {
			best = w
		}
	}

	if best == nil {
		return nil, errNoSource
	}
	return best, nil
}

type sourceWrapper struct {
	Source
	id    string
	info  Info
	state State
}

func (w *sourceWrapper) ID() string {
	return w.id
}

func (w *sourceWrapper) Info() Info {
	return w.info
}

func (w *sourceWrapper) Status() State {
	return w.state
}

func (w *sourceWrapper) Open() error {
	return w.state.Update(StateOpened, w.Source.Open)
}

func (w *sourceWrapper) Close() error {
	return w.state.Update(StateClosed, w.Source.Close)
}

func (w *sourceWrapper) Start() error {
	return w.state.Update(StateRunning, func() error { return nil })
}

func (w *sourceWrapper) Stop() error {
	if w.state != StateRunning {
		return errors.New("invalid state: source hasn't been started")
	}
	w.state = StateOpened
	return nil
}

func (w *sourceWrapper) Capture() (image.Image, error) {
	if w.state == StateClosed {
		return nil, errors.New("invalid state: source hasn't been opened")
	}
	return w.Source.Capture()
}
