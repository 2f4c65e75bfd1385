package snaplapse

import "sync"

// Event is a host notification the recorder reacts to.
type Event int

const (
	// EventInteraction marks any non-timer input event: the user is at the
	// controls.
	EventInteraction Event = iota
	// EventRenderStart means a real render has taken over the viewport.
	// Capturing must never run concurrently with it.
	EventRenderStart
	// EventRenderEnd means the render finished.
	EventRenderEnd
)

// Hub fans host events out to subscribers. The host publishes from its event
// loop; handlers run synchronously in the publisher's goroutine, so they must
// not block.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns its unsubscribe func. Unsubscribing
// twice is harmless.
func (h *Hub) Subscribe(fn func(Event)) (unsubscribe func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Publish delivers e to every current subscriber.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	fns := make([]func(Event), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
