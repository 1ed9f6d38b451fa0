package speed

import (
	"sync"

	"github.com/google/uuid"
)

// Sink receives decoded samples. It is called synchronously from Decode.
type Sink func(Sample)

// Hub fans samples out to registered sinks in subscription order.
type Hub struct {
	mu    sync.Mutex
	order []string
	sinks map[string]Sink
}

// Subscribe registers a sink and returns the ID used to unsubscribe it.
func (h *Hub) Subscribe(fn Sink) string {
	id := uuid.NewString()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sinks == nil {
		h.sinks = make(map[string]Sink)
	}
	h.sinks[id] = fn
	h.order = append(h.order, id)
	return id
}

// Unsubscribe removes a sink. Unknown IDs are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sinks[id]; !ok {
		return
	}
	delete(h.sinks, id)
	for i, v := range h.order {
		if v == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Emit delivers one sample to every sink.
func (h *Hub) Emit(s Sample) {
	h.mu.Lock()
	sinks := make([]Sink, 0, len(h.order))
	for _, id := range h.order {
		sinks = append(sinks, h.sinks[id])
	}
	h.mu.Unlock()

	for _, fn := range sinks {
		fn(s)
	}
}
