package surface

import (
	"sync"

	"bot-builder-go/internal/event"
	"bot-builder-go/internal/program"
	"go.uber.org/zap"
)

type listener struct {
	id event.ListenerID
	fn func(event.Raw)
}

// Headless is a rendering surface without a display. It keeps the last
// rendered program and forwards edits posted by a remote editor (the browser
// client, or a test) to the attached change listeners.
type Headless struct {
	mu        sync.Mutex
	logger    *zap.Logger
	next      event.ListenerID
	listeners []listener
	rendered  *program.Graph
}

// NewHeadless creates a surface with no listeners.
func NewHeadless(logger *zap.Logger) *Headless {
	return &Headless{logger: logger.Named("surface")}
}

// AddChangeListener attaches fn to the surface's change events.
func (h *Headless) AddChangeListener(fn func(event.Raw)) event.ListenerID {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	h.listeners = append(h.listeners, listener{id: h.next, fn: fn})
	return h.next
}

// RemoveChangeListener detaches a listener. Unknown ids are ignored.
func (h *Headless) RemoveChangeListener(id event.ListenerID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, l := range h.listeners {
		if l.id == id {
			h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
			return
		}
	}
}

// Render stores a copy of the program as the displayed one.
func (h *Headless) Render(g *program.Graph) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.rendered = g.Clone()
	h.logger.Debug("Rendered program", zap.Int("blocks", g.Len()))
	return nil
}

// Rendered returns a copy of the last rendered program, or nil.
func (h *Headless) Rendered() *program.Graph {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rendered == nil {
		return nil
	}
	return h.rendered.Clone()
}

// Listeners returns the number of attached change listeners.
func (h *Headless) Listeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// Fire delivers a raw edit to every attached listener in attach order. It
// returns the number of listeners reached.
func (h *Headless) Fire(raw event.Raw) int {
	h.mu.Lock()
	targets := make([]listener, len(h.listeners))
	copy(targets, h.listeners)
	h.mu.Unlock()

	for _, l := range targets {
		l.fn(raw)
	}
	return len(targets)
}
