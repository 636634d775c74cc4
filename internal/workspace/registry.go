package workspace

import (
	"fmt"
	"sync"

	"bot-builder-go/internal/event"
)

// Handler receives change events. A returned error or a panic is reported as
// a ListenerError and does not stop delivery to later handlers.
type Handler func(event.ChangeEvent) error

// Handle identifies one subscription. The zero Handle never matches a
// subscription.
type Handle uint64

// ListenerError is a failure raised by one subscriber during Emit.
type ListenerError struct {
	Handle Handle
	Event  event.ChangeEvent
	Err    error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("change listener %d failed on %s event for block %q: %v",
		e.Handle, e.Event.Kind, e.Event.BlockID, e.Err)
}

func (e *ListenerError) Unwrap() error { return e.Err }

type subscription struct {
	handle  Handle
	handler Handler
}

// Registry fans change events out to subscribers in registration order.
type Registry struct {
	mu      sync.Mutex
	next    Handle
	subs    []subscription
	onError func(*ListenerError)
}

// NewRegistry creates an empty registry. onError, when not nil, receives
// every ListenerError captured by Emit.
func NewRegistry(onError func(*ListenerError)) *Registry {
	return &Registry{onError: onError}
}

// Subscribe registers a handler and returns its handle.
func (r *Registry) Subscribe(h Handler) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	r.subs = append(r.subs, subscription{handle: r.next, handler: h})
	return r.next
}

// Unsubscribe removes exactly one handler. Unknown or already removed handles
// are ignored.
func (r *Registry) Unsubscribe(handle Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.subs {
		if s.handle == handle {
			r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
			return
		}
	}
}

// Clear removes every handler and returns how many were registered.
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.subs)
	r.subs = nil
	return n
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Emit delivers ev synchronously to the handlers registered when Emit is
// called, in registration order. Failures are collected and returned; they
// are never propagated to the caller as a panic.
func (r *Registry) Emit(ev event.ChangeEvent) []*ListenerError {
	r.mu.Lock()
	subs := make([]subscription, len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()

	var failures []*ListenerError
	for _, s := range subs {
		if err := deliver(s.handler, ev); err != nil {
			lerr := &ListenerError{Handle: s.handle, Event: ev, Err: err}
			failures = append(failures, lerr)
			if r.onError != nil {
				r.onError(lerr)
			}
		}
	}
	return failures
}

func deliver(h Handler, ev event.ChangeEvent) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return h(ev)
}
