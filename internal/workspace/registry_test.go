package workspace

import (
	"errors"
	"testing"
	"time"

	"bot-builder-go/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent(kind event.Kind) event.ChangeEvent {
	return event.ChangeEvent{Kind: kind, BlockID: "b1", Timestamp: time.Unix(1700000000, 0)}
}

func TestRegistry_DeliversInRegistrationOrder(t *testing.T) {
	r := NewRegistry(nil)
	var order []int
	for i := 1; i <= 3; i++ {
		r.Subscribe(func(event.ChangeEvent) error {
			order = append(order, i)
			return nil
		})
	}

	failures := r.Emit(sampleEvent(event.KindCreate))

	assert.Empty(t, failures)
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestRegistry_Unsubscribe(t *testing.T) {
	r := NewRegistry(nil)
	var calls []string
	a := r.Subscribe(func(event.ChangeEvent) error { calls = append(calls, "a"); return nil })
	r.Subscribe(func(event.ChangeEvent) error { calls = append(calls, "b"); return nil })

	r.Unsubscribe(a)
	r.Unsubscribe(a)  // already removed
	r.Unsubscribe(99) // never issued
	r.Emit(sampleEvent(event.KindMove))

	assert.Equal(t, []string{"b"}, calls)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_FailuresDoNotStopDelivery(t *testing.T) {
	var reported []*ListenerError
	r := NewRegistry(func(err *ListenerError) { reported = append(reported, err) })

	boom := errors.New("boom")
	var reached bool
	failing := r.Subscribe(func(event.ChangeEvent) error { return boom })
	panicking := r.Subscribe(func(event.ChangeEvent) error { panic("kaboom") })
	r.Subscribe(func(event.ChangeEvent) error { reached = true; return nil })

	var failures []*ListenerError
	require.NotPanics(t, func() { failures = r.Emit(sampleEvent(event.KindDelete)) })

	assert.True(t, reached)
	require.Len(t, failures, 2)
	assert.Equal(t, failures, reported)
	assert.Equal(t, failing, failures[0].Handle)
	assert.ErrorIs(t, failures[0], boom)
	assert.Equal(t, panicking, failures[1].Handle)
	assert.Contains(t, failures[1].Error(), "panic: kaboom")
	assert.Equal(t, event.KindDelete, failures[1].Event.Kind)
}

func TestRegistry_ClearLeavesNoHandlers(t *testing.T) {
	r := NewRegistry(nil)
	fired := 0
	handles := []Handle{
		r.Subscribe(func(event.ChangeEvent) error { fired++; return nil }),
		r.Subscribe(func(event.ChangeEvent) error { fired++; return nil }),
		r.Subscribe(func(event.ChangeEvent) error { fired++; return nil }),
	}
	r.Unsubscribe(handles[1])

	assert.Equal(t, 2, r.Clear())
	assert.Equal(t, 0, r.Clear())
	r.Emit(sampleEvent(event.KindCreate))
	assert.Zero(t, fired)
}

func TestRegistry_HandlerMayUnsubscribeDuringEmit(t *testing.T) {
	r := NewRegistry(nil)
	var self Handle
	calls := 0
	self = r.Subscribe(func(event.ChangeEvent) error {
		calls++
		r.Unsubscribe(self)
		return nil
	})

	r.Emit(sampleEvent(event.KindCreate))
	r.Emit(sampleEvent(event.KindCreate))

	assert.Equal(t, 1, calls)
}
