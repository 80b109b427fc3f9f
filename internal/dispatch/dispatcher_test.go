package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chatsync/internal/dispatch"
	"chatsync/internal/protocol"
)

func TestDispatchRegistrationOrder(t *testing.T) {
	d := dispatch.New()

	var calls []string
	d.Add(func(protocol.Event) { calls = append(calls, "first") })
	d.Add(func(protocol.Event) { calls = append(calls, "second") })
	d.Add(func(protocol.Event) { calls = append(calls, "third") })

	d.Dispatch(protocol.Ping{})

	assert.Equal(t, []string{"first", "second", "third"}, calls)
}

func TestRemoveStopsDelivery(t *testing.T) {
	d := dispatch.New()

	var aCalls, bCalls int
	a := d.Add(func(protocol.Event) { aCalls++ })
	d.Add(func(protocol.Event) { bCalls++ })

	d.Dispatch(protocol.Ping{})
	d.Remove(a)
	d.Dispatch(protocol.Ping{})

	assert.Equal(t, 1, aCalls)
	assert.Equal(t, 2, bCalls)
}

func TestRemoveUnknownHandleIsNoop(t *testing.T) {
	d := dispatch.New()

	var calls int
	id := d.Add(func(protocol.Event) { calls++ })
	d.Remove(id)
	d.Remove(id)

	d.Dispatch(protocol.Ping{})
	assert.Zero(t, calls)
}

func TestRemoveDuringDispatchUsesSnapshot(t *testing.T) {
	d := dispatch.New()

	var laterCalls int
	var removed func()
	d.Add(func(protocol.Event) { removed() })
	target := d.Add(func(protocol.Event) { laterCalls++ })
	removed = func() { d.Remove(target) }

	// The first listener removes the second mid-dispatch; the snapshot
	// still delivers this event to it.
	d.Dispatch(protocol.Ping{})
	assert.Equal(t, 1, laterCalls)

	d.Dispatch(protocol.Ping{})
	assert.Equal(t, 1, laterCalls)
}

func TestAddDuringDispatchNotInvokedThisRound(t *testing.T) {
	d := dispatch.New()

	var newCalls int
	d.Add(func(protocol.Event) {
		d.Add(func(protocol.Event) { newCalls++ })
	})

	d.Dispatch(protocol.Ping{})
	assert.Zero(t, newCalls)

	d.Dispatch(protocol.Ping{})
	assert.Equal(t, 1, newCalls)
}

func TestPanickingListenerDoesNotStopTheRest(t *testing.T) {
	d := dispatch.New()

	var after int
	d.Add(func(protocol.Event) { panic("listener bug") })
	d.Add(func(protocol.Event) { after++ })

	assert.NotPanics(t, func() { d.Dispatch(protocol.Ping{}) })
	assert.Equal(t, 1, after)
}
