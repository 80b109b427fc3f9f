// Package dispatch fans inbound protocol events out to registered
// listeners, e.g. the global unread tracker and the currently open chat
// view at the same time.
package dispatch

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"chatsync/internal/protocol"
)

// Listener consumes one inbound event.
type Listener func(protocol.Event)

// Dispatcher invokes listeners in registration order. Func values are not
// comparable in Go, so Add returns a handle used for removal.
type Dispatcher struct {
	mu        sync.Mutex
	order     []uuid.UUID
	listeners map[uuid.UUID]Listener
}

func New() *Dispatcher {
	return &Dispatcher{listeners: make(map[uuid.UUID]Listener)}
}

// Add registers a listener and returns its handle.
func (d *Dispatcher) Add(fn Listener) uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := uuid.New()
	d.order = append(d.order, id)
	d.listeners[id] = fn
	return id
}

// Remove unregisters a listener. Unknown handles are a no-op.
func (d *Dispatcher) Remove(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.listeners[id]; !ok {
		return
	}
	delete(d.listeners, id)
	for i, o := range d.order {
		if o == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Dispatch invokes every listener registered at call time, in
// registration order. Add/Remove during a dispatch do not affect the
// in-progress one, and a panicking listener does not stop the rest.
func (d *Dispatcher) Dispatch(ev protocol.Event) {
	d.mu.Lock()
	snapshot := make([]Listener, 0, len(d.order))
	for _, id := range d.order {
		snapshot = append(snapshot, d.listeners[id])
	}
	d.mu.Unlock()

	for _, fn := range snapshot {
		invoke(fn, ev)
	}
}

func invoke(fn Listener, ev protocol.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatch: listener panic: %v", r)
		}
	}()
	fn(ev)
}
