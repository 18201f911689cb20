// Package events provides the synchronous lifecycle event notifier.
package events

import (
	"log/slog"
	"sync"

	"github.com/relaykit/baton/internal/domain/event"
)

// Handler receives a lifecycle event at the point of the state transition.
// Handlers run synchronously on the emitting goroutine and must return
// quickly; long-running work belongs on the handler's own goroutine.
type Handler func(evt event.Event)

type subscription struct {
	id      int64
	handler Handler
}

// Notifier is a synchronous observer registry for lifecycle events.
// Handlers for an event type are invoked in registration order.
type Notifier struct {
	mu     sync.RWMutex
	nextID int64
	subs   map[event.Type][]subscription
}

// NewNotifier creates an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[event.Type][]subscription)}
}

// On registers handler for the given event type and returns a subscription
// id usable with Off.
func (n *Notifier) On(t event.Type, handler Handler) int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	n.subs[t] = append(n.subs[t], subscription{id: n.nextID, handler: handler})
	return n.nextID
}

// Off removes the subscription with the given id. Unknown ids are ignored.
func (n *Notifier) Off(t event.Type, id int64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	subs := n.subs[t]
	for i := range subs {
		if subs[i].id == id {
			n.subs[t] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Emit invokes all handlers registered for evt.Type in registration order.
// A panicking handler is recovered and logged; later handlers still run.
func (n *Notifier) Emit(evt event.Event) {
	n.mu.RLock()
	subs := make([]subscription, len(n.subs[evt.Type]))
	copy(subs, n.subs[evt.Type])
	n.mu.RUnlock()

	for _, s := range subs {
		n.dispatch(s, evt)
	}
}

// HandlerCount returns the number of handlers registered for t.
func (n *Notifier) HandlerCount(t event.Type) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs[t])
}

func (n *Notifier) dispatch(s subscription, evt event.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "event", string(evt.Type), "panic", r)
		}
	}()
	s.handler(evt)
}
