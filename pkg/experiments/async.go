package experiments

import "sync"

// AsyncNotifier forwards events to another notifier from a single observer goroutine.
// Notify blocks once the buffer is full, so a slow observer throttles the render
// instead of dropping events.
type AsyncNotifier struct {
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// Async starts forwarding events to n through a buffer of bufferSize events
func Async(n Notifier, bufferSize int) *AsyncNotifier {
	a := &AsyncNotifier{
		events: make(chan Event, max(0, bufferSize)),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(a.done)
		for ev := range a.events {
			n.Notify(ev)
		}
	}()
	return a
}

// Notify implements Notifier. It must not be called after Close.
func (a *AsyncNotifier) Notify(ev Event) {
	a.events <- ev
}

// Close stops accepting events and waits until every buffered event is delivered
func (a *AsyncNotifier) Close() {
	a.once.Do(func() { close(a.events) })
	<-a.done
}
