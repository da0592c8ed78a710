package reactor

import (
	"sync"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// emitter serializes the signals sent to a subscriber.
//
// Signals offered concurrently, or reentrantly from within OnSignal, are queued and delivered in order by
// the goroutine currently draining. Nothing is accepted after a terminal signal.
type emitter[T any] struct {
	actual Subscriber[T]

	mu       sync.Mutex
	queue    *linkedlistqueue.Queue
	draining bool
	done     bool
}

func newEmitter[T any](actual Subscriber[T]) *emitter[T] {
	return &emitter[T]{actual: actual, queue: linkedlistqueue.New()}
}

// emit delivers or queues sig. It reports false when sig was refused because a terminal signal went first.
func (e *emitter[T]) emit(sig Signal[T]) bool {
	e.mu.Lock()
	if e.done {
		e.mu.Unlock()
		onSignalDropped(sig)
		return false
	}
	e.done = sig.IsTerminal()
	e.queue.Enqueue(sig)
	if e.draining {
		e.mu.Unlock()
		return true
	}
	e.draining = true
	for {
		v, ok := e.queue.Dequeue()
		if !ok {
			e.draining = false
			e.mu.Unlock()
			return true
		}
		e.mu.Unlock()
		e.actual.OnSignal(v.(Signal[T]))
		e.mu.Lock()
	}
}

