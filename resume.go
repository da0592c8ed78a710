package reactor

import (
	"errors"
	"sync"
)

// OnErrorReturn replaces an error with fallback followed by the completion.
func (f *Flux[T]) OnErrorReturn(fallback T) *Flux[T] {
	return f.OnErrorResume(func(error) *Flux[T] { return Just(fallback) })
}

// OnErrorResume replaces an error with the sequence returned by fn. The demand not yet served by the failed
// sequence carries over to the replacement. Errors of the replacement are not recovered.
func (f *Flux[T]) OnErrorResume(fn func(err error) *Flux[T]) *Flux[T] {
	return lift(f, func(s Subscriber[T]) Subscriber[T] {
		return &resumeSubscriber[T]{actual: s, fallback: fn}
	})
}

// resumeSubscriber subscribes to the upstream first, then to the fallback. It is handed to both.
type resumeSubscriber[T any] struct {
	actual   Subscriber[T]
	fallback func(error) *Flux[T]

	mu         sync.Mutex
	current    Subscription
	requested  int64
	switched   bool
	subscribed bool
	cancelled  bool
}

func (r *resumeSubscriber[T]) OnSubscribe(up Subscription) {
	r.mu.Lock()
	if r.cancelled {
		r.mu.Unlock()
		up.Cancel()
		return
	}
	r.current = up
	first := !r.subscribed
	r.subscribed = true
	outstanding := r.requested
	r.mu.Unlock()

	if first {
		r.actual.OnSubscribe(r)
		return
	}
	if outstanding > 0 {
		up.Request(outstanding)
	}
}

func (r *resumeSubscriber[T]) OnSignal(sig Signal[T]) {
	switch sig.Kind {
	case KindNext:
		r.mu.Lock()
		if r.requested != Unbounded && r.requested > 0 {
			r.requested--
		}
		r.mu.Unlock()
		r.actual.OnSignal(sig)
	case KindError:
		r.mu.Lock()
		switched := r.switched
		r.switched = true
		r.mu.Unlock()
		if switched {
			r.actual.OnSignal(sig)
			return
		}
		next, err := guard("onErrorResume", func() (*Flux[T], error) { return r.fallback(sig.Err), nil })
		if err == nil && next == nil {
			err = newOperatorError("onErrorResume", errors.New("nil fallback"))
		}
		if err != nil {
			r.actual.OnSignal(Errored[T](err))
			return
		}
		next.subscribe(r)
	case KindComplete:
		r.actual.OnSignal(sig)
	}
}

func (r *resumeSubscriber[T]) Request(n int64) {
	r.mu.Lock()
	if n > 0 {
		r.requested = addCap(r.requested, n)
	}
	cur := r.current
	r.mu.Unlock()
	if cur != nil {
		cur.Request(n)
	}
}

func (r *resumeSubscriber[T]) Cancel() {
	r.mu.Lock()
	r.cancelled = true
	cur := r.current
	r.mu.Unlock()
	if cur != nil {
		cur.Cancel()
	}
}
