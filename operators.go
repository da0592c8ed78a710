package reactor

import "errors"

// lift builds a Flux whose subscribers are wrapped by op before they reach src.
func lift[T, U any](src *Flux[T], op func(Subscriber[U]) Subscriber[T]) *Flux[U] {
	return newFlux(func(s Subscriber[U]) {
		src.subscribe(op(s))
	})
}

// Map transforms each item with fn. A panic in fn cancels the upstream and is emitted as an OperatorError.
func Map[T, U any](src *Flux[T], fn func(T) U) *Flux[U] {
	return TryMap(src, func(v T) (U, error) { return fn(v), nil })
}

// TryMap transforms each item with fn. An error or a panic in fn cancels the upstream and is emitted as an
// OperatorError.
func TryMap[T, U any](src *Flux[T], fn func(T) (U, error)) *Flux[U] {
	return lift(src, func(s Subscriber[U]) Subscriber[T] {
		return &mapSubscriber[T, U]{actual: s, fn: func(v T) (U, bool, error) {
			u, err := guard("map", func() (U, error) { return fn(v) })
			if err != nil {
				var opErr *OperatorError
				if !errors.As(err, &opErr) {
					err = newOperatorError("map", err)
				}
			}
			return u, true, err
		}}
	})
}

// Filter keeps the items matching p. Every dropped item is requested again from the upstream, so the
// downstream demand is never starved.
func (f *Flux[T]) Filter(p func(T) bool) *Flux[T] {
	return lift(f, func(s Subscriber[T]) Subscriber[T] {
		return &mapSubscriber[T, T]{actual: s, fn: func(v T) (T, bool, error) {
			keep, err := guard("filter", func() (bool, error) { return p(v), nil })
			return v, keep, err
		}}
	})
}

// DoOnNext calls fn with each item before passing it on.
func (f *Flux[T]) DoOnNext(fn func(T)) *Flux[T] {
	return lift(f, func(s Subscriber[T]) Subscriber[T] {
		return &mapSubscriber[T, T]{actual: s, fn: func(v T) (T, bool, error) {
			_, err := guard("doOnNext", func() (struct{}, error) { fn(v); return struct{}{}, nil })
			return v, true, err
		}}
	})
}

// DoOnRequest calls fn with each demand issued by the downstream.
func (f *Flux[T]) DoOnRequest(fn func(n int64)) *Flux[T] {
	return lift(f, func(s Subscriber[T]) Subscriber[T] {
		return &peekSubscriber[T]{actual: s, onRequest: fn}
	})
}

// DoOnError calls fn with the error terminating the sequence before passing it on.
func (f *Flux[T]) DoOnError(fn func(error)) *Flux[T] {
	return lift(f, func(s Subscriber[T]) Subscriber[T] {
		return &peekSubscriber[T]{actual: s, onError: fn}
	})
}

// mapSubscriber applies fn to each item. fn returns the item to emit, whether to emit it, or an error
// terminating the sequence.
type mapSubscriber[T, U any] struct {
	actual   Subscriber[U]
	fn       func(T) (U, bool, error)
	upstream Subscription
	done     bool
}

func (m *mapSubscriber[T, U]) OnSubscribe(up Subscription) {
	m.upstream = up
	m.actual.OnSubscribe(m)
}

func (m *mapSubscriber[T, U]) OnSignal(sig Signal[T]) {
	if m.done {
		onSignalDropped(sig)
		return
	}
	switch sig.Kind {
	case KindNext:
		v, keep, err := m.fn(sig.Value)
		switch {
		case err != nil:
			m.done = true
			m.upstream.Cancel()
			m.actual.OnSignal(Errored[U](err))
		case keep:
			m.actual.OnSignal(Next(v))
		default:
			m.upstream.Request(1)
		}
	case KindError:
		m.done = true
		m.actual.OnSignal(Errored[U](sig.Err))
	case KindComplete:
		m.done = true
		m.actual.OnSignal(Completed[U]())
	}
}

func (m *mapSubscriber[T, U]) Request(n int64) { m.upstream.Request(n) }
func (m *mapSubscriber[T, U]) Cancel()         { m.upstream.Cancel() }

// peekSubscriber observes requests and errors without altering the sequence.
type peekSubscriber[T any] struct {
	actual    Subscriber[T]
	onRequest func(int64)
	onError   func(error)
	upstream  Subscription
}

func (p *peekSubscriber[T]) OnSubscribe(up Subscription) {
	p.upstream = up
	p.actual.OnSubscribe(p)
}

func (p *peekSubscriber[T]) OnSignal(sig Signal[T]) {
	if sig.Kind == KindError && p.onError != nil {
		if _, err := guard("doOnError", func() (struct{}, error) { p.onError(sig.Err); return struct{}{}, nil }); err != nil {
			sig.Err = errors.Join(sig.Err, err)
		}
	}
	p.actual.OnSignal(sig)
}

func (p *peekSubscriber[T]) Request(n int64) {
	if p.onRequest != nil {
		p.onRequest(n)
	}
	p.upstream.Request(n)
}

func (p *peekSubscriber[T]) Cancel() { p.upstream.Cancel() }
