package reactor

import "fmt"

// Kind discriminates the three signals flowing downstream on a subscription.
type Kind uint8

const (
	KindNext Kind = iota + 1
	KindError
	KindComplete
)

func (k Kind) String() string {
	switch k {
	case KindNext:
		return "next"
	case KindError:
		return "error"
	case KindComplete:
		return "complete"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Signal is one event delivered to a Subscriber: an item, an error or the completion.
type Signal[T any] struct {
	Kind  Kind
	Value T
	Err   error
}

// Next builds an item signal.
func Next[T any](v T) Signal[T] {
	return Signal[T]{Kind: KindNext, Value: v}
}

// Errored builds an error signal.
func Errored[T any](err error) Signal[T] {
	return Signal[T]{Kind: KindError, Err: err}
}

// Completed builds a completion signal.
func Completed[T any]() Signal[T] {
	return Signal[T]{Kind: KindComplete}
}

// IsTerminal reports whether no signal may follow this one.
func (s Signal[T]) IsTerminal() bool {
	return s.Kind == KindError || s.Kind == KindComplete
}

func (s Signal[T]) String() string {
	switch s.Kind {
	case KindNext:
		return fmt.Sprintf("next(%v)", s.Value)
	case KindError:
		return fmt.Sprintf("error(%v)", s.Err)
	}
	return s.Kind.String()
}

// Subscription is the link between a producer and its subscriber. The subscriber requests items and may cancel.
type Subscription interface {
	// Request adds n to the demand. n must be positive; Unbounded lifts any limit.
	Request(n int64)
	// Cancel stops the flow of signals. It is idempotent and safe from any goroutine.
	Cancel()
}

// Subscriber consumes the signals of a Flux.
//
// OnSubscribe is called once, before any signal. OnSignal is never called concurrently and never after a
// terminal signal.
type Subscriber[T any] interface {
	OnSubscribe(s Subscription)
	OnSignal(sig Signal[T])
}

// Disposable releases a resource or cancels pending work.
type Disposable interface {
	Dispose()
}

// DisposeFunc adapts a function to Disposable.
type DisposeFunc func()

func (f DisposeFunc) Dispose() { f() }

// cancelled is a Subscription doing nothing, handed to subscribers of sources that never need demand.
type cancelled struct{}

func (cancelled) Request(int64) {}
func (cancelled) Cancel()       {}
