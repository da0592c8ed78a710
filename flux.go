package reactor

import (
	"fmt"
	"sync/atomic"
)

// Flux describes a stream of 0 to N items followed by a completion or an error.
//
// A Flux is an immutable pipeline description: nothing happens until it is subscribed, and every
// subscription runs on its own fresh state.
type Flux[T any] struct {
	subscribe func(Subscriber[T])
}

func newFlux[T any](subscribe func(Subscriber[T])) *Flux[T] {
	return &Flux[T]{subscribe: subscribe}
}

// SubscribeWith subscribes s, which controls the demand through the Subscription it receives.
//
// s receives its Subscription before the pipeline is wired: requests issued from OnSubscribe are
// buffered until the upstream is ready. Signals reach s serially, never after a terminal signal, and
// never beyond the requested demand.
func (f *Flux[T]) SubscribeWith(s Subscriber[T]) {
	strict := newStrictSubscriber(s)
	s.OnSubscribe(strict)
	f.subscribe(strict)
}

// Subscribe subscribes with callbacks and an unbounded demand. Any callback may be nil; an error without
// onError goes to the diagnostic sink. The returned Disposable cancels the subscription.
func (f *Flux[T]) Subscribe(onNext func(T), onError func(error), onComplete func()) Disposable {
	l := &lambdaSubscriber[T]{onNext: onNext, onError: onError, onComplete: onComplete}
	strict := newStrictSubscriber[T](l)
	l.OnSubscribe(strict)
	f.subscribe(strict)
	return DisposeFunc(strict.Cancel)
}

const (
	stateUnsubscribed int32 = iota
	stateActive
	stateTerminated
)

// strictSubscriber sits between a pipeline and the subscriber at its end, and enforces the signal contract.
type strictSubscriber[T any] struct {
	actual   Subscriber[T]
	emitter  *emitter[T]
	state    atomic.Int32
	upstream atomic.Pointer[Subscription]
	pending  Demand // requested before the upstream arrived
	demand   Demand // outstanding, checked against every item
}

func newStrictSubscriber[T any](actual Subscriber[T]) *strictSubscriber[T] {
	return &strictSubscriber[T]{actual: actual, emitter: newEmitter(actual)}
}

func (s *strictSubscriber[T]) OnSubscribe(up Subscription) {
	if !s.state.CompareAndSwap(stateUnsubscribed, stateActive) {
		if s.state.Load() == stateActive {
			Logger().Debug(fmt.Sprintf("%v: subscription already set", ErrProtocolViolation))
		}
		up.Cancel()
		return
	}
	s.upstream.Store(&up)
	if s.state.Load() == stateTerminated {
		up.Cancel()
		return
	}
	if n := s.pending.take(); n > 0 {
		up.Request(n)
	}
}

func (s *strictSubscriber[T]) OnSignal(sig Signal[T]) {
	if s.state.Load() == stateTerminated {
		onSignalDropped(sig)
		return
	}
	if sig.Kind == KindNext {
		if !s.demand.TryConsume() {
			s.fail(fmt.Errorf("%w: item delivered without demand", ErrProtocolViolation))
			return
		}
		s.emitter.emit(sig)
		return
	}
	if s.state.Swap(stateTerminated) == stateTerminated {
		onSignalDropped(sig)
		return
	}
	s.emitter.emit(sig)
}

func (s *strictSubscriber[T]) Request(n int64) {
	if n <= 0 {
		s.fail(badRequest(n))
		return
	}
	if s.state.Load() == stateTerminated {
		return
	}
	s.demand.Add(n)
	s.pending.Add(n)
	if up := s.upstream.Load(); up != nil {
		if r := s.pending.take(); r > 0 {
			(*up).Request(r)
		}
	}
}

func (s *strictSubscriber[T]) Cancel() {
	if s.state.Swap(stateTerminated) == stateTerminated {
		return
	}
	if up := s.upstream.Load(); up != nil {
		(*up).Cancel()
	}
}

// fail terminates the subscription with err, whatever the upstream does next.
func (s *strictSubscriber[T]) fail(err error) {
	if s.state.Swap(stateTerminated) == stateTerminated {
		return
	}
	if up := s.upstream.Load(); up != nil {
		(*up).Cancel()
	}
	s.emitter.emit(Errored[T](err))
}

// lambdaSubscriber backs Subscribe.
type lambdaSubscriber[T any] struct {
	onNext     func(T)
	onError    func(error)
	onComplete func()
	sub        Subscription
}

func (l *lambdaSubscriber[T]) OnSubscribe(s Subscription) {
	l.sub = s
	s.Request(Unbounded)
}

func (l *lambdaSubscriber[T]) OnSignal(sig Signal[T]) {
	switch sig.Kind {
	case KindNext:
		if l.onNext == nil {
			return
		}
		if _, err := guard("subscribe", func() (struct{}, error) { l.onNext(sig.Value); return struct{}{}, nil }); err != nil {
			l.sub.Cancel()
			l.error(err)
		}
	case KindError:
		l.error(sig.Err)
	case KindComplete:
		if l.onComplete != nil {
			l.onComplete()
		}
	}
}

func (l *lambdaSubscriber[T]) error(err error) {
	if l.onError == nil {
		onErrorDropped(err)
		return
	}
	l.onError(err)
}

// BaseSubscriber is a Subscriber built from hooks. Hooks may call Request and Cancel.
//
// Without OnSubscribeHook, it requests an unbounded demand. Without OnErrorHook, errors go to the
// diagnostic sink.
type BaseSubscriber[T any] struct {
	OnSubscribeHook func(s Subscription)
	OnNextHook      func(v T)
	OnErrorHook     func(err error)
	OnCompleteHook  func()

	sub atomic.Pointer[Subscription]
}

func (b *BaseSubscriber[T]) OnSubscribe(s Subscription) {
	b.sub.Store(&s)
	if b.OnSubscribeHook == nil {
		s.Request(Unbounded)
		return
	}
	b.OnSubscribeHook(s)
}

func (b *BaseSubscriber[T]) OnSignal(sig Signal[T]) {
	switch sig.Kind {
	case KindNext:
		if b.OnNextHook != nil {
			b.OnNextHook(sig.Value)
		}
	case KindError:
		if b.OnErrorHook == nil {
			onErrorDropped(sig.Err)
			return
		}
		b.OnErrorHook(sig.Err)
	case KindComplete:
		if b.OnCompleteHook != nil {
			b.OnCompleteHook()
		}
	}
}

// Request asks n more items. It is a no-op before the subscriber is subscribed.
func (b *BaseSubscriber[T]) Request(n int64) {
	if s := b.sub.Load(); s != nil {
		(*s).Request(n)
	}
}

// Cancel cancels the subscription.
func (b *BaseSubscriber[T]) Cancel() {
	if s := b.sub.Load(); s != nil {
		(*s).Cancel()
	}
}
