package reactor

import "sync/atomic"

// SubscribeOn subscribes to f, and issues its requests, on sched rather than on the calling goroutine.
// Items keep being delivered on whatever goroutine produces them.
func (f *Flux[T]) SubscribeOn(sched Scheduler) *Flux[T] {
	return newFlux(func(s Subscriber[T]) {
		so := &subscribeOnSubscriber[T]{sched: sched, emitter: newEmitter(s)}
		s.OnSubscribe(so)
		if _, err := sched.Schedule(func() { f.subscribe(so) }); err != nil {
			so.fail(err)
		}
	})
}

type subscribeOnSubscriber[T any] struct {
	sched     Scheduler
	emitter   *emitter[T]
	upstream  atomic.Pointer[Subscription]
	pending   Demand
	cancelled atomic.Bool
}

func (s *subscribeOnSubscriber[T]) OnSubscribe(up Subscription) {
	s.upstream.Store(&up)
	if s.cancelled.Load() {
		up.Cancel()
		return
	}
	if n := s.pending.take(); n > 0 {
		up.Request(n)
	}
}

func (s *subscribeOnSubscriber[T]) OnSignal(sig Signal[T]) {
	s.emitter.emit(sig)
}

func (s *subscribeOnSubscriber[T]) Request(n int64) {
	if n <= 0 {
		s.fail(badRequest(n))
		return
	}
	s.pending.Add(n)
	up := s.upstream.Load()
	if up == nil {
		return
	}
	r := s.pending.take()
	if r == 0 {
		return
	}
	if _, err := s.sched.Schedule(func() { (*up).Request(r) }); err != nil {
		s.fail(err)
	}
}

func (s *subscribeOnSubscriber[T]) Cancel() {
	if s.cancelled.Swap(true) {
		return
	}
	if up := s.upstream.Load(); up != nil {
		(*up).Cancel()
	}
}

func (s *subscribeOnSubscriber[T]) fail(err error) {
	s.Cancel()
	s.emitter.emit(Errored[T](err))
}
