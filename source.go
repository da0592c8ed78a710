package reactor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Just emits the given values in order, then completes.
func Just[T any](values ...T) *Flux[T] {
	return FromSlice(values)
}

// FromSlice emits the items of values in order, then completes. The slice is read lazily and must not be
// modified while subscribed.
func FromSlice[T any](values []T) *Flux[T] {
	return newFlux(func(s Subscriber[T]) {
		s.OnSubscribe(newIndexedSubscription(s, len(values), func(i int) T { return values[i] }))
	})
}

// Range emits count consecutive integers starting at start, then completes.
func Range(start, count int) *Flux[int] {
	if count < 0 {
		return Error[int](fmt.Errorf("%w: negative range count %d", ErrSourceFailure, count))
	}
	return newFlux(func(s Subscriber[int]) {
		s.OnSubscribe(newIndexedSubscription(s, count, func(i int) int { return start + i }))
	})
}

// Error emits err right after the subscription, regardless of the demand.
func Error[T any](err error) *Flux[T] {
	return newFlux(func(s Subscriber[T]) {
		s.OnSubscribe(cancelled{})
		s.OnSignal(Errored[T](err))
	})
}

// Empty completes right after the subscription.
func Empty[T any]() *Flux[T] {
	return newFlux(func(s Subscriber[T]) {
		s.OnSubscribe(cancelled{})
		s.OnSignal(Completed[T]())
	})
}

// FromCallable calls fn on the first request, then emits its result and completes, or emits its error.
// Errors are wrapped with ErrSourceFailure.
func FromCallable[T any](fn func() (T, error)) *Flux[T] {
	return newFlux(func(s Subscriber[T]) {
		var v T
		var err error
		s.OnSubscribe(newIndexedSubscription(s, 1, func(int) T {
			v, err = guard("callable", fn)
			if err != nil {
				err = fmt.Errorf("%w: %w", ErrSourceFailure, err)
			}
			return v
		}).failWith(func() error { return err }))
	})
}

// indexedSubscription emits at(0) .. at(count-1) under demand. Request drives the emission, and a work in
// progress counter makes sure one goroutine at a time runs the loop.
type indexedSubscription[T any] struct {
	actual Subscriber[T]
	count  int
	at     func(int) T
	// failure is checked after each item; a non nil error terminates the sequence instead of the item.
	failure func() error

	index     int
	demand    Demand
	wip       atomic.Int64
	cancelled atomic.Bool
	badReq    atomic.Pointer[error]
}

func newIndexedSubscription[T any](actual Subscriber[T], count int, at func(int) T) *indexedSubscription[T] {
	return &indexedSubscription[T]{actual: actual, count: count, at: at}
}

func (s *indexedSubscription[T]) failWith(failure func() error) *indexedSubscription[T] {
	s.failure = failure
	return s
}

func (s *indexedSubscription[T]) Request(n int64) {
	if n <= 0 {
		err := badRequest(n)
		s.badReq.CompareAndSwap(nil, &err)
	} else {
		s.demand.Add(n)
	}
	if s.wip.Add(1) != 1 {
		return
	}
	s.drain()
}

func (s *indexedSubscription[T]) Cancel() {
	s.cancelled.Store(true)
}

func (s *indexedSubscription[T]) drain() {
	missed := int64(1)
	for {
		for {
			if s.cancelled.Load() {
				return
			}
			if err := s.badReq.Load(); err != nil {
				s.cancelled.Store(true)
				s.actual.OnSignal(Errored[T](*err))
				return
			}
			if s.index == s.count {
				s.cancelled.Store(true)
				s.actual.OnSignal(Completed[T]())
				return
			}
			if !s.demand.TryConsume() {
				break
			}
			v := s.at(s.index)
			s.index++
			if s.failure != nil {
				if err := s.failure(); err != nil {
					s.cancelled.Store(true)
					s.actual.OnSignal(Errored[T](err))
					return
				}
			}
			s.actual.OnSignal(Next(v))
		}
		missed = s.wip.Add(-missed)
		if missed == 0 {
			return
		}
	}
}

// Interval emits 0, 1, 2 ... one item per period, the first one period after the subscription.
//
// Ticks are scheduled on sched. The sequence never completes; it stops on cancellation, fails with
// ErrOverflow when a tick finds no demand, and with ErrContextClosed when sched closes.
func Interval(period time.Duration, sched Scheduler) *Flux[int64] {
	return newFlux(func(s Subscriber[int64]) {
		is := &intervalSubscription{actual: s, period: period, sched: sched}
		s.OnSubscribe(is)
		is.schedule()
	})
}

type intervalSubscription struct {
	actual Subscriber[int64]
	period time.Duration
	sched  Scheduler

	demand    Demand
	count     int64
	cancelled atomic.Bool

	mu      sync.Mutex
	pending Disposable
}

func (s *intervalSubscription) Request(n int64) {
	if n <= 0 {
		s.terminate(badRequest(n))
		return
	}
	s.demand.Add(n)
}

func (s *intervalSubscription) Cancel() {
	if s.cancelled.Swap(true) {
		return
	}
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	if pending != nil {
		pending.Dispose()
	}
}

func (s *intervalSubscription) schedule() {
	if s.cancelled.Load() {
		return
	}
	d, err := s.sched.ScheduleAfter(s.period, s.tick, s.terminate)
	if err != nil {
		s.terminate(err)
		return
	}
	s.mu.Lock()
	s.pending = d
	s.mu.Unlock()
	if s.cancelled.Load() {
		d.Dispose()
	}
}

func (s *intervalSubscription) tick() {
	if s.cancelled.Load() {
		return
	}
	if !s.demand.TryConsume() {
		s.terminate(fmt.Errorf("%w: could not emit tick %d due to lack of requests", ErrOverflow, s.count))
		return
	}
	s.actual.OnSignal(Next(s.count))
	s.count++
	s.schedule()
}

func (s *intervalSubscription) terminate(err error) {
	if s.cancelled.Swap(true) {
		return
	}
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	if pending != nil {
		pending.Dispose()
	}
	s.actual.OnSignal(Errored[int64](err))
}
