package reactor

import (
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
)

// Zip pairs the items of a and b by position: the first of a with the first of b, and so on.
// It completes as soon as one side completed and has no pending item left.
func Zip[A, B any](a *Flux[A], b *Flux[B]) *Flux[lo.Tuple2[A, B]] {
	return ZipWith(a, b, lo.T2[A, B])
}

// ZipWith combines the items of a and b by position with combine.
func ZipWith[A, B, R any](a *Flux[A], b *Flux[B], combine func(A, B) R) *Flux[R] {
	return newFlux(func(s Subscriber[R]) {
		z := &zipCoordinator[A, B, R]{actual: s, combine: combine, prefetch: DefaultPrefetch}
		z.left = &zipSide[A]{coordinator: z}
		z.right = &zipSide[B]{coordinator: z}
		s.OnSubscribe(z)
		a.subscribe(z.left)
		b.subscribe(z.right)
	})
}

// zipDrainer is the part of the coordinator the sides need, without its type parameters.
type zipDrainer interface {
	lock()
	unlock()
	drain()
	fail(err error)
	prefetchSize() int64
}

type zipCoordinator[A, B, R any] struct {
	actual   Subscriber[R]
	combine  func(A, B) R
	prefetch int64
	left     *zipSide[A]
	right    *zipSide[B]

	demand    Demand
	wip       atomic.Int64
	cancelled atomic.Bool

	mu  sync.Mutex
	err error
}

func (z *zipCoordinator[A, B, R]) lock()               { z.mu.Lock() }
func (z *zipCoordinator[A, B, R]) unlock()             { z.mu.Unlock() }
func (z *zipCoordinator[A, B, R]) prefetchSize() int64 { return z.prefetch }

func (z *zipCoordinator[A, B, R]) Request(n int64) {
	if n <= 0 {
		z.fail(badRequest(n))
		return
	}
	z.demand.Add(n)
	z.drain()
}

func (z *zipCoordinator[A, B, R]) Cancel() {
	if z.cancelled.Swap(true) {
		return
	}
	z.cancelSides()
}

func (z *zipCoordinator[A, B, R]) cancelSides() {
	z.mu.Lock()
	left, right := z.left.detach(), z.right.detach()
	z.mu.Unlock()
	if left != nil {
		left.Cancel()
	}
	if right != nil {
		right.Cancel()
	}
}

func (z *zipCoordinator[A, B, R]) fail(err error) {
	z.mu.Lock()
	if z.err == nil {
		z.err = err
	}
	z.mu.Unlock()
	z.drain()
}

func (z *zipCoordinator[A, B, R]) drain() {
	if z.wip.Add(1) != 1 {
		return
	}
	missed := int64(1)
	for {
		for {
			if z.cancelled.Load() {
				return
			}
			z.mu.Lock()
			if err := z.err; err != nil {
				z.mu.Unlock()
				z.terminate(Errored[R](err))
				return
			}
			if z.left.exhausted() || z.right.exhausted() {
				z.mu.Unlock()
				z.terminate(Completed[R]())
				return
			}
			if len(z.left.queue) == 0 || len(z.right.queue) == 0 || !z.demand.TryConsume() {
				z.mu.Unlock()
				break
			}
			a, b := z.left.pop(), z.right.pop()
			ls, rs := z.left.sub, z.right.sub
			z.mu.Unlock()

			v, err := guard("zip", func() (R, error) { return z.combine(a, b), nil })
			if err != nil {
				z.terminate(Errored[R](err))
				return
			}
			z.actual.OnSignal(Next(v))
			ls.Request(1)
			rs.Request(1)
		}
		missed = z.wip.Add(-missed)
		if missed == 0 {
			return
		}
	}
}

// terminate cancels both sides and emits sig.
func (z *zipCoordinator[A, B, R]) terminate(sig Signal[R]) {
	z.cancelled.Store(true)
	z.cancelSides()
	z.actual.OnSignal(sig)
}

// zipSide subscribes to one of the zipped sequences. Its fields are guarded by the coordinator mutex.
type zipSide[T any] struct {
	coordinator zipDrainer
	sub         Subscription
	queue       []T
	done        bool
	cancelled   bool
}

func (s *zipSide[T]) OnSubscribe(sub Subscription) {
	z := s.coordinator
	z.lock()
	s.sub = sub
	cancelled := s.cancelled
	z.unlock()
	if cancelled {
		sub.Cancel()
		return
	}
	sub.Request(z.prefetchSize())
}

func (s *zipSide[T]) OnSignal(sig Signal[T]) {
	z := s.coordinator
	switch sig.Kind {
	case KindNext:
		z.lock()
		if s.cancelled {
			z.unlock()
			return
		}
		s.queue = append(s.queue, sig.Value)
		z.unlock()
		z.drain()
	case KindError:
		z.fail(sig.Err)
	case KindComplete:
		z.lock()
		s.done = true
		z.unlock()
		z.drain()
	}
}

// exhausted reports whether no more item can come from this side.
func (s *zipSide[T]) exhausted() bool {
	return s.done && len(s.queue) == 0
}

func (s *zipSide[T]) pop() T {
	v := s.queue[0]
	var zero T
	s.queue[0] = zero
	s.queue = s.queue[1:]
	return v
}

// detach marks the side cancelled and returns its subscription, if already known.
func (s *zipSide[T]) detach() Subscription {
	s.cancelled = true
	s.queue = nil
	return s.sub
}
