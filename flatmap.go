package reactor

import (
	"errors"
	"sync"
	"sync/atomic"
)

const (
	// DefaultConcurrency is the number of inner sequences FlatMap subscribes to at once.
	DefaultConcurrency = 256
	// DefaultPrefetch is the number of items requested ahead from each inner sequence.
	DefaultPrefetch = 32
)

// FlatMap maps each item to a sequence and merges the items of all those sequences as they come.
//
// Items of one inner sequence keep their order; items of different inner sequences interleave. The result
// completes once the upstream and every inner sequence completed. Any error cancels everything else.
func FlatMap[T, U any](src *Flux[T], fn func(T) *Flux[U]) *Flux[U] {
	return FlatMapConcurrency(src, fn, DefaultConcurrency, DefaultPrefetch)
}

// FlatMapConcurrency is FlatMap subscribing to at most concurrency inner sequences at once, each one asked
// prefetch items ahead.
func FlatMapConcurrency[T, U any](src *Flux[T], fn func(T) *Flux[U], concurrency, prefetch int) *Flux[U] {
	return lift(src, func(s Subscriber[U]) Subscriber[T] {
		return &flatMapMain[T, U]{
			actual:      s,
			mapper:      fn,
			concurrency: int64(max(concurrency, 1)),
			prefetch:    int64(max(prefetch, 1)),
		}
	})
}

type flatMapMain[T, U any] struct {
	actual      Subscriber[U]
	mapper      func(T) *Flux[U]
	concurrency int64
	prefetch    int64

	upstream  Subscription
	demand    Demand
	wip       atomic.Int64
	cancelled atomic.Bool

	mu           sync.Mutex
	inners       []*flatMapInner[T, U]
	upstreamDone bool
	err          error
}

func (m *flatMapMain[T, U]) OnSubscribe(up Subscription) {
	m.upstream = up
	m.actual.OnSubscribe(m)
	up.Request(m.concurrency)
}

func (m *flatMapMain[T, U]) OnSignal(sig Signal[T]) {
	if m.cancelled.Load() {
		onSignalDropped(sig)
		return
	}
	switch sig.Kind {
	case KindNext:
		next, err := guard("flatMap", func() (*Flux[U], error) { return m.mapper(sig.Value), nil })
		if err == nil && next == nil {
			err = newOperatorError("flatMap", errors.New("nil inner sequence"))
		}
		if err != nil {
			m.upstream.Cancel()
			m.fail(err)
			return
		}
		inner := &flatMapInner[T, U]{parent: m}
		m.mu.Lock()
		m.inners = append(m.inners, inner)
		m.mu.Unlock()
		next.subscribe(inner)
	case KindError:
		m.fail(sig.Err)
	case KindComplete:
		m.mu.Lock()
		m.upstreamDone = true
		m.mu.Unlock()
		m.drain()
	}
}

func (m *flatMapMain[T, U]) Request(n int64) {
	if n <= 0 {
		m.fail(badRequest(n))
		return
	}
	m.demand.Add(n)
	m.drain()
}

func (m *flatMapMain[T, U]) Cancel() {
	if m.cancelled.Swap(true) {
		return
	}
	m.upstream.Cancel()
	m.cancelInners()
}

// fail records the first error; the drain loop emits it.
func (m *flatMapMain[T, U]) fail(err error) {
	m.mu.Lock()
	if m.err == nil {
		m.err = err
	}
	m.upstreamDone = true
	m.mu.Unlock()
	m.drain()
}

func (m *flatMapMain[T, U]) cancelInners() {
	m.mu.Lock()
	inners := m.inners
	m.inners = nil
	subs := make([]Subscription, 0, len(inners))
	for _, in := range inners {
		in.cancelled = true
		in.queue = nil
		if in.sub != nil {
			subs = append(subs, in.sub)
		}
	}
	m.mu.Unlock()
	for _, sub := range subs {
		sub.Cancel()
	}
}

// drain emits the queued items of the inner sequences while there is demand. One goroutine at a time runs it.
func (m *flatMapMain[T, U]) drain() {
	if m.wip.Add(1) != 1 {
		return
	}
	missed := int64(1)
	for {
		for {
			if m.cancelled.Load() {
				return
			}
			m.mu.Lock()
			if err := m.err; err != nil {
				m.mu.Unlock()
				m.cancelled.Store(true)
				m.upstream.Cancel()
				m.cancelInners()
				m.actual.OnSignal(Errored[U](err))
				return
			}
			inner := m.ready()
			if inner == nil {
				replenish := m.removeFinished()
				complete := m.upstreamDone && len(m.inners) == 0
				upstreamDone := m.upstreamDone
				m.mu.Unlock()
				if complete {
					m.cancelled.Store(true)
					m.actual.OnSignal(Completed[U]())
					return
				}
				if replenish > 0 && !upstreamDone {
					m.upstream.Request(replenish)
				}
				break
			}
			if !m.demand.TryConsume() {
				m.mu.Unlock()
				break
			}
			v := inner.queue[0]
			var zero U
			inner.queue[0] = zero
			inner.queue = inner.queue[1:]
			sub := inner.sub
			m.mu.Unlock()

			m.actual.OnSignal(Next(v))
			sub.Request(1)
		}
		missed = m.wip.Add(-missed)
		if missed == 0 {
			return
		}
	}
}

// ready returns the first inner sequence having a queued item. m.mu must be held.
func (m *flatMapMain[T, U]) ready() *flatMapInner[T, U] {
	for _, in := range m.inners {
		if len(in.queue) > 0 {
			return in
		}
	}
	return nil
}

// removeFinished drops the completed and drained inner sequences, and returns how many were dropped.
// m.mu must be held.
func (m *flatMapMain[T, U]) removeFinished() int64 {
	kept := m.inners[:0]
	for _, in := range m.inners {
		if in.done && len(in.queue) == 0 {
			continue
		}
		kept = append(kept, in)
	}
	removed := int64(len(m.inners) - len(kept))
	clear(m.inners[len(kept):])
	m.inners = kept
	return removed
}

// flatMapInner subscribes to one inner sequence and queues its items for the main drain loop.
// Its fields are guarded by the parent mutex.
type flatMapInner[T, U any] struct {
	parent    *flatMapMain[T, U]
	sub       Subscription
	queue     []U
	done      bool
	cancelled bool
}

func (in *flatMapInner[T, U]) OnSubscribe(s Subscription) {
	m := in.parent
	m.mu.Lock()
	in.sub = s
	cancelled := in.cancelled
	m.mu.Unlock()
	if cancelled {
		s.Cancel()
		return
	}
	s.Request(m.prefetch)
}

func (in *flatMapInner[T, U]) OnSignal(sig Signal[U]) {
	m := in.parent
	switch sig.Kind {
	case KindNext:
		m.mu.Lock()
		if in.cancelled {
			m.mu.Unlock()
			return
		}
		in.queue = append(in.queue, sig.Value)
		m.mu.Unlock()
		m.drain()
	case KindError:
		m.mu.Lock()
		in.done = true
		m.mu.Unlock()
		m.fail(sig.Err)
	case KindComplete:
		m.mu.Lock()
		in.done = true
		m.mu.Unlock()
		m.drain()
	}
}
