package reactor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// DelayElements delays each item by d, measured from its arrival. Timers run on sched and are independent
// from one another, but an item is only released once every earlier item was.
//
// An upstream error is emitted at once and drops the items still waiting. So does the scheduler closing
// while items wait, with ErrContextClosed.
func (f *Flux[T]) DelayElements(d time.Duration, sched Scheduler) *Flux[T] {
	return lift(f, func(s Subscriber[T]) Subscriber[T] {
		return &delaySubscriber[T]{actual: s, delay: d, sched: sched, queue: linkedlistqueue.New()}
	})
}

type delayed[T any] struct {
	value T
	ready bool
	timer Disposable
}

type delaySubscriber[T any] struct {
	actual Subscriber[T]
	delay  time.Duration
	sched  Scheduler

	upstream  Subscription
	wip       atomic.Int64
	cancelled atomic.Bool

	mu    sync.Mutex
	queue *linkedlistqueue.Queue // of *delayed[T], in arrival order
	done  bool
	err   error
}

func (s *delaySubscriber[T]) OnSubscribe(up Subscription) {
	s.upstream = up
	s.actual.OnSubscribe(s)
}

func (s *delaySubscriber[T]) OnSignal(sig Signal[T]) {
	if s.cancelled.Load() {
		onSignalDropped(sig)
		return
	}
	switch sig.Kind {
	case KindNext:
		item := &delayed[T]{value: sig.Value}
		s.mu.Lock()
		s.queue.Enqueue(item)
		s.mu.Unlock()

		timer, err := s.sched.ScheduleAfter(s.delay, func() {
			s.mu.Lock()
			item.ready = true
			s.mu.Unlock()
			s.drain()
		}, s.reject)
		if err != nil {
			s.upstream.Cancel()
			s.fail(err)
			return
		}
		s.mu.Lock()
		item.timer = timer
		s.mu.Unlock()
	case KindError:
		s.fail(sig.Err)
	case KindComplete:
		s.mu.Lock()
		s.done = true
		s.mu.Unlock()
		s.drain()
	}
}

func (s *delaySubscriber[T]) Request(n int64) {
	s.upstream.Request(n)
}

func (s *delaySubscriber[T]) Cancel() {
	if s.cancelled.Swap(true) {
		return
	}
	s.upstream.Cancel()
	s.disposeTimers()
}

// reject fails the sequence when the scheduler drops a timer.
func (s *delaySubscriber[T]) reject(err error) {
	s.upstream.Cancel()
	s.fail(err)
}

func (s *delaySubscriber[T]) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.drain()
}

func (s *delaySubscriber[T]) disposeTimers() {
	s.mu.Lock()
	var timers []Disposable
	for _, v := range s.queue.Values() {
		if t := v.(*delayed[T]).timer; t != nil {
			timers = append(timers, t)
		}
	}
	s.queue.Clear()
	s.mu.Unlock()
	for _, t := range timers {
		t.Dispose()
	}
}

// drain releases the ready items at the head of the queue. One goroutine at a time runs it.
func (s *delaySubscriber[T]) drain() {
	if s.wip.Add(1) != 1 {
		return
	}
	missed := int64(1)
	for {
		for {
			if s.cancelled.Load() {
				return
			}
			s.mu.Lock()
			if err := s.err; err != nil {
				s.mu.Unlock()
				s.cancelled.Store(true)
				s.disposeTimers()
				s.actual.OnSignal(Errored[T](err))
				return
			}
			head, ok := s.queue.Peek()
			if !ok {
				done := s.done
				s.mu.Unlock()
				if done {
					s.cancelled.Store(true)
					s.actual.OnSignal(Completed[T]())
					return
				}
				break
			}
			item := head.(*delayed[T])
			if !item.ready {
				s.mu.Unlock()
				break
			}
			s.queue.Dequeue()
			s.mu.Unlock()
			s.actual.OnSignal(Next(item.value))
		}
		missed = s.wip.Add(-missed)
		if missed == 0 {
			return
		}
	}
}
