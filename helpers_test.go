package reactor_test

import (
	"sync"
	"testing"
	"time"

	"github.com/fogfactory/reactor"
	"github.com/maxatome/go-testdeep/td"
	"github.com/panjf2000/ants/v2"
)

func InitScheduler(t testing.TB, size int, opts ...ants.Option) *reactor.PoolScheduler {
	s, err := reactor.NewPoolScheduler(size, opts...)
	td.Require(t).CmpNoError(err)
	t.Cleanup(s.Close)
	return s
}

// collect subscribes to f and waits for its termination
func collect[T any](t testing.TB, f *reactor.Flux[T]) ([]T, error) {
	t.Helper()
	var (
		mu     sync.Mutex
		result []T
		failed error
	)
	done := make(chan struct{})
	d := f.Subscribe(
		func(v T) {
			mu.Lock()
			defer mu.Unlock()
			result = append(result, v)
		},
		func(err error) {
			failed = err
			close(done)
		},
		func() { close(done) },
	)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		d.Dispose()
		t.Fatal("flux did not terminate")
	}
	mu.Lock()
	defer mu.Unlock()
	return result, failed
}

// manualScheduler runs immediate work inline, and delayed work only when the test fires it
type manualScheduler struct {
	mu       sync.Mutex
	tasks    []func()
	disposed []bool
	closed   bool
}

func (s *manualScheduler) Schedule(fn func()) (reactor.Disposable, error) {
	if s.isClosed() {
		return nil, reactor.ErrContextClosed
	}
	fn()
	return reactor.DisposeFunc(func() {}), nil
}

func (s *manualScheduler) ScheduleAfter(_ time.Duration, fn func(), _ func(error)) (reactor.Disposable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, reactor.ErrContextClosed
	}
	i := len(s.tasks)
	s.tasks = append(s.tasks, fn)
	s.disposed = append(s.disposed, false)
	return reactor.DisposeFunc(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.disposed[i] = true
	}), nil
}

func (s *manualScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *manualScheduler) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fire runs the i-th delayed task, unless it was disposed
func (s *manualScheduler) fire(i int) {
	s.mu.Lock()
	fn, disposed := s.tasks[i], s.disposed[i]
	s.mu.Unlock()
	if !disposed {
		fn()
	}
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *manualScheduler) disposedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, d := range s.disposed {
		if d {
			count++
		}
	}
	return count
}
