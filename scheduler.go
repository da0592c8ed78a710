package reactor

import (
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler is an execution context: it runs work now, soon, or after a delay.
//
// Every work item runs at most once, and can be disposed while it has not started yet.
// Once closed, a Scheduler refuses new work with ErrContextClosed and rejects its delayed work.
type Scheduler interface {
	// Schedule runs task, either inline before returning or on another goroutine.
	Schedule(task func()) (Disposable, error)
	// ScheduleAfter runs task once delay has elapsed. When the scheduler drops task before it runs, because
	// it closed or could not take it, rejected is called with the reason instead. rejected may be nil.
	ScheduleAfter(delay time.Duration, task func(), rejected func(error)) (Disposable, error)
	// Close releases the scheduler.
	Close()
}

const (
	taskPending int32 = iota
	taskStarted
	taskDisposed
)

// task is a unit of work guaranteed to run at most once.
type task struct {
	state    atomic.Int32
	fn       func()
	rejected func(error)
	timer    atomic.Pointer[time.Timer]
	done     func(*task)
}

func newTask(fn func(), done func(*task)) *task {
	return &task{fn: fn, done: done}
}

func (t *task) run() {
	if !t.state.CompareAndSwap(taskPending, taskStarted) {
		return
	}
	if t.done != nil {
		t.done(t)
	}
	t.fn()
}

func (t *task) Dispose() {
	t.dispose()
}

// reject disposes t on behalf of its scheduler, and reports err to the owner of the task.
func (t *task) reject(err error) {
	if t.dispose() && t.rejected != nil {
		t.rejected(err)
	}
}

func (t *task) dispose() bool {
	if !t.state.CompareAndSwap(taskPending, taskDisposed) {
		return false
	}
	if timer := t.timer.Load(); timer != nil {
		timer.Stop()
	}
	if t.done != nil {
		t.done(t)
	}
	return true
}

// timers keeps the delayed tasks of a scheduler so that closing it rejects them.
type timers struct {
	mu      sync.Mutex
	closed  bool
	pending map[*task]struct{}
}

// after arms a timer firing fire(t) once delay elapsed. It fails when the owner is closed.
func (ts *timers) after(delay time.Duration, fn func(), rejected func(error), fire func(*task)) (*task, error) {
	t := newTask(fn, ts.forget)
	t.rejected = rejected
	ts.mu.Lock()
	if ts.closed {
		ts.mu.Unlock()
		return nil, ErrContextClosed
	}
	if ts.pending == nil {
		ts.pending = make(map[*task]struct{})
	}
	ts.pending[t] = struct{}{}
	ts.mu.Unlock()

	t.timer.Store(time.AfterFunc(delay, func() { fire(t) }))
	if t.state.Load() == taskDisposed {
		t.timer.Load().Stop()
	}
	return t, nil
}

func (ts *timers) forget(t *task) {
	ts.mu.Lock()
	delete(ts.pending, t)
	ts.mu.Unlock()
}

// close marks the set closed and rejects everything still pending with ErrContextClosed. It reports whether it was already closed.
func (ts *timers) close() bool {
	ts.mu.Lock()
	if ts.closed {
		ts.mu.Unlock()
		return true
	}
	ts.closed = true
	pending := ts.pending
	ts.pending = nil
	ts.mu.Unlock()

	for t := range pending {
		t.reject(ErrContextClosed)
	}
	return false
}

func (ts *timers) isClosed() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.closed
}

// inline runs work on the calling goroutine. Delayed work runs on the timer goroutine.
type inline struct {
	timers timers
}

// Immediate returns an inline execution context: Schedule runs the task before returning.
func Immediate() Scheduler {
	return &inline{}
}

func (s *inline) Schedule(fn func()) (Disposable, error) {
	if s.timers.isClosed() {
		return nil, ErrContextClosed
	}
	t := newTask(fn, nil)
	t.run()
	return t, nil
}

func (s *inline) ScheduleAfter(delay time.Duration, fn func(), rejected func(error)) (Disposable, error) {
	return s.timers.after(delay, fn, rejected, (*task).run)
}

func (s *inline) Close() {
	s.timers.close()
}
