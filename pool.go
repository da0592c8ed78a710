package reactor

import (
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// PoolScheduler is an offloaded execution context: work is submitted to a bounded pool of goroutines.
type PoolScheduler struct {
	pool   *ants.Pool
	timers timers
}

// NewPoolScheduler builds a scheduler running its work in a pool of size goroutines.
// A size lower or equal to 0 means an unbounded pool.
func NewPoolScheduler(size int, opts ...ants.Option) (*PoolScheduler, error) {
	pool, err := ants.NewPool(size, opts...)
	if err != nil {
		return nil, fmt.Errorf("new pool of size %d: %w", size, err)
	}
	return &PoolScheduler{pool: pool}, nil
}

// NewElastic builds a scheduler whose pool grows as needed, suited to blocking work.
func NewElastic(opts ...ants.Option) (*PoolScheduler, error) {
	return NewPoolScheduler(-1, opts...)
}

// NewPoolSchedulerFromConfig builds a scheduler from cfg. The pool logs and its worker panics go to logger.
func NewPoolSchedulerFromConfig(cfg SchedulerConfig, logger *zap.Logger) (*PoolScheduler, error) {
	if logger == nil {
		logger = Logger()
	}
	sugar := logger.Sugar()
	opts := []ants.Option{
		ants.WithExpiryDuration(cfg.ExpiryDuration),
		ants.WithNonblocking(cfg.Nonblocking),
		ants.WithMaxBlockingTasks(cfg.MaxBlockingTasks),
		ants.WithLogger(antsLogger{sugar}),
		ants.WithPanicHandler(func(r any) {
			sugar.Errorw("scheduled task panicked", "panic", r)
		}),
	}
	if cfg.Size > 0 {
		opts = append(opts, ants.WithPreAlloc(cfg.PreAlloc))
	}
	return NewPoolScheduler(cfg.Size, opts...)
}

// Schedule submits fn to the pool and returns immediately, unless the pool is full and blocking.
func (s *PoolScheduler) Schedule(fn func()) (Disposable, error) {
	if s.timers.isClosed() {
		return nil, ErrContextClosed
	}
	t := newTask(fn, nil)
	if err := s.submit(t); err != nil {
		return nil, err
	}
	return t, nil
}

// ScheduleAfter submits fn to the pool once delay has elapsed. A pool refusing it at that time rejects it.
func (s *PoolScheduler) ScheduleAfter(delay time.Duration, fn func(), rejected func(error)) (Disposable, error) {
	return s.timers.after(delay, fn, rejected, func(t *task) {
		if err := s.submit(t); err != nil {
			Logger().Debug("delayed task rejected", zap.Error(err))
			t.reject(err)
		}
	})
}

// Close rejects the pending delayed work and releases the pool.
func (s *PoolScheduler) Close() {
	if s.timers.close() {
		return
	}
	s.pool.Release()
}

// Running returns the number of goroutines currently running work.
func (s *PoolScheduler) Running() int {
	return s.pool.Running()
}

// Cap returns the capacity of the pool, -1 when unbounded.
func (s *PoolScheduler) Cap() int {
	return s.pool.Cap()
}

func (s *PoolScheduler) submit(t *task) error {
	err := s.pool.Submit(t.run)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrContextClosed
	default:
		return fmt.Errorf("submit: %w", err)
	}
}

// antsLogger routes the pool messages to zap.
type antsLogger struct {
	*zap.SugaredLogger
}

func (l antsLogger) Printf(format string, args ...any) {
	l.Infof(format, args...)
}
