package stepverifier_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maxatome/go-testdeep/td"

	"github.com/fogfactory/reactor"
	"github.com/fogfactory/reactor/stepverifier"
)

func TestVerify(t *testing.T) {

	t.Run("expected_sequence", func(t *testing.T) {
		err := stepverifier.Create(reactor.Map(reactor.Range(1, 5), func(i int) int { return i * i })).
			ExpectNext(1, 4, 9, 16, 25).
			VerifyComplete()

		td.CmpNoError(t, err)
	})

	t.Run("expected_error", func(t *testing.T) {
		// Arrange
		f := reactor.Map(reactor.Just(2, 1, 0), func(i int) int { return -10 / i })

		// Act
		err := stepverifier.Create(f).
			ExpectNext(-5, -10).
			ExpectErrorIs(reactor.ErrOperatorFailure).
			Verify()

		// Assert
		td.CmpNoError(t, err)
	})

	t.Run("value_mismatch", func(t *testing.T) {
		// Act
		err := stepverifier.Create(reactor.Just(1, 2, 3)).
			ExpectNext(1, 5).
			ExpectNext(3).
			VerifyComplete()

		// Assert
		td.CmpErrorIs(t, err, stepverifier.ErrMismatch)
		var mismatch *stepverifier.MismatchError
		td.Require(t).True(errors.As(err, &mismatch))
		td.Cmp(t, mismatch, td.Struct(&stepverifier.MismatchError{
			Position: 1,
			Expected: "next(5)",
			Actual:   "next(2)",
		}, td.StructFields{
			"Detail": td.NotNil(),
		}))
	})

	t.Run("unexpected_complete", func(t *testing.T) {
		// Act
		err := stepverifier.Create(reactor.Just(1)).
			ExpectNext(1, 2).
			VerifyComplete()

		// Assert
		var mismatch *stepverifier.MismatchError
		td.Require(t).True(errors.As(err, &mismatch))
		td.Cmp(t, mismatch.Position, 1)
		td.Cmp(t, mismatch.Actual, "complete")
	})

	t.Run("unexpected_error_is_the_cause", func(t *testing.T) {
		// Arrange
		boom := errors.New("boom")

		// Act
		err := stepverifier.Create(reactor.Error[int](boom)).
			ExpectNext(1).
			VerifyComplete()

		// Assert
		td.CmpErrorIs(t, err, stepverifier.ErrMismatch)
		td.CmpErrorIs(t, err, boom)
		td.CmpContains(t, err, "expectation failed at signal #0: expected next(1), got error(boom)")
	})

	t.Run("error_message_mismatch", func(t *testing.T) {
		err := stepverifier.Create(reactor.Error[int](errors.New("boom"))).
			ExpectErrorMessage("bang").
			Verify()

		td.CmpErrorIs(t, err, stepverifier.ErrMismatch)
	})

	t.Run("fails_fast", func(t *testing.T) {
		// Arrange
		s := reactor.Immediate()
		t.Cleanup(s.Close)
		start := time.Now()

		// Act
		err := stepverifier.Create(reactor.Interval(time.Millisecond, s)).
			ExpectNext(5).
			Verify()

		// Assert
		td.CmpErrorIs(t, err, stepverifier.ErrMismatch)
		td.CmpLt(t, time.Since(start), time.Second, "Mismatch should not wait for the timeout")
	})

	t.Run("stops_at_first_mismatch", func(t *testing.T) {
		// Arrange
		var produced atomic.Int64
		f := reactor.Range(1, 100000).DoOnNext(func(int) { produced.Add(1) })

		// Act
		err := stepverifier.Create(f).
			ExpectNext(2).
			VerifyComplete()

		// Assert
		td.CmpErrorIs(t, err, stepverifier.ErrMismatch)
		td.Cmp(t, produced.Load(), int64(1), "Subscription should be cancelled at the first diverging item")
	})

	t.Run("count_mismatch_reports_remaining", func(t *testing.T) {
		// Act
		err := stepverifier.Create(reactor.Just(1, 2, 3)).
			ExpectNextCount(5).
			VerifyComplete()

		// Assert
		var mismatch *stepverifier.MismatchError
		td.Require(t).True(errors.As(err, &mismatch))
		td.Cmp(t, mismatch.Position, 3)
		td.Cmp(t, mismatch.Expected, "next (2 remaining)")
		td.Cmp(t, mismatch.Actual, "complete")
	})

	t.Run("timeout", func(t *testing.T) {
		// Arrange
		s := reactor.Immediate()
		t.Cleanup(s.Close)

		// Act
		err := stepverifier.Create(reactor.Interval(time.Hour, s)).
			ExpectNext(0).
			VerifyTimeout(20 * time.Millisecond)

		// Assert
		td.CmpErrorIs(t, err, stepverifier.ErrTimeout)
		td.CmpFalse(t, errors.Is(err, stepverifier.ErrMismatch))
		var timeout *stepverifier.TimeoutError
		td.Require(t).True(errors.As(err, &timeout))
		td.Cmp(t, timeout, td.Struct(&stepverifier.TimeoutError{
			Timeout:  20 * time.Millisecond,
			Position: 0,
			Expected: "next(0)",
			Observed: "[]",
		}, nil))
	})

	t.Run("timeout_while_subscribing", func(t *testing.T) {
		// Arrange
		gate := make(chan struct{})
		t.Cleanup(func() { close(gate) })
		f := reactor.FromCallable(func() (int, error) {
			<-gate // blocks the subscribing goroutine
			return 1, nil
		})
		start := time.Now()

		// Act
		err := stepverifier.Create(f).
			ExpectNext(1).
			VerifyTimeout(20 * time.Millisecond)

		// Assert
		td.CmpErrorIs(t, err, stepverifier.ErrTimeout)
		td.CmpLt(t, time.Since(start), time.Second)
	})

	t.Run("timeout_lists_observed", func(t *testing.T) {
		// Arrange
		s := reactor.Immediate()
		t.Cleanup(s.Close)
		f := reactor.FlatMap(reactor.Just(1, 2), func(i int) *reactor.Flux[int] {
			if i == 1 {
				return reactor.Just(1)
			}
			return reactor.Map(reactor.Interval(time.Hour, s), func(int64) int { return 0 })
		})

		// Act
		err := stepverifier.Create(f).
			ExpectNext(1).
			ExpectNextCount(2).
			VerifyTimeout(20 * time.Millisecond)

		// Assert
		var timeout *stepverifier.TimeoutError
		td.Require(t).True(errors.As(err, &timeout))
		td.Cmp(t, timeout.Position, 1)
		td.Cmp(t, timeout.Observed, "[next(1)]")
		td.Cmp(t, timeout.Expected, "next (2 remaining)")
	})
}

func TestSteps(t *testing.T) {

	t.Run("next_count", func(t *testing.T) {
		err := stepverifier.Create(reactor.Range(0, 100)).
			ExpectNext(0).
			ExpectNextCount(98).
			ExpectNext(99).
			VerifyComplete()

		td.CmpNoError(t, err)
	})

	t.Run("next_matches", func(t *testing.T) {
		err := stepverifier.Create(reactor.Just(2, 7)).
			ExpectNextMatches(td.Between(1, 3)).
			ExpectNextMatches(td.Gt(5)).
			VerifyComplete()

		td.CmpNoError(t, err)
	})

	t.Run("next_matches_mismatch", func(t *testing.T) {
		err := stepverifier.Create(reactor.Just(4)).
			ExpectNextMatches(td.Between(1, 3)).
			VerifyComplete()

		td.CmpErrorIs(t, err, stepverifier.ErrMismatch)
	})

	t.Run("then_request", func(t *testing.T) {
		err := stepverifier.Create(reactor.Range(1, 4)).
			WithInitialRequest(0).
			ThenRequest(1).
			ExpectNext(1).
			ThenRequest(3).
			ExpectNext(2, 3, 4).
			VerifyComplete()

		td.CmpNoError(t, err)
	})

	t.Run("no_request_no_item", func(t *testing.T) {
		err := stepverifier.Create(reactor.Range(1, 4)).
			WithInitialRequest(0).
			ExpectNext(1).
			VerifyTimeout(20 * time.Millisecond)

		td.CmpErrorIs(t, err, stepverifier.ErrTimeout)
	})

	t.Run("then_cancel", func(t *testing.T) {
		// Arrange
		s := reactor.Immediate()
		t.Cleanup(s.Close)
		var ticks atomic.Int64
		f := reactor.Interval(time.Millisecond, s).DoOnNext(func(int64) { ticks.Add(1) })

		// Act
		err := stepverifier.Create(f).
			ExpectNext(0, 1).
			ThenCancel().
			Verify()
		seen := ticks.Load()
		time.Sleep(10 * time.Millisecond)

		// Assert
		td.CmpNoError(t, err)
		td.CmpLte(t, ticks.Load(), seen+1, "No tick after the cancellation")
	})

	t.Run("error_is", func(t *testing.T) {
		err := stepverifier.Create(reactor.Range(1, -1)).
			ExpectErrorIs(reactor.ErrSourceFailure).
			Verify()

		td.CmpNoError(t, err)
	})

	t.Run("any_error", func(t *testing.T) {
		err := stepverifier.Create(reactor.Error[string](errors.New("whatever"))).
			ExpectError().
			Verify()

		td.CmpNoError(t, err)
	})
}
