package reactor_test

import (
	"sync/atomic"
	"testing"

	"github.com/fogfactory/reactor"
	"github.com/maxatome/go-testdeep/td"
	"golang.org/x/sync/errgroup"
)

func TestDemand(t *testing.T) {

	t.Run("consume_exactly_requested", func(t *testing.T) {
		// Arrange
		var d reactor.Demand

		// Act
		prev := d.Add(2)

		// Assert
		td.Cmp(t, prev, int64(0))
		td.CmpTrue(t, d.TryConsume())
		td.CmpTrue(t, d.TryConsume())
		td.CmpFalse(t, d.TryConsume(), "Demand should be exhausted")
		td.Cmp(t, d.Load(), int64(0))
	})

	t.Run("saturates_at_unbounded", func(t *testing.T) {
		// Arrange
		var d reactor.Demand
		d.Add(reactor.Unbounded - 1)

		// Act
		d.Add(10)

		// Assert
		td.Cmp(t, d.Load(), reactor.Unbounded)
		td.CmpTrue(t, d.TryConsume())
		td.Cmp(t, d.Load(), reactor.Unbounded, "Unbounded demand is never decremented")
	})

	t.Run("ignores_non_positive", func(t *testing.T) {
		// Arrange
		var d reactor.Demand
		d.Add(1)

		// Act
		d.Add(0)
		d.Add(-5)

		// Assert
		td.Cmp(t, d.Load(), int64(1))
	})

	t.Run("concurrent_add_and_consume", func(t *testing.T) {
		// Arrange
		const workers, perWorker = 8, 1000
		var d reactor.Demand
		var consumed atomic.Int64

		// Act
		var adders errgroup.Group
		for range workers {
			adders.Go(func() error {
				for range perWorker {
					d.Add(1)
				}
				return nil
			})
		}
		td.Require(t).CmpNoError(adders.Wait())

		var consumers errgroup.Group
		for range workers {
			consumers.Go(func() error {
				for range perWorker {
					if d.TryConsume() {
						consumed.Add(1)
					}
				}
				return nil
			})
		}
		td.Require(t).CmpNoError(consumers.Wait())

		// Assert
		td.Cmp(t, consumed.Load(), int64(workers*perWorker))
		td.Cmp(t, d.Load(), int64(0))
		td.CmpFalse(t, d.TryConsume())
	})
}
