package reactor

import (
	"math"
	"sync/atomic"
)

// Unbounded is the demand sentinel meaning "no limit". Once reached, demand never decreases.
const Unbounded int64 = math.MaxInt64

// Demand tracks the outstanding requested item count of one subscription.
// It is safe to use from the goroutine delivering items and the one requesting them.
type Demand struct {
	n atomic.Int64
}

// Add adds n to the outstanding demand, saturating at Unbounded. It returns the demand before the addition.
// Non positive values are ignored.
func (d *Demand) Add(n int64) int64 {
	for {
		prev := d.n.Load()
		if n <= 0 || prev == Unbounded {
			return prev
		}
		next := addCap(prev, n)
		if d.n.CompareAndSwap(prev, next) {
			return prev
		}
	}
}

// TryConsume decrements the demand by one if it is positive, and reports whether it did.
// An unbounded demand is never decremented.
func (d *Demand) TryConsume() bool {
	for {
		cur := d.n.Load()
		switch cur {
		case 0:
			return false
		case Unbounded:
			return true
		}
		if d.n.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

// Load returns the outstanding demand.
func (d *Demand) Load() int64 {
	return d.n.Load()
}

// take resets the demand to zero and returns what it held.
func (d *Demand) take() int64 {
	return d.n.Swap(0)
}

// addCap adds two non negative demands, saturating at Unbounded.
func addCap(a, b int64) int64 {
	if a == Unbounded || b == Unbounded {
		return Unbounded
	}
	sum := a + b
	if sum < 0 {
		return Unbounded
	}
	return sum
}
