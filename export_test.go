package reactor

import "github.com/panjf2000/ants/v2"

// Pool returns the underlying pool
func (s *PoolScheduler) Pool() *ants.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

// NewFlux builds a Flux from a raw subscribe function, bypassing the sources
func NewFlux[T any](subscribe func(Subscriber[T])) *Flux[T] {
	return newFlux(subscribe)
}
