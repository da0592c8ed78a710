package reactor

import "github.com/samber/lo"

// Operator defines a step turning a pipeline into another pipeline of the same item type.
type Operator[T any] func(*Flux[T]) *Flux[T]

// Link merges several operators into one, applied in order.
func Link[T any](ops ...Operator[T]) Operator[T] {
	return func(f *Flux[T]) *Flux[T] {
		return lo.Reduce(ops, func(acc *Flux[T], op Operator[T], _ int) *Flux[T] { return op(acc) }, f)
	}
}

// Transform applies op to f. It allows reusing a chain of operators built with Link.
func (f *Flux[T]) Transform(op Operator[T]) *Flux[T] {
	if op == nil {
		return f
	}
	return op(f)
}

// AsOperator lifts an item function into an Operator mapping each item with fn.
func AsOperator[T any](fn func(T) T) Operator[T] {
	return func(f *Flux[T]) *Flux[T] { return Map(f, fn) }
}

// AsOperators is an helper function to call AsOperator on lists.
func AsOperators[T any](fns ...func(T) T) []Operator[T] {
	return lo.Map(fns, func(fn func(T) T, _ int) Operator[T] {
		return AsOperator(fn)
	})
}
