package reactor

import (
	"errors"
	"fmt"
)

var (
	// ErrOperatorFailure is reported when a user function given to an operator fails or panics.
	ErrOperatorFailure = errors.New("operator failure")
	// ErrSourceFailure is reported when a source cannot produce its items.
	ErrSourceFailure = errors.New("source failure")
	// ErrContextClosed is returned by a Scheduler which has been closed.
	ErrContextClosed = errors.New("execution context closed")
	// ErrProtocolViolation flags a breach of the signal contract: a bad request, or an item delivered without demand.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrOverflow is reported by a time driven source which had to emit while there was no demand.
	ErrOverflow = errors.New("overflow")
)

// OperatorError carries the failure of a user function called by an operator.
// It matches both ErrOperatorFailure and its cause with errors.Is.
type OperatorError struct {
	Op    string
	Cause error
}

func (e *OperatorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *OperatorError) Unwrap() []error {
	return []error{ErrOperatorFailure, e.Cause}
}

// newOperatorError builds an OperatorError from either an error or a recovered panic value.
func newOperatorError(op string, cause any) error {
	err, ok := cause.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", cause)
	}
	return &OperatorError{Op: op, Cause: err}
}

// guard calls fn and converts a panic into an OperatorError.
func guard[R any](op string, fn func() (R, error)) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newOperatorError(op, r)
		}
	}()
	return fn()
}

func badRequest(n int64) error {
	return fmt.Errorf("%w: request must be positive, got %d", ErrProtocolViolation, n)
}
