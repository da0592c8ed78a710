package stepverifier

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrMismatch is matched by the errors of a verification which observed an unexpected signal.
	ErrMismatch = errors.New("signal mismatch")
	// ErrTimeout is matched by the errors of a verification which did not observe the expected signals in time.
	ErrTimeout = errors.New("verification timeout")
)

// MismatchError reports the first observed signal diverging from the script.
type MismatchError struct {
	// Position is the 0-based index of the signal in the observed sequence.
	Position int
	Expected string
	Actual   string
	// Cause is the error carried by the observed signal, if it is an error.
	Cause error
	// Detail explains the difference, when values were compared.
	Detail error
}

func (e *MismatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "expectation failed at signal #%d: expected %s, got %s", e.Position, e.Expected, e.Actual)
	if e.Detail != nil {
		fmt.Fprintf(&b, "\n%v", e.Detail)
	}
	return b.String()
}

func (e *MismatchError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrMismatch}
	}
	return []error{ErrMismatch, e.Cause}
}

// TimeoutError reports a verification which waited too long for a signal.
type TimeoutError struct {
	Timeout time.Duration
	// Position is the 0-based index of the awaited signal.
	Position int
	Expected string
	// Observed lists the signals received before the timeout.
	Observed string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no signal after %s at signal #%d: expected %s, observed %s", e.Timeout, e.Position, e.Expected, e.Observed)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}
