// Package stepverifier asserts the signals of a reactor.Flux against a script of expectations.
//
//	err := stepverifier.Create(reactor.Range(1, 3)).
//		ExpectNext(1, 2, 3).
//		VerifyComplete()
//
// The Flux is subscribed with an unbounded demand, unless WithInitialRequest says otherwise. Observed
// signals are checked one by one as they arrive: the first one diverging from the script fails the
// verification at once, with a MismatchError. Waiting longer than the timeout fails with a TimeoutError.
package stepverifier

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/maxatome/go-testdeep/td"
	"github.com/samber/lo"

	"github.com/fogfactory/reactor"
)

// DefaultTimeout bounds how long Verify waits for the whole script.
const DefaultTimeout = 10 * time.Second

type stepKind uint8

const (
	expectNext stepKind = iota
	expectNextCount
	expectError
	expectComplete
	thenRequest
	thenCancel
)

type step struct {
	kind stepKind
	// expected is a value or a td operator.
	expected any
	count    int
	n        int64
	match    func(error) bool
	desc     string
}

func (s step) String() string {
	switch s.kind {
	case expectNext:
		return fmt.Sprintf("next(%v)", s.desc)
	case expectNextCount:
		return fmt.Sprintf("next (%d remaining)", s.count)
	case expectError:
		return fmt.Sprintf("error(%s)", s.desc)
	case expectComplete:
		return "complete"
	}
	return "nothing"
}

func (s step) terminal() bool {
	return s.kind == expectError || s.kind == expectComplete
}

// Step is a verification script for a Flux. Its methods append to the script and return it.
type Step[T any] struct {
	flux    *reactor.Flux[T]
	steps   []step
	initial int64
}

// Create starts a script verifying f.
func Create[T any](f *reactor.Flux[T]) *Step[T] {
	return &Step[T]{flux: f, initial: reactor.Unbounded}
}

// WithInitialRequest makes the verification request n items when subscribing, instead of an unbounded
// demand. 0 requests nothing until ThenRequest.
func (s *Step[T]) WithInitialRequest(n int64) *Step[T] {
	s.initial = n
	return s
}

// ExpectNext expects the given items, in order.
func (s *Step[T]) ExpectNext(values ...T) *Step[T] {
	for _, v := range values {
		s.steps = append(s.steps, step{kind: expectNext, expected: v, desc: fmt.Sprint(v)})
	}
	return s
}

// ExpectNextMatches expects one item matching the go-testdeep operator op.
func (s *Step[T]) ExpectNextMatches(op td.TestDeep) *Step[T] {
	s.steps = append(s.steps, step{kind: expectNext, expected: op, desc: op.String()})
	return s
}

// ExpectNextCount expects n items, whatever their value.
func (s *Step[T]) ExpectNextCount(n int) *Step[T] {
	if n > 0 {
		s.steps = append(s.steps, step{kind: expectNextCount, count: n})
	}
	return s
}

// ExpectError expects an error, whatever it is.
func (s *Step[T]) ExpectError() *Step[T] {
	return s.ExpectErrorMatches(func(error) bool { return true })
}

// ExpectErrorMessage expects an error whose message is msg.
func (s *Step[T]) ExpectErrorMessage(msg string) *Step[T] {
	s.steps = append(s.steps, step{
		kind:  expectError,
		match: func(err error) bool { return err.Error() == msg },
		desc:  fmt.Sprintf("message %q", msg),
	})
	return s
}

// ExpectErrorIs expects an error matching target with errors.Is.
func (s *Step[T]) ExpectErrorIs(target error) *Step[T] {
	s.steps = append(s.steps, step{
		kind:  expectError,
		match: func(err error) bool { return errors.Is(err, target) },
		desc:  fmt.Sprintf("is %q", target),
	})
	return s
}

// ExpectErrorMatches expects an error for which match returns true.
func (s *Step[T]) ExpectErrorMatches(match func(error) bool) *Step[T] {
	s.steps = append(s.steps, step{kind: expectError, match: match, desc: "matching"})
	return s
}

// ExpectComplete expects the completion.
func (s *Step[T]) ExpectComplete() *Step[T] {
	s.steps = append(s.steps, step{kind: expectComplete})
	return s
}

// ThenRequest requests n more items once the previous expectations are met.
func (s *Step[T]) ThenRequest(n int64) *Step[T] {
	s.steps = append(s.steps, step{kind: thenRequest, n: n})
	return s
}

// ThenCancel cancels the subscription once the previous expectations are met, and ends the script.
func (s *Step[T]) ThenCancel() *Step[T] {
	s.steps = append(s.steps, step{kind: thenCancel})
	return s
}

// VerifyComplete expects the completion and runs the verification.
func (s *Step[T]) VerifyComplete() error {
	return s.ExpectComplete().Verify()
}

// Verify runs the verification, waiting DefaultTimeout at most for the whole script.
func (s *Step[T]) Verify() error {
	return s.VerifyTimeout(DefaultTimeout)
}

// VerifyTimeout subscribes to the Flux and checks the observed signals against the script, waiting timeout
// at most for the whole script. A script not ending with a terminal expectation or ThenCancel cancels the
// subscription once its last step is met.
//
// The subscription runs on its own goroutine, so that a pipeline blocking its subscriber still times out.
func (s *Step[T]) VerifyTimeout(timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	v := newVerifier[T](s.steps, s.initial)
	returned := make(chan struct{})
	go func() {
		defer close(returned)
		s.flux.SubscribeWith(v)
	}()

	select {
	case <-v.done:
	case <-deadline.C:
		return v.expire(timeout)
	}
	// Synchronous pipelines are done with their side effects once subscribed.
	select {
	case <-returned:
	case <-deadline.C:
	}
	return v.result
}

// check returns nil when sig satisfies st.
func check[T any](st step, sig reactor.Signal[T]) *MismatchError {
	mismatch := &MismatchError{Expected: st.String(), Actual: sig.String()}
	if sig.Kind == reactor.KindError {
		mismatch.Cause = sig.Err
	}
	switch st.kind {
	case expectNext:
		if sig.Kind != reactor.KindNext {
			return mismatch
		}
		if err := td.EqDeeplyError(sig.Value, st.expected); err != nil {
			mismatch.Detail = err
			return mismatch
		}
	case expectNextCount:
		if sig.Kind != reactor.KindNext {
			return mismatch
		}
	case expectError:
		if sig.Kind != reactor.KindError || !st.match(sig.Err) {
			return mismatch
		}
	case expectComplete:
		if sig.Kind != reactor.KindComplete {
			return mismatch
		}
	}
	return nil
}

// verifier subscribes to the verified Flux and walks the script as signals arrive. The first signal
// diverging from the script ends the verification and cancels the subscription.
type verifier[T any] struct {
	steps   []step
	initial int64
	done    chan struct{}

	mu       sync.Mutex
	sub      reactor.Subscription
	idx      int // current step
	left     int // items still expected by an expectNextCount step
	pos      int
	observed []reactor.Signal[T]
	finished bool
	result   error
}

func newVerifier[T any](steps []step, initial int64) *verifier[T] {
	return &verifier[T]{steps: steps, initial: initial, done: make(chan struct{})}
}

func (v *verifier[T]) OnSubscribe(s reactor.Subscription) {
	v.mu.Lock()
	v.sub = s
	if v.finished {
		v.mu.Unlock()
		s.Cancel()
		return
	}
	var requests []int64
	if v.initial > 0 {
		requests = append(requests, v.initial)
	}
	requests, cancel := v.advance(requests)
	v.mu.Unlock()
	v.act(s, requests, cancel)
}

func (v *verifier[T]) OnSignal(sig reactor.Signal[T]) {
	v.mu.Lock()
	if v.finished {
		v.mu.Unlock()
		return
	}
	v.observed = append(v.observed, sig)
	if err := check(v.current(), sig); err != nil {
		err.Position = v.pos
		v.finish(err)
		sub := v.sub
		v.mu.Unlock()
		v.act(sub, nil, true)
		return
	}
	v.pos++
	st := v.steps[v.idx]
	if st.kind == expectNextCount {
		v.left--
		if v.left > 0 {
			v.mu.Unlock()
			return
		}
	}
	if st.terminal() {
		v.finish(nil)
		v.mu.Unlock()
		return
	}
	v.idx++
	requests, cancel := v.advance(nil)
	sub := v.sub
	v.mu.Unlock()
	v.act(sub, requests, cancel)
}

// current returns the awaited expectation, an expectNextCount reduced to what is still expected. Callers
// hold mu.
func (v *verifier[T]) current() step {
	for i := v.idx; i < len(v.steps); i++ {
		st := v.steps[i]
		switch st.kind {
		case thenRequest:
			continue
		case expectNextCount:
			if i == v.idx && v.left > 0 {
				st.count = v.left
			}
		}
		return st
	}
	return step{kind: thenCancel}
}

// advance runs the steps up to the next expectation. It returns the requests to issue, and whether the
// subscription must be cancelled because the script is over. Callers hold mu.
func (v *verifier[T]) advance(requests []int64) ([]int64, bool) {
	for ; v.idx < len(v.steps); v.idx++ {
		switch st := v.steps[v.idx]; st.kind {
		case thenRequest:
			requests = append(requests, st.n)
		case thenCancel:
			v.finish(nil)
			return requests, true
		case expectNextCount:
			v.left = st.count
			return requests, false
		default:
			return requests, false
		}
	}
	v.finish(nil)
	return requests, true
}

// act issues the requests then the cancellation, out of mu since they may deliver signals synchronously.
func (v *verifier[T]) act(sub reactor.Subscription, requests []int64, cancel bool) {
	if sub == nil {
		return
	}
	for _, n := range requests {
		sub.Request(n)
	}
	if cancel {
		sub.Cancel()
	}
}

// finish records the outcome of the verification. Callers hold mu.
func (v *verifier[T]) finish(result error) {
	if v.finished {
		return
	}
	v.finished = true
	v.result = result
	close(v.done)
}

// expire fails the verification with a TimeoutError, unless it ended meanwhile, and returns its outcome.
func (v *verifier[T]) expire(timeout time.Duration) error {
	v.mu.Lock()
	if v.finished {
		v.mu.Unlock()
		return v.result
	}
	v.finish(&TimeoutError{Timeout: timeout, Position: v.pos, Expected: v.current().String(), Observed: v.observedString()})
	result, sub := v.result, v.sub
	v.mu.Unlock()
	v.act(sub, nil, true)
	return result
}

// observedString lists the observed signals. Callers hold mu.
func (v *verifier[T]) observedString() string {
	return "[" + strings.Join(lo.Map(v.observed, func(sig reactor.Signal[T], _ int) string { return sig.String() }), " ") + "]"
}
