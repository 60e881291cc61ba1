package syscalls

import (
	"runtime"
	"time"

	"github.com/synthkernel/kerneld/domain"
	"github.com/synthkernel/kerneld/internal/kerrors"
)

// TimeoutPolicy carries a duration, or is unbounded when Unbounded is set.
type TimeoutPolicy struct {
	Duration  time.Duration
	Unbounded bool
}

func NoTimeout() TimeoutPolicy { return TimeoutPolicy{Unbounded: true} }

func After(d time.Duration) TimeoutPolicy { return TimeoutPolicy{Duration: d} }

// Retrier implements the two blocking-syscall wrapping strategies.
// Disabled is test mode: the inner operation runs exactly once and its
// error is returned verbatim, with no retry loop and no observability event.
type Retrier struct {
	Disabled bool
	Sink     domain.EventSinkIface
}

// ExecuteWithRetry loops op until it stops returning the would-block
// sentinel or the deadline passes. The backoff ladder: iterations 0-15 spin
// (checked every iteration), 16-99 yield to the scheduler (checked every
// iteration), 100+ sleep 10µs (checked every 8 iterations) to keep the
// deadline check itself cheap relative to the sleep.
func (r *Retrier) ExecuteWithRetry(op func() (domain.Result, error), isWouldBlock func(error) bool, policy TimeoutPolicy, label string) domain.Result {
	if r.Disabled {
		res, err := op()
		if err != nil {
			return resultFromError(err)
		}
		return res
	}

	var deadline time.Time
	hasDeadline := !policy.Unbounded
	if hasDeadline {
		deadline = time.Now().Add(policy.Duration)
	}

	for iter := 0; ; iter++ {
		res, err := op()
		if err == nil {
			return res
		}
		if !isWouldBlock(err) {
			return resultFromError(err)
		}

		checkDeadline := true
		switch {
		case iter < 16:
			// spin hint: nothing to actually pause on in portable Go, the
			// loop itself is the spin.
		case iter < 100:
			checkDeadline = true
			runtime.Gosched()
		default:
			checkDeadline = iter%8 == 0
			time.Sleep(10 * time.Microsecond)
		}

		if hasDeadline && checkDeadline && !time.Now().Before(deadline) {
			r.emitTimeout(label, policy.Duration.Milliseconds())
			return domain.ErrorResult("%s timed out after %d ms", label, policy.Duration.Milliseconds())
		}
	}
}

// ExecuteWithDeadline makes exactly one attempt, then checks the deadline
// only if the attempt itself failed with a would-block-shaped error; any
// other error folds through the usual permission/error split instead of
// being mislabeled as a timeout.
func (r *Retrier) ExecuteWithDeadline(op func() (domain.Result, error), policy TimeoutPolicy, label string) domain.Result {
	if r.Disabled {
		res, err := op()
		if err != nil {
			return resultFromError(err)
		}
		return res
	}

	var deadline time.Time
	if !policy.Unbounded {
		deadline = time.Now().Add(policy.Duration)
	}

	res, err := op()
	if err == nil {
		return res
	}

	if !IsWouldBlock(err) {
		return resultFromError(err)
	}

	if !policy.Unbounded && !time.Now().Before(deadline) {
		r.emitTimeout(label, policy.Duration.Milliseconds())
		return domain.ErrorResult("%s timed out after %d ms", label, policy.Duration.Milliseconds())
	}
	return resultFromError(err)
}

func (r *Retrier) emitTimeout(label string, ms int64) {
	if r.Sink == nil {
		return
	}
	r.Sink.Emit(domain.KernelEvent{Kind: "timeout", Message: label})
	_ = ms
}

// IsWouldBlock is the default is_would_block predicate most operations use.
func IsWouldBlock(err error) bool {
	return err == kerrors.ErrWouldBlock
}
