// Package retry implements spec §4.9's withRetry/withTimeout layer: backoff
// progression is driven by k8s.io/apimachinery/pkg/util/wait.Backoff, the
// same package the teacher's pkg/gitdir checkout loop uses (there via
// wait.NonSlidingUntilWithContext) for its own interval scheduling.
package retry

import (
	"context"
	"math/rand"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/nostr-git/ngit-core/pkg/errs"
)

// Options configures Do. The zero value is invalid; use DefaultOptions or
// GraspOptions.
type Options struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Jitter       bool

	// OnRetry is called before sleeping ahead of each retry.
	OnRetry func(attempt int, err error, delay time.Duration)
	// ShouldRetry overrides the category-based default policy when set.
	ShouldRetry func(err error) bool
}

// DefaultOptions is spec §4.9's baseline: {maxAttempts:3, initialDelayMs:500,
// maxDelayMs:2000, jitter:true}.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     2000 * time.Millisecond,
		Jitter:       true,
	}
}

// GraspOptions is the GRASP variant: +50% on both delay bounds.
func GraspOptions() Options {
	o := DefaultOptions()
	o.InitialDelay = o.InitialDelay + o.InitialDelay/2
	o.MaxDelay = o.MaxDelay + o.MaxDelay/2
	return o
}

// defaultShouldRetry implements spec §4.9's policy: never retry
// user-actionable errors, always retry retriable ones, retry fatal errors
// exactly once. attempt is the 1-indexed count of failures observed so far.
func defaultShouldRetry(err error, attempt int) bool {
	switch errs.CategoryOf(errs.CodeOf(err)) {
	case errs.UserActionable:
		return false
	case errs.Retriable:
		return true
	case errs.Fatal:
		return attempt < 2
	default:
		return false
	}
}

// jitterMultiplier draws uniformly from [0.75, 1.25], per spec §4.9. This is
// re-derived by hand rather than using wait.Backoff's own Jitter field,
// which is one-sided ([1, 1+jitter)) and doesn't match the spec's symmetric
// window; wait.Backoff is still used for the exponential/cap progression.
func jitterMultiplier() float64 {
	return 0.75 + rand.Float64()*0.5
}

// Do runs fn, retrying on failure per opts until it succeeds, a non-retriable
// error is encountered, attempts are exhausted, or ctx is done.
func Do(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	backoff := wait.Backoff{
		Duration: opts.InitialDelay,
		Factor:   2,
		Steps:    opts.MaxAttempts,
		Cap:      opts.MaxDelay,
	}

	attempt := 0
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		attempt++

		retry := defaultShouldRetry(err, attempt)
		if opts.ShouldRetry != nil {
			retry = opts.ShouldRetry(err)
		}
		if !retry || attempt >= opts.MaxAttempts {
			return err
		}

		delay := backoff.Step()
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
		if opts.Jitter {
			delay = time.Duration(float64(delay) * jitterMultiplier())
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errs.Wrap(errs.OperationAborted, "retry loop canceled while waiting to retry", ctx.Err()).
				With("operation", "retry").With("attempt", attempt)
		case <-timer.C:
		}
	}
}
