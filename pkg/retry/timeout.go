package retry

import (
	"context"
	"time"

	"github.com/nostr-git/ngit-core/pkg/errs"
)

// Operation names the per-call default timeout buckets spec §4.9 lists.
type Operation string

const (
	OpNetwork Operation = "network"
	OpClone   Operation = "clone"
	OpFetch   Operation = "fetch"
	OpPush    Operation = "push"
	OpCommit  Operation = "commit"
	OpGrasp   Operation = "grasp"
)

var defaultTimeouts = map[Operation]time.Duration{
	OpNetwork: 60 * time.Second,
	OpClone:   300 * time.Second,
	OpFetch:   120 * time.Second,
	OpPush:    120 * time.Second,
	OpCommit:  30 * time.Second,
	OpGrasp:   90 * time.Second,
}

// DefaultTimeout returns op's spec-mandated default.
func DefaultTimeout(op Operation) time.Duration {
	return defaultTimeouts[op]
}

// WithTimeout runs fn under op's default timeout. See WithTimeoutDuration for
// the abort-classification rules.
func WithTimeout(ctx context.Context, op Operation, fn func(ctx context.Context) error) error {
	return WithTimeoutDuration(ctx, defaultTimeouts[op], fn)
}

// WithTimeoutDuration derives a combined abort signal from ctx and timeout
// (ctx's own cancellation already counts as the "caller signal" per spec
// §4.9's combineSignals), runs fn, and classifies any resulting abort: a
// deadline that fires before the caller canceled surfaces TIMEOUT; a caller
// cancellation (observed via ctx itself having been canceled) surfaces
// OPERATION_ABORTED. Any other error from fn passes through unchanged.
func WithTimeoutDuration(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	innerCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(innerCtx)
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return errs.Wrap(errs.OperationAborted, "operation aborted by caller signal", err).
			With("operation", "withTimeout")
	}
	if innerCtx.Err() == context.DeadlineExceeded {
		return errs.Wrap(errs.Timeout, "operation exceeded its deadline", err).
			With("operation", "withTimeout").With("timeout", timeout.String())
	}
	return err
}

// CombineSignals returns a context that's canceled as soon as either ctx or
// signal is, mirroring spec §4.9's combineSignals helper for callers that
// hold a separate caller-supplied abort signal (e.g. ports.NetOpts.Signal)
// distinct from the ambient context.
func CombineSignals(ctx context.Context, signal context.Context) (context.Context, context.CancelFunc) {
	if signal == nil {
		return context.WithCancel(ctx)
	}
	combined, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(signal, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}
