package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nostr-git/ngit-core/pkg/errs"
)

func TestDoRetriesRetriableErrorUntilSuccess(t *testing.T) {
	opts := DefaultOptions()
	opts.InitialDelay = time.Millisecond
	opts.MaxDelay = 2 * time.Millisecond

	attempts := 0
	err := Do(context.Background(), opts, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errs.New(errs.NetworkError, "boom")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestDoNeverRetriesUserActionableError(t *testing.T) {
	opts := DefaultOptions()
	attempts := 0
	err := Do(context.Background(), opts, func(ctx context.Context) error {
		attempts++
		return errs.New(errs.NotFound, "nope")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestDoRetriesFatalExactlyOnce(t *testing.T) {
	opts := DefaultOptions()
	opts.InitialDelay = time.Millisecond
	opts.MaxDelay = 2 * time.Millisecond
	opts.MaxAttempts = 10 // fatal policy should cap it at 2 regardless

	attempts := 0
	err := Do(context.Background(), opts, func(ctx context.Context) error {
		attempts++
		return errs.New(errs.CorruptPack, "corrupt")
	})
	require.Error(t, err)
	require.Equal(t, 2, attempts)
}

func TestDoStopsAtMaxAttempts(t *testing.T) {
	opts := DefaultOptions()
	opts.InitialDelay = time.Millisecond
	opts.MaxDelay = 2 * time.Millisecond
	opts.MaxAttempts = 3

	attempts := 0
	err := Do(context.Background(), opts, func(ctx context.Context) error {
		attempts++
		return errs.New(errs.NetworkError, "always fails")
	})
	require.Error(t, err)
	require.Equal(t, 3, attempts)
}

func TestWithTimeoutSurfacesTimeoutOnDeadline(t *testing.T) {
	err := WithTimeoutDuration(context.Background(), 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	require.Equal(t, errs.Timeout, errs.CodeOf(err))
}

func TestWithTimeoutSurfacesAbortedOnCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(2 * time.Millisecond)
		cancel()
	}()

	err := WithTimeoutDuration(ctx, time.Second, func(innerCtx context.Context) error {
		<-innerCtx.Done()
		return innerCtx.Err()
	})
	require.Error(t, err)
	require.Equal(t, errs.OperationAborted, errs.CodeOf(err))
}

func TestWithTimeoutPassesThroughOtherErrors(t *testing.T) {
	sentinel := errs.New(errs.InvalidInput, "bad input")
	err := WithTimeoutDuration(context.Background(), time.Second, func(ctx context.Context) error {
		return sentinel
	})
	require.Equal(t, sentinel, err)
}
