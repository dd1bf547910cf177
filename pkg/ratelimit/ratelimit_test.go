package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoProactiveLayerSpacesRequests(t *testing.T) {
	k := New(Options{SecondsBetweenRequests: 0.01, MaxRetries: 1})

	var calls int
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, _, _, err := k.Do(context.Background(), "gh", func(ctx context.Context) (int, http.Header, string, error) {
			calls++
			return 200, http.Header{}, "", nil
		})
		require.NoError(t, err)
	}
	require.Equal(t, 3, calls)
	// burst 1 at 10ms spacing: calls 2 and 3 each wait for a fresh token.
	require.True(t, time.Since(start) >= 15*time.Millisecond)
}

func TestDoReactiveLayerRecordsQuota(t *testing.T) {
	k := New(Options{SecondsBetweenRequests: 0.001})
	_, _, _, err := k.Do(context.Background(), "gh", func(ctx context.Context) (int, http.Header, string, error) {
		h := http.Header{}
		h.Set("X-RateLimit-Remaining", "42")
		h.Set("X-RateLimit-Limit", "60")
		return 200, h, "", nil
	})
	require.NoError(t, err)

	q, ok := k.Quota("gh")
	require.True(t, ok)
	require.Equal(t, 42, q.Remaining)
	require.Equal(t, 60, q.Limit)
}

func TestDoRetries5xxThenSucceeds(t *testing.T) {
	k := New(Options{SecondsBetweenRequests: 0.001, MaxRetries: 3})
	attempts := 0
	status, _, _, err := k.Do(context.Background(), "gh", func(ctx context.Context) (int, http.Header, string, error) {
		attempts++
		if attempts < 2 {
			return 500, http.Header{}, "", nil
		}
		return 200, http.Header{}, "", nil
	})
	require.NoError(t, err)
	require.Equal(t, 200, status)
	require.Equal(t, 2, attempts)
}

func TestDoHonorsRetryAfterOn403(t *testing.T) {
	k := New(Options{SecondsBetweenRequests: 0.001, MaxRetries: 2})
	attempts := 0
	start := time.Now()
	status, _, _, err := k.Do(context.Background(), "gh", func(ctx context.Context) (int, http.Header, string, error) {
		attempts++
		if attempts == 1 {
			h := http.Header{}
			h.Set("Retry-After", "0")
			return 403, h, "rate limited", nil
		}
		return 200, http.Header{}, "", nil
	})
	require.NoError(t, err)
	require.Equal(t, 200, status)
	require.True(t, time.Since(start) >= 0)
}

func TestDoDoesNotRetryPlain403(t *testing.T) {
	k := New(Options{SecondsBetweenRequests: 0.001, MaxRetries: 2})
	attempts := 0
	status, _, _, err := k.Do(context.Background(), "gh", func(ctx context.Context) (int, http.Header, string, error) {
		attempts++
		return 403, http.Header{}, "forbidden: missing scope", nil
	})
	require.NoError(t, err)
	require.Equal(t, 403, status)
	require.Equal(t, 1, attempts)
}
