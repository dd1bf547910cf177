// Package ratelimit implements spec §4.12's three-layer throttle for
// optional vendor REST use (the core may drive a vendor API for
// import/mirroring, but owns no vendor SDK itself per spec §1's scope).
// The proactive layer's per-provider token bucket is grounded on the
// teacher pack's rohankatakam-coderisk/internal/github/client.go, which
// wraps golang.org/x/time/rate.Limiter.Wait around every GitHub API call.
package ratelimit

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nostr-git/ngit-core/pkg/errs"
)

// Quota is the reactive layer's per-provider snapshot, parsed from
// X-RateLimit-{Remaining,Limit,Reset} per spec §4.12 layer 2.
type Quota struct {
	Remaining int
	Limit     int
	Reset     time.Time
}

// Options configures Kernel.
type Options struct {
	// SecondsBetweenRequests is the proactive layer's minimum spacing per
	// provider, spec §4.12 layer 1.
	SecondsBetweenRequests float64
	// SecondaryRateWait is the fixed wait for "secondary rate limit" /
	// "abuse detection" bodies, spec §4.12 layer 3.
	SecondaryRateWait time.Duration
	MaxRetries        int
}

func (o *Options) Default() {
	if o.SecondsBetweenRequests <= 0 {
		o.SecondsBetweenRequests = 1
	}
	if o.SecondaryRateWait <= 0 {
		o.SecondaryRateWait = 60 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 5
	}
}

var (
	rateLimitExceededRe = regexp.MustCompile(`(?i)rate limit exceeded`)
	secondaryRe         = regexp.MustCompile(`(?i)secondary rate limit|abuse detection`)
)

// Kernel is the vendor-agnostic throttle/retry/quota-tracking engine. One
// Kernel can serve several vendor providers: its token buckets and quota
// snapshots are keyed by the provider name passed to Do.
type Kernel struct {
	opts Options

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	quotas   map[string]Quota
}

func New(opts Options) *Kernel {
	opts.Default()
	return &Kernel{
		opts:     opts,
		limiters: map[string]*rate.Limiter{},
		quotas:   map[string]Quota{},
	}
}

func (k *Kernel) limiterFor(provider string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.limiters[provider]
	if !ok {
		l = rate.NewLimiter(rate.Limit(1/k.opts.SecondsBetweenRequests), 1)
		k.limiters[provider] = l
	}
	return l
}

// Quota returns the last-observed reactive quota snapshot for provider.
func (k *Kernel) Quota(provider string) (Quota, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	q, ok := k.quotas[provider]
	return q, ok
}

func (k *Kernel) recordQuota(provider string, h http.Header) {
	q := Quota{}
	q.Remaining, _ = strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	q.Limit, _ = strconv.Atoi(h.Get("X-RateLimit-Limit"))
	if resetStr := h.Get("X-RateLimit-Reset"); resetStr != "" {
		if secs, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			q.Reset = time.Unix(secs, 0)
		}
	}
	k.mu.Lock()
	k.quotas[provider] = q
	k.mu.Unlock()
}

// Do executes call under all three layers of spec §4.12: it waits for the
// proactive token bucket, invokes call, records the reactive quota from the
// response header, and retries per layer 3's policy on 5xx/403 responses.
// call returns the response status, its headers, and the response body
// (read once, so retry-classification can inspect it) alongside any
// transport error.
func (k *Kernel) Do(ctx context.Context, provider string, call func(ctx context.Context) (status int, header http.Header, body string, err error)) (status int, header http.Header, body string, err error) {
	limiter := k.limiterFor(provider)

	for attempt := 0; attempt <= k.opts.MaxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return 0, nil, "", errs.Wrap(errs.OperationAborted, "rate limiter wait canceled", err).
				With("operation", "ratelimit.Do").With("provider", provider)
		}

		status, header, body, err = call(ctx)
		if header != nil {
			k.recordQuota(provider, header)
		}
		if err != nil {
			return status, header, body, err
		}

		wait, retry := k.classify(status, header, body)
		if !retry || attempt == k.opts.MaxRetries {
			return status, header, body, nil
		}
		if status >= 500 {
			wait <<= attempt // 5xx backoff doubles with each retry
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return status, header, body, errs.Wrap(errs.OperationAborted, "rate-limit retry wait canceled", ctx.Err()).
				With("operation", "ratelimit.Do").With("provider", provider)
		case <-timer.C:
		}
	}
	return status, header, body, nil
}

// classify implements spec §4.12 layer 3's policy, returning the wait
// duration and whether a retry is warranted.
func (k *Kernel) classify(status int, header http.Header, body string) (time.Duration, bool) {
	switch {
	case status >= 500:
		return 2 * time.Second, true
	case status == http.StatusForbidden:
		if ra := header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				return time.Duration(secs) * time.Second, true
			}
		}
		if rateLimitExceededRe.MatchString(body) {
			reset := header.Get("X-RateLimit-Reset")
			if secs, err := strconv.ParseInt(reset, 10, 64); err == nil {
				until := time.Until(time.Unix(secs, 0)) + time.Second
				if until > 0 {
					return until, true
				}
				return time.Second, true
			}
			return k.opts.SecondaryRateWait, true
		}
		if secondaryRe.MatchString(body) {
			return k.opts.SecondaryRateWait, true
		}
		return 0, false
	default:
		return 0, false
	}
}
