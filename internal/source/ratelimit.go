package source

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultRate is the proactive request rate against the GitHub API.
	DefaultRate = 10.0

	// DefaultBurst allows short bursts of listing calls.
	DefaultBurst = 5

	// MinBuffer is the remaining request count below which we wait for reset.
	MinBuffer = 10

	HeaderRateLimit     = "X-RateLimit-Limit"
	HeaderRateRemaining = "X-RateLimit-Remaining"
	HeaderRateReset     = "X-RateLimit-Reset"
	HeaderRetryAfter    = "Retry-After"
)

// RateLimiter combines a token bucket with the limits reported by GitHub headers.
type RateLimiter struct {
	mu        sync.Mutex
	remaining int
	limit     int
	resetTime time.Time
	bucket    *rate.Limiter
	minBuffer int
}

// NewRateLimiter creates a limiter allowing r requests per second with the given burst.
func NewRateLimiter(r float64, burst int) *RateLimiter {
	return &RateLimiter{
		remaining: -1,
		limit:     -1,
		bucket:    rate.NewLimiter(rate.Limit(r), burst),
		minBuffer: MinBuffer,
	}
}

// Wait blocks until a request may be issued.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.bucket.Wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	remaining := r.remaining
	resetTime := r.resetTime
	r.mu.Unlock()

	// Unknown quota until the first response arrives.
	if remaining < 0 || remaining >= r.minBuffer || !time.Now().Before(resetTime) {
		return nil
	}

	// A run must not hang for an hour on an exhausted quota; report it instead.
	return &RateLimitError{ResetAt: resetTime, Remaining: remaining, Limit: r.Limit()}
}

// UpdateFromResponse records the quota headers of a response.
func (r *RateLimiter) UpdateFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if v := resp.Header.Get(HeaderRateRemaining); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			r.remaining = n
		}
	}
	if v := resp.Header.Get(HeaderRateLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			r.limit = n
		}
	}
	if v := resp.Header.Get(HeaderRateReset); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			r.resetTime = time.Unix(n, 0)
		}
	}
}

// CheckResponse returns a RateLimitError when the response signals throttling.
func (r *RateLimiter) CheckResponse(resp *http.Response) error {
	if resp == nil {
		return nil
	}
	r.UpdateFromResponse(resp)

	if resp.StatusCode != http.StatusTooManyRequests &&
		!(resp.StatusCode == http.StatusForbidden && r.Remaining() == 0) {
		return nil
	}

	resetAt := r.ResetTime()
	if v := resp.Header.Get(HeaderRetryAfter); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			resetAt = time.Now().Add(time.Duration(seconds) * time.Second)
		}
	}
	return &RateLimitError{ResetAt: resetAt, Remaining: r.Remaining(), Limit: r.Limit()}
}

func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining
}

func (r *RateLimiter) Limit() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.limit
}

func (r *RateLimiter) ResetTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resetTime
}
