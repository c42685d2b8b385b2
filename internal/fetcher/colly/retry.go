package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ovalfantasy/ovalsync/internal/scrape"
)

// retryTransport retries a request a fixed number of times, sleeping
// step*attempt between tries. One instance serves one Fetch call.
type retryTransport struct {
	base        http.RoundTripper
	maxAttempts int
	step        time.Duration
	limiter     scrape.Limiter
	attempts    atomic.Int32
}

func newRetryTransport(base http.RoundTripper, maxAttempts int, step time.Duration, limiter scrape.Limiter) *retryTransport {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &retryTransport{
		base:        base,
		maxAttempts: maxAttempts,
		step:        step,
		limiter:     limiter,
	}
}

// Attempts reports how many page requests went over the wire.
func (t *retryTransport) Attempts() int {
	return int(t.attempts.Load())
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("retry transport received nil request")
	}
	if isRobotsTxtRequest(req) {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, fmt.Errorf("robots roundtrip: %w", err)
		}
		return resp, nil
	}

	ctx := req.Context()
	var lastErr error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx, req.URL.String()); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}
		t.attempts.Add(1)
		resp, err := t.base.RoundTrip(cloneRequest(req))
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}
		if ctx.Err() != nil {
			closeQuietly(resp)
			return nil, fmt.Errorf("roundtrip canceled: %w", ctx.Err())
		}
		if attempt == t.maxAttempts {
			if err != nil {
				return nil, fmt.Errorf("roundtrip failed after %d attempts: %w", attempt, err)
			}
			return resp, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			closeQuietly(resp)
		}
		if err := sleepWithContext(ctx, t.step*time.Duration(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("roundtrip exhausted retries: %w", lastErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func isRobotsTxtRequest(req *http.Request) bool {
	if req == nil || req.URL == nil {
		return false
	}
	return strings.EqualFold(req.URL.Path, "/robots.txt")
}

func cloneRequest(req *http.Request) *http.Request {
	clone := req.Clone(req.Context())
	clone.Body = req.Body
	return clone
}

func closeQuietly(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry backoff sleep: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
