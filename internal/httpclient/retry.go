package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryPolicy controls when to retry after a response. Used by DoWithRetry.
type RetryPolicy struct {
	// Retry429: on 429 Too Many Requests, wait Retry-After (capped at Max429Wait) and retry once.
	Retry429   bool
	Max429Wait time.Duration // cap on 429 wait (e.g. 60s)
	// Retry5xx: on 5xx, wait Backoff5xx and retry once.
	Retry5xx   bool
	Backoff5xx time.Duration
}

// DefaultRetryPolicy is a reasonable default: retry 429 (cap 60s) and 5xx (1s backoff).
var DefaultRetryPolicy = RetryPolicy{
	Retry429:   true,
	Max429Wait: 60 * time.Second,
	Retry5xx:   true,
	Backoff5xx: 1 * time.Second,
}

// NoRetry never retries; the first response is returned as is.
var NoRetry = RetryPolicy{}

// retryableStatus carries the wait before the next attempt.
type retryableStatus struct {
	code int
	wait time.Duration
}

func (e *retryableStatus) Error() string {
	return fmt.Sprintf("retryable status %d", e.code)
}

// DoWithRetry performs req and on 429/5xx (when policy allows) waits and retries once.
// 4xx (except 429) and transport errors are never retried. The second response is
// returned whatever its status. Requests with a body must be replayable (GetBody set,
// as http.NewRequest does for bytes/strings readers). Caller closes resp.Body when err == nil.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, policy RetryPolicy) (*http.Response, error) {
	if client == nil {
		client = Default()
	}
	const attempts = 2
	attempt := 0
	return retry.DoWithData(
		func() (*http.Response, error) {
			attempt++
			r, err := replay(ctx, req, attempt)
			if err != nil {
				return nil, retry.Unrecoverable(err)
			}
			resp, err := client.Do(r)
			if err != nil {
				return nil, retry.Unrecoverable(err)
			}
			wait, ok := retryWait(resp, policy)
			if !ok || attempt >= attempts {
				return resp, nil
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, &retryableStatus{code: resp.StatusCode, wait: wait}
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.LastErrorOnly(true),
		retry.DelayType(func(_ uint, err error, _ *retry.Config) time.Duration {
			var rs *retryableStatus
			if errors.As(err, &rs) {
				return rs.wait
			}
			return 0
		}),
	)
}

// replay returns req for the first attempt and a fresh copy with a rewound body after.
func replay(ctx context.Context, req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 1 {
		return req, nil
	}
	r := req.Clone(ctx)
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, errors.New("retry: request body is not replayable")
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		r.Body = body
	}
	return r, nil
}

// retryWait reports whether resp should be retried under policy and how long to wait.
func retryWait(resp *http.Response, policy RetryPolicy) (time.Duration, bool) {
	code := resp.StatusCode
	switch {
	case code == http.StatusTooManyRequests && policy.Retry429:
		return parseRetryAfter(resp.Header.Get("Retry-After"), policy.Max429Wait), true
	case code >= 500 && policy.Retry5xx:
		return policy.Backoff5xx, true
	}
	return 0, false
}

// parseRetryAfter parses Retry-After (seconds or HTTP-date); returns duration capped at max.
func parseRetryAfter(s string, max time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1 * time.Second
	}
	if sec, err := strconv.Atoi(s); err == nil && sec >= 0 {
		d := time.Duration(sec) * time.Second
		if d > max {
			return max
		}
		return d
	}
	// RFC 1123 date
	t, err := time.Parse(time.RFC1123, s)
	if err != nil {
		return 1 * time.Second
	}
	until := time.Until(t)
	if until <= 0 {
		return 0
	}
	if until > max {
		return max
	}
	return until
}
