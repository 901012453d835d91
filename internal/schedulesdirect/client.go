package schedulesdirect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/snapetech/sdguide/internal/httpclient"
	"github.com/snapetech/sdguide/internal/logging"
	"github.com/snapetech/sdguide/internal/metrics"
)

const breakerName = "schedulesdirect"

// maxBody caps a single SD response; /programs batches of 5000 ids stay well below it.
const maxBody = 256 << 20

// client performs SD-JSON calls: rate limited, bounded per host, retried once on
// 429/5xx and guarded by a circuit breaker. It holds no auth state.
type client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	hostSem   *httpclient.HostSemaphore
	retry     httpclient.RetryPolicy
	breaker   *gobreaker.CircuitBreaker[*response]
}

type response struct {
	status int
	body   []byte
}

func newClient(opts Options) *client {
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst < 1 {
		burst = 1
	}
	c := &client{
		baseURL:   opts.BaseURL,
		userAgent: opts.UserAgent,
		http:      opts.HTTPClient,
		limiter:   rate.NewLimiter(limit, burst),
		hostSem:   opts.HostSem,
		retry:     httpclient.DefaultRetryPolicy,
	}
	if opts.Retry != nil {
		c.retry = *opts.Retry
	}
	if c.http == nil {
		c.http = httpclient.Default()
	}
	if c.hostSem == nil {
		c.hostSem = httpclient.GlobalHostSem
	}
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	c.breaker = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("sd: circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return c
}

// do sends in (JSON-encoded when non-nil) to baseURL+path and decodes the reply
// into out (when non-nil). endpoint names the call in errors, logs and metrics.
// token is sent in the "token" header when set.
func (c *client) do(ctx context.Context, endpoint, method, path, token string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("sd %s: encode: %w", endpoint, err)
		}
		body = b
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sd %s: %w", endpoint, err)
	}
	release, err := c.hostSem.Acquire(ctx, c.baseURL)
	if err != nil {
		return fmt.Errorf("sd %s: %w", endpoint, err)
	}
	defer release()

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*response, error) {
		return c.roundTrip(ctx, endpoint, method, path, token, body)
	})
	if err != nil {
		status := 0
		var se *StatusError
		if errors.As(err, &se) {
			status = se.StatusCode
		}
		metrics.ObserveRequest(endpoint, status, time.Since(start))
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("sd %s: %w", endpoint, err)
		}
		return err
	}
	metrics.ObserveRequest(endpoint, resp.status, time.Since(start))
	logging.Debug().Str("endpoint", endpoint).Int("status", resp.status).Int("bytes", len(resp.body)).Dur("elapsed", time.Since(start)).Msg("sd: request")

	if resp.status >= 400 {
		return statusError(endpoint, resp)
	}
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		if se := payloadError(endpoint, resp); se != nil {
			return se
		}
		return fmt.Errorf("sd %s: decode: %w", endpoint, err)
	}
	return nil
}

// roundTrip returns a StatusError for 5xx so the breaker counts it as a failure;
// 4xx is the caller's problem and is returned as a plain response.
func (c *client) roundTrip(ctx context.Context, endpoint, method, path, token string, body []byte) (*response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("sd %s: %w", endpoint, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("token", token)
	}
	httpResp, err := httpclient.DoWithRetry(ctx, c.http, req, c.retry)
	if err != nil {
		return nil, fmt.Errorf("sd %s: %w", endpoint, err)
	}
	defer httpResp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("sd %s: read: %w", endpoint, err)
	}
	resp := &response{status: httpResp.StatusCode, body: data}
	if resp.status >= 500 {
		return resp, statusError(endpoint, resp)
	}
	return resp, nil
}

func statusError(endpoint string, resp *response) *StatusError {
	se := &StatusError{Endpoint: endpoint, StatusCode: resp.status}
	var e sdError
	if json.Unmarshal(resp.body, &e) == nil {
		se.Code = e.Code
		se.Message = e.Message
		if se.Message == "" {
			se.Message = e.Response
		}
	}
	return se
}

// payloadError recognises an SD error object sent where data was expected.
func payloadError(endpoint string, resp *response) *StatusError {
	var e sdError
	if json.Unmarshal(resp.body, &e) != nil || e.Code == 0 {
		return nil
	}
	return &StatusError{Endpoint: endpoint, StatusCode: resp.status, Code: e.Code, Message: e.Message}
}
