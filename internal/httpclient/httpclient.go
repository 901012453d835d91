package httpclient

import (
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http/httpproxy"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 16
)

// Options tunes a client built by New. Zero values take the defaults.
type Options struct {
	Timeout time.Duration
	// Proxy/NoProxy override HTTP(S)_PROXY and NO_PROXY from the environment.
	Proxy   string
	NoProxy string
}

var defaultClient = New(Options{})

// Default returns the shared tuned HTTP client.
func Default() *http.Client {
	return defaultClient
}

// New builds a client whose transport negotiates brotli/gzip and honours the
// proxy settings in opts (falling back to the environment).
func New(opts Options) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	t := &http.Transport{
		Proxy:               proxyFunc(opts),
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: MaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}
	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: &decodingTransport{base: t},
	}
}

// WithTimeout returns a client with the given timeout sharing Default's settings.
func WithTimeout(timeout time.Duration) *http.Client {
	return New(Options{Timeout: timeout})
}

func proxyFunc(opts Options) func(*http.Request) (*url.URL, error) {
	cfg := httpproxy.FromEnvironment()
	if opts.Proxy != "" {
		cfg.HTTPProxy = opts.Proxy
		cfg.HTTPSProxy = opts.Proxy
	}
	if opts.NoProxy != "" {
		cfg.NoProxy = opts.NoProxy
	}
	fn := cfg.ProxyFunc()
	return func(r *http.Request) (*url.URL, error) {
		return fn(r.URL)
	}
}
