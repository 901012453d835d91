package httpclient

import (
	"context"
	"net/url"
	"sync"
)

// HostSemaphore is a process-global per-host concurrency limiter.
// All clients in the process share the same semaphore for a given host,
// so parallel channel fetches cannot stampede the listings provider.
//
//	release, err := GlobalHostSem.Acquire(ctx, host)
//	if err != nil { return err }
//	defer release()
type HostSemaphore struct {
	mu    sync.Mutex
	sems  map[string]chan struct{}
	limit int
}

// GlobalHostSem is the shared per-host limiter. Default cap: 4 concurrent
// requests per host across the entire process.
var GlobalHostSem = NewHostSemaphore(4)

func NewHostSemaphore(concurrency int) *HostSemaphore {
	if concurrency < 1 {
		concurrency = 1
	}
	return &HostSemaphore{
		sems:  make(map[string]chan struct{}),
		limit: concurrency,
	}
}

// Acquire blocks until a slot is available for host or ctx is done, and
// returns a release func. host may be any URL; only scheme+host is used.
func (h *HostSemaphore) Acquire(ctx context.Context, host string) (func(), error) {
	sem := h.semFor(host)
	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *HostSemaphore) semFor(host string) chan struct{} {
	// Normalise: strip path/query, keep scheme+host.
	if u, err := url.Parse(host); err == nil && u.Host != "" {
		host = u.Scheme + "://" + u.Host
	}
	h.mu.Lock()
	s, ok := h.sems[host]
	if !ok {
		s = make(chan struct{}, h.limit)
		h.sems[host] = s
	}
	h.mu.Unlock()
	return s
}
