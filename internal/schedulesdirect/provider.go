// Package schedulesdirect is a listings provider backed by the Schedules Direct
// SD-JSON API (https://schedulesdirect.org).
//
// # What it does
//
// Given an account and a subscribed lineup it:
//   - logs in and caches the 24 h session token per username
//   - lists headends for a region and manages the account's lineups
//   - maps tuner channel numbers to SD stations and enriches channel records
//     with station names and logos
//   - fetches a channel's schedule, program details and artwork in three
//     batched calls and normalises them into livetv.ProgramInfo
//
// # API notes
//
// SD-JSON uses a token-based auth flow:
//  1. POST /20141201/token            → token (valid 24 h); password is SHA-1 hex
//  2. GET  /20141201/lineups/<id>     → channel map + stations
//  3. POST /20141201/schedules        → per-day airings for a station
//  4. POST /20141201/programs         → program details (max 5000 ids per call)
//  5. POST /20141201/metadata/programs → artwork (max 500 ids per call)
//
// A Provider is safe for concurrent use. It never starts goroutines; every
// network call happens on the caller's goroutine and honours its context.
package schedulesdirect

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/snapetech/sdguide/internal/httpclient"
)

const (
	DefaultBaseURL = "https://json.schedulesdirect.org/20141201"

	providerName = "Schedules Direct"
	providerType = "SchedulesDirect"
)

// Version is reported in the User-Agent; main overrides it at link time.
var Version = "dev"

// Options configures New. Zero values take defaults.
type Options struct {
	BaseURL    string // default DefaultBaseURL
	UserAgent  string // default "sdguide/<Version>"
	HTTPClient *http.Client
	RateLimit  float64 // requests per second; 0 = unlimited
	RateBurst  int
	Retry      *httpclient.RetryPolicy   // default httpclient.DefaultRetryPolicy
	HostSem    *httpclient.HostSemaphore // default httpclient.GlobalHostSem
	// Location is the local zone used when choosing which schedule days to request.
	Location *time.Location
}

// Provider is a Schedules Direct listings provider. Create with New.
type Provider struct {
	client *client
	loc    *time.Location
	now    func() time.Time

	tokens  sync.Map            // username → *atomic.Pointer[authToken]
	refresh *semaphore.Weighted // one login in flight across all usernames

	mu       sync.RWMutex
	channels map[string]sdStation // normalised channel number → station
}

func New(opts Options) *Provider {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	if opts.UserAgent == "" {
		opts.UserAgent = "sdguide/" + Version
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Provider{
		client:   newClient(opts),
		loc:      opts.Location,
		now:      time.Now,
		refresh:  semaphore.NewWeighted(1),
		channels: make(map[string]sdStation),
	}
}

// Name is the display name of the provider.
func (p *Provider) Name() string { return providerName }

// Type is the stable provider key used in configuration.
func (p *Provider) Type() string { return providerType }

// BaseURL is the API root image paths are resolved against.
func (p *Provider) BaseURL() string { return p.client.baseURL }
