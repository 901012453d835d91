package schedulesdirect

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/snapetech/sdguide/internal/httpclient"
	"github.com/snapetech/sdguide/internal/livetv"
)

const testToken = "f3fca79989cafe7dead71beefedc812b"

var testInfo = livetv.ProviderInfo{
	Username:   "alice",
	Password:   "secret",
	ListingsID: "USA-OTA-90210",
}

// fakeSD is an httptest server speaking enough SD-JSON for the provider.
// Replace login before the first request to change the /token reply.
type fakeSD struct {
	*httptest.Server
	mux    *http.ServeMux
	logins atomic.Int32
	login  http.HandlerFunc
}

func newFakeSD(t *testing.T) *fakeSD {
	t.Helper()
	f := &fakeSD{mux: http.NewServeMux()}
	f.login = jsonHandler(`{"code":0,"message":"OK","serverID":"20141201.web.1","token":"` + testToken + `"}`)
	f.mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)
		f.login(w, r)
	})
	f.Server = httptest.NewServer(f.mux)
	t.Cleanup(f.Close)
	return f
}

// handle registers h and fails the test when a request lacks the session token.
func (f *fakeSD) handle(t *testing.T, pattern string, h http.HandlerFunc) {
	t.Helper()
	f.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("token"); got != testToken {
			t.Errorf("%s: token header = %q, want %q", pattern, got, testToken)
		}
		h(w, r)
	})
}

func (f *fakeSD) provider() *Provider {
	return New(Options{
		BaseURL:    f.URL,
		HTTPClient: f.Client(),
		Retry:      &httpclient.NoRetry,
		HostSem:    httpclient.NewHostSemaphore(16),
		Location:   time.UTC,
	})
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}
}

func failHandler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		io.WriteString(w, `{"response":"SERVICE_OFFLINE","code":3000,"message":"Server offline for maintenance."}`)
	}
}

// countingHandler wraps h and counts calls.
func countingHandler(n *atomic.Int32, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n.Add(1)
		h(w, r)
	}
}
