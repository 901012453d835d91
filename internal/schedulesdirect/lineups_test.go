package schedulesdirect

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapetech/sdguide/internal/httpclient"
	"github.com/snapetech/sdguide/internal/livetv"
)

func TestGetHeadends(t *testing.T) {
	f := newFakeSD(t)
	f.handle(t, "GET /headends", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("country") != "USA" || r.URL.Query().Get("postalcode") != "90210" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		jsonHandler(`[
			{"headend":"CA00053","transport":"Cable","location":"Beverly Hills","lineups":[
				{"name":"Time Warner Cable - Digital","lineup":"USA-CA00053-DEFAULT","uri":"/20141201/lineups/USA-CA00053-DEFAULT"},
				{"lineup":"USA-CA00053-X","uri":"/20141201/lineups/USA-CA00053-X"}
			]},
			{"headend":"0000001","transport":"Antenna","location":"90210","lineups":[
				{"name":"Antenna","lineup":"USA-OTA-90210","uri":""}
			]}
		]`)(w, r)
	})
	p := f.provider()

	got, err := p.GetHeadends(context.Background(), testInfo, "USA", "90210")
	require.NoError(t, err)
	assert.Equal(t, []livetv.NameIDPair{
		{Name: "Time Warner Cable - Digital", ID: "USA-CA00053-DEFAULT"},
		{Name: "USA-CA00053-X", ID: "USA-CA00053-X"},
		{Name: "Antenna", ID: "USA-OTA-90210"},
	}, got)
}

func TestGetHeadends_failureIsEmpty(t *testing.T) {
	f := newFakeSD(t)
	f.handle(t, "GET /headends", failHandler(http.StatusBadGateway))
	p := f.provider()

	got, err := p.GetHeadends(context.Background(), testInfo, "USA", "90210")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGetHeadends_undecodableIsEmpty(t *testing.T) {
	f := newFakeSD(t)
	f.handle(t, "GET /headends", jsonHandler(`{"unexpected":`))
	p := f.provider()

	got, err := p.GetLineups(context.Background(), testInfo, "USA", "90210")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetHeadends_noCredentials(t *testing.T) {
	f := newFakeSD(t)
	p := f.provider()
	got, err := p.GetHeadends(context.Background(), livetv.ProviderInfo{}, "USA", "90210")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, f.logins.Load())
}

func TestGetHeadends_loginTransportFailureIsEmpty(t *testing.T) {
	f := newFakeSD(t)
	f.login = failHandler(http.StatusServiceUnavailable)
	got, err := f.provider().GetHeadends(context.Background(), testInfo, "USA", "90210")
	require.NoError(t, err)
	assert.Empty(t, got)

	unreachable := New(Options{BaseURL: "http://127.0.0.1:1", Retry: &httpclient.NoRetry})
	got, err = unreachable.GetHeadends(context.Background(), testInfo, "USA", "90210")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGetHeadends_refusedLoginIsError(t *testing.T) {
	f := newFakeSD(t)
	f.login = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"response":"INVALID_USER","code":4003,"message":"Invalid user or password."}`)
	}
	got, err := f.provider().GetHeadends(context.Background(), testInfo, "USA", "90210")
	require.ErrorIs(t, err, ErrAuthentication)
	assert.Empty(t, got)
}

func TestLineupIDFromURI(t *testing.T) {
	tests := []struct {
		uri, fallback, want string
	}{
		{"/20141201/lineups/USA-OTA-90210", "x", "USA-OTA-90210"},
		{"/20141201/lineups/USA-OTA-90210/", "x", "USA-OTA-90210"},
		{"", "USA-OTA-90210", "USA-OTA-90210"},
		{"/", "fb", "fb"},
	}
	for _, tt := range tests {
		if got := lineupIDFromURI(tt.uri, tt.fallback); got != tt.want {
			t.Errorf("lineupIDFromURI(%q, %q) = %q, want %q", tt.uri, tt.fallback, got, tt.want)
		}
	}
}

func TestHasLineup(t *testing.T) {
	f := newFakeSD(t)
	f.handle(t, "GET /lineups", jsonHandler(`{"code":0,"serverID":"x","datetime":"2025-01-01T00:00:00Z","lineups":[
		{"lineup":"usa-ota-90210","name":"Antenna","uri":"/20141201/lineups/USA-OTA-90210"}
	]}`))
	p := f.provider()
	ctx := context.Background()

	ok, err := p.HasLineup(ctx, testInfo)
	require.NoError(t, err)
	assert.True(t, ok, "match is case-insensitive")

	other := testInfo
	other.ListingsID = "GBR-1000193-DEFAULT"
	ok, err = p.HasLineup(ctx, other)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasLineup_configErrors(t *testing.T) {
	p := New(Options{BaseURL: "http://127.0.0.1:1"})
	ctx := context.Background()

	_, err := p.HasLineup(ctx, livetv.ProviderInfo{Username: "a", Password: "b"})
	assert.True(t, errors.Is(err, ErrConfiguration))

	_, err = p.HasLineup(ctx, livetv.ProviderInfo{ListingsID: "USA-OTA-90210"})
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestValidate(t *testing.T) {
	f := newFakeSD(t)
	var puts atomic.Int32
	f.handle(t, "GET /lineups", jsonHandler(`{"lineups":[]}`))
	f.handle(t, "PUT /lineups/USA-OTA-90210", countingHandler(&puts, jsonHandler(
		`{"response":"OK","code":0,"serverID":"x","message":"Added lineup.","changesRemaining":5}`)))
	p := f.provider()
	ctx := context.Background()

	require.NoError(t, p.Validate(ctx, testInfo, true, true))
	assert.EqualValues(t, 1, puts.Load(), "missing lineup is added")
}

func TestValidate_alreadySubscribed(t *testing.T) {
	f := newFakeSD(t)
	var puts atomic.Int32
	f.handle(t, "GET /lineups", jsonHandler(`{"lineups":[{"lineup":"USA-OTA-90210"}]}`))
	f.handle(t, "PUT /lineups/USA-OTA-90210", countingHandler(&puts, jsonHandler(`{"code":0}`)))
	p := f.provider()

	require.NoError(t, p.Validate(context.Background(), testInfo, false, true))
	assert.Zero(t, puts.Load())
}

func TestValidate_missingFields(t *testing.T) {
	p := New(Options{BaseURL: "http://127.0.0.1:1"})
	ctx := context.Background()
	tests := []struct {
		name          string
		info          livetv.ProviderInfo
		login, listen bool
		field         string
	}{
		{"no username", livetv.ProviderInfo{Password: "p"}, true, false, "username"},
		{"no password", livetv.ProviderInfo{Username: "u"}, true, false, "password"},
		{"no listings", livetv.ProviderInfo{Username: "u", Password: "p"}, false, true, "listings id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Validate(ctx, tt.info, tt.login, tt.listen)
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
	assert.NoError(t, p.Validate(ctx, livetv.ProviderInfo{}, false, false))
}

func TestStatus(t *testing.T) {
	f := newFakeSD(t)
	f.handle(t, "GET /status", jsonHandler(`{
		"account":{"expires":"2026-09-01T00:00:00Z","messages":[{"msgID":"1","date":"2025-01-01T00:00:00Z","message":"Renew soon"}],"maxLineups":4},
		"lineups":[{"lineup":"USA-OTA-90210","modified":"2025-01-01T00:00:00Z"},{"lineup":"OLD","isDeleted":true}],
		"lastDataUpdate":"2025-02-01T12:00:00Z",
		"systemStatus":[{"date":"2025-01-01T00:00:00Z","status":"Online","message":"No known issues."}],
		"serverID":"x","code":0
	}`))
	p := f.provider()

	st, err := p.Status(context.Background(), testInfo)
	require.NoError(t, err)
	assert.True(t, st.Expires.Equal(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)), "expires = %v", st.Expires)
	assert.Equal(t, 4, st.MaxLineups)
	assert.Equal(t, []string{"USA-OTA-90210"}, st.Lineups)
	assert.Equal(t, "Online", st.SystemStatus)
	assert.Equal(t, []string{"Renew soon"}, st.Messages)
	assert.Contains(t, st.String(), "lineups=1/4")
}

func TestStatus_errorPayload(t *testing.T) {
	f := newFakeSD(t)
	f.handle(t, "GET /status", jsonHandler(`{"response":"ACCOUNT_EXPIRED","code":4001,"message":"Account expired."}`))
	p := f.provider()

	_, err := p.Status(context.Background(), testInfo)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 4001, se.Code)
}
