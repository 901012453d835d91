package schedulesdirect

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapetech/sdguide/internal/livetv"
)

func TestChannelKey(t *testing.T) {
	tests := []struct {
		name   string
		in     sdChannelMap
		want   string
		wantOK bool
	}{
		{"channel zero padded", sdChannelMap{Channel: "012"}, "12", true},
		{"channel plain", sdChannelMap{Channel: "10"}, "10", true},
		{"atsc", sdChannelMap{ATSCMajor: 5, ATSCMinor: 1}, "5.1", true},
		{"channel beats atsc", sdChannelMap{Channel: "7", ATSCMajor: 5, ATSCMinor: 1}, "7", true},
		{"atsc sentinel", sdChannelMap{}, "", false},
		{"channel sentinel", sdChannelMap{Channel: "0.0"}, "", false},
		{"padded sentinel", sdChannelMap{Channel: "00.0"}, "", false},
		{"all zeros", sdChannelMap{Channel: "000"}, "", false},
		{"blank channel falls back", sdChannelMap{Channel: "  ", ATSCMajor: 2, ATSCMinor: 3}, "2.3", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := channelKey(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("channelKey(%+v) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestBuildMapping_firstWins(t *testing.T) {
	p := New(Options{})
	p.buildMapping(&sdLineupResponse{
		Map: []sdChannelMap{
			{StationID: "1001", Channel: "12"},
			{StationID: "1002", Channel: "012"},
			{StationID: "9999", Channel: "13"}, // not in stations
			{StationID: "1003"},                // sentinel
			{StationID: "1003", ATSCMajor: 5, ATSCMinor: 1},
		},
		Stations: []sdStation{
			{StationID: "1001", Name: "First"},
			{StationID: "1002", Name: "Second"},
			{StationID: "1003", Name: "Third"},
		},
	})

	assert.Equal(t, 2, p.MappedChannels())
	id, ok := p.LookupStation("12")
	require.True(t, ok)
	assert.Equal(t, "1001", id, "first entry for a key wins")
	_, ok = p.LookupStation("13")
	assert.False(t, ok)
	_, ok = p.LookupStation("0.0")
	assert.False(t, ok)
	assert.Equal(t, []string{"12", "5.1"}, p.ChannelNumbers())
}

func TestBuildMapping_replacesTable(t *testing.T) {
	p := New(Options{})
	p.buildMapping(&sdLineupResponse{
		Map:      []sdChannelMap{{StationID: "1", Channel: "2"}},
		Stations: []sdStation{{StationID: "1", Name: "Old"}},
	})
	p.buildMapping(&sdLineupResponse{
		Map:      []sdChannelMap{{StationID: "2", Channel: "4"}},
		Stations: []sdStation{{StationID: "2", Name: "New"}},
	})
	_, ok := p.LookupStation("2")
	assert.False(t, ok, "rebuild clears old entries")
	_, ok = p.LookupStation("4")
	assert.True(t, ok)
}

func TestApplyToChannelList(t *testing.T) {
	p := New(Options{})
	p.buildMapping(&sdLineupResponse{
		Map: []sdChannelMap{
			{StationID: "1", Channel: "2"},
			{StationID: "2", ATSCMajor: 4, ATSCMinor: 1},
		},
		Stations: []sdStation{
			{StationID: "1", Name: "KCBS", Affiliate: "CBS", Logo: &sdLogo{URL: "https://schedulesdirect-api20141201.s3.amazonaws.com/stationLogos/s10098_h3_aa.png"}},
			{StationID: "2", Name: "KNBC"},
		},
	})
	channels := []*livetv.ChannelInfo{
		{Number: "2", Name: "tuner two"},
		{Number: "4.1", Name: "tuner four"},
		{Number: "9", Name: "tuner nine"},
		nil,
	}
	p.ApplyToChannelList(channels)

	assert.Equal(t, "CBS", channels[0].Name, "affiliate preferred")
	assert.True(t, channels[0].HasImage)
	assert.Contains(t, channels[0].ImageURL, "s10098_h3_aa.png")

	assert.Equal(t, "KNBC", channels[1].Name)
	assert.False(t, channels[1].HasImage)
	assert.Empty(t, channels[1].ImageURL)

	assert.Equal(t, "tuner nine", channels[2].Name, "unmapped channel untouched")
}

func TestAddMetadata_endToEnd(t *testing.T) {
	f := newFakeSD(t)
	f.handle(t, "GET /lineups/USA-OTA-90210", jsonHandler(`{
		"map":[{"stationID":"1001","channel":"0012"}],
		"stations":[{"stationID":"1001","name":"Channel A","callsign":"CHA","affiliate":null}],
		"metadata":{"lineup":"USA-OTA-90210","modified":"2025-01-01T00:00:00Z","transport":"Antenna"}
	}`))
	p := f.provider()

	channels := []*livetv.ChannelInfo{{Number: "12", Name: "12"}}
	require.NoError(t, p.AddMetadata(context.Background(), testInfo, channels))
	assert.Equal(t, "Channel A", channels[0].Name)
	assert.False(t, channels[0].HasImage)
	assert.Equal(t, 1, p.MappedChannels())
}

func TestAddMetadata_requiresListingsIDAndToken(t *testing.T) {
	f := newFakeSD(t)
	p := f.provider()
	ctx := context.Background()

	err := p.AddMetadata(ctx, livetv.ProviderInfo{Username: "a", Password: "b"}, nil)
	assert.True(t, errors.Is(err, ErrConfiguration), "err = %v", err)

	err = p.AddMetadata(ctx, livetv.ProviderInfo{ListingsID: "USA-OTA-90210"}, nil)
	assert.True(t, errors.Is(err, ErrConfiguration), "err = %v", err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "token", ce.Field)
	assert.Zero(t, f.logins.Load())
}

func TestAddMetadata_failedFetchKeepsTable(t *testing.T) {
	f := newFakeSD(t)
	var calls atomic.Int32
	f.handle(t, "GET /lineups/USA-OTA-90210", countingHandler(&calls, func(w http.ResponseWriter, r *http.Request) {
		if calls.Load() == 1 {
			jsonHandler(`{"map":[{"stationID":"1","channel":"5"}],"stations":[{"stationID":"1","name":"Five"}]}`)(w, r)
			return
		}
		failHandler(http.StatusServiceUnavailable)(w, r)
	}))
	p := f.provider()
	ctx := context.Background()

	require.NoError(t, p.AddMetadata(ctx, testInfo, nil))
	require.Equal(t, 1, p.MappedChannels())

	err := p.AddMetadata(ctx, testInfo, nil)
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, 3000, se.Code)
	assert.Equal(t, 1, p.MappedChannels(), "table untouched when the fetch fails")
}
