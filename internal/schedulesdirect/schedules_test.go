package schedulesdirect

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapetech/sdguide/internal/livetv"
)

func TestScheduleRequestDates(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	aest := time.FixedZone("AEST", 10*3600)
	tests := []struct {
		name       string
		start, end time.Time
		loc        *time.Location
		want       []string
	}{
		{
			name:  "same day",
			start: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
			loc:   time.UTC,
			want:  []string{"2025-03-01"},
		},
		{
			name:  "year boundary",
			start: time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
			loc:   time.UTC,
			want:  []string{"2024-12-30", "2024-12-31", "2025-01-01", "2025-01-02"},
		},
		{
			name:  "local zone behind UTC widens the start",
			start: time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 3, 1, 4, 0, 0, 0, time.UTC),
			loc:   est,
			want:  []string{"2025-02-28", "2025-03-01"},
		},
		{
			name:  "local zone ahead of UTC widens the end",
			start: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC),
			loc:   aest,
			want:  []string{"2025-03-01", "2025-03-02"},
		},
		{
			name:  "end before start",
			start: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			loc:   time.UTC,
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scheduleRequestDates(tt.start, tt.end, tt.loc))
		})
	}
}

func TestBaseProgramID(t *testing.T) {
	assert.Equal(t, "EP01234567", baseProgramID("EP012345670005"))
	assert.Equal(t, "SH0001", baseProgramID("SH0001"))
}

// mappedProvider returns a provider with channel "12" mapped to station 1001.
func mappedProvider(f *fakeSD) *Provider {
	p := f.provider()
	p.buildMapping(&sdLineupResponse{
		Map:      []sdChannelMap{{StationID: "1001", Channel: "12"}},
		Stations: []sdStation{{StationID: "1001", Name: "Channel A"}},
	})
	return p
}

var (
	guideStart = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	guideEnd   = time.Date(2025, 3, 2, 2, 0, 0, 0, time.UTC)
)

func TestGetPrograms_pipeline(t *testing.T) {
	f := newFakeSD(t)
	f.handle(t, "POST /schedules", func(w http.ResponseWriter, r *http.Request) {
		var req []sdScheduleRequest
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("schedules body: %v", err)
		}
		assert.Equal(t, []sdScheduleRequest{{StationID: "1001", Date: []string{"2025-03-01", "2025-03-02"}}}, req)
		jsonHandler(`[
			{"stationID":"1001","programs":[
				{"programID":"EP012345670005","airDateTime":"2025-03-01T20:00:00Z","duration":1800,
				 "audioProperties":["stereo"],"videoProperties":["hdtv"],"new":true},
				{"programID":"EP999999990001","airDateTime":"2025-03-01T20:30:00Z","duration":1800}
			]},
			{"stationID":"1001","code":7100,"response":"SCHEDULE_QUEUED"}
		]`)(w, r)
	})
	f.handle(t, "POST /programs", func(w http.ResponseWriter, r *http.Request) {
		var ids []string
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &ids); err != nil {
			t.Errorf("programs body: %v", err)
		}
		assert.Equal(t, []string{"EP012345670005", "EP999999990001"}, ids)
		jsonHandler(`[
			{"programID":"EP012345670005","titles":[{"title120":"Example Show"}],"showType":"Series",
			 "hasImageArtwork":true,"metadata":[{"Gracenote":{"season":2,"episode":5}}]},
			{"programID":"EP999999990001","code":6001,"response":"PROGRAMID_QUEUED"}
		]`)(w, r)
	})
	f.handle(t, "POST /metadata/programs", func(w http.ResponseWriter, r *http.Request) {
		var ids []string
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &ids); err != nil {
			t.Errorf("metadata body: %v", err)
		}
		assert.Equal(t, []string{"EP01234567"}, ids)
		jsonHandler(`[{"programID":"EP01234567","data":[
			{"uri":"abc.png","size":"Sm","category":"Banner-L1"},
			{"uri":"big.png","size":"Lg","category":"Logo"}
		]}]`)(w, r)
	})
	p := mappedProvider(f)

	got, err := p.GetPrograms(context.Background(), testInfo, "12", guideStart, guideEnd)
	require.NoError(t, err)
	require.Len(t, got, 1, "airing without details is skipped")

	prog := got[0]
	start := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, programInstanceID("EP012345670005", start, "12"), prog.ID)
	assert.Equal(t, "12", prog.ChannelID)
	assert.Equal(t, "Example Show", prog.Name)
	assert.True(t, prog.StartDate.Equal(start))
	assert.Equal(t, 30*time.Minute, prog.Duration())
	assert.False(t, prog.IsRepeat)
	assert.True(t, prog.IsHD)
	assert.True(t, prog.IsSeries)
	assert.Equal(t, "EP01234567", prog.SeriesID)
	require.NotNil(t, prog.SeasonNumber)
	assert.Equal(t, 2, *prog.SeasonNumber)
	assert.Equal(t, f.URL+"/image/abc.png", prog.ImageURL)
	assert.True(t, prog.HasImage)
}

func TestGetPrograms_softEmpty(t *testing.T) {
	f := newFakeSD(t)
	p := mappedProvider(f)
	ctx := context.Background()

	got, err := p.GetPrograms(ctx, livetv.ProviderInfo{}, "12", guideStart, guideEnd)
	require.NoError(t, err)
	assert.Empty(t, got, "no credentials")

	noLineup := testInfo
	noLineup.ListingsID = ""
	got, err = p.GetPrograms(ctx, noLineup, "12", guideStart, guideEnd)
	require.NoError(t, err)
	assert.Empty(t, got, "no lineup id")

	// No /schedules handler: an unmapped channel must not reach the network.
	got, err = p.GetPrograms(ctx, testInfo, "99", guideStart, guideEnd)
	require.NoError(t, err)
	assert.Empty(t, got, "unmapped channel")
}

func TestGetPrograms_emptyScheduleSkipsDetails(t *testing.T) {
	f := newFakeSD(t)
	var programs atomic.Int32
	f.handle(t, "POST /schedules", jsonHandler(`[{"stationID":"1001","programs":[]}]`))
	f.handle(t, "POST /programs", countingHandler(&programs, jsonHandler(`[]`)))
	p := mappedProvider(f)

	got, err := p.GetPrograms(context.Background(), testInfo, "12", guideStart, guideEnd)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, programs.Load())
}

func TestGetPrograms_detailsFailureAborts(t *testing.T) {
	f := newFakeSD(t)
	f.handle(t, "POST /schedules", jsonHandler(`[{"stationID":"1001","programs":[
		{"programID":"EP012345670005","airDateTime":"2025-03-01T20:00:00Z","duration":1800}
	]}]`))
	f.handle(t, "POST /programs", failHandler(http.StatusInternalServerError))
	p := mappedProvider(f)

	got, err := p.GetPrograms(context.Background(), testInfo, "12", guideStart, guideEnd)
	assert.Nil(t, got)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "programs", se.Endpoint)
	assert.True(t, se.Temporary())
}

func TestGetPrograms_noArtworkRequest(t *testing.T) {
	f := newFakeSD(t)
	var artwork atomic.Int32
	f.handle(t, "POST /schedules", jsonHandler(`[{"stationID":"1001","programs":[
		{"programID":"MV000000010000","airDateTime":"2025-03-01T20:00:00Z","duration":7200}
	]}]`))
	f.handle(t, "POST /programs", jsonHandler(`[
		{"programID":"MV000000010000","titles":[{"title120":"A Film"}],"showType":"Feature Film","hasImageArtwork":false}
	]`))
	f.handle(t, "POST /metadata/programs", countingHandler(&artwork, jsonHandler(`[]`)))
	p := mappedProvider(f)

	got, err := p.GetPrograms(context.Background(), testInfo, "12", guideStart, guideEnd)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsMovie)
	assert.Empty(t, got[0].ImageURL)
	assert.False(t, got[0].HasImage)
	assert.Zero(t, artwork.Load())
}

func TestDistinct(t *testing.T) {
	got := distinct([]string{"b", "a", "", "b", "c", "a"}, func(s string) string { return s })
	assert.Equal(t, []string{"b", "a", "c"}, got)
}
