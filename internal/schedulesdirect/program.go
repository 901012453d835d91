package schedulesdirect

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/snapetech/sdguide/internal/livetv"
)

const (
	airDateTimeLayout = "2006-01-02T15:04:05Z"
	unknownTitle      = "Unknown"

	// ticksAtUnixEpoch is 1970-01-01T00:00:00Z in 100 ns ticks since 0001-01-01.
	ticksAtUnixEpoch = 621355968000000000
)

// normalizeProgram maps one airing and its program details to a ProgramInfo.
// imageURL is the resolved artwork, "" when there is none.
func normalizeProgram(channel string, e *sdScheduleEntry, d *sdProgram, imageURL string) (livetv.ProgramInfo, error) {
	start, err := time.Parse(airDateTimeLayout, e.AirDateTime)
	if err != nil {
		return livetv.ProgramInfo{}, fmt.Errorf("sd: program %s: bad airDateTime %q: %w", e.ProgramID, e.AirDateTime, err)
	}
	start = start.UTC()
	showType := d.ShowType

	info := livetv.ProgramInfo{
		ID:           programInstanceID(e.ProgramID, start, channel),
		ChannelID:    channel,
		ShowID:       e.ProgramID,
		StartDate:    start,
		EndDate:      start.Add(time.Duration(e.Duration) * time.Second),
		Name:         unknownTitle,
		EpisodeTitle: d.EpisodeTitle150,
		Audio:        classifyAudio(e.AudioProperties),
		IsRepeat:     !e.New,
		IsSeries:     containsFold(showType, "series"),
		IsSports:     containsFold(showType, "sports"),
		IsMovie:      containsFold(showType, "movie") || containsFold(showType, "film"),
		IsKids:       strings.EqualFold(d.Audience, "children"),
		IsHD:         hasTag(e.VideoProperties, "hdtv"),
		ImageURL:     imageURL,
		HasImage:     imageURL != "",
	}
	if len(d.Titles) > 0 && d.Titles[0].Title120 != "" {
		info.Name = d.Titles[0].Title120
	}
	if len(d.ContentRating) > 0 {
		info.OfficialRating = normalizeRating(d.ContentRating[0].Code)
	}
	if desc := d.Descriptions; desc != nil {
		if len(desc.Description1000) > 0 {
			info.Overview = desc.Description1000[0].Description
		} else if len(desc.Description100) > 0 {
			info.ShortOverview = desc.Description100[0].Description
		}
	}
	if info.IsSeries {
		info.SeriesID = baseProgramID(e.ProgramID)
		for _, m := range d.Metadata {
			if m.Gracenote == nil {
				continue
			}
			if m.Gracenote.Season > 0 {
				info.SeasonNumber = intPtr(m.Gracenote.Season)
			}
			if m.Gracenote.Episode > 0 {
				info.EpisodeNumber = intPtr(m.Gracenote.Episode)
			}
			break
		}
	}
	if t, ok := parseLooseTime(d.OriginalAirDate); ok {
		info.OriginalAirDate = &t
	}
	for _, g := range d.Genres {
		if strings.TrimSpace(g) == "" {
			continue
		}
		info.Genres = append(info.Genres, g)
		if strings.EqualFold(g, "news") {
			info.IsNews = true
		}
	}
	return info, nil
}

// programInstanceID is "{programID}T{ticks}C{channel}" where ticks counts 100 ns
// intervals since 0001-01-01 UTC. The same airing always yields the same id.
func programInstanceID(programID string, start time.Time, channel string) string {
	return programID + "T" + strconv.FormatInt(ticks(start), 10) + "C" + channel
}

func ticks(t time.Time) int64 {
	return t.Unix()*10_000_000 + int64(t.Nanosecond()/100) + ticksAtUnixEpoch
}

// classifyAudio picks the best advertised track: "dd 5.1" or "dd" is Dolby
// Digital, then "stereo"; unrecognised tags mean mono and no tags mean stereo.
func classifyAudio(tags []string) livetv.ProgramAudio {
	switch {
	case len(tags) == 0:
		return livetv.AudioStereo
	case hasTag(tags, "dd 5.1"), hasTag(tags, "dd"):
		return livetv.AudioDolbyDigital
	case hasTag(tags, "stereo"):
		return livetv.AudioStereo
	default:
		return livetv.AudioMono
	}
}

// normalizeRating turns SD's "TV14" into "TV-14". Already-dashed codes are unchanged.
func normalizeRating(code string) string {
	s := strings.ReplaceAll(code, "TV", "TV-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return s
}

func hasTag(tags []string, want string) bool {
	return slices.ContainsFunc(tags, func(t string) bool {
		return strings.EqualFold(strings.TrimSpace(t), want)
	})
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}

func intPtr(n int) *int { return &n }

var looseLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"01/02/2006",
	"2006-01",
	"2006",
}

// parseLooseTime accepts the date shapes SD uses across endpoints. Values
// without a zone are taken as UTC.
func parseLooseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range looseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
