package schedulesdirect

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/snapetech/sdguide/internal/livetv"
	"github.com/snapetech/sdguide/internal/logging"
	"github.com/snapetech/sdguide/internal/metrics"
)

const (
	dateLayout = "2006-01-02"

	// SD rejects larger batches.
	maxProgramIDsPerRequest = 5000
	maxArtworkIDsPerRequest = 500

	baseProgramIDLen = 10
)

// GetPrograms returns the normalised airings on channelNumber for every
// calendar day touched by [startUTC, endUTC]. The channel must have been mapped
// by AddMetadata.
//
// Missing credentials, a missing lineup id or an unmapped channel yield an
// empty result and no error. A failed schedule, details or artwork fetch fails
// the whole call. Airings whose details SD did not return are skipped.
func (p *Provider) GetPrograms(ctx context.Context, info livetv.ProviderInfo, channelNumber string, startUTC, endUTC time.Time) ([]livetv.ProgramInfo, error) {
	token, err := p.GetToken(ctx, info)
	if err != nil {
		return nil, err
	}
	if token == "" || strings.TrimSpace(info.ListingsID) == "" {
		return nil, nil
	}
	dates := scheduleRequestDates(startUTC, endUTC, p.loc)
	if len(dates) == 0 {
		return nil, nil
	}
	stationID, ok := p.LookupStation(channelNumber)
	if !ok {
		logging.Debug().Str("channel", channelNumber).Msg("sd: channel not mapped")
		return nil, nil
	}
	log := logging.Logger().With().Str("channel", channelNumber).Str("station", stationID).Logger()

	var days []sdScheduleDay
	req := []sdScheduleRequest{{StationID: stationID, Date: dates}}
	if err := p.client.do(ctx, "schedules", http.MethodPost, "/schedules", token, req, &days); err != nil {
		return nil, err
	}
	var entries []*sdScheduleEntry
	for i := range days {
		if days[i].Code != 0 {
			log.Debug().Int("code", days[i].Code).Msg("sd: no schedule for day")
			continue
		}
		for j := range days[i].Programs {
			entries = append(entries, &days[i].Programs[j])
		}
	}
	log.Debug().Strs("dates", dates).Int("airings", len(entries)).Msg("sd: schedule fetched")

	ids := distinct(entries, func(e *sdScheduleEntry) string { return e.ProgramID })
	if len(ids) == 0 {
		return nil, nil
	}
	details, err := p.fetchPrograms(ctx, token, ids)
	if err != nil {
		return nil, err
	}

	var artworkIDs []string
	seen := make(map[string]bool)
	for _, id := range ids {
		d, ok := details[id]
		if !ok || !d.HasImageArtwork {
			continue
		}
		if base := baseProgramID(id); !seen[base] {
			seen[base] = true
			artworkIDs = append(artworkIDs, base)
		}
	}
	images, err := p.fetchArtwork(ctx, token, artworkIDs)
	if err != nil {
		return nil, err
	}

	programs := make([]livetv.ProgramInfo, 0, len(entries))
	for _, e := range entries {
		d, ok := details[e.ProgramID]
		if !ok {
			metrics.ProgramDetailsMissing.Inc()
			log.Warn().Str("program", e.ProgramID).Msg("sd: no details for scheduled program, skipping")
			continue
		}
		var imageURL string
		if set, ok := images[baseProgramID(e.ProgramID)]; ok {
			imageURL = resolveImageURL(p.client.baseURL, set)
		}
		prog, err := normalizeProgram(channelNumber, e, d, imageURL)
		if err != nil {
			log.Warn().Err(err).Msg("sd: skipping airing")
			continue
		}
		programs = append(programs, prog)
	}
	metrics.ProgramsNormalized.Add(float64(len(programs)))
	log.Info().Int("programs", len(programs)).Msg("sd: finished with EPG data")
	return programs, nil
}

// scheduleRequestDates lists every calendar day from the earlier of start's UTC
// and local dates through the later of end's UTC and local dates, inclusive.
func scheduleRequestDates(start, end time.Time, loc *time.Location) []string {
	if loc == nil {
		loc = time.Local
	}
	first := civilDate(start.UTC())
	if d := civilDate(start.In(loc)); d.Before(first) {
		first = d
	}
	last := civilDate(end.UTC())
	if d := civilDate(end.In(loc)); d.After(last) {
		last = d
	}
	var dates []string
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(dateLayout))
	}
	return dates
}

// civilDate is t's wall-clock date as midnight UTC, so dates from different
// zones compare by calendar day.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fetchPrograms POSTs ids to /programs in batches and indexes the details by id.
func (p *Provider) fetchPrograms(ctx context.Context, token string, ids []string) (map[string]*sdProgram, error) {
	out := make(map[string]*sdProgram, len(ids))
	for chunk := range slices.Chunk(ids, maxProgramIDsPerRequest) {
		var batch []sdProgram
		if err := p.client.do(ctx, "programs", http.MethodPost, "/programs", token, chunk, &batch); err != nil {
			return nil, err
		}
		for i := range batch {
			d := &batch[i]
			if d.Code != 0 {
				logging.Debug().Str("program", d.ProgramID).Int("code", d.Code).Msg("sd: program unavailable")
				continue
			}
			if _, dup := out[d.ProgramID]; !dup {
				out[d.ProgramID] = d
			}
		}
	}
	return out, nil
}

// fetchArtwork POSTs base ids to /metadata/programs in batches and indexes the
// image sets by base id.
func (p *Provider) fetchArtwork(ctx context.Context, token string, baseIDs []string) (map[string]*sdImageSet, error) {
	out := make(map[string]*sdImageSet, len(baseIDs))
	for chunk := range slices.Chunk(baseIDs, maxArtworkIDsPerRequest) {
		var batch []sdImageSet
		if err := p.client.do(ctx, "metadata/programs", http.MethodPost, "/metadata/programs", token, chunk, &batch); err != nil {
			return nil, err
		}
		for i := range batch {
			key := baseProgramID(batch[i].ProgramID)
			if _, dup := out[key]; !dup {
				out[key] = &batch[i]
			}
		}
	}
	return out, nil
}

// baseProgramID is the id shared by every episode of a series or movie.
func baseProgramID(programID string) string {
	if len(programID) > baseProgramIDLen {
		return programID[:baseProgramIDLen]
	}
	return programID
}

// distinct returns the non-empty keys of items in first-seen order.
func distinct[T any](items []T, key func(T) string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		k := key(it)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
