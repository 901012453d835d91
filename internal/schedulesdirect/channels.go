package schedulesdirect

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/snapetech/sdguide/internal/livetv"
	"github.com/snapetech/sdguide/internal/logging"
	"github.com/snapetech/sdguide/internal/metrics"
)

// sentinelChannel is what SD's map produces for entries with neither a channel
// nor ATSC numbers; it never identifies a real channel.
const sentinelChannel = "0.0"

// AddMetadata fetches info.ListingsID's channel map, rebuilds the channel table
// from it and enriches channels in place. The table is only replaced after the
// lineup was fetched and decoded.
func (p *Provider) AddMetadata(ctx context.Context, info livetv.ProviderInfo, channels []*livetv.ChannelInfo) error {
	if strings.TrimSpace(info.ListingsID) == "" {
		return errMissing("listings id")
	}
	token, err := p.GetToken(ctx, info)
	if err != nil {
		return err
	}
	if token == "" {
		return errNoToken
	}
	var lineup sdLineupResponse
	if err := p.client.do(ctx, "lineups/map", http.MethodGet, "/lineups/"+url.PathEscape(info.ListingsID), token, nil, &lineup); err != nil {
		return err
	}
	logging.Info().Str("lineup", info.ListingsID).Int("map", len(lineup.Map)).Int("stations", len(lineup.Stations)).Msg("sd: lineup fetched")
	p.buildMapping(&lineup)
	p.ApplyToChannelList(channels)
	return nil
}

// channelKey derives the table key for a map entry: the channel string when
// set, else "major.minor", with leading zeros stripped. ok is false for the
// sentinel in any zero-padded spelling and for keys that strip to nothing.
func channelKey(m sdChannelMap) (string, bool) {
	key := strings.TrimSpace(m.Channel)
	if key == "" {
		key = strconv.Itoa(m.ATSCMajor) + "." + strconv.Itoa(m.ATSCMinor)
	}
	if key == sentinelChannel || strings.Trim(key, "0.") == "" {
		return "", false
	}
	return strings.TrimLeft(key, "0"), true
}

// buildMapping replaces the channel table with the entries of lineup. When two
// entries produce the same key the first one wins. Entries whose station is not
// in the lineup's station list are dropped.
//
// The write lock is held for the whole clear and repopulate, so readers see
// either the previous table or the complete new one.
func (p *Provider) buildMapping(lineup *sdLineupResponse) {
	stations := make(map[string]sdStation, len(lineup.Stations))
	for _, st := range lineup.Stations {
		if _, dup := stations[st.StationID]; !dup {
			stations[st.StationID] = st
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.channels)
	for _, m := range lineup.Map {
		key, ok := channelKey(m)
		if !ok {
			continue
		}
		st, ok := stations[m.StationID]
		if !ok {
			logging.Debug().Str("channel", key).Str("station", m.StationID).Msg("sd: station not in lineup")
			continue
		}
		if _, taken := p.channels[key]; taken {
			continue
		}
		p.channels[key] = st
	}
	metrics.MappedChannels.Set(float64(len(p.channels)))
	logging.Info().Int("channels", len(p.channels)).Msg("sd: channel map built")
}

// ApplyToChannelList sets Name (affiliate, else station name) and the logo of
// every channel whose Number is mapped. Unmapped channels are left as they are.
func (p *Provider) ApplyToChannelList(channels []*livetv.ChannelInfo) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		st, ok := p.channels[ch.Number]
		if !ok {
			logging.Info().Str("channel", ch.Number).Str("name", ch.Name).Msg("sd: no data for channel")
			continue
		}
		if st.Logo != nil && st.Logo.URL != "" {
			ch.ImageURL = st.Logo.URL
			ch.HasImage = true
		}
		if strings.TrimSpace(st.Affiliate) != "" {
			ch.Name = st.Affiliate
		} else {
			ch.Name = st.Name
		}
	}
}

// LookupStation returns the SD station id mapped to a channel number.
func (p *Provider) LookupStation(number string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st, ok := p.channels[number]
	return st.StationID, ok
}

// MappedChannels is the size of the channel table.
func (p *Provider) MappedChannels() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.channels)
}

// ChannelNumbers lists every mapped channel number, sorted.
func (p *Provider) ChannelNumbers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.channels))
	for k := range p.channels {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
