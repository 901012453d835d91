// Package guide assembles a multi-channel program guide from a listings
// provider: one channel-map refresh, then GetPrograms for every channel with a
// bounded number of channels in flight.
package guide

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/snapetech/sdguide/internal/livetv"
	"github.com/snapetech/sdguide/internal/logging"
)

// Source is the provider surface Fetch needs. *schedulesdirect.Provider implements it.
type Source interface {
	AddMetadata(ctx context.Context, info livetv.ProviderInfo, channels []*livetv.ChannelInfo) error
	ApplyToChannelList(channels []*livetv.ChannelInfo)
	ChannelNumbers() []string
	GetPrograms(ctx context.Context, info livetv.ProviderInfo, channelNumber string, startUTC, endUTC time.Time) ([]livetv.ProgramInfo, error)
}

// Options controls Fetch. Zero values take defaults.
type Options struct {
	Days        int // default 1
	Concurrency int // channels fetched at once; default 4
	// Channels are the tuner's channels to enrich and fetch. When empty every
	// mapped channel of the lineup is used.
	Channels []*livetv.ChannelInfo
	Now      func() time.Time
}

// Guide is one fetched window of listings.
type Guide struct {
	Start    time.Time             `json:"start"`
	End      time.Time             `json:"end"`
	Channels []*livetv.ChannelInfo `json:"channels"`
	Programs []livetv.ProgramInfo  `json:"programs"` // sorted by channel, then start
}

// Fetch refreshes the channel map for info.ListingsID, enriches the channels
// and collects their programs for [now, now+Days). The first channel that fails
// cancels the others and its error is returned.
func Fetch(ctx context.Context, src Source, info livetv.ProviderInfo, opts Options) (*Guide, error) {
	days := opts.Days
	if days < 1 {
		days = 1
	}
	limit := opts.Concurrency
	if limit < 1 {
		limit = 4
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	channels := opts.Channels
	if err := src.AddMetadata(ctx, info, channels); err != nil {
		return nil, fmt.Errorf("guide: channel map: %w", err)
	}
	if len(channels) == 0 {
		for _, n := range src.ChannelNumbers() {
			channels = append(channels, &livetv.ChannelInfo{ID: n, Number: n, Name: n})
		}
		src.ApplyToChannelList(channels)
	}

	g := &Guide{Start: now().UTC().Truncate(time.Hour), Channels: channels}
	g.End = g.Start.Add(time.Duration(days) * 24 * time.Hour)

	results := make([][]livetv.ProgramInfo, len(channels))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for i, ch := range channels {
		eg.Go(func() error {
			progs, err := src.GetPrograms(egCtx, info, ch.Number, g.Start, g.End)
			if err != nil {
				return fmt.Errorf("guide: channel %s: %w", ch.Number, err)
			}
			logging.Debug().Str("channel", ch.Number).Int("programs", len(progs)).Msg("guide: channel fetched")
			results[i] = progs
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, progs := range results {
		g.Programs = append(g.Programs, progs...)
	}
	sort.SliceStable(g.Programs, func(i, j int) bool {
		a, b := g.Programs[i], g.Programs[j]
		if a.ChannelID != b.ChannelID {
			return a.ChannelID < b.ChannelID
		}
		return a.StartDate.Before(b.StartDate)
	})
	logging.Info().Int("channels", len(channels)).Int("programs", len(g.Programs)).
		Time("start", g.Start).Time("end", g.End).Msg("guide: fetched")
	return g, nil
}
