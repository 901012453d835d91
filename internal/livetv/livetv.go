// Package livetv holds the provider-agnostic records exchanged between a
// listings provider and the live-TV subsystem that consumes it: tuner
// channels, guide programs and the account details a provider needs.
package livetv

import "time"

// ProgramAudio classifies the audio track advertised for an airing.
type ProgramAudio int

const (
	AudioStereo       ProgramAudio = iota // default when the listing carries no audio tags
	AudioMono                             // tags present but none recognised
	AudioDolbyDigital                     // "dd" or "dd 5.1"
)

func (a ProgramAudio) String() string {
	switch a {
	case AudioMono:
		return "Mono"
	case AudioDolbyDigital:
		return "DolbyDigital"
	default:
		return "Stereo"
	}
}

// MarshalText lets JSON and XML encoders emit the audio class by name.
func (a ProgramAudio) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// ProviderInfo is the caller-owned account record for a listings provider.
// It is never mutated by a provider.
type ProviderInfo struct {
	Username   string `json:"username"`
	Password   string `json:"-"`
	ListingsID string `json:"listings_id"` // subscribed lineup id, e.g. "USA-OTA-90210"
}

// NameIDPair is one selectable lineup offered by a headend.
type NameIDPair struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// ChannelInfo is one tuner channel. Number is the guide number the tuner
// reports ("12", "5.1"); providers enrich Name and the image fields in place.
type ChannelInfo struct {
	ID       string `json:"id,omitempty"`
	Number   string `json:"number"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
	HasImage bool   `json:"has_image"`
}

// ProgramInfo is one normalised airing. ID is stable for a given
// (program, start, channel) so consumers can upsert by it.
type ProgramInfo struct {
	ID              string       `json:"id"`
	ChannelID       string       `json:"channel_id"`
	ShowID          string       `json:"show_id,omitempty"`
	StartDate       time.Time    `json:"start"`
	EndDate         time.Time    `json:"end"`
	Name            string       `json:"name"`
	EpisodeTitle    string       `json:"episode_title,omitempty"`
	Overview        string       `json:"overview,omitempty"`
	ShortOverview   string       `json:"short_overview,omitempty"`
	OfficialRating  string       `json:"official_rating,omitempty"`
	Genres          []string     `json:"genres,omitempty"`
	Audio           ProgramAudio `json:"audio"`
	IsRepeat        bool         `json:"is_repeat"`
	IsSeries        bool         `json:"is_series"`
	IsMovie         bool         `json:"is_movie"`
	IsSports        bool         `json:"is_sports"`
	IsKids          bool         `json:"is_kids"`
	IsNews          bool         `json:"is_news"`
	IsHD            bool         `json:"is_hd"`
	SeriesID        string       `json:"series_id,omitempty"`
	SeasonNumber    *int         `json:"season_number,omitempty"`
	EpisodeNumber   *int         `json:"episode_number,omitempty"`
	OriginalAirDate *time.Time   `json:"original_air_date,omitempty"`
	ImageURL        string       `json:"image_url,omitempty"`
	HasImage        bool         `json:"has_image"`
}

// Duration returns how long the airing runs.
func (p *ProgramInfo) Duration() time.Duration {
	return p.EndDate.Sub(p.StartDate)
}
