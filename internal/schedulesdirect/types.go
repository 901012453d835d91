package schedulesdirect

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Wire shapes for the SD-JSON 20141201 API. Field names match the provider
// exactly; every optional field decodes to its zero value when absent.

type sdTokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sdTokenResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	ServerID string `json:"serverID"`
	Datetime string `json:"datetime"`
	Token    string `json:"token"`
}

// sdError is the body SD sends with failures (and with some 200 responses).
type sdError struct {
	Response string `json:"response"`
	Code     int    `json:"code"`
	ServerID string `json:"serverID"`
	Message  string `json:"message"`
	Datetime string `json:"datetime"`
}

// ── headends / lineups ───────────────────────────────────────────────────────

type sdHeadend struct {
	Headend   string            `json:"headend"`
	Transport string            `json:"transport"`
	Location  string            `json:"location"`
	Lineups   []sdHeadendLineup `json:"lineups"`
}

type sdHeadendLineup struct {
	Name   string `json:"name"`
	Lineup string `json:"lineup"`
	URI    string `json:"uri"` // "/20141201/lineups/USA-OTA-90210"
}

type sdAccountLineup struct {
	Lineup    string `json:"lineup"`
	Name      string `json:"name"`
	Transport string `json:"transport"`
	Location  string `json:"location"`
	URI       string `json:"uri"`
	IsDeleted bool   `json:"isDeleted"`
}

type sdLineupsResponse struct {
	Code     int               `json:"code"`
	ServerID string            `json:"serverID"`
	Datetime string            `json:"datetime"`
	Lineups  []sdAccountLineup `json:"lineups"`
}

type sdAddLineupResponse struct {
	Response         string `json:"response"`
	Code             int    `json:"code"`
	ServerID         string `json:"serverID"`
	Message          string `json:"message"`
	ChangesRemaining int    `json:"changesRemaining"`
}

// sdLineupResponse is GET /lineups/{id}: the channel map plus its stations.
type sdLineupResponse struct {
	Map      []sdChannelMap    `json:"map"`
	Stations []sdStation       `json:"stations"`
	Metadata *sdLineupMetadata `json:"metadata,omitempty"`
}

type sdChannelMap struct {
	StationID string `json:"stationID"`
	Channel   string `json:"channel,omitempty"`
	ATSCMajor int    `json:"atscMajor,omitempty"`
	ATSCMinor int    `json:"atscMinor,omitempty"`
	UHFVHF    int    `json:"uhfVhf,omitempty"`
}

type sdLineupMetadata struct {
	Lineup     string `json:"lineup"`
	Modified   string `json:"modified"`
	Transport  string `json:"transport"`
	Modulation string `json:"modulation,omitempty"`
}

type sdStation struct {
	StationID         string         `json:"stationID"`
	Name              string         `json:"name"`
	Callsign          string         `json:"callsign"`
	Affiliate         string         `json:"affiliate,omitempty"`
	BroadcastLanguage []string       `json:"broadcastLanguage,omitempty"`
	DescriptionLang   []string       `json:"descriptionLanguage,omitempty"`
	Broadcaster       *sdBroadcaster `json:"broadcaster,omitempty"`
	Logo              *sdLogo        `json:"logo,omitempty"`
}

type sdBroadcaster struct {
	City       string `json:"city"`
	State      string `json:"state"`
	Postalcode string `json:"postalcode"`
	Country    string `json:"country"`
}

type sdLogo struct {
	URL    string `json:"URL"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
	MD5    string `json:"md5"`
}

// ── status ───────────────────────────────────────────────────────────────────

type sdStatusResponse struct {
	Account struct {
		Expires    string `json:"expires"`
		MaxLineups int    `json:"maxLineups"`
		Messages   []struct {
			Msgid string `json:"msgID"`
			Date  string `json:"date"`
			Text  string `json:"message"`
		} `json:"messages"`
	} `json:"account"`
	Lineups        []sdAccountLineup `json:"lineups"`
	LastDataUpdate string            `json:"lastDataUpdate"`
	SystemStatus   []struct {
		Date    string `json:"date"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"systemStatus"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	ServerID string `json:"serverID"`
}

// ── schedules ────────────────────────────────────────────────────────────────

type sdScheduleRequest struct {
	StationID string   `json:"stationID"`
	Date      []string `json:"date"`
}

type sdScheduleDay struct {
	StationID string            `json:"stationID"`
	Programs  []sdScheduleEntry `json:"programs"`
	Metadata  *struct {
		Modified  string `json:"modified"`
		MD5       string `json:"md5"`
		StartDate string `json:"startDate"`
	} `json:"metadata,omitempty"`
	Code int `json:"code,omitempty"` // set when SD has no data for a requested date
}

type sdScheduleEntry struct {
	ProgramID       string       `json:"programID"`
	AirDateTime     string       `json:"airDateTime"` // 2006-01-02T15:04:05Z
	Duration        int          `json:"duration"`    // seconds
	MD5             string       `json:"md5"`
	AudioProperties []string     `json:"audioProperties,omitempty"`
	VideoProperties []string     `json:"videoProperties,omitempty"`
	Ratings         []sdRating   `json:"ratings,omitempty"`
	New             bool         `json:"new,omitempty"`
	LiveTapeDelay   string       `json:"liveTapeDelay,omitempty"`
	Premiere        bool         `json:"premiere,omitempty"`
	Multipart       *sdMultipart `json:"multipart,omitempty"`
}

type sdRating struct {
	Body string `json:"body"`
	Code string `json:"code"`
}

type sdMultipart struct {
	PartNumber int `json:"partNumber"`
	TotalParts int `json:"totalParts"`
}

// ── program details ──────────────────────────────────────────────────────────

type sdProgram struct {
	ProgramID       string              `json:"programID"`
	Titles          []sdTitle           `json:"titles"`
	EventDetails    *sdEventDetails     `json:"eventDetails,omitempty"`
	Descriptions    *sdDescriptions     `json:"descriptions,omitempty"`
	OriginalAirDate string              `json:"originalAirDate,omitempty"`
	Genres          []string            `json:"genres,omitempty"`
	EpisodeTitle150 string              `json:"episodeTitle150,omitempty"`
	Metadata        []sdProgramMetadata `json:"metadata,omitempty"`
	ContentRating   []sdRating          `json:"contentRating,omitempty"`
	Cast            []sdPerson          `json:"cast,omitempty"`
	Crew            []sdPerson          `json:"crew,omitempty"`
	ShowType        string              `json:"showType,omitempty"`
	Audience        string              `json:"audience,omitempty"`
	HasImageArtwork bool                `json:"hasImageArtwork"`
	Movie           *sdMovie            `json:"movie,omitempty"`
	MD5             string              `json:"md5"`
	Code            int                 `json:"code,omitempty"` // non-zero: SD could not supply this id
}

type sdTitle struct {
	Title120 string `json:"title120"`
}

type sdEventDetails struct {
	SubType string `json:"subType"`
}

type sdDescriptions struct {
	Description100  []sdDescription `json:"description100,omitempty"`
	Description1000 []sdDescription `json:"description1000,omitempty"`
}

type sdDescription struct {
	DescriptionLanguage string `json:"descriptionLanguage"`
	Description         string `json:"description"`
}

type sdProgramMetadata struct {
	Gracenote *sdGracenote `json:"Gracenote,omitempty"`
}

type sdGracenote struct {
	Season  int `json:"season"`
	Episode int `json:"episode"`
}

type sdPerson struct {
	PersonID      string `json:"personId"`
	NameID        string `json:"nameId"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	CharacterName string `json:"characterName,omitempty"`
	BillingOrder  string `json:"billingOrder"`
}

type sdMovie struct {
	Year     string `json:"year"`
	Duration int    `json:"duration"`
}

// ── artwork ──────────────────────────────────────────────────────────────────

// sdImageSet is one entry of POST /metadata/programs. Data is kept raw: for an
// unknown id SD sends an error object where the variant array should be.
type sdImageSet struct {
	ProgramID string          `json:"programID"`
	Data      json.RawMessage `json:"data"`
}

type sdImage struct {
	Width    string `json:"width"`
	Height   string `json:"height"`
	URI      string `json:"uri"`
	Size     string `json:"size"`
	Aspect   string `json:"aspect"`
	Category string `json:"category"`
	Text     string `json:"text"`
	Primary  string `json:"primary"`
	Tier     string `json:"tier"`
}

// images decodes the variant list, returning nil when Data is not an array.
func (s *sdImageSet) images() []sdImage {
	data := bytes.TrimSpace(s.Data)
	if len(data) == 0 || data[0] != '[' {
		return nil
	}
	var out []sdImage
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
