package schedulesdirect

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/snapetech/sdguide/internal/livetv"
	"github.com/snapetech/sdguide/internal/logging"
)

// GetHeadends lists the lineups offered for a region. Discovery is best effort:
// transport and decode failures are logged and yield an empty list. Only a
// refused login is returned as an error. No credentials yields an empty list.
func (p *Provider) GetHeadends(ctx context.Context, info livetv.ProviderInfo, country, postalCode string) ([]livetv.NameIDPair, error) {
	lineups := []livetv.NameIDPair{}
	token, err := p.GetToken(ctx, info)
	if err != nil {
		if errors.Is(err, ErrAuthentication) {
			return lineups, err
		}
		logging.Error().Err(err).Str("country", country).Str("postal_code", postalCode).Msg("sd: headends login failed")
		return lineups, nil
	}
	if token == "" {
		return lineups, nil
	}

	q := url.Values{}
	q.Set("country", country)
	q.Set("postalcode", postalCode)
	var headends []sdHeadend
	if err := p.client.do(ctx, "headends", http.MethodGet, "/headends?"+q.Encode(), token, nil, &headends); err != nil {
		logging.Error().Err(err).Str("country", country).Str("postal_code", postalCode).Msg("sd: error getting headends")
		return lineups, nil
	}
	if len(headends) == 0 {
		logging.Info().Str("country", country).Str("postal_code", postalCode).Msg("sd: no headends for region")
	}
	for _, h := range headends {
		logging.Debug().Str("headend", h.Headend).Int("lineups", len(h.Lineups)).Msg("sd: headend")
		for _, l := range h.Lineups {
			name := l.Name
			if strings.TrimSpace(name) == "" {
				name = l.Lineup
			}
			lineups = append(lineups, livetv.NameIDPair{Name: name, ID: lineupIDFromURI(l.URI, l.Lineup)})
		}
	}
	return lineups, nil
}

// GetLineups is GetHeadends under the name the live-TV host uses.
func (p *Provider) GetLineups(ctx context.Context, info livetv.ProviderInfo, country, postalCode string) ([]livetv.NameIDPair, error) {
	return p.GetHeadends(ctx, info, country, postalCode)
}

// lineupIDFromURI takes the last segment of "/20141201/lineups/USA-OTA-90210".
func lineupIDFromURI(uri, fallback string) string {
	uri = strings.TrimRight(strings.TrimSpace(uri), "/")
	if uri == "" {
		return fallback
	}
	if id := path.Base(uri); id != "." && id != "/" {
		return id
	}
	return fallback
}

// HasLineup reports whether info.ListingsID is among the account's lineups
// (case-insensitive).
func (p *Provider) HasLineup(ctx context.Context, info livetv.ProviderInfo) (bool, error) {
	if strings.TrimSpace(info.ListingsID) == "" {
		return false, errMissing("listings id")
	}
	token, err := p.GetToken(ctx, info)
	if err != nil {
		return false, err
	}
	if token == "" {
		return false, errNoToken
	}
	var resp sdLineupsResponse
	if err := p.client.do(ctx, "lineups", http.MethodGet, "/lineups", token, nil, &resp); err != nil {
		return false, err
	}
	for _, l := range resp.Lineups {
		if strings.EqualFold(l.Lineup, info.ListingsID) {
			return true, nil
		}
	}
	return false, nil
}

// AddLineupToAccount subscribes the account to info.ListingsID. SD treats a
// repeated subscribe as a no-op.
func (p *Provider) AddLineupToAccount(ctx context.Context, info livetv.ProviderInfo) error {
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
	var resp sdAddLineupResponse
	if err := p.client.do(ctx, "lineups/add", http.MethodPut, "/lineups/"+url.PathEscape(info.ListingsID), token, nil, &resp); err != nil {
		return err
	}
	logging.Info().Str("lineup", info.ListingsID).Int("changes_remaining", resp.ChangesRemaining).Msg("sd: lineup added to account")
	return nil
}

// Validate checks the account settings. validateLogin requires username and
// password; validateListings requires a lineup id and subscribes the account
// to it when it is missing.
func (p *Provider) Validate(ctx context.Context, info livetv.ProviderInfo, validateLogin, validateListings bool) error {
	if validateLogin {
		if strings.TrimSpace(info.Username) == "" {
			return errMissing("username")
		}
		if strings.TrimSpace(info.Password) == "" {
			return errMissing("password")
		}
	}
	if validateListings {
		if strings.TrimSpace(info.ListingsID) == "" {
			return errMissing("listings id")
		}
		has, err := p.HasLineup(ctx, info)
		if err != nil {
			return err
		}
		if !has {
			return p.AddLineupToAccount(ctx, info)
		}
	}
	return nil
}

// AccountStatus is the subset of GET /status callers act on.
type AccountStatus struct {
	Expires        time.Time
	MaxLineups     int
	Lineups        []string
	LastDataUpdate time.Time
	SystemStatus   string
	Messages       []string
}

// Status returns the account's subscription state.
func (p *Provider) Status(ctx context.Context, info livetv.ProviderInfo) (*AccountStatus, error) {
	token, err := p.GetToken(ctx, info)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, errNoToken
	}
	var resp sdStatusResponse
	if err := p.client.do(ctx, "status", http.MethodGet, "/status", token, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, &StatusError{Endpoint: "status", StatusCode: http.StatusOK, Code: resp.Code, Message: resp.Message}
	}
	st := &AccountStatus{MaxLineups: resp.Account.MaxLineups}
	st.Expires, _ = parseLooseTime(resp.Account.Expires)
	st.LastDataUpdate, _ = parseLooseTime(resp.LastDataUpdate)
	for _, l := range resp.Lineups {
		if !l.IsDeleted {
			st.Lineups = append(st.Lineups, l.Lineup)
		}
	}
	if n := len(resp.SystemStatus); n > 0 {
		st.SystemStatus = resp.SystemStatus[0].Status
	}
	for _, m := range resp.Account.Messages {
		st.Messages = append(st.Messages, m.Text)
	}
	if !st.Expires.IsZero() && st.Expires.Before(p.now()) {
		logging.Warn().Time("expires", st.Expires).Msg("sd: account subscription has expired")
	}
	return st, nil
}

func (s *AccountStatus) String() string {
	return fmt.Sprintf("expires=%s lineups=%d/%d system=%s",
		s.Expires.Format(time.RFC3339), len(s.Lineups), s.MaxLineups, s.SystemStatus)
}
