package schedulesdirect

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/snapetech/sdguide/internal/livetv"
	"github.com/snapetech/sdguide/internal/logging"
	"github.com/snapetech/sdguide/internal/metrics"
)

// tokenTTL is how long a token is reused before logging in again.
const tokenTTL = 24 * time.Hour

type authToken struct {
	value    string
	issuedAt time.Time
}

// GetToken returns a session token for info.Username, logging in when there is
// no cached token younger than 24 h. Blank username or password returns ("", nil)
// without touching the network. A refused login is an *AuthError.
//
// Concurrent callers with a cold cache share one login: the refresh permit is
// taken, the cache is checked again, and only the first holder logs in.
func (p *Provider) GetToken(ctx context.Context, info livetv.ProviderInfo) (string, error) {
	if strings.TrimSpace(info.Username) == "" || strings.TrimSpace(info.Password) == "" {
		return "", nil
	}
	slot := p.tokenSlot(info.Username)
	if tok, ok := p.fresh(slot); ok {
		return tok, nil
	}

	if err := p.refresh.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.refresh.Release(1)
	if tok, ok := p.fresh(slot); ok {
		return tok, nil
	}

	tok, err := p.login(ctx, info)
	if err != nil {
		result := "error"
		if errors.Is(err, ErrAuthentication) {
			result = "rejected"
		}
		metrics.TokenRefreshes.WithLabelValues(result).Inc()
		return "", err
	}
	slot.Store(&authToken{value: tok, issuedAt: p.now()})
	metrics.TokenRefreshes.WithLabelValues("ok").Inc()
	logging.Info().Str("user", info.Username).Msg("sd: authenticated")
	return tok, nil
}

func (p *Provider) tokenSlot(username string) *atomic.Pointer[authToken] {
	if v, ok := p.tokens.Load(username); ok {
		return v.(*atomic.Pointer[authToken])
	}
	v, _ := p.tokens.LoadOrStore(username, new(atomic.Pointer[authToken]))
	return v.(*atomic.Pointer[authToken])
}

func (p *Provider) fresh(slot *atomic.Pointer[authToken]) (string, bool) {
	t := slot.Load()
	if t == nil || t.value == "" || p.now().Sub(t.issuedAt) >= tokenTTL {
		return "", false
	}
	return t.value, true
}

// login performs POST /token. SD answers both success and refusal with a JSON
// body carrying "message"; anything other than "OK" is a refusal. Server-side
// failures (5xx, 429) stay *StatusError even when they carry an SD code.
func (p *Provider) login(ctx context.Context, info livetv.ProviderInfo) (string, error) {
	req := sdTokenRequest{Username: info.Username, Password: passwordDigest(info.Password)}
	var resp sdTokenResponse
	err := p.client.do(ctx, "token", http.MethodPost, "/token", "", req, &resp)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code != 0 && !se.Temporary() {
			return "", &AuthError{Code: se.Code, Message: se.Message}
		}
		return "", err
	}
	if resp.Message != "OK" || resp.Token == "" {
		return "", &AuthError{Code: resp.Code, Message: resp.Message}
	}
	return resp.Token, nil
}

// passwordDigest returns the lowercase SHA-1 hex digest SD expects. A password
// that already is one passes through unchanged.
func passwordDigest(password string) string {
	if isSHA1Hex(password) {
		return strings.ToLower(password)
	}
	sum := sha1.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}

func isSHA1Hex(s string) bool {
	if len(s) != sha1.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
