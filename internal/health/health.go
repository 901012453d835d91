package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/snapetech/sdguide/internal/livetv"
	"github.com/snapetech/sdguide/internal/schedulesdirect"
)

// CheckAPI fetches baseURL (GET, no token). Any answer below 500 means the API is
// reachable; an unauthenticated request is expected to be refused.
func CheckAPI(ctx context.Context, client *http.Client, baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("no API base URL configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/status", nil)
	if err != nil {
		return err
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("API unreachable: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("API returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// Account is what CheckAccount needs from the provider.
type Account interface {
	Status(ctx context.Context, info livetv.ProviderInfo) (*schedulesdirect.AccountStatus, error)
	HasLineup(ctx context.Context, info livetv.ProviderInfo) (bool, error)
}

// Report is the outcome of CheckAccount. Problems is empty when all is well.
type Report struct {
	Status    *schedulesdirect.AccountStatus
	HasLineup bool
	Problems  []string
}

func (r *Report) OK() bool { return len(r.Problems) == 0 }

// CheckAccount reads the account status and checks that info.ListingsID is
// subscribed. Provider failures are returned as errors; an expired account, an
// offline system or a missing lineup are reported as problems.
func CheckAccount(ctx context.Context, acct Account, info livetv.ProviderInfo, now time.Time) (*Report, error) {
	st, err := acct.Status(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("account status: %w", err)
	}
	r := &Report{Status: st}
	if !st.Expires.IsZero() && st.Expires.Before(now) {
		r.Problems = append(r.Problems, "subscription expired "+st.Expires.Format(time.DateOnly))
	}
	if st.SystemStatus != "" && !strings.EqualFold(st.SystemStatus, "Online") {
		r.Problems = append(r.Problems, "system status "+st.SystemStatus)
	}
	if info.ListingsID != "" {
		has, err := acct.HasLineup(ctx, info)
		if err != nil {
			return nil, fmt.Errorf("lineup check: %w", err)
		}
		r.HasLineup = has
		if !has {
			r.Problems = append(r.Problems, "lineup "+info.ListingsID+" not on account")
		}
	}
	return r, nil
}
