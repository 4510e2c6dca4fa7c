package avatar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/woozymasta/srcrelay/internal/config"
	"github.com/woozymasta/srcrelay/internal/steamid"
	"github.com/woozymasta/srcrelay/internal/vars"
	"golang.org/x/time/rate"
)

// minKeyLength is the shortest API key treated as configured.
const minKeyLength = 20

// SteamLookup resolves avatars with ISteamUser/GetPlayerSummaries.
type SteamLookup struct {
	client  *http.Client
	limiter *rate.Limiter
	apiKey  string
	baseURL string
}

type playerSummaries struct {
	Response struct {
		Players []struct {
			AvatarFull string `json:"avatarfull"`
		} `json:"players"`
	} `json:"response"`
}

// NewSteamLookup creates a lookup rate limited to cfg.RateLimit requests per second.
func NewSteamLookup(cfg config.Steam) *SteamLookup {
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &SteamLookup{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(limit, burst),
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
	}
}

// Enabled reports whether a plausible API key is configured.
func (s *SteamLookup) Enabled() bool {
	return len(s.apiKey) >= minKeyLength
}

// Lookup returns the full size avatar URL of id, or "" if the player is unknown.
func (s *SteamLookup) Lookup(ctx context.Context, id steamid.SteamID) (string, error) {
	if !s.Enabled() {
		return "", nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("key", s.apiKey)
	q.Set("steamids", strconv.FormatUint(id.SteamID64(), 10))
	endpoint := s.baseURL + "/ISteamUser/GetPlayerSummaries/v0002/?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", vars.UserAgent())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("steam api: unexpected status %d", resp.StatusCode)
	}

	var summaries playerSummaries
	if err := json.NewDecoder(resp.Body).Decode(&summaries); err != nil {
		return "", fmt.Errorf("steam api: decode: %w", err)
	}

	if len(summaries.Response.Players) == 0 {
		return "", nil
	}

	return summaries.Response.Players[0].AvatarFull, nil
}
