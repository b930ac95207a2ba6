package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/omchandarana/geogate/internal/cache"
)

var (
	// ErrTimeout means the provider did not answer within the lookup budget.
	ErrTimeout = errors.New("geolocation provider timed out")

	// ErrUnavailable covers transport failures and non-200 provider answers.
	ErrUnavailable = errors.New("geolocation provider unavailable")
)

// Location mirrors the ip-api.com JSON payload. Status is "success" or
// "fail"; on "fail" the provider puts the reason in Message.
type Location struct {
	Status      string  `json:"status"`
	Message     string  `json:"message,omitempty"`
	Query       string  `json:"query"`
	Country     string  `json:"country,omitempty"`
	CountryCode string  `json:"countryCode,omitempty"`
	Region      string  `json:"region,omitempty"`
	RegionName  string  `json:"regionName,omitempty"`
	City        string  `json:"city,omitempty"`
	Zip         string  `json:"zip,omitempty"`
	Lat         float64 `json:"lat,omitempty"`
	Lon         float64 `json:"lon,omitempty"`
	Timezone    string  `json:"timezone,omitempty"`
	ISP         string  `json:"isp,omitempty"`
	Org         string  `json:"org,omitempty"`
	AS          string  `json:"as,omitempty"`
}

type Client struct {
	baseURL  string
	timeout  time.Duration
	hc       *http.Client
	cache    cache.Cache
	cacheTTL time.Duration
}

func NewClient(baseURL string, timeout time.Duration, c cache.Cache, cacheTTL time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		timeout:  timeout,
		hc:       &http.Client{},
		cache:    c,
		cacheTTL: cacheTTL,
	}
}

// Lookup resolves geolocation data for ip, consulting the cache first. The
// provider call is bounded by the configured timeout regardless of how much
// budget the parent context carries.
func (c *Client) Lookup(ctx context.Context, ip string) (*Location, error) {
	key := "geoip:" + ip

	if c.cache != nil {
		var cached Location

		hit, err := c.cache.GetJSON(ctx, key, &cached)

		if err == nil && hit {
			return &cached, nil
		}
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, c.baseURL+"/json/"+ip, nil)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := c.hc.Do(req)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}

		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: provider returned %s", ErrUnavailable, resp.Status)
	}

	var loc Location

	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Only successful answers are worth caching; "fail" responses are cheap
	// for the provider to repeat.
	if c.cache != nil && loc.Status == "success" {
		_ = c.cache.SetJSON(ctx, key, loc, c.cacheTTL)
	}

	return &loc, nil
}
