// Package travel resolves commute durations between localities. It wraps an
// external routing API with caching, rate limiting and a circuit breaker,
// and falls back to a deterministic simulator when the API cannot answer.
package travel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/matchd-io/matchd/internal/domain"
)

// ClientConfig configures the routing API client.
type ClientConfig struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration // per-request hard timeout (default 5s)
	RateLimit rate.Limit    // requests per second toward the API (default 10)
	RateBurst int           // burst allowance (default 5)
}

// DefaultClientConfig returns production defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:   5 * time.Second,
		RateLimit: 10,
		RateBurst: 5,
	}
}

// Client calls the external directions API.
type Client struct {
	base    string
	key     string
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewClient creates a routing API client.
func NewClient(cfg ClientConfig, log *zap.Logger) *Client {
	def := DefaultClientConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = def.RateBurst
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		key:     cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		log:     log.Named("routing"),
	}
}

// directions API wire format (the subset we read).
type directionsResponse struct {
	Status string  `json:"status"`
	Routes []route `json:"routes"`
}

type route struct {
	Legs []leg `json:"legs"`
}

type leg struct {
	Duration     measure `json:"duration"`
	Distance     measure `json:"distance"`
	StartAddress string  `json:"start_address"`
	EndAddress   string  `json:"end_address"`
	Steps        []step  `json:"steps"`
}

type measure struct {
	Value float64 `json:"value"` // seconds for duration, meters for distance
}

type step struct {
	TravelMode     string `json:"travel_mode"`
	TransitDetails struct {
		Line struct {
			ShortName string `json:"short_name"`
			Vehicle   struct {
				Type string `json:"type"`
			} `json:"vehicle"`
		} `json:"line"`
	} `json:"transit_details"`
}

// Route queries the directions API for the first route's first leg.
// A provider-level non-OK status or an empty route list is a soft failure
// (ErrRouteNotFound); transport and server errors are transient.
func (c *Client) Route(ctx context.Context, q domain.TravelQuery) (domain.TravelResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.TravelResult{}, err
	}

	params := url.Values{}
	params.Set("origin", q.Origin)
	params.Set("destination", q.Destination)
	params.Set("mode", string(q.Mode))
	params.Set("key", c.key)
	params.Set("language", "fr")
	params.Set("region", "FR")
	if q.Mode == domain.ModeTransit && q.DepartureTime != "" {
		params.Set("departure_time", q.DepartureTime)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/directions?"+params.Encode(), nil)
	if err != nil {
		return domain.TravelResult{}, fmt.Errorf("build directions request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.TravelResult{}, domain.Classify(domain.KindTransientExternal,
			fmt.Errorf("directions request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.TravelResult{}, fmt.Errorf("%w: HTTP %d", domain.ErrRouteAPIStatus, resp.StatusCode)
	}

	var dr directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return domain.TravelResult{}, fmt.Errorf("decode directions response: %w", err)
	}
	if dr.Status != "OK" || len(dr.Routes) == 0 || len(dr.Routes[0].Legs) == 0 {
		c.log.Debug("no route",
			zap.String("origin", q.Origin),
			zap.String("destination", q.Destination),
			zap.String("status", dr.Status))
		return domain.TravelResult{}, fmt.Errorf("%w (status %s)", domain.ErrRouteNotFound, dr.Status)
	}

	l := dr.Routes[0].Legs[0]
	res := domain.TravelResult{
		DurationMinutes: l.Duration.Value / 60,
		DistanceKm:      l.Distance.Value / 1000,
		Mode:            q.Mode,
		Summary:         l.StartAddress + " to " + l.EndAddress,
		Source:          domain.TravelSourceAPI,
	}
	if q.Mode == domain.ModeTransit {
		for _, s := range l.Steps {
			if s.TravelMode != "TRANSIT" {
				continue
			}
			res.TransitLegs = append(res.TransitLegs, domain.TransitLeg{
				Line:    s.TransitDetails.Line.ShortName,
				Vehicle: s.TransitDetails.Line.Vehicle.Type,
			})
		}
	}
	return res, nil
}
