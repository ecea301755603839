package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"oracleboxing-funnel-layer/internal/ports"

	"github.com/rs/zerolog"
)

const (
	defaultEndpoint = "https://ipapi.co"
	lookupTimeout   = 2 * time.Second
)

// Resolver resolves a client IP to a country code via an external
// geolocation service. Lookups are bounded by a 2-second timeout and fail
// soft to "": geolocation only enriches analytics rows.
type Resolver struct {
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewResolver creates an IP geolocation resolver.
func NewResolver(logger zerolog.Logger) *Resolver {
	return &Resolver{
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{Timeout: lookupTimeout},
		logger:     logger,
	}
}

// NewResolverWithEndpoint overrides the service endpoint, used by tests.
func NewResolverWithEndpoint(endpoint string, logger zerolog.Logger) *Resolver {
	r := NewResolver(logger)
	r.endpoint = endpoint
	return r
}

var _ ports.GeoResolver = (*Resolver)(nil)

// Country returns the two-letter country code for an IP, or "".
func (r *Resolver) Country(ctx context.Context, ip string) string {
	if ip == "" {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s/json/", r.endpoint, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ""
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Debug().Err(err).Str("ip", ip).Msg("Geolocation lookup failed")
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var body struct {
		CountryCode string `json:"country_code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ""
	}
	return body.CountryCode
}
