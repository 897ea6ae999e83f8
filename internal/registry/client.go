package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dverbeek/carwise/internal/common"
	"github.com/dverbeek/carwise/internal/model"
)

// Config holds configuration for the registry HTTP client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPClient queries an RDW-style open-data registry endpoint keyed by
// normalized plate.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewHTTPClient creates a registry client.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: registry base URL is required", common.ErrMissingConfig)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// registryRecord mirrors the registry's JSON field names.
type registryRecord struct {
	Plate        string `json:"kenteken"`
	Brand        string `json:"merk"`
	Model        string `json:"handelsbenaming"`
	FuelType     string `json:"brandstof"`
	Transmission string `json:"transmissie"`
	BodyType     string `json:"voertuigsoort"`
	Color        string `json:"eerste_kleur"`
	BuildYear    string `json:"bouwjaar"`
	PowerKW      string `json:"vermogen"`
}

// LookupPlate fetches registry data for a normalized plate. A missing record
// maps to common.ErrNotFound; transport and server failures map to
// common.ErrUpstream.
func (c *HTTPClient) LookupPlate(ctx context.Context, plate string) (*model.VehicleAttributes, error) {
	reqURL := fmt.Sprintf("%s?kenteken=%s", c.baseURL, url.QueryEscape(plate))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-App-Token", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", common.ErrUpstream, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, common.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: registry returned status %d", common.ErrUpstream, resp.StatusCode)
	}

	var records []registryRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrParse, err)
	}

	if len(records) == 0 {
		return nil, common.ErrNotFound
	}

	rec := records[0]
	attrs := &model.VehicleAttributes{
		Brand:        rec.Brand,
		Model:        rec.Model,
		FuelType:     rec.FuelType,
		Transmission: rec.Transmission,
		BodyType:     rec.BodyType,
		Color:        rec.Color,
	}

	if year, convErr := strconv.Atoi(rec.BuildYear); convErr == nil {
		attrs.BuildYear = year
	}
	if kw, convErr := strconv.ParseFloat(rec.PowerKW, 64); convErr == nil {
		// Registry reports kW; the rest of the pipeline works in hp.
		attrs.Power = int(kw*1.36 + 0.5)
	}

	return attrs, nil
}
