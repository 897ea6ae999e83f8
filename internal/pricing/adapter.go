// Package pricing adapts the third-party pricing index. It is a passthrough:
// index values are forwarded unchanged and the absence of a record is a
// normal nil outcome, not an error.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dverbeek/carwise/internal/common"
	"github.com/dverbeek/carwise/internal/model"
)

// Config holds configuration for the pricing index client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Adapter fetches plate-keyed valuations from the index.
type Adapter struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

// NewAdapter creates a pricing index adapter.
func NewAdapter(cfg Config, logger *slog.Logger) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: pricing index base URL is required", common.ErrMissingConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Adapter{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// indexRecord mirrors the index wire format.
type indexRecord struct {
	BaseValue   float64 `json:"baseValue"`
	OptionValue float64 `json:"optionValue"`
	TotalValue  float64 `json:"totalValue"`
	MinValue    float64 `json:"minValue"`
	MaxValue    float64 `json:"maxValue"`
	Confidence  float64 `json:"confidence"`
	APR         float64 `json:"apr"`
	ETR         int     `json:"etr"`
	Liquidity   string  `json:"liquidity"`
}

// Valuate fetches the index record for a plate. (nil, nil) means the plate is
// unknown to the index; other failures map to common.ErrUpstream.
func (a *Adapter) Valuate(ctx context.Context, plate string) (*model.PricingIndexResult, error) {
	reqURL := fmt.Sprintf("%s/valuations/%s", a.baseURL, url.PathEscape(plate))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.httpClient.Do(req)
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
		a.logger.Info("plate unknown to pricing index", "plate", plate)
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: pricing index returned status %d", common.ErrUpstream, resp.StatusCode)
	}

	var rec indexRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrParse, err)
	}

	return &model.PricingIndexResult{
		BaseValue:            rec.BaseValue,
		OptionValue:          rec.OptionValue,
		TotalValue:           rec.TotalValue,
		MinValue:             rec.MinValue,
		MaxValue:             rec.MaxValue,
		Confidence:           rec.Confidence,
		AveragePriceRatio:    rec.APR,
		ExpectedTimeToRetail: rec.ETR,
		Liquidity:            model.LiquidityClass(rec.Liquidity),
	}, nil
}
