package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/dverbeek/carwise/internal/common"
	"github.com/dverbeek/carwise/internal/llm"
	"github.com/dverbeek/carwise/internal/pricing"
	"github.com/dverbeek/carwise/internal/registry"
	"github.com/dverbeek/carwise/internal/sheets"
)

// LoadLLMConfig loads the AI provider configuration. Precedence is the Viper
// configuration (config file or CARWISE_ env vars) followed by the providers'
// own environment variables.
func LoadLLMConfig() (llm.Config, error) {
	cfg := llm.Config{
		Provider:    viper.GetString("llm.provider"),
		APIKey:      viper.GetString("llm.api_key"),
		Model:       viper.GetString("llm.model"),
		SearchModel: viper.GetString("llm.search_model"),
		MaxTokens:   viper.GetInt("llm.max_tokens"),
		Temperature: viper.GetFloat64("llm.temperature"),
		RateLimit:   viper.GetInt("llm.rate_limit"),
		Timeout:     viper.GetDuration("llm.timeout"),
	}

	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}

	if cfg.APIKey == "" {
		switch cfg.Provider {
		case "openai":
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.APIKey == "" {
		return cfg, fmt.Errorf("%w: no API key for LLM provider %q", common.ErrMissingConfig, cfg.Provider)
	}

	return cfg, nil
}

// LoadRegistryConfig loads the vehicle registry endpoint configuration.
func LoadRegistryConfig() (registry.Config, error) {
	cfg := registry.Config{
		BaseURL: viper.GetString("registry.base_url"),
		APIKey:  viper.GetString("registry.api_key"),
		Timeout: viper.GetDuration("registry.timeout"),
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("REGISTRY_BASE_URL")
	}
	if cfg.BaseURL == "" {
		// RDW open data, no key required.
		cfg.BaseURL = "https://opendata.rdw.nl/resource/m9d7-ebf2.json"
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("REGISTRY_API_KEY")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	return cfg, nil
}

// LoadPricingConfig loads the pricing index configuration. An empty base URL
// is allowed; the pipeline then runs without the index source.
func LoadPricingConfig() pricing.Config {
	cfg := pricing.Config{
		BaseURL: viper.GetString("pricing.base_url"),
		APIKey:  viper.GetString("pricing.api_key"),
		Timeout: viper.GetDuration("pricing.timeout"),
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("PRICING_INDEX_BASE_URL")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("PRICING_INDEX_API_KEY")
	}

	return cfg
}

// LoadSheetsConfig loads the Google Sheets export configuration. Precedence:
// Viper configuration, then the GOOGLE_SHEETS_* environment variables.
func LoadSheetsConfig() (*sheets.Config, error) {
	cfg := sheets.DefaultConfig()

	if v := viper.GetString("sheets.service_account_path"); v != "" {
		cfg.ServiceAccountPath = ExpandPath(v)
	}
	if v := viper.GetString("sheets.client_id"); v != "" {
		cfg.ClientID = v
	}
	if v := viper.GetString("sheets.client_secret"); v != "" {
		cfg.ClientSecret = v
	}
	if v := viper.GetString("sheets.refresh_token"); v != "" {
		cfg.RefreshToken = v
	}
	if v := viper.GetString("sheets.spreadsheet_id"); v != "" {
		cfg.SpreadsheetID = v
	}
	if v := viper.GetString("sheets.spreadsheet_name"); v != "" {
		cfg.SpreadsheetName = v
	}

	if cfg.ServiceAccountPath == "" {
		if v := os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"); v != "" {
			cfg.ServiceAccountPath = ExpandPath(v)
		}
	}
	if cfg.ClientID == "" {
		cfg.ClientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	}
	if cfg.ClientSecret == "" {
		cfg.ClientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	}
	if cfg.RefreshToken == "" {
		cfg.RefreshToken = os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN")
	}
	if cfg.SpreadsheetID == "" {
		cfg.SpreadsheetID = os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID")
	}
	if cfg.SpreadsheetName == "" {
		cfg.SpreadsheetName = os.Getenv("GOOGLE_SHEETS_SPREADSHEET_NAME")
	}
	if cfg.SpreadsheetName == "" {
		cfg.SpreadsheetName = "Acquisition Valuations"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
