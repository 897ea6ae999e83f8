package llm

import (
	"fmt"
	"strings"
)

// NewClient creates an LLM client based on the provided configuration. When a
// rate limit is configured the client is wrapped so that every call first
// acquires a token; parser, portal search, and synthesis share the one bucket.
func NewClient(cfg Config) (Client, error) {
	var client Client
	var err error

	switch strings.ToLower(cfg.Provider) {
	case "openai":
		client, err = newOpenAIClient(cfg)
	case "anthropic":
		client, err = newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	if cfg.RateLimit > 0 {
		client = newLimitedClient(client, cfg.RateLimit)
	}

	return client, nil
}
