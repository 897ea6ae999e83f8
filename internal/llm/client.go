package llm

import (
	"context"
	"time"
)

// Client defines the interface for LLM providers. All three AI passes in the
// pipeline (free-text extraction, portal search, advice synthesis) go through
// this interface; freeform reply text never leaks past the callers' parsing
// boundary.
type Client interface {
	// Complete sends a prompt and returns the raw completion text.
	Complete(ctx context.Context, prompt, systemPrompt string) (string, error)
	// CompleteWithSearch sends a prompt to a web-search-capable agent and
	// returns the raw completion text.
	CompleteWithSearch(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Config holds configuration for LLM clients.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	SearchModel string
	MaxTokens   int
	Temperature float64
	RateLimit   int // requests per minute, 0 = default
	Timeout     time.Duration
}
