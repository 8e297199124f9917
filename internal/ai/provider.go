package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Message is a single turn in a completion conversation.
type Message struct {
	Role    string // "system" or "user"
	Content string
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Provider is the completion capability Ghost drives for test generation,
// repair, and logic arbitration. Implementations wrap one upstream API and
// are selected by configuration at construction time.
type Provider interface {
	// Complete sends the ordered messages and returns the raw model text.
	// Transient throttling surfaces as an error matching ErrThrottled;
	// auth, network, and config failures surface as ErrProviderFatal.
	Complete(ctx context.Context, messages []Message, model string, temperature float64) (string, error)

	// Name identifies the provider for diagnostics.
	Name() string
}

// Sentinel errors for the provider failure taxonomy. Callers distinguish
// them with errors.Is; the retry policy only ever retries ErrThrottled.
var (
	// ErrThrottled marks a provider-signaled rate limit. Retryable.
	ErrThrottled = errors.New("provider throttled")

	// ErrProviderFatal marks an auth/config/permanent-network failure.
	// Never retried.
	ErrProviderFatal = errors.New("provider fatal error")
)

// throttleMarkers is the fixed vocabulary used to recognize throttling in
// upstream error text. Matching is case-insensitive substring search.
var throttleMarkers = []string{
	"429",
	"rate limit",
	"rate_limit",
	"ratelimit",
	"too many requests",
	"quota exceeded",
	"requests per minute",
}

// IsThrottleError reports whether err looks like provider-side throttling.
func IsThrottleError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrThrottled) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range throttleMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// classifyProviderError wraps an upstream error with the matching sentinel
// so callers can branch on errors.Is without re-parsing message text.
func classifyProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if IsThrottleError(err) {
		return fmt.Errorf("%s: %w: %w", provider, ErrThrottled, err)
	}
	return fmt.Errorf("%s: %w: %w", provider, ErrProviderFatal, err)
}

// NewProvider constructs the provider selected by name. The OpenAI client
// covers every OpenAI-compatible endpoint (OpenAI, Groq, OpenRouter,
// LM Studio, Ollama, custom) via base URL; Anthropic gets its own SDK.
func NewProvider(name, apiKey, baseURL string) (Provider, error) {
	switch strings.ToLower(name) {
	case "anthropic":
		return newAnthropicProvider(apiKey)
	case "openai", "groq", "openrouter", "lmstudio", "ollama", "custom":
		return newOpenAIProvider(name, apiKey, baseURL)
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
