package ai

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsThrottleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		throttle bool
	}{
		{"nil", nil, false},
		{"status 429", errors.New("HTTP 429 Too Many Requests"), true},
		{"rate limit text", errors.New("API rate limit exceeded"), true},
		{"rate_limit token", errors.New(`{"error":{"type":"rate_limit_error"}}`), true},
		{"ratelimit token", errors.New("ratelimit hit for key"), true},
		{"quota exceeded", errors.New("Quota exceeded for model"), true},
		{"requests per minute", errors.New("limit of 30 requests per minute reached"), true},
		{"wrapped sentinel", fmt.Errorf("call failed: %w", ErrThrottled), true},
		{"auth failure", errors.New("401 unauthorized: invalid api key"), false},
		{"network failure", errors.New("dial tcp: connection refused"), false},
		{"plain failure", errors.New("something else went wrong"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.throttle, IsThrottleError(tt.err))
		})
	}
}

func TestClassifyProviderError(t *testing.T) {
	t.Run("throttle text wraps ErrThrottled", func(t *testing.T) {
		err := classifyProviderError("groq", errors.New("429 too many requests"))
		assert.ErrorIs(t, err, ErrThrottled)
		assert.NotErrorIs(t, err, ErrProviderFatal)
	})

	t.Run("anything else wraps ErrProviderFatal", func(t *testing.T) {
		err := classifyProviderError("groq", errors.New("invalid api key"))
		assert.ErrorIs(t, err, ErrProviderFatal)
		assert.NotErrorIs(t, err, ErrThrottled)
	})

	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, classifyProviderError("groq", nil))
	})
}

func TestNewProvider(t *testing.T) {
	t.Run("unknown provider is rejected", func(t *testing.T) {
		_, err := NewProvider("bogus", "key", "")
		assert.Error(t, err)
	})

	t.Run("anthropic requires an api key", func(t *testing.T) {
		_, err := NewProvider("anthropic", "", "")
		assert.ErrorIs(t, err, ErrProviderFatal)
	})

	t.Run("custom requires a base url", func(t *testing.T) {
		_, err := NewProvider("custom", "key", "")
		assert.ErrorIs(t, err, ErrProviderFatal)
	})

	t.Run("remote openai-compatible requires an api key", func(t *testing.T) {
		_, err := NewProvider("groq", "", "")
		assert.ErrorIs(t, err, ErrProviderFatal)
	})

	t.Run("local endpoints need no key", func(t *testing.T) {
		p, err := NewProvider("ollama", "", "")
		require.NoError(t, err)
		assert.Equal(t, "ollama", p.Name())
	})

	t.Run("case insensitive selection", func(t *testing.T) {
		p, err := NewProvider("Anthropic", "sk-test", "")
		require.NoError(t, err)
		assert.Equal(t, "anthropic", p.Name())
	})
}
