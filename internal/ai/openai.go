package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Default base URLs for the OpenAI-compatible endpoints Ghost knows about.
// A configured base_url always wins.
var compatibleBaseURLs = map[string]string{
	"groq":       "https://api.groq.com/openai/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"lmstudio":   "http://localhost:1234/v1",
	"ollama":     "http://localhost:11434/v1",
}

// openAIProvider speaks the OpenAI chat-completions protocol. It serves
// OpenAI itself plus every compatible endpoint (Groq, OpenRouter,
// LM Studio, Ollama, custom) by switching the base URL.
type openAIProvider struct {
	name   string
	client *openai.Client
}

func newOpenAIProvider(name, apiKey, baseURL string) (*openAIProvider, error) {
	name = strings.ToLower(name)

	if baseURL == "" {
		baseURL = compatibleBaseURLs[name]
	}
	if name == "custom" && baseURL == "" {
		return nil, fmt.Errorf("%w: provider %q requires ai.base_url", ErrProviderFatal, name)
	}

	// Local endpoints accept any key; remote ones need a real one.
	if apiKey == "" {
		switch name {
		case "lmstudio", "ollama":
			apiKey = "not-needed"
		default:
			return nil, fmt.Errorf("%w: no API key configured for provider %q", ErrProviderFatal, name)
		}
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &openAIProvider{
		name:   name,
		client: openai.NewClientWithConfig(cfg),
	}, nil
}

func (p *openAIProvider) Name() string { return p.name }

func (p *openAIProvider) Complete(ctx context.Context, messages []Message, model string, temperature float64) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: float32(temperature),
	}
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleSystem {
			role = openai.ChatMessageRoleSystem
		}
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyProviderError(p.name, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w: no choices returned", p.name, ErrProviderFatal)
	}
	return resp.Choices[0].Message.Content, nil
}
