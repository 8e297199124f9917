package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Verdict is the arbiter's determination for a logic-level test failure.
type Verdict string

const (
	// VerdictBugInCode: the generated test is wrong and should be repaired.
	VerdictBugInCode Verdict = "BUG_IN_CODE"

	// VerdictFixTest: the source code is at fault; the test must not be
	// rewritten to force a pass.
	VerdictFixTest Verdict = "FIX_TEST"

	// VerdictInconclusive: the arbiter returned neither recognized answer.
	VerdictInconclusive Verdict = "INCONCLUSIVE"
)

// GenerationRequest carries everything prompt construction needs for one
// generation or repair attempt. Immutable per attempt.
type GenerationRequest struct {
	SourceContent  string
	SourcePath     string
	SourceFilename string
	ProjectRoot    string
	ProjectTree    string
	ProjectContext string // serialized .ghost/context.json
	Framework      string
	TestPath       string

	// Repair context; empty on initial generation.
	PriorTest   string
	ErrorOutput string
}

// Generator drives the completion provider for test synthesis, repair, and
// arbitration. All calls flow through the shared rate limiter and the retry
// policy, so concurrent sessions respect one upstream quota.
type Generator struct {
	provider    Provider
	limiter     *RateLimiter
	retry       RetryConfig
	model       string
	temperature float64
}

// NewGenerator wires a provider behind the shared rate limiter.
func NewGenerator(provider Provider, limiter *RateLimiter, retry RetryConfig, model string, temperature float64) *Generator {
	return &Generator{
		provider:    provider,
		limiter:     limiter,
		retry:       retry,
		model:       model,
		temperature: temperature,
	}
}

// complete issues one rate-limited, retry-wrapped provider call.
func (g *Generator) complete(ctx context.Context, operation string, messages []Message) (string, error) {
	return Retry(ctx, g.retry, operation, func(ctx context.Context) (string, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%s: %w", operation, err)
		}
		return g.provider.Complete(ctx, messages, g.model, g.temperature)
	})
}

// GenerateTest synthesizes a fresh test file for the request's source.
func (g *Generator) GenerateTest(ctx context.Context, req *GenerationRequest) (string, error) {
	messages := []Message{
		{Role: RoleSystem, Content: generateSystemPrompt},
		{Role: RoleUser, Content: buildGeneratePrompt(req, time.Now())},
	}
	raw, err := g.complete(ctx, "test generation", messages)
	if err != nil {
		return "", err
	}
	return CleanResponse(raw), nil
}

// RepairTest regenerates the test using the prior content and captured
// errors as repair context.
func (g *Generator) RepairTest(ctx context.Context, req *GenerationRequest) (string, error) {
	messages := []Message{
		{Role: RoleSystem, Content: generateSystemPrompt},
		{Role: RoleUser, Content: buildRepairPrompt(req)},
	}
	raw, err := g.complete(ctx, "test repair", messages)
	if err != nil {
		return "", err
	}
	return CleanResponse(raw), nil
}

// Judge asks the provider to arbitrate a logic-level failure: does the
// disagreement stem from the source or from the generated test?
func (g *Generator) Judge(ctx context.Context, req *GenerationRequest) (Verdict, error) {
	messages := []Message{
		{Role: RoleSystem, Content: judgeSystemPrompt},
		{Role: RoleUser, Content: buildJudgePrompt(req)},
	}
	raw, err := g.complete(ctx, "logic arbitration", messages)
	if err != nil {
		return VerdictInconclusive, err
	}
	return ParseVerdict(raw), nil
}

// ParseVerdict normalizes the arbiter's answer. Models occasionally wrap the
// token in prose, so containment wins over equality; BUG_IN_CODE is checked
// first because "FIX_TEST" never co-occurs with it in practice.
func ParseVerdict(raw string) Verdict {
	answer := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case strings.Contains(answer, string(VerdictBugInCode)):
		return VerdictBugInCode
	case strings.Contains(answer, string(VerdictFixTest)):
		return VerdictFixTest
	default:
		return VerdictInconclusive
	}
}

// CleanResponse strips markdown fences and conversational filler, leaving
// just the code the model produced.
func CleanResponse(raw string) string {
	trimmed := strings.TrimSpace(raw)

	// Prefer the content of a ```python fenced block when present.
	for _, fence := range []string{"```python", "```py", "```"} {
		start := strings.Index(trimmed, fence)
		if start < 0 {
			continue
		}
		body := trimmed[start+len(fence):]
		if end := strings.Index(body, "```"); end >= 0 {
			return strings.TrimSpace(body[:end])
		}
	}

	return trimmed
}
