package analysis

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Audit is a validated Result together with the backend's bookkeeping.
type Audit struct {
	Result     Result
	Model      string
	TokensUsed int
}

// Analyzer sends selected code to an LLM and turns the response into a
// validated Result.
type Analyzer struct {
	llm         LLMClient
	provider    string
	maxTokens   int
	temperature float64
	guidelines  string
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithProvider labels metrics and errors with the backend name.
func WithProvider(name string) AnalyzerOption {
	return func(a *Analyzer) { a.provider = name }
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int) AnalyzerOption {
	return func(a *Analyzer) { a.maxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) AnalyzerOption {
	return func(a *Analyzer) { a.temperature = t }
}

// WithGuidelines appends team guidelines to the audit instructions.
func WithGuidelines(text string) AnalyzerOption {
	return func(a *Analyzer) { a.guidelines = strings.TrimSpace(text) }
}

// NewAnalyzer creates a new Analyzer.
func NewAnalyzer(llm LLMClient, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		llm:         llm,
		provider:    "unknown",
		maxTokens:   4096,
		temperature: 0.3,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs one audit of code. It makes exactly one backend call and no
// retries. Cancelling ctx aborts the call.
func (a *Analyzer) Analyze(ctx context.Context, code string) (*Audit, error) {
	if strings.TrimSpace(code) == "" {
		auditsTotal.WithLabelValues(a.provider, "precondition").Inc()
		return nil, &PreconditionError{
			Kind:   EmptySelection,
			Reason: "select a piece of code to optimize first",
		}
	}

	slog.Debug("analysis: requesting audit", "provider", a.provider, "chars", len(code))

	start := time.Now()
	resp, err := a.llm.Complete(ctx, &CompletionRequest{
		SystemPrompt: withGuidelines(BuildSystemPrompt(), a.guidelines),
		UserPrompt:   code,
		MaxTokens:    a.maxTokens,
		Temperature:  a.temperature,
		JSONMode:     true,
	})
	auditDuration.WithLabelValues(a.provider).Observe(time.Since(start).Seconds())

	if err != nil {
		auditsTotal.WithLabelValues(a.provider, "backend").Inc()
		return nil, &BackendError{Provider: a.provider, Err: err}
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		auditsTotal.WithLabelValues(a.provider, "backend").Inc()
		return nil, &BackendError{Provider: a.provider, Err: ErrEmptyResponse}
	}
	tokensUsed.WithLabelValues(a.provider).Add(float64(resp.TokensUsed))

	slog.Debug("analysis: raw response", "model", resp.Model, "tokens", resp.TokensUsed, "content", resp.Content)
	if resp.Truncated {
		slog.Warn("analysis: response hit the token limit", "model", resp.Model, "max_tokens", a.maxTokens)
	}

	sanitized := Sanitize(resp.Content)
	slog.Debug("analysis: sanitized response", "content", sanitized)

	result, err := ParseResult(sanitized)
	if err != nil {
		var malformed *MalformedResponseError
		if errors.As(err, &malformed) {
			auditsTotal.WithLabelValues(a.provider, "malformed").Inc()
		} else {
			auditsTotal.WithLabelValues(a.provider, "invalid").Inc()
		}
		slog.Warn("analysis: rejected model response", "provider", a.provider, "error", err, "sanitized", sanitized)
		return nil, err
	}

	auditsTotal.WithLabelValues(a.provider, "ok").Inc()
	slog.Info("analysis: audit complete",
		"model", resp.Model,
		"score_original", result.ScoreOriginal,
		"score_optimized", result.ScoreOptimized,
	)

	return &Audit{
		Result:     *result,
		Model:      resp.Model,
		TokensUsed: resp.TokensUsed,
	}, nil
}
