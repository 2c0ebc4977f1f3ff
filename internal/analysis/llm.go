package analysis

import "context"

// LLMClient sends one audit request to a model backend.
type LLMClient interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest is a single system + user exchange.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64

	// JSONMode asks the provider for its structured JSON output mode when it
	// has one. It biases the output; it does not guarantee it.
	JSONMode bool
}

// CompletionResponse carries the text of the model's reply.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensUsed int

	// Truncated is set when the reply stopped at the token limit. The JSON
	// is then usually cut off.
	Truncated bool
}

const defaultMaxTokens = 4096
