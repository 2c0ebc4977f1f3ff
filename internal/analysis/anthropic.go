package analysis

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

// jsonPrefill starts the assistant turn so Claude continues an object.
const jsonPrefill = "{"

// AnthropicClient implements LLMClient on the Claude Messages API. The API
// has no JSON response mode; JSONMode prefills the reply with an opening
// brace instead.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a Claude client. An empty baseURL keeps the
// library default.
func NewAnthropicClient(apiKey, model, baseURL string) *AnthropicClient {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
	}
}

func (c *AnthropicClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := float32(req.Temperature)

	msgs := []anthropic.Message{anthropic.NewUserTextMessage(req.UserPrompt)}
	if req.JSONMode {
		msgs = append(msgs, anthropic.NewAssistantTextMessage(jsonPrefill))
	}

	apiReq := anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		Messages:    msgs,
	}
	if req.SystemPrompt != "" {
		apiReq.MultiSystem = []anthropic.MessageSystemPart{
			anthropic.NewSystemMessagePart(req.SystemPrompt),
		}
	}

	resp, err := c.client.CreateMessages(ctx, apiReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	text := resp.GetFirstContentText()
	if req.JSONMode && text != "" && !strings.HasPrefix(strings.TrimSpace(text), jsonPrefill) {
		text = jsonPrefill + text
	}

	return &CompletionResponse{
		Content:    text,
		Model:      string(resp.Model),
		TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
		Truncated:  resp.StopReason == anthropic.MessagesStopReasonMaxTokens,
	}, nil
}
