package builtin

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/fluxwell/runtime/internal/domain"
	"github.com/fluxwell/runtime/internal/node"
)

// AnthropicCompletion sends a single message request to Claude. Inputs:
// prompt (string), model (string, default claude-3-5-haiku), apiKey
// (secret). Output: text (string).
type AnthropicCompletion struct{}

func (n *AnthropicCompletion) Execute(ec node.ExecutionContext) (node.ExecutionOutcome, error) {
	prompt, _ := ec.Inputs["prompt"].(string)
	if prompt == "" {
		return node.ExecutionOutcome{}, fmt.Errorf("prompt input is required")
	}
	model, _ := ec.Inputs["model"].(string)
	if model == "" {
		model = anthropic.ModelClaude3_5HaikuLatest
	}
	apiKey, _ := ec.Inputs["apiKey"].(string)
	if apiKey == "" {
		return node.ExecutionOutcome{}, fmt.Errorf("apiKey secret input is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	resp, err := client.Messages.New(ec.Context, anthropic.MessageNewParams{
		Model:     anthropic.F(model),
		MaxTokens: anthropic.F(int64(1024)),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		}),
	})
	if err != nil {
		return node.ExecutionOutcome{}, err
	}
	if len(resp.Content) == 0 {
		return node.ExecutionOutcome{}, fmt.Errorf("anthropic returned no content blocks")
	}

	return node.ExecutionOutcome{
		Outputs: map[string]any{"text": resp.Content[0].Text},
		Usage:   int(resp.Usage.OutputTokens),
	}, nil
}

func AnthropicCompletionMetadata() node.Metadata {
	return node.Metadata{
		Type:        "anthropic-completion",
		DisplayName: "Anthropic Completion",
		Inputs: []domain.Parameter{
			{Name: "prompt", Type: domain.ParamString, Required: true},
			{Name: "model", Type: domain.ParamString, Default: anthropic.ModelClaude3_5HaikuLatest, HasDefault: true},
			{Name: "apiKey", Type: domain.ParamSecret, Required: true},
		},
		Outputs: []domain.Parameter{
			{Name: "text", Type: domain.ParamString},
		},
	}
}
