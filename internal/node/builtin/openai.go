package builtin

import (
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fluxwell/runtime/internal/domain"
	"github.com/fluxwell/runtime/internal/node"
)

// OpenAICompletion sends a single chat completion request. Inputs: prompt
// (string), model (string, default gpt-4o-mini), apiKey (secret). Output:
// text (string). Usage is reported in completion tokens.
type OpenAICompletion struct{}

func (n *OpenAICompletion) Execute(ec node.ExecutionContext) (node.ExecutionOutcome, error) {
	prompt, _ := ec.Inputs["prompt"].(string)
	if prompt == "" {
		return node.ExecutionOutcome{}, fmt.Errorf("prompt input is required")
	}
	model, _ := ec.Inputs["model"].(string)
	if model == "" {
		model = openai.GPT4oMini
	}
	apiKey, _ := ec.Inputs["apiKey"].(string)
	if apiKey == "" {
		return node.ExecutionOutcome{}, fmt.Errorf("apiKey secret input is required")
	}

	client := openai.NewClient(apiKey)
	resp, err := client.CreateChatCompletion(ec.Context, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return node.ExecutionOutcome{}, err
	}
	if len(resp.Choices) == 0 {
		return node.ExecutionOutcome{}, fmt.Errorf("openai returned no choices")
	}

	return node.ExecutionOutcome{
		Outputs: map[string]any{"text": resp.Choices[0].Message.Content},
		Usage:   resp.Usage.CompletionTokens,
	}, nil
}

func OpenAICompletionMetadata() node.Metadata {
	return node.Metadata{
		Type:        "openai-completion",
		DisplayName: "OpenAI Completion",
		Inputs: []domain.Parameter{
			{Name: "prompt", Type: domain.ParamString, Required: true},
			{Name: "model", Type: domain.ParamString, Default: openai.GPT4oMini, HasDefault: true},
			{Name: "apiKey", Type: domain.ParamSecret, Required: true},
		},
		Outputs: []domain.Parameter{
			{Name: "text", Type: domain.ParamString},
		},
	}
}
