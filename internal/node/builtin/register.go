package builtin

import "github.com/fluxwell/runtime/internal/node"

// Register adds every builtin node type to r. Host runtimes call this once
// during startup before running any workflow.
func Register(r *node.Registry) {
	r.Register(HTTPRequestMetadata(), func() any { return NewHTTPRequest() })
	r.Register(OpenAICompletionMetadata(), func() any { return &OpenAICompletion{} })
	r.Register(AnthropicCompletionMetadata(), func() any { return &AnthropicCompletion{} })
	r.Register(JSONParserMetadata(), func() any { return &JSONParser{} })
	r.Register(ConditionalRouterMetadata(), func() any { return &ConditionalRouter{} })
	r.Register(DateNormalizeMetadata(), func() any { return &DateNormalize{} })
}
