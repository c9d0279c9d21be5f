package builtin

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/expr-lang/expr"

	"github.com/fluxwell/runtime/internal/domain"
	"github.com/fluxwell/runtime/internal/node"
)

// JSONParser parses a raw string input into structured JSON. Input: raw
// (string). Output: parsed (json).
type JSONParser struct{}

func (n *JSONParser) Execute(ec node.ExecutionContext) (node.ExecutionOutcome, error) {
	raw, _ := ec.Inputs["raw"].(string)
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return node.ExecutionOutcome{}, fmt.Errorf("invalid json: %w", err)
	}
	return node.ExecutionOutcome{Outputs: map[string]any{"parsed": parsed}}, nil
}

func JSONParserMetadata() node.Metadata {
	return node.Metadata{
		Type:        "json-parser",
		DisplayName: "JSON Parser",
		Inputs:      []domain.Parameter{{Name: "raw", Type: domain.ParamString, Required: true}},
		Outputs:     []domain.Parameter{{Name: "parsed", Type: domain.ParamJSON}},
	}
}

// ConditionalRouter evaluates its declared condition expression against
// its inputs and populates exactly one of two outputs, leaving the other
// absent — the node implementation responsible for the conditional_branch
// skip classification downstream of it. Config: condition (expr-lang
// expression). Input: value (any). Outputs: onTrue (any), onFalse (any).
type ConditionalRouter struct{}

func (n *ConditionalRouter) Execute(ec node.ExecutionContext) (node.ExecutionOutcome, error) {
	conditionExpr, _ := ec.Config["condition"].(string)
	if conditionExpr == "" {
		return node.ExecutionOutcome{}, fmt.Errorf("condition config is required")
	}

	env := map[string]any{"value": ec.Inputs["value"]}
	program, err := expr.Compile(conditionExpr, expr.Env(env))
	if err != nil {
		return node.ExecutionOutcome{}, fmt.Errorf("invalid condition expression: %w", err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return node.ExecutionOutcome{}, fmt.Errorf("condition evaluation failed: %w", err)
	}
	taken, ok := result.(bool)
	if !ok {
		return node.ExecutionOutcome{}, fmt.Errorf("condition expression must evaluate to a boolean")
	}

	outputs := make(map[string]any, 1)
	if taken {
		outputs["onTrue"] = ec.Inputs["value"]
	} else {
		outputs["onFalse"] = ec.Inputs["value"]
	}
	return node.ExecutionOutcome{Outputs: outputs}, nil
}

func ConditionalRouterMetadata() node.Metadata {
	return node.Metadata{
		Type:        "conditional-router",
		DisplayName: "Conditional Router",
		Inputs:      []domain.Parameter{{Name: "value", Type: domain.ParamAny, Required: true}},
		Outputs: []domain.Parameter{
			{Name: "onTrue", Type: domain.ParamAny},
			{Name: "onFalse", Type: domain.ParamAny},
		},
	}
}

// DateNormalize accepts any date-like input and emits a normalized
// ISO-8601 UTC string, exercising the parameter mapper's date tag rules
// directly (this node's own conversion is intentionally trivial — the
// mapper already normalized the wire value before this node ever sees it).
type DateNormalize struct{}

func (n *DateNormalize) Execute(ec node.ExecutionContext) (node.ExecutionOutcome, error) {
	v, ok := ec.Inputs["date"].(string)
	if !ok {
		return node.ExecutionOutcome{}, fmt.Errorf("date input did not normalize to a string")
	}
	if _, err := time.Parse(time.RFC3339, v); err != nil {
		return node.ExecutionOutcome{}, fmt.Errorf("date input is not ISO-8601: %w", err)
	}
	return node.ExecutionOutcome{Outputs: map[string]any{"normalized": v}}, nil
}

func DateNormalizeMetadata() node.Metadata {
	return node.Metadata{
		Type:        "date-normalize",
		DisplayName: "Date Normalize",
		Inputs:      []domain.Parameter{{Name: "date", Type: domain.ParamDate, Required: true}},
		Outputs:     []domain.Parameter{{Name: "normalized", Type: domain.ParamDate}},
	}
}
