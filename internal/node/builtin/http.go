// Package builtin holds a handful of representative ExecutableNode
// implementations exercising the domain stack end to end. The several
// hundred production node implementations this contract is meant to
// support remain out of scope; these nodes exist only to prove the
// contract and the parameter mapper round trip.
package builtin

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fluxwell/runtime/internal/domain"
	"github.com/fluxwell/runtime/internal/node"
)

// HTTPRequest performs a single HTTP call. Inputs: url (string), method
// (string, default GET), body (string, optional). Output: status
// (number), body (string).
type HTTPRequest struct {
	Client *http.Client
}

func NewHTTPRequest() *HTTPRequest {
	return &HTTPRequest{Client: &http.Client{Timeout: 30 * time.Second}}
}

func (n *HTTPRequest) Execute(ec node.ExecutionContext) (node.ExecutionOutcome, error) {
	url, _ := ec.Inputs["url"].(string)
	if url == "" {
		return node.ExecutionOutcome{}, fmt.Errorf("url input is required")
	}
	method, _ := ec.Inputs["method"].(string)
	if method == "" {
		method = http.MethodGet
	}
	bodyStr, _ := ec.Inputs["body"].(string)

	req, err := http.NewRequestWithContext(ec.Context, method, url, bytes.NewBufferString(bodyStr))
	if err != nil {
		return node.ExecutionOutcome{}, err
	}

	resp, err := n.Client.Do(req)
	if err != nil {
		return node.ExecutionOutcome{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return node.ExecutionOutcome{}, err
	}

	return node.ExecutionOutcome{
		Outputs: map[string]any{
			"status": float64(resp.StatusCode),
			"body":   string(respBody),
		},
	}, nil
}

func HTTPRequestMetadata() node.Metadata {
	return node.Metadata{
		Type:        "http-request",
		DisplayName: "HTTP Request",
		Inputs: []domain.Parameter{
			{Name: "url", Type: domain.ParamString, Required: true},
			{Name: "method", Type: domain.ParamString, Default: "GET", HasDefault: true},
			{Name: "body", Type: domain.ParamString},
		},
		Outputs: []domain.Parameter{
			{Name: "status", Type: domain.ParamNumber},
			{Name: "body", Type: domain.ParamString},
		},
	}
}
