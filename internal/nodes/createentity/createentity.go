// Package createentity implements the Create Entity node, a restartable
// webhook node that suspends its execution until called back
package createentity

import (
	"context"
	"time"

	"n8n-gportal/internal/nodes"
)

const NodeType = "createEntity"

// NoData is the response data value that suppresses the response body
const NoData = "noData"

// WebhookParameters are the response settings of a webhook node
type WebhookParameters struct {
	HTTPMethod   string
	ResponseMode string
	ResponseData string
	// ResponseCode is the legacy top-level code; zero when unset.
	ResponseCode int
	Options      *ResponseOptions
}

// ResponseOptions mirror the webhook "options" collection
type ResponseOptions struct {
	ResponseData   string
	ResponseCode   *ResponseCodeValues
	NoResponseBody bool
}

// ResponseCodeValues select a standard or custom response code
type ResponseCodeValues struct {
	ResponseCode int
	CustomCode   int
}

// ResponseCode picks the status to answer with: the legacy code, then a
// custom code, then the selected option code, else 200.
func ResponseCode(p WebhookParameters) int {
	if p.ResponseCode != 0 {
		return p.ResponseCode
	}
	if p.Options != nil && p.Options.ResponseCode != nil {
		if p.Options.ResponseCode.CustomCode != 0 {
			return p.Options.ResponseCode.CustomCode
		}
		return p.Options.ResponseCode.ResponseCode
	}
	return 200
}

// ResponseData picks the response data setting. An empty string means unset.
func ResponseData(p WebhookParameters) string {
	if p.ResponseData != "" {
		return p.ResponseData
	}
	if p.ResponseMode == string(nodes.ResponseModeOnReceived) && p.Options != nil && p.Options.ResponseData != "" {
		return p.Options.ResponseData
	}
	if p.Options != nil && p.Options.NoResponseBody {
		return NoData
	}
	return ""
}

// ParseWebhookParameters reads the response settings from node parameters.
// mode is the webhook's resolved response mode.
func ParseWebhookParameters(params map[string]any, mode nodes.ResponseMode) WebhookParameters {
	p := WebhookParameters{ResponseMode: string(mode)}
	if v, ok := nodes.Lookup(params, "httpMethod"); ok {
		p.HTTPMethod = nodes.ToString(v)
	}
	if v, ok := nodes.Lookup(params, "responseData"); ok {
		p.ResponseData = nodes.ToString(v)
	}
	if v, ok := nodes.Lookup(params, "responseCode"); ok {
		p.ResponseCode, _ = nodes.ToInt(v)
	}

	options, ok := params["options"].(map[string]any)
	if !ok {
		return p
	}
	p.Options = &ResponseOptions{}
	if v, ok := options["responseData"]; ok {
		p.Options.ResponseData = nodes.ToString(v)
	}
	if v, ok := options["noResponseBody"].(bool); ok {
		p.Options.NoResponseBody = v
	}
	if values, ok := nodes.Lookup(options, "responseCode.values"); ok {
		if m, ok := values.(map[string]any); ok {
			codes := &ResponseCodeValues{}
			codes.ResponseCode, _ = nodes.ToInt(m["responseCode"])
			codes.CustomCode, _ = nodes.ToInt(m["customCode"])
			p.Options.ResponseCode = codes
		}
	}
	return p
}

// Node suspends the workflow and answers its restart webhook
type Node struct {
	now func() time.Time
}

func New() *Node { return &Node{now: time.Now} }

func (n *Node) Definition() *nodes.NodeDefinition {
	return &nodes.NodeDefinition{
		Name:        NodeType,
		DisplayName: "Create Entity",
		Description: "Basic Example Node",
		Version:     1,
		Group:       []nodes.NodeGroup{nodes.GroupTransform},
		Inputs:      []string{"main"},
		Outputs:     []string{"main"},
		Webhooks: []nodes.WebhookDescription{
			{
				Name:           "default",
				HTTPMethod:     "GET",
				ResponseMode:   nodes.ResponseModeOnReceived,
				IsFullPath:     true,
				RestartWebhook: true,
			},
			{
				Name:           "default",
				HTTPMethod:     "POST",
				ResponseMode:   nodes.ResponseModeOnReceived,
				ResponseModeOf: "responseMode",
				IsFullPath:     true,
				RestartWebhook: true,
			},
		},
		Parameters: []nodes.Parameter{
			{
				Name:        "myString",
				DisplayName: "My String",
				Type:        nodes.ParameterTypeString,
				Default:     "",
				Placeholder: "Placeholder value",
				Description: "The description text",
			},
		},
	}
}

func (n *Node) Webhook(ctx context.Context, wf nodes.WebhookFunctions) (*nodes.WebhookResponse, error) {
	wf.Logger().InfoContext(ctx, "Create entity webhook called", "execution_id", wf.ExecutionID())
	return &nodes.WebhookResponse{
		WorkflowData: [][]nodes.Item{{nodes.NewItem(map[string]any{"message": "Hello World"})}},
	}, nil
}

// Execute suspends the execution and emits no items
func (n *Node) Execute(ctx context.Context, ef nodes.ExecuteFunctions) ([][]nodes.Item, error) {
	log := ef.Logger()
	log.InfoContext(ctx, "before wait")
	if err := ef.PutExecutionToWait(ctx, n.now().Add(nodes.IndefiniteWait)); err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "after wait")
	return [][]nodes.Item{{}}, nil
}
