// Package communicator implements the GPortal Communicator trigger
package communicator

import (
	"context"

	"n8n-gportal/internal/nodes"
)

const (
	NodeType    = "gPortalCommunicator"
	DefaultPath = "my-custom-endpoint"
)

// Node starts a workflow with the contents of a POST to its configured path
type Node struct{}

func New() *Node { return &Node{} }

func (n *Node) Definition() *nodes.NodeDefinition {
	return &nodes.NodeDefinition{
		Name:        NodeType,
		DisplayName: "GPortal Communicator",
		Description: "Starts a workflow when a custom REST API endpoint is called",
		Version:     1,
		Icon:        "fa:broadcast-tower",
		Subtitle:    `={{$parameter["path"]}}`,
		Group:       []nodes.NodeGroup{nodes.GroupTrigger},
		Inputs:      []string{},
		Outputs:     []string{"main"},
		Webhooks: []nodes.WebhookDescription{
			{
				Name:          "default",
				HTTPMethod:    "POST",
				ResponseMode:  nodes.ResponseModeOnReceived,
				PathParameter: "path",
			},
		},
		Parameters: []nodes.Parameter{
			{
				Name:        "path",
				DisplayName: "Path",
				Type:        nodes.ParameterTypeString,
				Default:     DefaultPath,
				Required:    true,
				Placeholder: DefaultPath,
				Description: "The URL path to listen on. The full URL will be displayed after activating the workflow.",
			},
		},
	}
}

// Webhook hands the request's headers, params, query and body to the
// workflow and leaves the HTTP answer to the host
func (n *Node) Webhook(ctx context.Context, wf nodes.WebhookFunctions) (*nodes.WebhookResponse, error) {
	req := wf.Request()
	data := map[string]any{
		"headers": map[string]string{},
		"params":  map[string]string{},
		"query":   map[string]any{},
		"body":    nil,
	}
	if req != nil {
		if req.Headers != nil {
			data["headers"] = req.Headers
		}
		if req.Params != nil {
			data["params"] = req.Params
		}
		if req.Query != nil {
			data["query"] = req.Query
		}
		data["body"] = req.Body
	}

	wf.Logger().DebugContext(ctx, "Communicator request received", "webhook", wf.WebhookName())

	return &nodes.WebhookResponse{
		WorkflowData:      [][]nodes.Item{{nodes.NewItem(data)}},
		NoWebhookResponse: true,
	}, nil
}
