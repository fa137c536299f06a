// Package uicontroller implements the GPortal UI Controller node. It tells the
// portal UI which step is current, then parks the execution until the UI
// calls the restart webhook.
package uicontroller

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"n8n-gportal/internal/credentials"
	"n8n-gportal/internal/gportal"
	"n8n-gportal/internal/messaging"
	"n8n-gportal/internal/nodes"
	"n8n-gportal/pkg/metrics"
)

const (
	NodeType    = "gPortalUiController"
	WebhookPath = "gportal"
)

// Node broadcasts a UI command and waits for the portal to resume it
type Node struct {
	options     gportal.Options
	broadcaster messaging.Broadcaster
	metrics     *metrics.Metrics
	now         func() time.Time
}

// New creates the node. With a nil broadcaster each execution posts through
// the GPortal client built from its gPortalApi credential.
func New(opts gportal.Options, b messaging.Broadcaster, m *metrics.Metrics) *Node {
	return &Node{options: opts, broadcaster: b, metrics: m, now: time.Now}
}

func (n *Node) Definition() *nodes.NodeDefinition {
	createOnly := &nodes.DisplayOptions{Show: map[string][]any{"action": {"createEntity"}}}
	return &nodes.NodeDefinition{
		Name:        NodeType,
		DisplayName: "GPortal UI Controller",
		Description: "GPortal UI Controller",
		Version:     1,
		Icon:        "file:icons/uiController.svg",
		Group:       []nodes.NodeGroup{nodes.GroupTransform},
		Inputs:      []string{"main"},
		Outputs:     []string{"main"},
		Credentials: []nodes.CredentialRef{{Name: credentials.TypeGPortalAPI, Required: true}},
		RequestDefaults: &nodes.RequestDefaults{
			BaseURLCredential: "domain",
			Headers: map[string]string{
				"Accept":       "application/json",
				"Content-Type": "application/json",
			},
		},
		Webhooks: []nodes.WebhookDescription{
			{
				Name:           "default",
				HTTPMethod:     "GET",
				Path:           WebhookPath,
				ResponseMode:   nodes.ResponseModeOnReceived,
				IsFullPath:     true,
				RestartWebhook: true,
			},
			{
				Name:           "default",
				HTTPMethod:     "POST",
				Path:           WebhookPath,
				ResponseMode:   nodes.ResponseModeOnReceived,
				IsFullPath:     true,
				RestartWebhook: true,
			},
		},
		Parameters: []nodes.Parameter{
			{
				Name:        "action",
				DisplayName: "Action",
				Type:        nodes.ParameterTypeOptions,
				Options: []nodes.Option{
					{Name: "Create Entity", Value: "createEntity"},
					{Name: "Update Entity", Value: "updateEntity"},
				},
				Default:     "createEntity",
				Description: "Create Entity",
			},
			{
				Name:           "entityName",
				DisplayName:    "Entity Name",
				Type:           nodes.ParameterTypeString,
				Default:        "",
				DisplayOptions: createOnly,
				Description:    "The name of the entity to create",
			},
			{
				Name:           "version",
				DisplayName:    "Version",
				Type:           nodes.ParameterTypeString,
				Default:        "",
				DisplayOptions: createOnly,
				Description:    "The version of the entity to create",
			},
			{
				Name:        "entityId",
				DisplayName: "Entity ID",
				Type:        nodes.ParameterTypeString,
				Default:     "",
				DisplayOptions: &nodes.DisplayOptions{
					Show: map[string][]any{"action": {"updateEntity"}},
				},
				Description: "The ID of the entity to update",
			},
		},
	}
}

// Webhook acknowledges the portal's call for the waiting execution
func (n *Node) Webhook(ctx context.Context, wf nodes.WebhookFunctions) (*nodes.WebhookResponse, error) {
	return &nodes.WebhookResponse{
		WorkflowData: [][]nodes.Item{{
			nodes.NewItem(map[string]any{
				"message":       "Broadcast sent successfully",
				"executionId":   wf.ExecutionID(),
				"nodeName":      wf.NodeName(),
				"broadcastSent": true,
			}),
		}},
	}, nil
}

func (n *Node) Execute(ctx context.Context, ef nodes.ExecuteFunctions) ([][]nodes.Item, error) {
	log := ef.Logger()
	store := ef.CustomData()
	executionID := ef.ExecutionID()
	nodeName := ef.NodeName()

	if all, err := store.GetAll(ctx); err != nil {
		log.WarnContext(ctx, "Could not read custom data", "error", err)
	} else {
		b, _ := json.Marshal(all)
		log.InfoContext(ctx, fmt.Sprintf("executeData: %s", b))
	}

	if err := n.broadcast(ctx, ef, messaging.UICommand(executionID, nodeName)); err != nil {
		log.ErrorContext(ctx, fmt.Sprintf("Error broadcasting to socket: %s", err), "room", executionID)
	}

	log.InfoContext(ctx, "before wait")
	if err := ef.PutExecutionToWait(ctx, n.now().Add(nodes.IndefiniteWait)); err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "after wait")

	for key, value := range map[string]string{"currentNodeName": nodeName, "executionId": executionID} {
		if err := store.Set(ctx, key, value); err != nil {
			log.WarnContext(ctx, "Could not store custom data", "key", key, "error", err)
		}
	}

	return [][]nodes.Item{{
		nodes.NewItem(map[string]any{
			"currentNodeName": nodeName,
			"executionId":     executionID,
		}),
	}}, nil
}

func (n *Node) broadcast(ctx context.Context, ef nodes.ExecuteFunctions, msg messaging.Broadcast) error {
	b := n.broadcaster
	if b == nil {
		data, err := ef.Credentials(ctx, credentials.TypeGPortalAPI)
		if err != nil {
			return err
		}
		cred, err := credentials.ParseGPortalAPI(data)
		if err != nil {
			return err
		}
		client := gportal.NewClient(cred, n.options, ef.Logger())
		ef.Logger().InfoContext(ctx, "Broadcast target",
			"base_url", client.BaseURL(),
			"url", client.BaseURL()+"/socket/broadcast",
		)
		b = messaging.NewHTTPBroadcaster(client, ef.Logger(), n.metrics)
	}
	return b.Broadcast(ctx, msg)
}
