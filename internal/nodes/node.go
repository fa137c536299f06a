package nodes

import (
	"context"
	"time"

	"n8n-gportal/pkg/logger"
)

// IndefiniteWait is the deadline offset used by nodes that stay suspended
// until a restart webhook resumes them
const IndefiniteWait = 99999999999 * time.Millisecond

// Node is implemented by every node type
type Node interface {
	Definition() *NodeDefinition
}

// Executor is a node that transforms a batch of input items
type Executor interface {
	Node
	// Execute returns one item slice per output channel.
	Execute(ctx context.Context, ef ExecuteFunctions) ([][]Item, error)
}

// WebhookNode is a node that answers inbound HTTP requests
type WebhookNode interface {
	Node
	Webhook(ctx context.Context, wf WebhookFunctions) (*WebhookResponse, error)
}

// NodeFactory creates a new node instance
type NodeFactory func() Node

// CustomData is the execution-scoped key/value store
type CustomData interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	GetAll(ctx context.Context) (map[string]string, error)
}

// ExecuteFunctions are the host capabilities available during Execute
type ExecuteFunctions interface {
	InputData() []Item
	// Parameter resolves a node parameter for the item at itemIndex.
	// Dotted names address nested collection values.
	Parameter(name string, itemIndex int) (any, error)
	ContinueOnFail() bool
	Credentials(ctx context.Context, name string) (map[string]any, error)
	ExecutionID() string
	NodeName() string
	CustomData() CustomData
	// PutExecutionToWait asks the host to suspend the execution until the
	// deadline passes or a restart webhook resumes it.
	PutExecutionToWait(ctx context.Context, until time.Time) error
	Logger() logger.Logger
}

// WebhookFunctions are the host capabilities available during Webhook
type WebhookFunctions interface {
	Request() *WebhookRequest
	Parameter(name string) (any, error)
	ExecutionID() string
	NodeName() string
	WebhookName() string
	Logger() logger.Logger
}

// LoadOptionsFunctions are the host capabilities available to option loaders
type LoadOptionsFunctions interface {
	Credentials(ctx context.Context, name string) (map[string]any, error)
	Logger() logger.Logger
}

// OptionLoader produces dynamic choices for a parameter
type OptionLoader func(ctx context.Context, lf LoadOptionsFunctions) ([]Option, error)
