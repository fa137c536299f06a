package host

import (
	"context"

	"n8n-gportal/internal/nodes"
	"n8n-gportal/pkg/errors"
	"n8n-gportal/pkg/logger"
)

// WebhookOptions configure one webhook invocation
type WebhookOptions struct {
	Definition  *nodes.NodeDefinition
	NodeName    string
	ExecutionID string
	WebhookName string
	Parameters  map[string]any
	Request     *nodes.WebhookRequest
	Logger      logger.Logger
}

// WebhookCall implements nodes.WebhookFunctions
type WebhookCall struct {
	opts WebhookOptions
}

// NewWebhookCall fills in the node name and logger defaults
func NewWebhookCall(opts WebhookOptions) *WebhookCall {
	if opts.NodeName == "" && opts.Definition != nil {
		opts.NodeName = opts.Definition.DisplayName
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.WebhookName == "" {
		opts.WebhookName = "default"
	}
	return &WebhookCall{opts: opts}
}

func (w *WebhookCall) Request() *nodes.WebhookRequest { return w.opts.Request }
func (w *WebhookCall) WebhookName() string            { return w.opts.WebhookName }
func (w *WebhookCall) ExecutionID() string            { return w.opts.ExecutionID }
func (w *WebhookCall) NodeName() string               { return w.opts.NodeName }
func (w *WebhookCall) Logger() logger.Logger          { return w.opts.Logger }

func (w *WebhookCall) Parameter(name string) (any, error) {
	return resolveParameter(w.opts.Definition, w.opts.Parameters, name, 0)
}

// OptionsContext implements nodes.LoadOptionsFunctions
type OptionsContext struct {
	creds CredentialSource
	log   logger.Logger
}

// NewOptionsContext creates an option loader context. creds may be nil.
func NewOptionsContext(creds CredentialSource, log logger.Logger) *OptionsContext {
	if log == nil {
		log = logger.Nop()
	}
	return &OptionsContext{creds: creds, log: log}
}

func (o *OptionsContext) Credentials(ctx context.Context, name string) (map[string]any, error) {
	if o.creds == nil {
		return nil, errors.NewNotFoundError("no credentials of type " + name + " configured")
	}
	return o.creds.Data(ctx, name)
}

func (o *OptionsContext) Logger() logger.Logger { return o.log }
