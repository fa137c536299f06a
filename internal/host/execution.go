// Package host runs nodes outside a full workflow engine. It supplies the
// parameter, credential, customData and wait capabilities nodes ask for.
package host

import (
	"context"
	"strings"
	"sync"
	"time"

	"n8n-gportal/internal/execution/customdata"
	"n8n-gportal/internal/execution/wait"
	"n8n-gportal/internal/nodes"
	"n8n-gportal/pkg/errors"
	"n8n-gportal/pkg/logger"
	"n8n-gportal/pkg/metrics"
	"n8n-gportal/pkg/tracing"

	"github.com/google/uuid"
)

// CredentialSource returns the stored properties of a credential type
type CredentialSource interface {
	Data(ctx context.Context, name string) (map[string]any, error)
}

// CredentialMap is a fixed CredentialSource
type CredentialMap map[string]map[string]any

func (m CredentialMap) Data(ctx context.Context, name string) (map[string]any, error) {
	data, ok := m[name]
	if !ok {
		return nil, errors.NewNotFoundError("no credentials of type " + name + " configured")
	}
	return data, nil
}

// Options configure one node execution
type Options struct {
	Definition  *nodes.NodeDefinition
	NodeName    string
	ExecutionID string
	// Parameters apply to every item; ItemParameters[i] overrides them for item i.
	Parameters     map[string]any
	ItemParameters []map[string]any
	Items          []nodes.Item
	ContinueOnFail bool
	Credentials    CredentialSource
	CustomData     nodes.CustomData
	Waits          *wait.Registry
	Logger         logger.Logger
}

// Execution implements nodes.ExecuteFunctions
type Execution struct {
	opts Options

	mu        sync.Mutex
	waitUntil *time.Time
}

// NewExecution fills in defaults: a random execution id, the definition's
// display name, an in-memory customData store and a no-op logger.
func NewExecution(opts Options) *Execution {
	if opts.ExecutionID == "" {
		opts.ExecutionID = uuid.NewString()
	}
	if opts.NodeName == "" && opts.Definition != nil {
		opts.NodeName = opts.Definition.DisplayName
	}
	if opts.CustomData == nil {
		opts.CustomData = customdata.NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Parameters == nil {
		opts.Parameters = map[string]any{}
	}
	return &Execution{opts: opts}
}

func (e *Execution) InputData() []nodes.Item { return e.opts.Items }
func (e *Execution) ContinueOnFail() bool    { return e.opts.ContinueOnFail }
func (e *Execution) ExecutionID() string     { return e.opts.ExecutionID }
func (e *Execution) NodeName() string        { return e.opts.NodeName }
func (e *Execution) CustomData() nodes.CustomData {
	return e.opts.CustomData
}

func (e *Execution) Logger() logger.Logger {
	return e.opts.Logger.With("node", e.opts.NodeName, "execution_id", e.opts.ExecutionID)
}

// Parameter resolves name for itemIndex: item override, then shared value,
// then the definition default.
func (e *Execution) Parameter(name string, itemIndex int) (any, error) {
	if itemIndex >= 0 && itemIndex < len(e.opts.ItemParameters) {
		if v, ok := nodes.Lookup(e.opts.ItemParameters[itemIndex], name); ok {
			return v, nil
		}
	}
	return resolveParameter(e.opts.Definition, e.opts.Parameters, name, itemIndex)
}

func (e *Execution) Credentials(ctx context.Context, name string) (map[string]any, error) {
	if e.opts.Credentials == nil {
		return nil, errors.NewNotFoundError("no credentials of type " + name + " configured")
	}
	return e.opts.Credentials.Data(ctx, name)
}

// PutExecutionToWait records the deadline and, when a wait registry is
// configured, persists the suspension there.
func (e *Execution) PutExecutionToWait(ctx context.Context, until time.Time) error {
	e.mu.Lock()
	e.waitUntil = &until
	e.mu.Unlock()

	if e.opts.Waits == nil {
		return nil
	}
	return e.opts.Waits.Suspend(ctx, e.opts.ExecutionID, e.opts.NodeName, until)
}

// WaitingUntil reports the deadline requested by the node, if any
func (e *Execution) WaitingUntil() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.waitUntil == nil {
		return time.Time{}, false
	}
	return *e.waitUntil, true
}

// Run executes node with tracing and metrics around it. m may be nil.
func Run(ctx context.Context, node nodes.Executor, e *Execution, m *metrics.Metrics) ([][]nodes.Item, error) {
	def := node.Definition()
	ctx, span := tracing.TraceNodeExecution(ctx, e.NodeName(), def.Name, e.ExecutionID())
	defer span.End()

	start := time.Now()
	out, err := node.Execute(ctx, e)
	if err != nil {
		tracing.AddSpanError(span, err)
		m.RecordNodeExecution(def.Name, "error", time.Since(start))
		return nil, err
	}

	status := "success"
	if _, waiting := e.WaitingUntil(); waiting {
		status = "waiting"
	}
	m.RecordNodeExecution(def.Name, status, time.Since(start))
	for _, items := range out {
		for _, item := range items {
			outcome := "success"
			if _, failed := item.JSON["error"]; failed {
				outcome = "continued"
			}
			m.RecordItem(def.Name, outcome)
		}
	}
	return out, nil
}

func resolveParameter(def *nodes.NodeDefinition, params map[string]any, name string, itemIndex int) (any, error) {
	if v, ok := nodes.Lookup(params, name); ok {
		return v, nil
	}
	if def != nil {
		head, rest, nested := strings.Cut(name, ".")
		if p, ok := def.FindParameter(head); ok && p.Default != nil {
			if !nested {
				return p.Default, nil
			}
			if m, ok := p.Default.(map[string]any); ok {
				if v, ok := nodes.Lookup(m, rest); ok {
					return v, nil
				}
			}
		}
	}
	return nil, errors.NewParameterResolutionError(name, itemIndex)
}
