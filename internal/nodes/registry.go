package nodes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"n8n-gportal/pkg/errors"
	"n8n-gportal/pkg/logger"
)

// RegistryFilter narrows a definition listing
type RegistryFilter struct {
	Group  NodeGroup
	Search string
	Limit  int
	Offset int
}

// Registry holds the available node types and named option loaders
type Registry struct {
	nodes     map[string]*NodeDefinition
	factories map[string]NodeFactory
	loaders   map[string]OptionLoader
	mutex     sync.RWMutex
	logger    logger.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		nodes:     make(map[string]*NodeDefinition),
		factories: make(map[string]NodeFactory),
		loaders:   make(map[string]OptionLoader),
		logger:    log,
	}
}

// Register adds a node type. The definition is taken from a fresh instance.
func (r *Registry) Register(factory NodeFactory) error {
	if factory == nil {
		return errors.NewValidationError("node factory cannot be nil")
	}
	definition := factory().Definition()
	if definition == nil {
		return errors.NewValidationError("node definition cannot be nil")
	}
	if err := validateDefinition(definition); err != nil {
		return fmt.Errorf("invalid node definition %q: %w", definition.Name, err)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.nodes[definition.Name]; exists {
		return errors.New(errors.ErrorTypeConflict, errors.CodeResourceExists,
			fmt.Sprintf("node '%s' already registered", definition.Name))
	}

	r.nodes[definition.Name] = definition
	r.factories[definition.Name] = factory

	r.logger.Debug("Node registered",
		"name", definition.Name,
		"version", definition.Version,
		"outputs", definition.OutputCount(),
		"webhooks", len(definition.Webhooks),
	)
	return nil
}

// RegisterOptionLoader binds a loader to the symbolic name parameters refer to
func (r *Registry) RegisterOptionLoader(name string, loader OptionLoader) error {
	if name == "" || loader == nil {
		return errors.NewValidationError("option loader needs a name and a function")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.loaders[name]; exists {
		return errors.New(errors.ErrorTypeConflict, errors.CodeResourceExists,
			fmt.Sprintf("option loader '%s' already registered", name))
	}
	r.loaders[name] = loader
	return nil
}

// LoadOptions runs the named option loader
func (r *Registry) LoadOptions(ctx context.Context, name string, lf LoadOptionsFunctions) ([]Option, error) {
	r.mutex.RLock()
	loader, ok := r.loaders[name]
	r.mutex.RUnlock()

	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("option loader '%s' not found", name))
	}
	return loader(ctx, lf)
}

// OptionLoaders returns the registered loader names, sorted
func (r *Registry) OptionLoaders() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.loaders))
	for name := range r.loaders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetDefinition returns a copy of the named definition
func (r *Registry) GetDefinition(name string) (*NodeDefinition, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	definition, exists := r.nodes[name]
	if !exists {
		return nil, errors.NewNotFoundError(fmt.Sprintf("node '%s' not found", name))
	}
	definitionCopy := *definition
	return &definitionCopy, nil
}

// GetDefinitions lists definitions sorted by name, optionally filtered
func (r *Registry) GetDefinitions(filter *RegistryFilter) []*NodeDefinition {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var definitions []*NodeDefinition
	for _, definition := range r.nodes {
		if matchesFilter(definition, filter) {
			definitionCopy := *definition
			definitions = append(definitions, &definitionCopy)
		}
	}

	sort.Slice(definitions, func(i, j int) bool {
		return definitions[i].Name < definitions[j].Name
	})

	if filter != nil {
		if filter.Offset >= len(definitions) {
			return []*NodeDefinition{}
		}
		definitions = definitions[filter.Offset:]
		if filter.Limit > 0 && filter.Limit < len(definitions) {
			definitions = definitions[:filter.Limit]
		}
	}
	return definitions
}

// Create instantiates the named node
func (r *Registry) Create(name string) (Node, error) {
	r.mutex.RLock()
	factory, exists := r.factories[name]
	r.mutex.RUnlock()

	if !exists {
		return nil, errors.NewNotFoundError(fmt.Sprintf("node '%s' not found", name))
	}
	return factory(), nil
}

// CreateExecutor instantiates the named node and checks it can Execute
func (r *Registry) CreateExecutor(name string) (Executor, error) {
	node, err := r.Create(name)
	if err != nil {
		return nil, err
	}
	executor, ok := node.(Executor)
	if !ok {
		return nil, errors.NewValidationError(fmt.Sprintf("node '%s' cannot be executed", name))
	}
	return executor, nil
}

// WebhookNodes returns a fresh instance of every node that declares webhooks
func (r *Registry) WebhookNodes() []WebhookNode {
	r.mutex.RLock()
	names := make([]string, 0, len(r.nodes))
	for name, def := range r.nodes {
		if len(def.Webhooks) > 0 {
			names = append(names, name)
		}
	}
	r.mutex.RUnlock()
	sort.Strings(names)

	var out []WebhookNode
	for _, name := range names {
		node, err := r.Create(name)
		if err != nil {
			continue
		}
		if wn, ok := node.(WebhookNode); ok {
			out = append(out, wn)
		}
	}
	return out
}

func validateDefinition(definition *NodeDefinition) error {
	if definition.Name == "" {
		return errors.NewValidationError("node name is required")
	}
	if definition.DisplayName == "" {
		return errors.NewValidationError("node display name is required")
	}
	if definition.Version < 1 {
		return errors.NewValidationError("node version must be positive")
	}
	if len(definition.Outputs) == 0 {
		return errors.NewValidationError("node must declare at least one output")
	}
	if len(definition.OutputNames) > 0 && len(definition.OutputNames) != len(definition.Outputs) {
		return errors.NewValidationError("output names must match outputs")
	}

	seen := make(map[string]bool)
	for i := range definition.Parameters {
		param := &definition.Parameters[i]
		if err := validateParameterDefinition(param); err != nil {
			return fmt.Errorf("parameter %d validation failed: %w", i, err)
		}
		// Parameters may repeat under mutually exclusive display options.
		if seen[param.Name] && param.DisplayOptions == nil {
			return errors.NewValidationError(fmt.Sprintf("parameter '%s' declared twice", param.Name))
		}
		seen[param.Name] = true
	}

	for _, wh := range definition.Webhooks {
		if wh.HTTPMethod == "" {
			return errors.NewValidationError("webhook http method is required")
		}
	}
	return nil
}

func validateParameterDefinition(param *Parameter) error {
	if param.Name == "" {
		return errors.NewValidationError("parameter name is required")
	}
	if param.Type == "" {
		return errors.NewValidationError("parameter type is required")
	}

	if param.Type == ParameterTypeOptions && len(param.Options) == 0 && param.LoadOptions == "" {
		return errors.NewValidationError(fmt.Sprintf("options parameter '%s' needs options or a loader", param.Name))
	}
	return nil
}

func matchesFilter(definition *NodeDefinition, filter *RegistryFilter) bool {
	if filter == nil {
		return true
	}

	if filter.Group != "" {
		found := false
		for _, g := range definition.Group {
			if g == filter.Group {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if filter.Search != "" {
		q := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(definition.Name), q) &&
			!strings.Contains(strings.ToLower(definition.DisplayName), q) &&
			!strings.Contains(strings.ToLower(definition.Description), q) {
			return false
		}
	}
	return true
}
