// Package entityapi implements the GPortal Entity API node
package entityapi

import (
	"context"

	"n8n-gportal/internal/credentials"
	"n8n-gportal/internal/entity"
	"n8n-gportal/internal/gportal"
	"n8n-gportal/internal/nodes"
	"n8n-gportal/pkg/metrics"
)

const NodeType = "gPortalEntityApi"

// Node performs generic entity CRUD against the credential's domain
type Node struct {
	options   gportal.Options
	metrics   *metrics.Metrics
	transport entity.Transport
}

// New creates the node. m may be nil.
func New(opts gportal.Options, m *metrics.Metrics) *Node {
	return &Node{options: opts, metrics: m}
}

// WithTransport replaces the GPortal client built from the credential
func (n *Node) WithTransport(t entity.Transport) *Node {
	n.transport = t
	return n
}

func (n *Node) Definition() *nodes.NodeDefinition {
	entityOnly := []any{string(entity.ResourceEntity)}
	return &nodes.NodeDefinition{
		Name:        NodeType,
		DisplayName: "GPortal Entity API",
		Description: "Interact with GPortal Entity API",
		Version:     1,
		Icon:        "fa:database",
		Subtitle:    `={{$parameter["operation"] + ": " + $parameter["resource"]}}`,
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
		Parameters: []nodes.Parameter{
			{
				Name:        "resource",
				DisplayName: "Resource",
				Type:        nodes.ParameterTypeOptions,
				NoDataExpr:  true,
				Options:     []nodes.Option{{Name: "Entity", Value: string(entity.ResourceEntity)}},
				Default:     string(entity.ResourceEntity),
			},
			{
				Name:           "operation",
				DisplayName:    "Operation",
				Type:           nodes.ParameterTypeOptions,
				NoDataExpr:     true,
				DisplayOptions: &nodes.DisplayOptions{Show: map[string][]any{"resource": entityOnly}},
				Options: []nodes.Option{
					{Name: "Create", Value: "create", Description: "Create a new entity", Action: "Create a new entity"},
					{Name: "Delete", Value: "delete", Description: "Delete an entity", Action: "Delete an entity"},
					{Name: "Get", Value: "get", Description: "Get an entity by ID", Action: "Get an entity by ID"},
					{Name: "Get Many", Value: "getAll", Description: "Get many entities", Action: "Get many entities"},
					{Name: "Update", Value: "update", Description: "Update an entity", Action: "Update an entity"},
				},
				Default: string(entity.OperationGet),
			},
			{
				Name:        "entityId",
				DisplayName: "Entity ID",
				Type:        nodes.ParameterTypeString,
				Default:     "",
				Required:    true,
				Description: "The ID of the entity",
				DisplayOptions: &nodes.DisplayOptions{Show: map[string][]any{
					"operation": {"delete", "get", "update"},
					"resource":  entityOnly,
				}},
			},
			{
				Name:        "entityData",
				DisplayName: "Entity Data",
				Type:        nodes.ParameterTypeJSON,
				Default:     "{}",
				Required:    true,
				Description: "The entity data in JSON format",
				DisplayOptions: &nodes.DisplayOptions{Show: map[string][]any{
					"operation": {"create", "update"},
					"resource":  entityOnly,
				}},
			},
			{
				Name:        "additionalFields",
				DisplayName: "Additional Fields",
				Type:        nodes.ParameterTypeCollection,
				Placeholder: "Add Field",
				Default:     map[string]any{},
				Children: []nodes.Parameter{
					{
						Name:        "queryParameters",
						DisplayName: "Query Parameters",
						Type:        nodes.ParameterTypeFixed,
						Multiple:    true,
						Placeholder: "Add Query Parameter",
						Default:     map[string]any{},
						Values: []nodes.Parameter{
							{Name: "name", DisplayName: "Name", Type: nodes.ParameterTypeString, Default: "", Description: "Name of the parameter"},
							{Name: "value", DisplayName: "Value", Type: nodes.ParameterTypeString, Default: "", Description: "Value of the parameter"},
						},
					},
				},
			},
		},
	}
}

// Execute sends one request per input item and returns one result per item
func (n *Node) Execute(ctx context.Context, ef nodes.ExecuteFunctions) ([][]nodes.Item, error) {
	items := ef.InputData()

	resource, err := nodes.StringParam(ef, "resource", 0)
	if err != nil {
		return nil, err
	}
	operation, err := nodes.StringParam(ef, "operation", 0)
	if err != nil {
		return nil, err
	}
	query := QueryParameters(nodes.ObjectParamOr(ef, "additionalFields", 0))

	transport, err := n.resolveTransport(ctx, ef)
	if err != nil {
		return nil, err
	}

	op, opErr := entity.ParseOperation(operation)
	resolve := func(i int) (entity.Input, error) {
		in := entity.Input{Operation: operation, Resource: resource, Query: query}
		if opErr != nil {
			return in, nil
		}
		if op.RequiresID() {
			id, err := nodes.StringParam(ef, "entityId", i)
			if err != nil {
				return in, err
			}
			in.EntityID = id
		}
		if op.RequiresPayload() {
			payload, err := ef.Parameter("entityData", i)
			if err != nil {
				return in, err
			}
			in.Payload = payload
		}
		return in, nil
	}

	dispatcher := entity.NewDispatcher(transport, ef.Logger(), n.metrics)
	results, err := dispatcher.Run(ctx, len(items), resolve, ef.ContinueOnFail())
	if err != nil {
		return nil, err
	}
	return [][]nodes.Item{results}, nil
}

func (n *Node) resolveTransport(ctx context.Context, ef nodes.ExecuteFunctions) (entity.Transport, error) {
	if n.transport != nil {
		return n.transport, nil
	}
	data, err := ef.Credentials(ctx, credentials.TypeGPortalAPI)
	if err != nil {
		return nil, err
	}
	cred, err := credentials.ParseGPortalAPI(data)
	if err != nil {
		return nil, err
	}
	return gportal.NewClient(cred, n.options, ef.Logger()), nil
}

// QueryParameters reads queryParameters.parameters[] from the additional
// fields collection. Malformed entries are skipped.
func QueryParameters(additionalFields map[string]any) []entity.QueryParameter {
	raw, ok := nodes.Lookup(additionalFields, "queryParameters.parameters")
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		if maps, ok := raw.([]map[string]any); ok {
			for _, m := range maps {
				list = append(list, m)
			}
		}
	}

	params := make([]entity.QueryParameter, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		params = append(params, entity.QueryParameter{
			Name:  nodes.ToString(m["name"]),
			Value: nodes.ToString(m["value"]),
		})
	}
	return params
}
