// Package jumper implements the GPortal Jumper output router
package jumper

import (
	"context"
	"fmt"
	"strings"

	"n8n-gportal/internal/nodes"
	"n8n-gportal/pkg/errors"
	"n8n-gportal/pkg/metrics"
)

const (
	NodeType = "gPortalJumper"

	// OutputCount is fixed; the node always emits two channels.
	OutputCount = 2
)

// Node routes every input item to a single output chosen once per batch
type Node struct {
	metrics *metrics.Metrics
}

// New creates the node. m may be nil.
func New(m *metrics.Metrics) *Node {
	return &Node{metrics: m}
}

func (n *Node) Definition() *nodes.NodeDefinition {
	return &nodes.NodeDefinition{
		Name:        NodeType,
		DisplayName: "GPortal Jumper",
		Description: "Jump to different outputs based on input node name",
		Version:     1,
		Icon:        "file:gportal.svg",
		Subtitle:    "Direct Jump by Input Node",
		Group:       []nodes.NodeGroup{nodes.GroupTransform},
		Inputs:      []string{"main"},
		Outputs:     []string{"main", "main"},
		OutputNames: []string{"Output 0", "Output 1"},
		Parameters: []nodes.Parameter{
			{
				Name:        "sourceNodeName",
				DisplayName: "Source Node Name",
				Type:        nodes.ParameterTypeString,
				Default:     "",
				Description: "Name of the source node (leave empty to use default output)",
			},
			{
				Name:        "targetOutput",
				DisplayName: "Target Output",
				Type:        nodes.ParameterTypeNumber,
				Default:     0,
				Description: "Output index to route data to (0-based)",
			},
			{
				Name:        "defaultOutput",
				DisplayName: "Default Output",
				Type:        nodes.ParameterTypeNumber,
				Default:     0,
				Description: "Default output index if no mapping matches",
			},
			{
				Name:        "options",
				DisplayName: "Options",
				Type:        nodes.ParameterTypeCollection,
				Placeholder: "Add Option",
				Default:     map[string]any{},
				Children: []nodes.Parameter{
					{
						Name:        "logJumps",
						DisplayName: "Log Jumps",
						Type:        nodes.ParameterTypeBoolean,
						Default:     true,
						Description: "Whether to log jump decisions",
					},
				},
			},
		},
	}
}

// Decision is the routing outcome for one batch
type Decision struct {
	SourceNodeName string
	Output         int
	DefaultOutput  int
}

// Decide picks the output: targetOutput when a source node is named,
// defaultOutput otherwise. Indices outside [0, count) become 0.
func Decide(sourceNodeName string, targetOutput, defaultOutput, count int) Decision {
	output := defaultOutput
	if strings.TrimSpace(sourceNodeName) != "" {
		output = targetOutput
	}
	return Decision{
		SourceNodeName: sourceNodeName,
		Output:         clamp(output, count),
		DefaultOutput:  clamp(defaultOutput, count),
	}
}

func clamp(output, count int) int {
	if output < 0 || output >= count {
		return 0
	}
	return output
}

func (n *Node) Execute(ctx context.Context, ef nodes.ExecuteFunctions) ([][]nodes.Item, error) {
	items := ef.InputData()
	log := ef.Logger()

	sourceNodeName, err := nodes.StringParam(ef, "sourceNodeName", 0)
	if err != nil {
		return nil, err
	}
	targetOutput, err := nodes.IntParam(ef, "targetOutput", 0)
	if err != nil {
		return nil, err
	}
	defaultOutput, err := nodes.IntParam(ef, "defaultOutput", 0)
	if err != nil {
		return nil, err
	}
	logJumps := nodes.BoolParamOr(ef, "options.logJumps", 0, true)

	decision := Decide(sourceNodeName, targetOutput, defaultOutput, OutputCount)

	outputs := make([][]nodes.Item, OutputCount)
	for i := range outputs {
		outputs[i] = []nodes.Item{}
	}

	for i, item := range items {
		if item.JSON == nil {
			err := errors.Newf(errors.ErrorTypeNode, errors.CodeInvalidInput, "item %d has no JSON payload", i).
				WithContext("item_index", i)
			if !ef.ContinueOnFail() {
				return nil, err
			}
			log.ErrorContext(ctx, fmt.Sprintf("Error processing item %d: %s", i, err.Message))
			outputs[decision.DefaultOutput] = append(outputs[decision.DefaultOutput], item)
			n.metrics.RecordRoute(decision.DefaultOutput)
			continue
		}

		if logJumps {
			log.InfoContext(ctx, fmt.Sprintf("Item %d: Routing to Output %d (Source: %q)", i, decision.Output, sourceNodeName))
		}
		outputs[decision.Output] = append(outputs[decision.Output], item)
		n.metrics.RecordRoute(decision.Output)
	}

	return outputs, nil
}
