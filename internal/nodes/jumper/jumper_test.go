package jumper

import (
	"bytes"
	"context"
	"testing"

	"n8n-gportal/internal/host"
	"n8n-gportal/internal/nodes"
	"n8n-gportal/pkg/errors"
	"n8n-gportal/pkg/logger"
	"n8n-gportal/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		target   int
		fallback int
		want     int
	}{
		{"source named uses target", "Form", 1, 0, 1},
		{"empty source uses default", "", 1, 0, 0},
		{"blank source uses default", "   ", 0, 1, 1},
		{"target out of range", "Form", 5, 1, 0},
		{"negative target", "Form", -1, 1, 0},
		{"default out of range", "", 0, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.source, tt.target, tt.fallback, OutputCount)
			assert.Equal(t, tt.want, d.Output)
		})
	}
}

func execute(t *testing.T, opts host.Options) ([][]nodes.Item, error) {
	t.Helper()
	node := New(nil)
	opts.Definition = node.Definition()
	return node.Execute(context.Background(), host.NewExecution(opts))
}

func threeItems() []nodes.Item {
	return []nodes.Item{
		nodes.NewItem(map[string]any{"n": 1}),
		nodes.NewItem(map[string]any{"n": 2}),
		nodes.NewItem(map[string]any{"n": 3}),
	}
}

func TestExecuteRoutesToTarget(t *testing.T) {
	in := threeItems()
	out, err := execute(t, host.Options{
		Items:      in,
		Parameters: map[string]any{"sourceNodeName": "Approval", "targetOutput": float64(1)},
	})
	require.NoError(t, err)
	require.Len(t, out, OutputCount)
	assert.Empty(t, out[0])
	assert.Equal(t, in, out[1])
}

func TestExecuteDefaults(t *testing.T) {
	in := threeItems()
	out, err := execute(t, host.Options{Items: in})
	require.NoError(t, err)
	require.Len(t, out, OutputCount)
	assert.Equal(t, in, out[0])
	assert.NotNil(t, out[1])
	assert.Empty(t, out[1])
}

func TestExecuteEmptyInput(t *testing.T) {
	out, err := execute(t, host.Options{})
	require.NoError(t, err)
	assert.Equal(t, [][]nodes.Item{{}, {}}, out)
}

func TestExecuteStringNumbers(t *testing.T) {
	out, err := execute(t, host.Options{
		Items:      threeItems(),
		Parameters: map[string]any{"sourceNodeName": "x", "targetOutput": "1"},
	})
	require.NoError(t, err)
	assert.Len(t, out[1], 3)

	_, err = execute(t, host.Options{
		Items:      threeItems(),
		Parameters: map[string]any{"targetOutput": "one"},
	})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidFormat))
}

func TestExecuteLogsJumps(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter("test", &logger.Config{Level: "info", Format: "json"}, &buf)
	node := New(nil)

	_, err := node.Execute(context.Background(), host.NewExecution(host.Options{
		Definition: node.Definition(),
		Items:      threeItems()[:1],
		Parameters: map[string]any{"sourceNodeName": "Form", "targetOutput": 1},
		Logger:     log,
	}))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `Item 0: Routing to Output 1 (Source: \"Form\")`)

	buf.Reset()
	_, err = node.Execute(context.Background(), host.NewExecution(host.Options{
		Definition: node.Definition(),
		Items:      threeItems(),
		Parameters: map[string]any{"options": map[string]any{"logJumps": false}},
		Logger:     log,
	}))
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "Routing to Output")
}

func TestExecuteItemWithoutJSON(t *testing.T) {
	in := []nodes.Item{nodes.NewItem(map[string]any{"n": 1}), {}}

	_, err := execute(t, host.Options{
		Items:      in,
		Parameters: map[string]any{"sourceNodeName": "Form", "targetOutput": 1},
	})
	require.Error(t, err)
	assert.Equal(t, 1, errors.GetAppError(err).Context["item_index"])

	out, err := execute(t, host.Options{
		Items:          in,
		Parameters:     map[string]any{"sourceNodeName": "Form", "targetOutput": 1, "defaultOutput": 0},
		ContinueOnFail: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []nodes.Item{in[1]}, out[0])
	assert.Equal(t, []nodes.Item{in[0]}, out[1])
}

func TestExecuteRecordsRoutes(t *testing.T) {
	m := metrics.New(nil)
	node := New(m)

	_, err := node.Execute(context.Background(), host.NewExecution(host.Options{
		Definition: node.Definition(),
		Items:      threeItems(),
		Parameters: map[string]any{"sourceNodeName": "Form", "targetOutput": 1},
	}))
	require.NoError(t, err)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RoutedItemsTotal.WithLabelValues("1")))
}

func TestDefinitionRegisters(t *testing.T) {
	reg := nodes.NewRegistry(logger.Nop())
	require.NoError(t, reg.Register(func() nodes.Node { return New(nil) }))

	def, err := reg.GetDefinition(NodeType)
	require.NoError(t, err)
	assert.Equal(t, OutputCount, def.OutputCount())
}
