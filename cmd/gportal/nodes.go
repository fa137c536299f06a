package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"n8n-gportal/internal/host"
	"n8n-gportal/internal/nodes"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func NewNodesCommand() *cli.Command {
	return &cli.Command{
		Name:  "nodes",
		Usage: "Inspect and run registered nodes",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "Print node definitions as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "group", Usage: "Only nodes in this group (trigger, transform)"},
					&cli.StringFlag{Name: "search", Usage: "Case-insensitive name or description filter"},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					a, err := setup(ctx, command)
					if err != nil {
						return err
					}
					defer a.Close()

					defs := a.Registry.GetDefinitions(&nodes.RegistryFilter{
						Group:  nodes.NodeGroup(command.String("group")),
						Search: command.String("search"),
					})
					return printJSON(os.Stdout, defs)
				},
			},
			{
				Name:      "run",
				Usage:     "Execute a node once with the given parameters and items",
				ArgsUsage: "<node type>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "params", Usage: "Node parameters as a JSON object", Value: "{}"},
					&cli.StringFlag{Name: "items", Usage: "Input items as a JSON array of objects", Value: "[{}]"},
					&cli.StringFlag{Name: "name", Usage: "Node name used in logs and broadcasts"},
					&cli.StringFlag{Name: "execution-id", Usage: "Execution ID (generated when empty)"},
					&cli.BoolFlag{Name: "continue-on-fail", Usage: "Report failed items instead of stopping"},
				},
				Action: runNode,
			},
		},
	}
}

func runNode(ctx context.Context, command *cli.Command) error {
	nodeType := command.Args().First()
	if nodeType == "" {
		return fmt.Errorf("a node type is required")
	}

	var params map[string]any
	if err := json.Unmarshal([]byte(command.String("params")), &params); err != nil {
		return fmt.Errorf("invalid --params: %w", err)
	}
	var raw []map[string]any
	if err := json.Unmarshal([]byte(command.String("items")), &raw); err != nil {
		return fmt.Errorf("invalid --items: %w", err)
	}
	items := make([]nodes.Item, len(raw))
	for i, m := range raw {
		items[i] = nodes.NewItem(m)
	}

	a, err := setup(ctx, command)
	if err != nil {
		return err
	}
	defer a.Close()

	node, err := a.Registry.CreateExecutor(nodeType)
	if err != nil {
		return err
	}

	executionID := command.String("execution-id")
	if executionID == "" {
		executionID = uuid.NewString()
	}
	e := host.NewExecution(host.Options{
		Definition:     node.Definition(),
		NodeName:       command.String("name"),
		ExecutionID:    executionID,
		Parameters:     params,
		Items:          items,
		ContinueOnFail: command.Bool("continue-on-fail"),
		Credentials:    a.Credentials,
		CustomData:     a.CustomData.For(executionID),
		Waits:          a.Waits,
		Logger:         a.Logger,
	})

	out, err := host.Run(ctx, node, e, a.Metrics)
	if err != nil {
		return err
	}

	result := map[string]any{"executionId": executionID, "outputs": out}
	if until, waiting := e.WaitingUntil(); waiting {
		result["waitingUntil"] = until
	}
	return printJSON(os.Stdout, result)
}
