package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"n8n-gportal/internal/host"
	"n8n-gportal/internal/nodes"
	"n8n-gportal/internal/nodes/entityapi"
	"n8n-gportal/internal/nodes/options"

	cli "github.com/urfave/cli/v3"
)

func NewEntityCommand() *cli.Command {
	return &cli.Command{
		Name:  "entity",
		Usage: "Call the generic entity API through the GPortal Entity API node",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "operation",
				Aliases: []string{"op"},
				Usage:   "create, get, getAll, update or delete",
				Value:   "get",
			},
			&cli.StringFlag{
				Name:  "resource",
				Usage: "Resource to address",
				Value: "entity",
			},
			&cli.StringSliceFlag{
				Name:  "id",
				Usage: "Entity ID; repeat to send one request per ID",
			},
			&cli.StringFlag{
				Name:  "data",
				Usage: "Entity data as JSON for create and update",
				Value: "{}",
			},
			&cli.StringSliceFlag{
				Name:  "query",
				Usage: "Query parameter as name=value; repeatable, later values win",
			},
			&cli.BoolFlag{
				Name:  "continue-on-fail",
				Usage: "Report failed items instead of stopping",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			a, err := setup(ctx, command)
			if err != nil {
				return err
			}
			defer a.Close()

			query, err := queryParameters(command.StringSlice("query"))
			if err != nil {
				return err
			}

			ids := command.StringSlice("id")
			count := len(ids)
			if count == 0 {
				count = 1
			}
			items := make([]nodes.Item, count)
			itemParams := make([]map[string]any, count)
			for i := range items {
				items[i] = nodes.NewItem(map[string]any{})
				itemParams[i] = map[string]any{}
				if i < len(ids) {
					itemParams[i]["entityId"] = ids[i]
				}
			}

			node, err := a.Registry.CreateExecutor(entityapi.NodeType)
			if err != nil {
				return err
			}
			e := host.NewExecution(host.Options{
				Definition: node.Definition(),
				Parameters: map[string]any{
					"resource":   command.String("resource"),
					"operation":  command.String("operation"),
					"entityData": command.String("data"),
					"additionalFields": map[string]any{
						"queryParameters": map[string]any{"parameters": query},
					},
				},
				ItemParameters: itemParams,
				Items:          items,
				ContinueOnFail: command.Bool("continue-on-fail"),
				Credentials:    a.Credentials,
				Logger:         a.Logger,
			})

			out, err := host.Run(ctx, node, e, a.Metrics)
			if err != nil {
				return err
			}
			return printJSON(os.Stdout, out[0])
		},
	}
}

func NewFieldsCommand() *cli.Command {
	return &cli.Command{
		Name:  "fields",
		Usage: "List the root field definitions offered to the node editor",
		Action: func(ctx context.Context, command *cli.Command) error {
			a, err := setup(ctx, command)
			if err != nil {
				return err
			}
			defer a.Close()

			opts, err := a.Registry.LoadOptions(ctx, options.LoadRootFieldsName, host.NewOptionsContext(a.Credentials, a.Logger))
			if err != nil {
				return err
			}
			return printJSON(os.Stdout, opts)
		},
	}
}

func queryParameters(pairs []string) ([]any, error) {
	params := make([]any, 0, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("query parameter %q must be name=value", pair)
		}
		params = append(params, map[string]any{"name": name, "value": value})
	}
	return params, nil
}
