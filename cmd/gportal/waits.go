package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"n8n-gportal/internal/execution/wait"

	cli "github.com/urfave/cli/v3"
)

func NewWaitsCommand() *cli.Command {
	return &cli.Command{
		Name:  "waits",
		Usage: "Manage suspended executions",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Print the wait recorded for an execution",
				ArgsUsage: "<execution id>",
				Action: func(ctx context.Context, command *cli.Command) error {
					id := command.Args().First()
					if id == "" {
						return fmt.Errorf("an execution id is required")
					}
					a, err := setup(ctx, command)
					if err != nil {
						return err
					}
					defer a.Close()

					w, err := a.Waits.Get(ctx, id)
					if err != nil {
						return err
					}
					return printJSON(os.Stdout, w)
				},
			},
			{
				Name:      "resume",
				Usage:     "Resume a waiting execution",
				ArgsUsage: "<execution id>",
				Action: func(ctx context.Context, command *cli.Command) error {
					id := command.Args().First()
					if id == "" {
						return fmt.Errorf("an execution id is required")
					}
					a, err := setup(ctx, command)
					if err != nil {
						return err
					}
					defer a.Close()

					w, err := a.Waits.Resume(ctx, id, wait.TriggerManual)
					if err != nil {
						return err
					}
					return printJSON(os.Stdout, w)
				},
			},
			{
				Name:  "expired",
				Usage: "List waits whose deadline has passed",
				Action: func(ctx context.Context, command *cli.Command) error {
					a, err := setup(ctx, command)
					if err != nil {
						return err
					}
					defer a.Close()

					waits, err := a.Waits.Expired(ctx, time.Now())
					if err != nil {
						return err
					}
					return printJSON(os.Stdout, waits)
				},
			},
			{
				Name:  "sweep",
				Usage: "Resume every expired wait once",
				Action: func(ctx context.Context, command *cli.Command) error {
					a, err := setup(ctx, command)
					if err != nil {
						return err
					}
					defer a.Close()

					n, err := a.Waits.ResumeExpired(ctx)
					if err != nil {
						return err
					}
					return printJSON(os.Stdout, map[string]int{"resumed": n})
				},
			},
		},
	}
}
