package main

import (
	"context"
	"fmt"
	"os"

	"n8n-gportal/internal/credentials"

	cli "github.com/urfave/cli/v3"
)

func NewCredentialCommand() *cli.Command {
	return &cli.Command{
		Name:  "credential",
		Usage: "Inspect and test the configured credentials",
		Commands: []*cli.Command{
			{
				Name:  "types",
				Usage: "Print the credential type definitions",
				Action: func(ctx context.Context, command *cli.Command) error {
					a, err := setup(ctx, command)
					if err != nil {
						return err
					}
					defer a.Close()
					return printJSON(os.Stdout, a.Credentials.Definitions())
				},
			},
			{
				Name:  "test",
				Usage: "Send the credential's test request",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Usage: "gPortalApi or socketIOApi",
						Value: credentials.TypeGPortalAPI,
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					a, err := setup(ctx, command)
					if err != nil {
						return err
					}
					defer a.Close()

					cred, err := a.Credentials.Resolve(ctx, command.String("type"))
					if err != nil {
						return err
					}
					result := a.Credentials.Test(ctx, cred)
					if err := printJSON(os.Stdout, result); err != nil {
						return err
					}
					if result.Status != credentials.TestStatusOK {
						return fmt.Errorf("credential test failed")
					}
					return nil
				},
			},
		},
	}
}
