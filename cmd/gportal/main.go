package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"n8n-gportal/internal/app"
	"n8n-gportal/internal/config"
	"n8n-gportal/pkg/logger"

	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "gportal",
		Usage:                 "Run and inspect GPortal workflow nodes",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (json, text)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Commands: []*cli.Command{
			NewEntityCommand(),
			NewFieldsCommand(),
			NewNodesCommand(),
			NewCredentialCommand(),
			NewWaitsCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads the configuration and opens the runtime for a command
func setup(ctx context.Context, command *cli.Command) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = command.String("log-level")
	cfg.LogFormat = command.String("log-format")

	lc := cfg.LoggerConfig()
	lc.Output = "stderr"
	log := logger.NewWithConfig("gportal-cli", lc)

	return app.New(ctx, cfg, log)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
