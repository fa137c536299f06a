// Package app wires the shared runtime used by the command line tools
package app

import (
	"context"
	"fmt"

	"n8n-gportal/internal/config"
	"n8n-gportal/internal/credentials"
	"n8n-gportal/internal/execution/customdata"
	"n8n-gportal/internal/execution/wait"
	"n8n-gportal/internal/gportal"
	"n8n-gportal/internal/messaging"
	"n8n-gportal/internal/nodes"
	"n8n-gportal/internal/nodes/catalog"
	"n8n-gportal/pkg/logger"
	"n8n-gportal/pkg/metrics"
)

// App holds the long-lived collaborators of a process
type App struct {
	Config      *config.Config
	Logger      logger.Logger
	Metrics     *metrics.Metrics
	Credentials *credentials.Manager
	CustomData  customdata.Provider
	Waits       *wait.Registry
	Broadcaster messaging.Broadcaster
	Registry    *nodes.Registry

	closers []func() error
}

// New opens every backend selected by cfg. Close releases them.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics.New(cfg.MetricsSettings("gportal")),
	}

	store := credentials.StoreFromConfig(cfg)
	a.Credentials = credentials.NewManager(store, log)

	provider, err := customdata.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("custom data: %w", err)
	}
	a.CustomData = provider
	a.closers = append(a.closers, provider.Close)

	waitStore, err := wait.NewStore(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("wait store: %w", err)
	}
	a.Waits = wait.NewRegistry(waitStore, log, a.Metrics)
	a.closers = append(a.closers, a.Waits.Close)

	opts := gportal.OptionsFromConfig(cfg.GPortal)

	// Without a configured token the UI controller falls back to the
	// credential supplied with each execution.
	var poster messaging.Poster
	if cred, err := credentials.ParseGPortalAPI(map[string]any{
		"token":  cfg.GPortal.Token,
		"domain": cfg.GPortal.BaseURL,
	}); err == nil {
		poster = gportal.NewClient(cred, opts, log)
	}
	if poster != nil || cfg.Broadcast.Mode != "http" {
		b, err := messaging.New(cfg, poster, log, a.Metrics)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("broadcaster: %w", err)
		}
		a.Broadcaster = b
		a.closers = append(a.closers, b.Close)
	}

	registry, err := catalog.NewRegistry(log, catalog.Dependencies{
		GPortal:     opts,
		Broadcaster: a.Broadcaster,
		Metrics:     a.Metrics,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Registry = registry

	return a, nil
}

// Close releases backends in reverse order of opening
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
