package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"n8n-gportal/internal/app"
	"n8n-gportal/internal/config"
	"n8n-gportal/internal/execution/wait"
	"n8n-gportal/internal/webhooks"
	"n8n-gportal/pkg/logger"
	"n8n-gportal/pkg/tracing"
)

var version = "dev"

func main() {
	log := logger.New("webhook")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}
	log = logger.NewWithConfig("webhook", cfg.LoggerConfig())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tracing.Initialize(ctx, cfg.TracingSettings("gportal-webhook", version)); err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize runtime", "error", err)
	}

	a.Waits.OnResume(func(ctx context.Context, w wait.Wait) {
		log.InfoContext(ctx, "Execution resumed", "execution_id", w.ExecutionID, "node", w.NodeName, "trigger", w.Trigger)
	})

	sweeper, err := wait.NewSweeper(a.Waits, cfg.Wait.SweepSchedule, log)
	if err != nil {
		log.Fatal("Failed to schedule wait sweeper", "error", err)
	}
	sweeper.Start()

	var starter webhooks.WorkflowStarter = webhooks.LogStarter{Logger: log}
	if cfg.Broadcast.Mode == "kafka" {
		starter = webhooks.BroadcastStarter{Broadcaster: a.Broadcaster}
	}

	server, err := webhooks.NewServer(webhooks.Options{
		Config:   cfg.Webhook,
		Registry: a.Registry,
		Waits:    a.Waits,
		Starter:  starter,
		Logger:   log,
		Metrics:  a.Metrics,
	})
	if err != nil {
		log.Fatal("Failed to build webhook server", "error", err)
	}

	if err := server.ListenAndServe(ctx); err != nil {
		log.Error("Webhook server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sweeper.Stop(shutdownCtx)
	if err := a.Close(); err != nil {
		log.Error("Error closing backends", "error", err)
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracing", "error", err)
	}

	log.Info("Webhook server stopped")
}
