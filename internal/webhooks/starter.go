package webhooks

import (
	"context"

	"n8n-gportal/internal/messaging"
	"n8n-gportal/pkg/logger"
)

// LogStarter records webhook runs without executing anything further
type LogStarter struct {
	Logger logger.Logger
}

func (s LogStarter) StartWorkflow(ctx context.Context, run Run) error {
	items := 0
	for _, out := range run.Data {
		items += len(out)
	}
	s.Logger.InfoContext(ctx, "Workflow data received",
		"execution_id", run.ExecutionID,
		"node", run.NodeName,
		"resumed", run.Resumed,
		"items", items,
	)
	return nil
}

// BroadcastStarter forwards webhook runs to the execution's UI room
type BroadcastStarter struct {
	Broadcaster messaging.Broadcaster
	EventName   string
}

func (s BroadcastStarter) StartWorkflow(ctx context.Context, run Run) error {
	event := s.EventName
	if event == "" {
		event = "workflow-data"
	}
	return s.Broadcaster.Broadcast(ctx, messaging.Broadcast{
		Room:      run.ExecutionID,
		EventName: event,
		Data: map[string]any{
			"nodeName": run.NodeName,
			"resumed":  run.Resumed,
			"data":     run.Data,
		},
	})
}
