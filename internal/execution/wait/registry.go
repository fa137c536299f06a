// Package wait tracks executions suspended until a deadline or a restart webhook
package wait

import (
	"context"
	"fmt"
	"sync"
	"time"

	"n8n-gportal/pkg/errors"
	"n8n-gportal/pkg/logger"
	"n8n-gportal/pkg/metrics"
)

// Status is the lifecycle state of a wait
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusResumed Status = "resumed"
)

// Resume triggers
const (
	TriggerWebhook = "webhook"
	TriggerTimeout = "timeout"
	TriggerManual  = "manual"
)

// Wait is one suspended execution
type Wait struct {
	ExecutionID string     `json:"executionId"`
	NodeName    string     `json:"nodeName"`
	Until       time.Time  `json:"until"`
	Status      Status     `json:"status"`
	Trigger     string     `json:"trigger,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	ResumedAt   *time.Time `json:"resumedAt,omitempty"`
}

// Store persists waits
type Store interface {
	// Save inserts or replaces the wait of w.ExecutionID.
	Save(ctx context.Context, w *Wait) error
	Get(ctx context.Context, executionID string) (*Wait, error)
	// MarkResumed moves a waiting execution to resumed. It fails with
	// CodeExecutionWaiting when the execution is not waiting.
	MarkResumed(ctx context.Context, executionID, trigger string, at time.Time) (*Wait, error)
	ListExpired(ctx context.Context, now time.Time) ([]*Wait, error)
	CountWaiting(ctx context.Context) (int64, error)
	Close() error
}

// ResumeFunc is notified after an execution resumes
type ResumeFunc func(ctx context.Context, w Wait)

// Registry records suspensions and dispatches resumptions
type Registry struct {
	store     Store
	logger    logger.Logger
	metrics   *metrics.Metrics
	listeners []ResumeFunc
	mu        sync.RWMutex
	now       func() time.Time
}

// NewRegistry creates a registry over store. m may be nil.
func NewRegistry(store Store, log logger.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		store:   store,
		logger:  log,
		metrics: m,
		now:     time.Now,
	}
}

// OnResume registers fn to run after every resumption
func (r *Registry) OnResume(fn ResumeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Suspend records that executionID waits at nodeName until the deadline
func (r *Registry) Suspend(ctx context.Context, executionID, nodeName string, until time.Time) error {
	if executionID == "" {
		return errors.NewValidationError("execution id is required to suspend")
	}

	w := &Wait{
		ExecutionID: executionID,
		NodeName:    nodeName,
		Until:       until.UTC(),
		Status:      StatusWaiting,
		CreatedAt:   r.now().UTC(),
	}
	if err := r.store.Save(ctx, w); err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "Execution suspended",
		"execution_id", executionID,
		"node", nodeName,
		"until", w.Until,
	)
	r.refreshGauge(ctx)
	return nil
}

// Get returns the wait recorded for executionID
func (r *Registry) Get(ctx context.Context, executionID string) (*Wait, error) {
	return r.store.Get(ctx, executionID)
}

// Waiting returns the wait for executionID if it can still be resumed.
// It does not change the wait.
func (r *Registry) Waiting(ctx context.Context, executionID string) (*Wait, error) {
	w, err := r.store.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if w.Status != StatusWaiting {
		return nil, notWaitingError(executionID)
	}
	return w, nil
}

// Resume marks executionID resumed and notifies listeners
func (r *Registry) Resume(ctx context.Context, executionID, trigger string) (*Wait, error) {
	w, err := r.store.MarkResumed(ctx, executionID, trigger, r.now().UTC())
	if err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "Execution resumed",
		"execution_id", executionID,
		"node", w.NodeName,
		"trigger", trigger,
	)
	r.metrics.RecordResume(trigger)
	r.refreshGauge(ctx)

	r.mu.RLock()
	listeners := append([]ResumeFunc(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, *w)
	}
	return w, nil
}

// Expired lists waiting executions whose deadline is not after now
func (r *Registry) Expired(ctx context.Context, now time.Time) ([]*Wait, error) {
	return r.store.ListExpired(ctx, now.UTC())
}

// ResumeExpired resumes every expired wait and returns how many resumed
func (r *Registry) ResumeExpired(ctx context.Context) (int, error) {
	expired, err := r.Expired(ctx, r.now())
	if err != nil {
		return 0, err
	}

	resumed := 0
	for _, w := range expired {
		if _, err := r.Resume(ctx, w.ExecutionID, TriggerTimeout); err != nil {
			if errors.IsCode(err, errors.CodeExecutionWaiting) {
				continue
			}
			return resumed, fmt.Errorf("resume %s: %w", w.ExecutionID, err)
		}
		resumed++
	}
	return resumed, nil
}

func (r *Registry) Close() error {
	return r.store.Close()
}

func (r *Registry) refreshGauge(ctx context.Context) {
	if r.metrics == nil {
		return
	}
	n, err := r.store.CountWaiting(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to count waiting executions", "error", err)
		return
	}
	r.metrics.SetWaitingExecutions(int(n))
}

func notWaitingError(executionID string) *errors.AppError {
	return errors.Newf(errors.ErrorTypeConflict, errors.CodeExecutionWaiting, "execution %s is not waiting", executionID).
		WithContext("execution_id", executionID)
}

func notFoundError(executionID string) *errors.AppError {
	return errors.NewNotFoundError(fmt.Sprintf("no wait recorded for execution %s", executionID)).
		WithContext("execution_id", executionID)
}
