package application

import (
	"context"
	"fmt"
	"time"

	"oracleboxing-funnel-layer/internal/domain"
	"oracleboxing-funnel-layer/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WorkflowLogger records server-side automation runs for operational
// visibility: one started entry, any number of steps, one terminal entry
// with the run duration. Failures and completions optionally notify Slack.
type WorkflowLogger struct {
	repo     ports.WorkflowLogRepository
	notifier ports.Notifier
	logger   zerolog.Logger
}

// NewWorkflowLogger creates the workflow run logger.
func NewWorkflowLogger(repo ports.WorkflowLogRepository, notifier ports.Notifier, logger zerolog.Logger) *WorkflowLogger {
	return &WorkflowLogger{repo: repo, notifier: notifier, logger: logger}
}

// WorkflowRun tracks one automation run.
type WorkflowRun struct {
	runID     string
	name      string
	typ       string
	startedAt time.Time
	parent    *WorkflowLogger
}

// Start opens a run and writes its started entry.
func (w *WorkflowLogger) Start(ctx context.Context, name, workflowType string) *WorkflowRun {
	run := &WorkflowRun{
		runID:     uuid.New().String(),
		name:      name,
		typ:       workflowType,
		startedAt: time.Now(),
		parent:    w,
	}
	run.write(ctx, domain.WorkflowStarted, "run started")
	return run
}

// Step records an intermediate step.
func (r *WorkflowRun) Step(ctx context.Context, message string) {
	r.write(ctx, domain.WorkflowStep, message)
}

// Completed closes the run successfully and notifies.
func (r *WorkflowRun) Completed(ctx context.Context, message string) {
	r.write(ctx, domain.WorkflowCompleted, message)
	r.notify(ctx, fmt.Sprintf("✅ %s completed: %s", r.name, message))
}

// Failed closes the run with the error and notifies.
func (r *WorkflowRun) Failed(ctx context.Context, message string, err error) {
	r.write(ctx, domain.WorkflowFailed, fmt.Sprintf("%s: %v", message, err))
	r.notify(ctx, fmt.Sprintf("🚨 %s failed: %s: %v", r.name, message, err))
}

// Skipped closes the run without doing work.
func (r *WorkflowRun) Skipped(ctx context.Context, message string) {
	r.write(ctx, domain.WorkflowSkipped, message)
}

func (r *WorkflowRun) write(ctx context.Context, status domain.WorkflowStatus, message string) {
	entry := &domain.WorkflowLogEntry{
		RunID:        r.runID,
		WorkflowName: r.name,
		WorkflowType: r.typ,
		Status:       status,
		Message:      message,
		DurationMS:   time.Since(r.startedAt).Milliseconds(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.parent.repo.LogEntry(ctx, entry); err != nil {
		r.parent.logger.Warn().
			Err(err).
			Str("runId", r.runID).
			Str("workflow", r.name).
			Msg("Failed to write workflow log entry")
	}
}

func (r *WorkflowRun) notify(ctx context.Context, message string) {
	if r.parent.notifier == nil {
		return
	}
	if err := r.parent.notifier.Notify(ctx, message); err != nil {
		r.parent.logger.Debug().Err(err).Msg("Workflow notification failed")
	}
}
