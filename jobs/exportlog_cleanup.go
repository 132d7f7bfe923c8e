package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/aurora-cpe/aurora-cpe/internal/exportlog"
	jobmetrics "github.com/aurora-cpe/aurora-cpe/internal/jobs"
)

// ExportLogCleanupJob prunes export log entries past the retention window.
// It runs nightly from the scheduler.
type ExportLogCleanupJob struct {
	Trail   *exportlog.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewExportLogCleanupJob wires dependencies for the cleanup handler.
func NewExportLogCleanupJob(trail *exportlog.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExportLogCleanupJob {
	return &ExportLogCleanupJob{Trail: trail, Logger: logger, Metrics: metrics}
}

// Handle processes retention cleanup tasks.
func (j *ExportLogCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Trail == nil {
		return errors.New("exportlog cleanup: handler not configured")
	}
	var payload ExportLogCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskTypeExportLogCleanup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	deleted, err := j.Trail.Cleanup(ctx)
	if err != nil {
		resultErr = err
		return resultErr
	}
	j.logger().Info("export log cleanup finished",
		slog.Int64("deleted", deleted),
		slog.Time("scheduled_for", payload.ScheduledFor))
	return nil
}

func (j *ExportLogCleanupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *ExportLogCleanupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
