package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/aurora-cpe/aurora-cpe/internal/exportlog"
	jobmetrics "github.com/aurora-cpe/aurora-cpe/internal/jobs"
	"github.com/aurora-cpe/aurora-cpe/internal/observability"
	"github.com/aurora-cpe/aurora-cpe/internal/platform/cache"
	"github.com/aurora-cpe/aurora-cpe/internal/shared"
	"github.com/aurora-cpe/aurora-cpe/internal/slips/render"
)

// BatchRenderJob renders slip batches in the background. The requesting
// handler opens the export log entry; this job drives it to a terminal
// state and issues the download ticket for the finished archive.
type BatchRenderJob struct {
	Batch      *render.BatchRenderer
	Trail      *exportlog.Service
	Tickets    *cache.TicketStore
	ArchiveDir string
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	Documents  *observability.Metrics
}

// NewBatchRenderJob wires dependencies for the batch render handler.
func NewBatchRenderJob(batch *render.BatchRenderer, trail *exportlog.Service, tickets *cache.TicketStore, archiveDir string, logger *slog.Logger, metrics *jobmetrics.Metrics, documents *observability.Metrics) *BatchRenderJob {
	return &BatchRenderJob{
		Batch:      batch,
		Trail:      trail,
		Tickets:    tickets,
		ArchiveDir: archiveDir,
		Logger:     logger,
		Metrics:    metrics,
		Documents:  documents,
	}
}

// Handle processes batch render tasks.
func (j *BatchRenderJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Batch == nil || j.Trail == nil {
		return errors.New("batch render: handler not configured")
	}
	var payload BatchRenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	ctx = shared.ContextWithActor(ctx, payload.RequestedBy)

	tracker := j.metrics().Track(TaskTypeBatchRender)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.Int64("export_log_id", payload.ExportLogID),
		slog.Int("slip_count", len(payload.SlipIDs)))

	if err := j.Trail.Start(ctx, payload.ExportLogID); err != nil {
		resultErr = err
		return resultErr
	}

	result, err := j.Batch.Render(ctx, payload.SlipIDs)
	if err != nil {
		j.fail(ctx, payload.ExportLogID, err)
		// Budget and validation failures will not heal on retry.
		if errors.Is(err, shared.ErrResourceExhausted) || errors.Is(err, render.ErrBatchTooLarge) || errors.Is(err, render.ErrNoValidIDs) {
			resultErr = err
			return asynq.SkipRetry
		}
		resultErr = err
		return resultErr
	}

	j.Documents.BatchDocuments(result.Succeeded, len(result.Failures))

	path, err := render.PublishArchive(j.ArchiveDir, result.ArchiveName, result.Archive)
	if err != nil {
		j.fail(ctx, payload.ExportLogID, err)
		resultErr = err
		return resultErr
	}

	completion := exportlog.Completion{
		FilePath:    path,
		FileSize:    int64(len(result.Archive)),
		Checksum:    exportlog.Checksum(result.Archive),
		RecordCount: result.Succeeded,
	}
	if err := j.Trail.Complete(ctx, payload.ExportLogID, completion); err != nil {
		resultErr = err
		return resultErr
	}

	if j.Tickets != nil {
		token, err := j.Tickets.Issue(ctx, path)
		if err != nil {
			logger.Warn("download ticket lost", slog.Any("error", err))
		} else {
			logger.Info("batch archive ready",
				slog.String("archive", result.ArchiveName),
				slog.String("ticket", token),
				slog.Int("succeeded", result.Succeeded),
				slog.Int("failed", len(result.Failures)))
		}
	}
	return nil
}

func (j *BatchRenderJob) fail(ctx context.Context, logID int64, cause error) {
	if err := j.Trail.Fail(ctx, logID, cause.Error()); err != nil {
		j.logger().Error("export log fail update lost",
			slog.Int64("export_log_id", logID),
			slog.Any("error", err))
	}
}

func (j *BatchRenderJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *BatchRenderJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

var defaultJobMetrics = jobmetrics.NewMetrics(nil)
