package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeBatchRender renders a batch of tax slips into a ZIP archive.
	TaskTypeBatchRender = "slips:batch_render"
	// TaskTypeExportLogCleanup prunes export log entries past retention.
	TaskTypeExportLogCleanup = "exportlog:cleanup"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: integrate with SMTP/Mailpit in phase 2.
	fmt.Printf("[jobs] send email to %s subject=%s\n", payload.To, payload.Subject)
	return nil
}

// BatchRenderPayload identifies the slips to render and the export log entry
// tracking the attempt.
type BatchRenderPayload struct {
	ExportLogID int64    `json:"export_log_id"`
	SlipIDs     []string `json:"slip_ids"`
	RequestedBy int64    `json:"requested_by"`
}

// NewBatchRenderTask constructs an Asynq task for batch rendering.
func NewBatchRenderTask(payload BatchRenderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeBatchRender, data, asynq.Queue(QueueDefault), asynq.Timeout(30*time.Minute)), nil
}

// ExportLogCleanupPayload carries scheduling metadata for the nightly prune.
type ExportLogCleanupPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewExportLogCleanupTask constructs an Asynq task for retention cleanup.
func NewExportLogCleanupTask(at time.Time) (*asynq.Task, error) {
	payload := ExportLogCleanupPayload{ScheduledFor: at}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeExportLogCleanup, data, asynq.Queue(QueueDefault)), nil
}
