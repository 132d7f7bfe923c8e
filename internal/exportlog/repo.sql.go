package exportlog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const logColumns = `id, export_type, export_format, period_start, period_end, record_count, total_amount, file_name, file_path, file_size, checksum, status, error_message, actor_id, created_at, updated_at`

// Repository persists export log entries in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanLog(row pgx.Row) (*ExportLog, error) {
	var entry ExportLog
	err := row.Scan(
		&entry.ID,
		&entry.ExportType,
		&entry.ExportFormat,
		&entry.PeriodStart,
		&entry.PeriodEnd,
		&entry.RecordCount,
		&entry.TotalAmount,
		&entry.FileName,
		&entry.FilePath,
		&entry.FileSize,
		&entry.Checksum,
		&entry.Status,
		&entry.ErrorMessage,
		&entry.ActorID,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *Repository) GetLog(ctx context.Context, id int64) (*ExportLog, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+logColumns+` FROM export_logs WHERE id = $1`, id)
	entry, err := scanLog(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *Repository) ListLogs(ctx context.Context, filter ListFilter) ([]ExportLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+logColumns+`
		FROM export_logs
		WHERE ($1 = '' OR export_type = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`,
		filter.ExportType, string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExportLog
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

func (r *Repository) InsertLog(ctx context.Context, entry ExportLog) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO export_logs (export_type, export_format, period_start, period_end, record_count, total_amount, file_name, file_path, file_size, checksum, status, error_message, actor_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		RETURNING id`,
		entry.ExportType,
		entry.ExportFormat,
		entry.PeriodStart,
		entry.PeriodEnd,
		entry.RecordCount,
		entry.TotalAmount,
		entry.FileName,
		entry.FilePath,
		entry.FileSize,
		entry.Checksum,
		string(entry.Status),
		entry.ErrorMessage,
		entry.ActorID,
		entry.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE export_logs SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLogNotFound
	}
	return nil
}

func (r *Repository) UpdateCompleted(ctx context.Context, id int64, c Completion, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE export_logs
		SET status = $2, file_path = $3, file_size = $4, checksum = $5, record_count = $6, total_amount = $7, updated_at = $8
		WHERE id = $1`,
		id, string(StatusCompleted), c.FilePath, c.FileSize, c.Checksum, c.RecordCount, c.TotalAmount, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLogNotFound
	}
	return nil
}

func (r *Repository) UpdateFailed(ctx context.Context, id int64, message string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE export_logs SET status = $2, error_message = $3, updated_at = $4 WHERE id = $1`,
		id, string(StatusFailed), message, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLogNotFound
	}
	return nil
}

func (r *Repository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM export_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
