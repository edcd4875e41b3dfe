package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/minhvtb/songvault-be/internal/worker/domain"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// Claim moves a pending download to processing and returns the row. The
// single-row conditional update is what keeps two routines off the same
// download: only one delivery can win the pending -> processing transition.
func (s *Storage) Claim(ctx context.Context, downloadID string) (*domain.Job, error) {
	query := `
		UPDATE downloads
		SET status = $1,
		    updated_at = NOW()
		WHERE download_id = $2
		  AND status = $3
		RETURNING download_id, keyword, source_url, attempt
	`

	var job domain.Job
	err := s.db.QueryRowContext(ctx, query, domain.StatusProcessing, downloadID, domain.StatusPending).Scan(
		&job.DownloadID,
		&job.Keyword,
		&job.SourceURL,
		&job.Attempt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to claim download - already claimed, finished or deleted",
				slog.String("download_id", downloadID),
			)
			return nil, domain.ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim download: %w", err)
	}

	s.logger.Info("Download claimed",
		slog.String("download_id", downloadID),
		slog.Int("attempt", job.Attempt),
	)

	return &job, nil
}

// MarkCompleted writes the terminal completed status with the result key.
// The attempt guard drops the write when the record was requeued or deleted
// while this execution was running.
func (s *Storage) MarkCompleted(ctx context.Context, downloadID, fileName string, attempt int) error {
	query := `
		UPDATE downloads
		SET status = $1,
		    file_name = $2,
		    error_message = '',
		    updated_at = NOW()
		WHERE download_id = $3
		  AND attempt = $4
	`

	res, err := s.db.ExecContext(ctx, query, domain.StatusCompleted, fileName, downloadID, attempt)
	if err != nil {
		return fmt.Errorf("failed to mark download completed: %w", err)
	}

	return s.logTerminalWrite(res, downloadID, domain.StatusCompleted)
}

// MarkFailed writes the terminal failed status with a diagnostic message,
// under the same attempt guard as MarkCompleted.
func (s *Storage) MarkFailed(ctx context.Context, downloadID, errorMsg string, attempt int) error {
	query := `
		UPDATE downloads
		SET status = $1,
		    file_name = '',
		    error_message = $2,
		    updated_at = NOW()
		WHERE download_id = $3
		  AND attempt = $4
	`

	res, err := s.db.ExecContext(ctx, query, domain.StatusFailed, errorMsg, downloadID, attempt)
	if err != nil {
		return fmt.Errorf("failed to mark download failed: %w", err)
	}

	return s.logTerminalWrite(res, downloadID, domain.StatusFailed)
}

func (s *Storage) logTerminalWrite(res sql.Result, downloadID, status string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		s.logger.Warn("Stale terminal write discarded - record requeued or deleted mid-flight",
			slog.String("download_id", downloadID),
			slog.String("status", status),
		)
		return nil
	}

	s.logger.Info("Download status updated",
		slog.String("download_id", downloadID),
		slog.String("status", status),
	)

	return nil
}
