package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/minhvtb/songvault-be/internal/api/domain"
	"github.com/minhvtb/songvault-be/internal/api/model"
	"github.com/minhvtb/songvault-be/shared/postgresql"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

// CreateIfAbsent inserts the download record unless one with the same
// download_id already exists. Returns true when the record was created by
// this call. This is the single atomic primitive the submission gate relies
// on: two racing submissions for the same id resolve to exactly one insert.
func (s *Storage) CreateIfAbsent(ctx context.Context, dl *model.Download) (bool, error) {
	query := `
		INSERT INTO downloads (
			download_id, source_url, keyword, status,
			file_name, attempt, error_message, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			'', 0, '', $5, $5
		)
		ON CONFLICT (download_id) DO NOTHING
	`

	res, err := s.db.ExecContext(
		ctx,
		query,
		dl.DownloadID,
		dl.SourceURL,
		dl.Keyword,
		dl.Status,
		dl.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create download: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

func (s *Storage) GetByID(ctx context.Context, downloadID string) (*model.Download, error) {
	var dl model.Download
	query := `
		SELECT
			download_id, source_url, keyword, status,
			file_name, attempt, error_message, created_at, updated_at
		FROM downloads
		WHERE download_id = $1
	`

	err := s.db.GetContext(ctx, &dl, query, downloadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDownloadNotFound
		}
		return nil, fmt.Errorf("failed to get download: %w", err)
	}

	return &dl, nil
}

type DownloadFilter struct {
	Status   string
	PageSize int
	Cursor   *DownloadCursor
}

type DownloadCursor struct {
	CreatedAt  time.Time
	DownloadID string
}

func (s *Storage) ListDownloads(ctx context.Context, filter DownloadFilter) ([]model.Download, error) {
	query := `
        SELECT
            download_id, source_url, keyword, status,
            file_name, attempt, error_message, created_at, updated_at
        FROM downloads
        WHERE 1=1
    `
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, download_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.DownloadID)
		argIdx += 2
	}

	// Order by created_at DESC, download_id DESC for consistent pagination
	query += " ORDER BY created_at DESC, download_id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var downloads []model.Download
	err := s.db.SelectContext(ctx, &downloads, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}

	return downloads, nil
}

// CountByStatus returns the number of download records per status.
func (s *Storage) CountByStatus(ctx context.Context) (map[string]int64, error) {
	query := `
		SELECT status, COUNT(*) AS total
		FROM downloads
		GROUP BY status
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count downloads: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var total int64
		if err := rows.Scan(&status, &total); err != nil {
			return nil, fmt.Errorf("failed to scan download counts: %w", err)
		}
		counts[status] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read download counts: %w", err)
	}

	return counts, nil
}

// Requeue moves a failed download back to pending and bumps the attempt
// counter so any terminal write still in flight from the previous attempt is
// discarded. Only failed records qualify.
func (s *Storage) Requeue(ctx context.Context, downloadID string) (*model.Download, error) {
	query := `
		UPDATE downloads
		SET status = $1,
		    file_name = '',
		    error_message = '',
		    attempt = attempt + 1,
		    updated_at = NOW()
		WHERE download_id = $2
		  AND status = $3
		RETURNING
			download_id, source_url, keyword, status,
			file_name, attempt, error_message, created_at, updated_at
	`

	var dl model.Download
	err := s.db.GetContext(ctx, &dl, query, domain.StatusPending, downloadID, domain.StatusFailed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either the record does not exist or it is not failed.
			if _, getErr := s.GetByID(ctx, downloadID); getErr != nil {
				return nil, getErr
			}
			return nil, domain.ErrNotRequeueable
		}
		return nil, fmt.Errorf("failed to requeue download: %w", err)
	}

	return &dl, nil
}

func (s *Storage) Delete(ctx context.Context, downloadID string) error {
	query := `DELETE FROM downloads WHERE download_id = $1`

	res, err := s.db.ExecContext(ctx, query, downloadID)
	if err != nil {
		return fmt.Errorf("failed to delete download: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrDownloadNotFound
	}

	return nil
}
