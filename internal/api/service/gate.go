package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/minhvtb/songvault-be/internal/api/domain"
	"github.com/minhvtb/songvault-be/internal/api/model"
)

// DownloadStore is the slice of the record store the gate needs. The store
// must guarantee that CreateIfAbsent is atomic per download_id.
type DownloadStore interface {
	CreateIfAbsent(ctx context.Context, dl *model.Download) (bool, error)
	GetByID(ctx context.Context, downloadID string) (*model.Download, error)
	Requeue(ctx context.Context, downloadID string) (*model.Download, error)
	Delete(ctx context.Context, downloadID string) error
}

// TaskPublisher submits one unit of work to the task queue.
type TaskPublisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// URLSigner derives a time-bounded access URL for a stored object.
type URLSigner interface {
	PresignedURL(ctx context.Context, objectName string) (string, error)
}

// Task is the message handed to the worker service. It carries everything
// the fetch-and-publish routine needs so the worker never has to call back
// into the API service.
type Task struct {
	DownloadID string `json:"download_id"`
	Keyword    string `json:"keyword"`
	SourceURL  string `json:"source_url"`
	Attempt    int    `json:"attempt"`
}

// Submission is a validated download request.
type Submission struct {
	ID        string
	SourceURL string
	Keyword   string
}

// Result is the synchronous answer to a submission or status query.
type Result struct {
	Status     string
	DownloadID string
	FileURL    string
	Message    string
}

var ErrValidation = errors.New("missing required submission fields")

// Gate enforces the at-most-one-task-per-id guarantee. All coordination is
// externalized to the store's atomic insert; the gate itself holds no state.
type Gate struct {
	store     DownloadStore
	publisher TaskPublisher
	signer    URLSigner
	logger    *slog.Logger
}

func NewGate(store DownloadStore, publisher TaskPublisher, signer URLSigner, logger *slog.Logger) *Gate {
	return &Gate{
		store:     store,
		publisher: publisher,
		signer:    signer,
		logger:    logger,
	}
}

// Submit creates a download record and enqueues exactly one task on first
// sighting of an id. Repeat submissions, regardless of the record's current
// status, only report state. The persist-then-enqueue ordering is load
// bearing: the worker writes its terminal status against a row that must
// already exist.
func (g *Gate) Submit(ctx context.Context, sub Submission) (*Result, error) {
	if sub.ID == "" || sub.SourceURL == "" || sub.Keyword == "" {
		return nil, ErrValidation
	}

	now := time.Now().UTC()
	dl := &model.Download{
		DownloadID: sub.ID,
		SourceURL:  sub.SourceURL,
		Keyword:    sub.Keyword,
		Status:     domain.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created, err := g.store.CreateIfAbsent(ctx, dl)
	if err != nil {
		return nil, fmt.Errorf("failed to persist download: %w", err)
	}

	if created {
		if err := g.enqueue(ctx, Task{
			DownloadID: sub.ID,
			Keyword:    sub.Keyword,
			SourceURL:  sub.SourceURL,
			Attempt:    0,
		}); err != nil {
			// The record stays pending without a task. Surfaced as an
			// infrastructure error; an operator can resolve it once the
			// broker is back.
			return nil, err
		}

		g.logger.Info("Download accepted",
			slog.String("download_id", sub.ID),
			slog.String("keyword", sub.Keyword),
		)

		return &Result{
			Status:     domain.StatusProcessing,
			DownloadID: sub.ID,
			Message:    "Download in progress, try again later.",
		}, nil
	}

	existing, err := g.store.GetByID(ctx, sub.ID)
	if err != nil {
		if errors.Is(err, domain.ErrDownloadNotFound) {
			// Deleted between insert and read. Report as still processing;
			// the caller's next poll sees the truth.
			return &Result{
				Status:     domain.StatusProcessing,
				DownloadID: sub.ID,
				Message:    "Download in progress, try again later.",
			}, nil
		}
		return nil, fmt.Errorf("failed to read download: %w", err)
	}

	return g.project(ctx, existing)
}

// Status returns the current projection for a single download.
func (g *Gate) Status(ctx context.Context, downloadID string) (*Result, error) {
	dl, err := g.store.GetByID(ctx, downloadID)
	if err != nil {
		return nil, err
	}
	return g.project(ctx, dl)
}

// Requeue moves a failed download back to pending and submits exactly one
// new task carrying the bumped attempt number.
func (g *Gate) Requeue(ctx context.Context, downloadID string) (*Result, error) {
	dl, err := g.store.Requeue(ctx, downloadID)
	if err != nil {
		return nil, err
	}

	if err := g.enqueue(ctx, Task{
		DownloadID: dl.DownloadID,
		Keyword:    dl.Keyword,
		SourceURL:  dl.SourceURL,
		Attempt:    dl.Attempt,
	}); err != nil {
		return nil, err
	}

	g.logger.Info("Download requeued",
		slog.String("download_id", downloadID),
		slog.Int("attempt", dl.Attempt),
	)

	return &Result{
		Status:     domain.StatusProcessing,
		DownloadID: downloadID,
		Message:    "Download requeued.",
	}, nil
}

// Delete removes the record unconditionally. An in-flight task is not
// cancelled; its terminal write is attempt-guarded and lands on zero rows.
func (g *Gate) Delete(ctx context.Context, downloadID string) error {
	if err := g.store.Delete(ctx, downloadID); err != nil {
		return err
	}
	g.logger.Info("Download deleted",
		slog.String("download_id", downloadID),
	)
	return nil
}

func (g *Gate) enqueue(ctx context.Context, task Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}
	if err := g.publisher.Publish(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// project maps a record to its caller-visible result. Completed records get
// a freshly signed URL on every call so expiry windows never go stale.
func (g *Gate) project(ctx context.Context, dl *model.Download) (*Result, error) {
	switch dl.Status {
	case domain.StatusCompleted:
		fileURL, err := g.signer.PresignedURL(ctx, dl.FileName)
		if err != nil {
			return nil, fmt.Errorf("failed to sign result location: %w", err)
		}
		return &Result{
			Status:     domain.StatusCompleted,
			DownloadID: dl.DownloadID,
			FileURL:    fileURL,
		}, nil

	case domain.StatusFailed:
		return &Result{
			Status:     domain.StatusFailed,
			DownloadID: dl.DownloadID,
			Message:    "Download failed.",
		}, nil

	default:
		return &Result{
			Status:     domain.StatusProcessing,
			DownloadID: dl.DownloadID,
			Message:    "Download in progress, try again later.",
		}, nil
	}
}
