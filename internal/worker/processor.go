package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/minhvtb/songvault-be/internal/worker/domain"
	"github.com/minhvtb/songvault-be/internal/worker/fetcher"
)

// processTask drives one task through the fetch-and-publish routine:
//
//	claim -> fetch -> publish -> terminal write
//
// All outcomes are communicated through the record store; there is no
// return channel to the submitter. The returned error only steers the
// broker ack decision: nil and StageError outcomes were recorded and get
// ACKed, ErrAlreadyClaimed is an ACKed skip, anything else is a claim-stage
// infrastructure failure whose delivery is redelivered.
func (w *Worker) processTask(ctx context.Context, task *domain.Task) error {
	job, err := w.store.Claim(ctx, task.DownloadID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyClaimed) {
			w.logger.Warn("Task skipped - download not pending",
				slog.String("download_id", task.DownloadID),
			)
			return err
		}
		return fmt.Errorf("failed to claim download: %w", err)
	}

	var artifact string
	defer func() {
		// The local artifact never outlives the execution, on any exit
		// path.
		if artifact == "" {
			return
		}
		if err := os.Remove(artifact); err != nil && !os.IsNotExist(err) {
			w.logger.Warn("Failed to remove local artifact",
				slog.String("download_id", job.DownloadID),
				slog.String("artifact", artifact),
				slog.String("error", err.Error()),
			)
		}
	}()

	proxy := w.egress.Select(ctx)

	artifact, err = w.fetcher.Fetch(ctx, job, proxy)
	if err != nil {
		return w.failJob(ctx, job, domain.NewFetchError(err))
	}

	objectName := fetcher.ObjectName(job.Keyword, job.DownloadID)

	uploadCtx, cancel := context.WithTimeout(ctx, w.uploadTimeout)
	defer cancel()

	if err := w.publisher.Upload(uploadCtx, artifact, objectName, "audio/mpeg"); err != nil {
		return w.failJob(ctx, job, domain.NewPublishError(err))
	}

	if err := w.store.MarkCompleted(ctx, job.DownloadID, objectName, job.Attempt); err != nil {
		// Best-effort-once: the artifact is published but the record never
		// saw it. Operator intervention required.
		w.logger.Error("Failed to record completed download - job lost",
			slog.String("download_id", job.DownloadID),
			slog.String("object", objectName),
			slog.String("error", err.Error()),
		)
		return nil
	}

	w.logger.Info("Download completed",
		slog.String("download_id", job.DownloadID),
		slog.String("object", objectName),
	)

	return nil
}

// failJob converts a domain failure into the terminal failed status. The
// stage error is returned so the pool ACKs the delivery without requeue.
func (w *Worker) failJob(ctx context.Context, job *domain.Job, stageErr error) error {
	w.logger.Error("Download failed",
		slog.String("download_id", job.DownloadID),
		slog.String("error", stageErr.Error()),
	)

	if err := w.store.MarkFailed(ctx, job.DownloadID, stageErr.Error(), job.Attempt); err != nil {
		w.logger.Error("Failed to record failed download - job lost",
			slog.String("download_id", job.DownloadID),
			slog.String("error", err.Error()),
		)
	}

	return stageErr
}
