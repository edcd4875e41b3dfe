package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/minhvtb/songvault-be/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case task, ok := <-w.jobsChan:
			if !ok {
				w.logger.Info("Worker goroutine stopping - jobsChan closed",
					slog.String("worker_name", workerName),
				)
				return
			}

			w.logger.Info("Worker received task",
				slog.String("worker_name", workerName),
				slog.String("download_id", task.DownloadID),
				slog.Uint64("delivery_tag", task.DeliveryTag),
			)

			err := w.processTask(ctx, task)

			channel := w.rabbitClient.GetChannel()
			if channel == nil {
				w.logger.Error("Failed to get RabbitMQ channel for ACK/NACK",
					slog.String("worker_name", workerName),
					slog.String("download_id", task.DownloadID),
				)
				continue
			}

			// Domain outcomes (completed or failed) are recorded in the
			// store and the delivery is ACKed either way; only an
			// infrastructure failure before the job started puts the
			// delivery back on the queue.
			if err != nil && w.shouldRequeueTask(err) {
				w.logger.Error("Task processing hit infrastructure error, requeuing delivery",
					slog.String("worker_name", workerName),
					slog.String("download_id", task.DownloadID),
					slog.String("error", err.Error()),
				)
				if nackErr := channel.Nack(task.DeliveryTag, false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message",
						slog.String("worker_name", workerName),
						slog.String("download_id", task.DownloadID),
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			if ackErr := channel.Ack(task.DeliveryTag, false); ackErr != nil {
				w.logger.Error("Failed to ACK message",
					slog.String("worker_name", workerName),
					slog.String("download_id", task.DownloadID),
					slog.String("error", ackErr.Error()),
				)
			}
		}
	}
}

// shouldRequeueTask decides whether a delivery goes back on the queue.
// Only claim-stage infrastructure errors qualify: the record is still
// pending, nothing has run, and another instance can pick it up. There is
// no automatic retry of domain failures.
func (w *Worker) shouldRequeueTask(err error) bool {
	if errors.Is(err, domain.ErrAlreadyClaimed) {
		return false
	}

	var stageErr *domain.StageError
	return !errors.As(err, &stageErr)
}
