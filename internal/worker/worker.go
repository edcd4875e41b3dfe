package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minhvtb/songvault-be/internal/worker/domain"
	"github.com/minhvtb/songvault-be/shared/rabbitmq"
)

// jobStore is the worker's slice of the download record store.
type jobStore interface {
	Claim(ctx context.Context, downloadID string) (*domain.Job, error)
	MarkCompleted(ctx context.Context, downloadID, fileName string, attempt int) error
	MarkFailed(ctx context.Context, downloadID, errorMsg string, attempt int) error
}

// artifactFetcher produces one local audio artifact for a job.
type artifactFetcher interface {
	Fetch(ctx context.Context, job *domain.Job, proxy string) (string, error)
}

// egressSelector picks the network path for a fetch; it never fails.
type egressSelector interface {
	Select(ctx context.Context) string
}

// artifactPublisher uploads a local artifact to durable storage.
type artifactPublisher interface {
	Upload(ctx context.Context, localPath, objectName, contentType string) error
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Store         jobStore
	RabbitClient  *rabbitmq.Client
	Fetcher       artifactFetcher
	Egress        egressSelector
	Publisher     artifactPublisher
	Concurrency   int
	PrefetchCount int
	UploadTimeout time.Duration
}

// Worker consumes download tasks and drives each one through the
// fetch-and-publish routine.
type Worker struct {
	logger        *slog.Logger
	store         jobStore
	rabbitClient  *rabbitmq.Client
	fetcher       artifactFetcher
	egress        egressSelector
	publisher     artifactPublisher
	concurrency   int
	prefetchCount int
	uploadTimeout time.Duration
	workerID      string
	jobsChan      chan *domain.Task
	wg            sync.WaitGroup
	stopChan      chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "worker"
	}

	return &Worker{
		logger:        cfg.Logger,
		store:         cfg.Store,
		rabbitClient:  cfg.RabbitClient,
		fetcher:       cfg.Fetcher,
		egress:        cfg.Egress,
		publisher:     cfg.Publisher,
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		uploadTimeout: cfg.UploadTimeout,
		workerID:      fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8]),
		jobsChan:      make(chan *domain.Task),
		stopChan:      make(chan struct{}),
	}
}

// Start begins consuming and processing tasks. It blocks until the context
// is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	w.logger.Info("Worker context canceled, stopping...")
	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
