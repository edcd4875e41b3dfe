package handler

import (
	"context"
	"log/slog"

	"github.com/minhvtb/songvault-be/internal/api/service"
	"github.com/minhvtb/songvault-be/internal/api/storage"
)

// Gate is the submission/status surface the handlers depend on,
// implemented by service.Gate.
type Gate interface {
	Submit(ctx context.Context, sub service.Submission) (*service.Result, error)
	Status(ctx context.Context, downloadID string) (*service.Result, error)
	Requeue(ctx context.Context, downloadID string) (*service.Result, error)
	Delete(ctx context.Context, downloadID string) error
}

// QueueInspector exposes broker-side introspection for the stats endpoint.
type QueueInspector interface {
	Inspect() (messages int, consumers int, err error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger  *slog.Logger
	Gate    Gate
	Storage *storage.Storage
	Queue   QueueInspector
}

// DownloadHandler handles download-related HTTP requests
type DownloadHandler struct {
	logger  *slog.Logger
	gate    Gate
	storage *storage.Storage
	queue   QueueInspector
}

// NewDownloadHandler creates a new DownloadHandler instance
func NewDownloadHandler(deps *Dependencies) *DownloadHandler {
	return &DownloadHandler{
		logger:  deps.Logger,
		gate:    deps.Gate,
		storage: deps.Storage,
		queue:   deps.Queue,
	}
}
