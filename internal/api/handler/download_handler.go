package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/minhvtb/songvault-be/internal/api/domain"
	"github.com/minhvtb/songvault-be/internal/api/dto"
	"github.com/minhvtb/songvault-be/internal/api/service"
	"github.com/minhvtb/songvault-be/internal/api/storage"
)

// statusFilters maps the public filter vocabulary to stored statuses.
// "started" and "finished" are kept for compatibility with older clients.
var statusFilters = map[string]string{
	"pending":    domain.StatusPending,
	"started":    domain.StatusProcessing,
	"processing": domain.StatusProcessing,
	"finished":   domain.StatusCompleted,
	"completed":  domain.StatusCompleted,
	"failed":     domain.StatusFailed,
	"all":        "",
	"":           "",
}

// CreateDownload handles POST /api/v1/downloads
// Accepts a track download request and reports the current state; callers
// poll the same endpoint until a terminal state appears.
func (h *DownloadHandler) CreateDownload(c *gin.Context) {
	var req dto.CreateDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "id, url, name and artists are required",
		})
		return
	}

	res, err := h.gate.Submit(c.Request.Context(), service.Submission{
		ID:        req.ID,
		SourceURL: req.URL,
		Keyword:   req.Name + " " + req.Artists,
	})
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "id, url, name and artists are required",
			})
			return
		}
		h.logger.Error("Failed to submit download",
			slog.String("download_id", req.ID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to submit download",
		})
		return
	}

	c.JSON(http.StatusOK, toStatusResponse(res))
}

// GetDownload handles GET /api/v1/downloads/:download_id
func (h *DownloadHandler) GetDownload(c *gin.Context) {
	downloadID := c.Param("download_id")
	if downloadID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "download_id is required",
		})
		return
	}

	res, err := h.gate.Status(c.Request.Context(), downloadID)
	if err != nil {
		if errors.Is(err, domain.ErrDownloadNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Download not found",
			})
			return
		}
		h.logger.Error("Failed to get download",
			slog.String("download_id", downloadID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get download",
		})
		return
	}

	c.JSON(http.StatusOK, toStatusResponse(res))
}

// ListDownloads handles GET /api/v1/downloads
// Lists download records filtered by status with cursor pagination.
func (h *DownloadHandler) ListDownloads(c *gin.Context) {
	var req dto.ListDownloadsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	status, ok := statusFilters[req.Status]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "status must be one of pending, started, finished, failed, all",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeDownloadCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	downloads, err := h.storage.ListDownloads(c.Request.Context(), storage.DownloadFilter{
		Status:   status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list downloads", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list downloads",
		})
		return
	}

	hasMore := len(downloads) > req.PageSize
	if hasMore {
		downloads = downloads[:req.PageSize]
	}

	response := make([]dto.DownloadDTO, len(downloads))
	for i, dl := range downloads {
		response[i] = dto.DownloadDTO{
			DownloadID:   dl.DownloadID,
			SourceURL:    dl.SourceURL,
			Keyword:      dl.Keyword,
			Status:       dl.Status,
			FileName:     dl.FileName,
			Attempt:      dl.Attempt,
			ErrorMessage: dl.ErrorMessage,
			CreatedAt:    dl.CreatedAt.Format(time.RFC3339),
			UpdatedAt:    dl.UpdatedAt.Format(time.RFC3339),
		}
	}

	var nextCursor string
	if hasMore {
		last := downloads[len(downloads)-1]
		nextCursor, err = EncodeDownloadCursor(&storage.DownloadCursor{
			CreatedAt:  last.CreatedAt,
			DownloadID: last.DownloadID,
		})
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListDownloadsResponse{
		Downloads:  response,
		NextCursor: nextCursor,
	})
}

// QueueStats handles GET /api/v1/queue/stats
// Aggregates record counts by status with broker-side queue depth and
// consumer count. Read-only; never mutates a record.
func (h *DownloadHandler) QueueStats(c *gin.Context) {
	counts, err := h.storage.CountByStatus(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to count downloads", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to collect queue stats",
		})
		return
	}

	stats := dto.QueueStatsResponse{
		PendingJobs:    counts[domain.StatusPending],
		ProcessingJobs: counts[domain.StatusProcessing],
		CompletedJobs:  counts[domain.StatusCompleted],
		FailedJobs:     counts[domain.StatusFailed],
	}

	// Broker introspection is best-effort; record counts still stand when
	// the broker is unreachable.
	if messages, consumers, err := h.queue.Inspect(); err != nil {
		h.logger.Warn("Failed to inspect queue", slog.String("error", err.Error()))
	} else {
		stats.QueueDepth = messages
		stats.Workers = consumers
	}

	c.JSON(http.StatusOK, stats)
}

// RequeueDownload handles POST /api/v1/downloads/:download_id/requeue
// Valid only for failed downloads; submits exactly one new task.
func (h *DownloadHandler) RequeueDownload(c *gin.Context) {
	downloadID := c.Param("download_id")

	res, err := h.gate.Requeue(c.Request.Context(), downloadID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDownloadNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Download not found",
			})
		case errors.Is(err, domain.ErrNotRequeueable):
			c.JSON(http.StatusConflict, gin.H{
				"error": "Download is not in failed status",
			})
		default:
			h.logger.Error("Failed to requeue download",
				slog.String("download_id", downloadID),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to requeue download",
			})
		}
		return
	}

	c.JSON(http.StatusOK, toStatusResponse(res))
}

// DeleteDownload handles DELETE /api/v1/downloads/:download_id
// Removes the record unconditionally. An in-flight task is not cancelled;
// its terminal write lands on a now-absent record and is discarded.
func (h *DownloadHandler) DeleteDownload(c *gin.Context) {
	downloadID := c.Param("download_id")

	if err := h.gate.Delete(c.Request.Context(), downloadID); err != nil {
		if errors.Is(err, domain.ErrDownloadNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Download not found",
			})
			return
		}
		h.logger.Error("Failed to delete download",
			slog.String("download_id", downloadID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete download",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Download deleted",
	})
}

func toStatusResponse(res *service.Result) dto.DownloadStatusResponse {
	return dto.DownloadStatusResponse{
		Status:     res.Status,
		DownloadID: res.DownloadID,
		File:       res.FileURL,
		Message:    res.Message,
	}
}
