package dto

type CreateDownloadRequest struct {
	ID      string `json:"id" binding:"required"`
	URL     string `json:"url" binding:"required"`
	Name    string `json:"name" binding:"required"`
	Artists string `json:"artists" binding:"required"`
}

type DownloadStatusResponse struct {
	Status     string `json:"status"`
	DownloadID string `json:"download_id"`
	File       string `json:"file,omitempty"`
	Message    string `json:"message,omitempty"`
}

type ListDownloadsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type DownloadDTO struct {
	DownloadID   string `json:"download_id"`
	SourceURL    string `json:"source_url"`
	Keyword      string `json:"keyword"`
	Status       string `json:"status"`
	FileName     string `json:"file_name,omitempty"`
	Attempt      int    `json:"attempt"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type ListDownloadsResponse struct {
	Downloads  []DownloadDTO `json:"downloads"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type QueueStatsResponse struct {
	PendingJobs    int64 `json:"pending_jobs"`
	ProcessingJobs int64 `json:"processing_jobs"`
	CompletedJobs  int64 `json:"completed_jobs"`
	FailedJobs     int64 `json:"failed_jobs"`
	QueueDepth     int   `json:"queue_depth"`
	Workers        int   `json:"workers"`
}
