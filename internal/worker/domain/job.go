package domain

// Task is a unit of work delivered through the queue.
type Task struct {
	DownloadID  string `json:"download_id"`
	Keyword     string `json:"keyword"`
	SourceURL   string `json:"source_url"`
	Attempt     int    `json:"attempt"`
	DeliveryTag uint64 `json:"-"`
}

// Job is a claimed download record, held only for the duration of one
// execution. Attempt is the counter captured at claim time; terminal writes
// carry it so a concurrently requeued or deleted record discards the result.
type Job struct {
	DownloadID string
	Keyword    string
	SourceURL  string
	Attempt    int
}
