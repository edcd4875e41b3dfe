package model

import "time"

type Download struct {
	DownloadID   string    `db:"download_id"`
	SourceURL    string    `db:"source_url"`
	Keyword      string    `db:"keyword"`
	Status       string    `db:"status"`
	FileName     string    `db:"file_name"`
	Attempt      int       `db:"attempt"`
	ErrorMessage string    `db:"error_message"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
