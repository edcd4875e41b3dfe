package domain

import (
	"errors"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var (
	ErrDownloadNotFound = errors.New("download not found")

	// ErrNotRequeueable is returned when requeue is requested for a
	// download that is not in the failed status.
	ErrNotRequeueable = errors.New("download is not in failed status")
)

// TerminalStatus reports whether a status allows no further automatic
// transition.
func TerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}
