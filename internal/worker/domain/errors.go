package domain

import "errors"

var (
	// ErrAlreadyClaimed is returned when a task's record is not pending,
	// either because another delivery claimed it first or because it was
	// deleted or already finished.
	ErrAlreadyClaimed = errors.New("download already claimed or not pending")

	// ErrNoArtifact is returned when the fetch tool exited cleanly but
	// produced no usable audio file.
	ErrNoArtifact = errors.New("no audio artifact produced")
)

// StageError marks a domain failure in one stage of the fetch-and-publish
// pipeline. Both stages collapse to the failed status; the stage is kept
// for the record's diagnostic message.
type StageError struct {
	Stage string // "fetch" or "publish"
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + " failed: " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func NewFetchError(err error) error {
	return &StageError{Stage: "fetch", Err: err}
}

func NewPublishError(err error) error {
	return &StageError{Stage: "publish", Err: err}
}
