package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrEmptySource     = errors.New("upload source is empty")
	ErrMissingField    = errors.New("response is missing an expected field")
	ErrMissingPayload  = errors.New("job completed without a result payload")
	ErrJobLocked       = errors.New("job is being polled elsewhere")
	ErrTypeMismatch    = errors.New("values of different types cannot be combined")
)

// Submission stages.
const (
	StageUpload = "upload"
	StageCreate = "create"
)

// SubmissionError is returned when the upload or the job-creation call is rejected.
// No job id exists at this point, so the workflow cannot be resumed.
type SubmissionError struct {
	Stage      string
	StatusCode int
	Cause      error
}

func (e *SubmissionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("submission failed at %s (http %d): %v", e.Stage, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("submission failed at %s: %v", e.Stage, e.Cause)
}

func (e *SubmissionError) Unwrap() error { return e.Cause }

// PollError is a transient failure of a single status check. It is retryable and
// always carries the job id so the wait can be resumed later.
type PollError struct {
	JobID string
	Cause error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll job %s: %v (resume with job id %s)", e.JobID, e.Cause, e.JobID)
}

func (e *PollError) Unwrap() error { return e.Cause }

// TimeoutError is returned when a wait exceeds its deadline. The job keeps running remotely.
type TimeoutError struct {
	JobID   string
	Elapsed string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s not finished after %s (resume with job id %s)", e.JobID, e.Elapsed, e.JobID)
}

// RemoteFailure is the reason a job reached the failed state on the remote side.
// It is carried as data in a PollResult, never returned as an error.
type RemoteFailure struct {
	JobID   string
	Message string
}

func (e *RemoteFailure) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("job %s failed remotely", e.JobID)
	}
	return fmt.Sprintf("job %s failed remotely: %s", e.JobID, e.Message)
}

// JobIDOf extracts the job id from any resumable error in the chain.
func JobIDOf(err error) (string, bool) {
	var pe *PollError
	if errors.As(err, &pe) {
		return pe.JobID, true
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return te.JobID, true
	}
	var ce *CancelledError
	if errors.As(err, &ce) {
		return ce.JobID, true
	}
	return "", false
}

// CancelledError wraps a context error that interrupted a wait.
type CancelledError struct {
	JobID string
	Cause error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("wait for job %s cancelled: %v", e.JobID, e.Cause)
}

func (e *CancelledError) Unwrap() error { return e.Cause }
