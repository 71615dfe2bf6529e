package model

import (
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobStatusSubmitted  JobStatus = "submitted"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition can happen from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// rank orders statuses so transitions can only move forward.
func (s JobStatus) rank() int {
	switch s {
	case JobStatusSubmitted:
		return 0
	case JobStatusProcessing:
		return 1
	case JobStatusCompleted, JobStatusFailed:
		return 2
	}
	return -1
}

// CanTransition reports whether a job in status s may move to next.
// Terminal states are absorbing; nothing moves back to submitted.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.Terminal() {
		return false
	}
	return next.rank() >= s.rank() && next != JobStatusSubmitted
}

// Job is a unit of remote asynchronous work identified by the id the service assigned.
type Job struct {
	ID           string            `json:"id"`
	SubmissionID string            `json:"submission_id,omitempty"`
	UploadURL    string            `json:"upload_url,omitempty"`
	Status       JobStatus         `json:"status"`
	Result       json.RawMessage   `json:"result,omitempty"`
	LastError    string            `json:"last_error,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	SubmittedAt  time.Time         `json:"submitted_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Advance moves the job to next if the state machine allows it.
// It returns false when the transition was rejected.
func (j *Job) Advance(next JobStatus, at time.Time) bool {
	if j.Status == next {
		return !j.Status.Terminal()
	}
	if !j.Status.CanTransition(next) {
		return false
	}
	j.Status = next
	j.UpdatedAt = at
	return true
}

// PollResult is the outcome of a single status check.
// Payload is set only for completed, Err only for failed.
type PollResult struct {
	Status  JobStatus       `json:"status"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Err     error           `json:"-"`
}

// Done reports whether the result is terminal.
func (r PollResult) Done() bool { return r.Status.Terminal() }
