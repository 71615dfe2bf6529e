package adapter

import (
	"context"
	"encoding/json"
	"io"
)

// JobRequest is the body of a job-creation call.
type JobRequest struct {
	AudioURL string
	Metadata map[string]string
}

// RemoteStatus is the raw status document returned by the service.
type RemoteStatus struct {
	ID     string
	Status string // queued | processing | completed | error
	Error  string
	// Result is the configured result field, nil when absent or JSON null.
	Result json.RawMessage
	Raw    json.RawMessage
}

// TranscriptionAdapter is the port for the remote job-processing service.
type TranscriptionAdapter interface {
	// Upload streams body to the upload endpoint and returns the resource URL.
	Upload(ctx context.Context, body io.Reader) (string, error)
	// CreateJob asks the service to process an uploaded resource and returns the job id.
	CreateJob(ctx context.Context, req JobRequest) (string, error)
	// GetStatus performs a single status query.
	GetStatus(ctx context.Context, jobID string) (RemoteStatus, error)
	// GetSubResource reads a pass-through resource such as "sentences" or "paragraphs".
	GetSubResource(ctx context.Context, jobID, name string) (json.RawMessage, error)
}
