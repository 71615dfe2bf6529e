package assemblyai

import (
	"context"
	"encoding/json"
	"io"

	"transcribe-jobs/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.TranscriptionAdapter = (*limited)(nil)

// limited caps the number of in-flight requests against the service, which matters
// when the watcher polls many jobs at once.
type limited struct {
	inner adapter.TranscriptionAdapter
	sem   chan struct{}
}

func NewLimited(inner adapter.TranscriptionAdapter, maxConcurrent int) adapter.TranscriptionAdapter {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limited{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limited) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limited) release() { <-l.sem }

func (l *limited) Upload(ctx context.Context, body io.Reader) (string, error) {
	if err := l.acquire(ctx); err != nil {
		return "", err
	}
	defer l.release()
	return l.inner.Upload(ctx, body)
}

func (l *limited) CreateJob(ctx context.Context, req adapter.JobRequest) (string, error) {
	if err := l.acquire(ctx); err != nil {
		return "", err
	}
	defer l.release()
	return l.inner.CreateJob(ctx, req)
}

func (l *limited) GetStatus(ctx context.Context, jobID string) (adapter.RemoteStatus, error) {
	if err := l.acquire(ctx); err != nil {
		return adapter.RemoteStatus{}, err
	}
	defer l.release()
	return l.inner.GetStatus(ctx, jobID)
}

func (l *limited) GetSubResource(ctx context.Context, jobID, name string) (json.RawMessage, error) {
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}
	defer l.release()
	return l.inner.GetSubResource(ctx, jobID, name)
}
