// File: internal/usecase/mocks_test.go
package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"transcribe-jobs/internal/domain"
	"transcribe-jobs/internal/domain/model"
	"transcribe-jobs/internal/domain/ports/adapter"
)

// stubRemote is a scripted TranscriptionAdapter. Each GetStatus call consumes the
// next scripted response; the last one repeats.
type stubRemote struct {
	mu sync.Mutex

	uploaded  []byte
	uploadURL string
	uploadErr error

	jobID     string
	createErr error
	lastReq   adapter.JobRequest

	statuses    []statusReply
	statusCalls int

	subResources map[string]json.RawMessage
}

type statusReply struct {
	st  adapter.RemoteStatus
	err error
}

func newStubRemote(replies ...statusReply) *stubRemote {
	return &stubRemote{
		uploadURL:    "https://cdn.example/upload/1",
		jobID:        "job-123",
		statuses:     replies,
		subResources: map[string]json.RawMessage{},
	}
}

func processing() statusReply {
	return statusReply{st: adapter.RemoteStatus{Status: "processing"}}
}

func completed(payload string) statusReply {
	return statusReply{st: adapter.RemoteStatus{Status: "completed", Result: json.RawMessage(payload)}}
}

func remoteError(msg string) statusReply {
	return statusReply{st: adapter.RemoteStatus{Status: "error", Error: msg}}
}

func transportError() statusReply {
	return statusReply{err: errors.New("connection reset by peer")}
}

func (s *stubRemote) Upload(ctx context.Context, body io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded = buf.Bytes()
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	return s.uploadURL, nil
}

func (s *stubRemote) CreateJob(ctx context.Context, req adapter.JobRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReq = req
	if s.createErr != nil {
		return "", s.createErr
	}
	return s.jobID, nil
}

func (s *stubRemote) GetStatus(ctx context.Context, jobID string) (adapter.RemoteStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statuses) == 0 {
		return adapter.RemoteStatus{ID: jobID, Status: "queued"}, nil
	}
	i := s.statusCalls
	if i >= len(s.statuses) {
		i = len(s.statuses) - 1
	}
	s.statusCalls++
	r := s.statuses[i]
	r.st.ID = jobID
	return r.st, r.err
}

func (s *stubRemote) GetSubResource(ctx context.Context, jobID, name string) (json.RawMessage, error) {
	raw, ok := s.subResources[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return raw, nil
}

func (s *stubRemote) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusCalls
}

// fakeClock never blocks: After advances the clock and fires immediately.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// memJobRepo is a small in-memory JobRepository used by unit tests.
type memJobRepo struct {
	mu      sync.Mutex
	jobs    map[string]model.Job
	saves   int
	saveErr error
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: map[string]model.Job{}}
}

func (m *memJobRepo) Save(ctx context.Context, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *memJobRepo) FindByID(ctx context.Context, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &j, nil
}

func (m *memJobRepo) ListPending(ctx context.Context) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Job
	for _, j := range m.jobs {
		if !j.Status.Terminal() {
			cp := j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memJobRepo) List(ctx context.Context) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Job
	for _, j := range m.jobs {
		cp := j
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memJobRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	return nil
}
