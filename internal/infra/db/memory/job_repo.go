// Package memory holds process-local stores used when no Redis is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"transcribe-jobs/internal/domain"
	"transcribe-jobs/internal/domain/model"
	"transcribe-jobs/internal/domain/ports/repository"
	"transcribe-jobs/internal/infra/metrics"

	"github.com/google/uuid"
)

var (
	_ repository.JobRepository = (*JobRepo)(nil)
	_ repository.Locker        = (*Locker)(nil)
)

type JobRepo struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

func NewJobRepo() *JobRepo {
	return &JobRepo{jobs: make(map[string]*model.Job)}
}

func (r *JobRepo) Save(ctx context.Context, job *model.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("%w: job id is empty", domain.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *JobRepo) FindByID(ctx context.Context, id string) (*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		metrics.IncStoreRequest("memory", "miss")
		return nil, domain.ErrNotFound
	}
	metrics.IncStoreRequest("memory", "hit")
	return cloneJob(j), nil
}

func (r *JobRepo) ListPending(ctx context.Context) ([]*model.Job, error) {
	return r.list(func(j *model.Job) bool { return !j.Status.Terminal() }), nil
}

func (r *JobRepo) List(ctx context.Context) ([]*model.Job, error) {
	return r.list(func(*model.Job) bool { return true }), nil
}

func (r *JobRepo) list(keep func(*model.Job) bool) []*model.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		if keep(j) {
			out = append(out, cloneJob(j))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out
}

func (r *JobRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
	return nil
}

func cloneJob(j *model.Job) *model.Job {
	cp := *j
	if j.Result != nil {
		cp.Result = append([]byte(nil), j.Result...)
	}
	if j.Metadata != nil {
		cp.Metadata = make(map[string]string, len(j.Metadata))
		for k, v := range j.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Locker is an in-process repository.Locker.
type Locker struct {
	mu    sync.Mutex
	held  map[string]lease
	nowFn func() time.Time
}

type lease struct {
	token   string
	expires time.Time
}

func NewLocker() *Locker {
	return &Locker{held: make(map[string]lease), nowFn: time.Now}
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.nowFn()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return "", domain.ErrJobLocked
	}
	token := uuid.NewString()
	l.held[key] = lease{token: token, expires: now.Add(ttl)}
	return token, nil
}

func (l *Locker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.held[key]; ok && cur.token == token {
		delete(l.held, key)
	}
	return nil
}
