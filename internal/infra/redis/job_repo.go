package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"transcribe-jobs/internal/domain"
	"transcribe-jobs/internal/domain/model"
	"transcribe-jobs/internal/domain/ports/repository"
	"transcribe-jobs/internal/infra/metrics"
)

var _ repository.JobRepository = (*JobRepo)(nil)

const (
	pendingSetKey = "transcript_jobs:pending"
	allSetKey     = "transcript_jobs:all"
)

// JobRepo stores job records as JSON. Non-terminal jobs never expire so they can
// always be resumed; terminal jobs are kept for ttl.
type JobRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewJobRepo(client RedisClient, ttl time.Duration) *JobRepo {
	return &JobRepo{client: client, ttl: ttl}
}

func jobKey(id string) string { return "transcript_job:" + id }

func (r *JobRepo) Save(ctx context.Context, job *model.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("%w: job id is empty", domain.ErrInvalidArgument)
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	var expiry time.Duration
	if job.Status.Terminal() {
		expiry = r.ttl
	}
	if err := r.client.Set(ctx, jobKey(job.ID), data, expiry); err != nil {
		return err
	}
	if err := r.client.SAdd(ctx, allSetKey, job.ID); err != nil {
		return err
	}
	if job.Status.Terminal() {
		return r.client.SRem(ctx, pendingSetKey, job.ID)
	}
	return r.client.SAdd(ctx, pendingSetKey, job.ID)
}

func (r *JobRepo) FindByID(ctx context.Context, id string) (*model.Job, error) {
	data, err := r.client.Get(ctx, jobKey(id))
	if errors.Is(err, Nil) {
		metrics.IncStoreRequest("redis", "miss")
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	metrics.IncStoreRequest("redis", "hit")

	var job model.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

func (r *JobRepo) ListPending(ctx context.Context) ([]*model.Job, error) {
	return r.listSet(ctx, pendingSetKey)
}

func (r *JobRepo) List(ctx context.Context) ([]*model.Job, error) {
	return r.listSet(ctx, allSetKey)
}

// listSet loads every member of a set, pruning ids whose record has expired.
func (r *JobRepo) listSet(ctx context.Context, set string) ([]*model.Job, error) {
	ids, err := r.client.SMembers(ctx, set)
	if err != nil {
		return nil, err
	}
	jobs := make([]*model.Job, 0, len(ids))
	for _, id := range ids {
		job, err := r.FindByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			_ = r.client.SRem(ctx, set, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].SubmittedAt.Before(jobs[j].SubmittedAt) })
	return jobs, nil
}

func (r *JobRepo) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, jobKey(id)); err != nil {
		return err
	}
	if err := r.client.SRem(ctx, pendingSetKey, id); err != nil {
		return err
	}
	return r.client.SRem(ctx, allSetKey, id)
}
