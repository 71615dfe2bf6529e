package repository

import (
	"context"

	"transcribe-jobs/internal/domain/model"
)

// JobRepository remembers submitted jobs so waits can be resumed by id.
type JobRepository interface {
	Save(ctx context.Context, job *model.Job) error
	// FindByID returns domain.ErrNotFound for unknown ids.
	FindByID(ctx context.Context, id string) (*model.Job, error)
	// ListPending returns every job not yet in a terminal state.
	ListPending(ctx context.Context) ([]*model.Job, error)
	List(ctx context.Context) ([]*model.Job, error)
	Delete(ctx context.Context, id string) error
}
