// File: internal/usecase/job_poller.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"transcribe-jobs/internal/domain"
	"transcribe-jobs/internal/domain/model"
	"transcribe-jobs/internal/domain/ports/adapter"
	"transcribe-jobs/internal/domain/ports/repository"
	"transcribe-jobs/internal/infra/logging"
	"transcribe-jobs/internal/infra/metrics"
	"transcribe-jobs/internal/infra/upload"
)

// DefaultPollInterval is the pause between status checks when a policy leaves it unset.
const DefaultPollInterval = 30 * time.Second

// Compile-time check
var _ JobPoller = (*jobPollerUC)(nil)

// JobPoller submits audio to the remote service and follows the resulting job to a terminal state.
type JobPoller interface {
	Submit(ctx context.Context, source io.Reader, metadata map[string]string) (*model.Job, error)
	Poll(ctx context.Context, job *model.Job) (model.PollResult, error)
	WaitUntilDone(ctx context.Context, job *model.Job, policy WaitPolicy) (model.PollResult, error)
	// Resume loads a remembered job (or adopts an unknown id) and waits for it.
	Resume(ctx context.Context, jobID string, policy WaitPolicy) (*model.Job, model.PollResult, error)
	Lookup(ctx context.Context, jobID string) (*model.Job, error)
	SubResource(ctx context.Context, jobID, name string) (json.RawMessage, error)
}

// WaitPolicy controls WaitUntilDone.
type WaitPolicy struct {
	Interval time.Duration
	// Deadline bounds the total wait; zero waits indefinitely.
	Deadline time.Duration
	// MaxTransientErrors is how many consecutive poll errors are tolerated.
	// Zero aborts on the first one.
	MaxTransientErrors int
}

func (p WaitPolicy) withDefaults() WaitPolicy {
	if p.Interval <= 0 {
		p.Interval = DefaultPollInterval
	}
	if p.MaxTransientErrors < 0 {
		p.MaxTransientErrors = 0
	}
	return p
}

// Clock is the poller's only source of time and suspension.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

type jobPollerUC struct {
	ai        adapter.TranscriptionAdapter
	jobs      repository.JobRepository
	chunkSize int
	clock     Clock
	log       *zerolog.Logger
}

func NewJobPoller(ai adapter.TranscriptionAdapter, jobs repository.JobRepository, chunkSize int, logger *zerolog.Logger) *jobPollerUC {
	if logger == nil {
		logger = logging.Nop()
	}
	l := logger.With().Str("component", "JobPoller").Logger()
	return &jobPollerUC{
		ai:        ai,
		jobs:      jobs,
		chunkSize: chunkSize,
		clock:     realClock{},
		log:       &l,
	}
}

// WithClock replaces the time source, used by tests.
func (p *jobPollerUC) WithClock(c Clock) *jobPollerUC {
	p.clock = c
	return p
}

func (p *jobPollerUC) Submit(ctx context.Context, source io.Reader, metadata map[string]string) (*model.Job, error) {
	defer logging.TraceDuration(p.log, "JobPoller.Submit")()
	if source == nil {
		return nil, p.submissionFailed(ctx, domain.StageUpload, fmt.Errorf("%w: nil source", domain.ErrInvalidArgument))
	}
	submissionID := ulid.Make().String()
	log := logging.With(ctx, p.log).With().Str("submission_id", submissionID).Logger()

	body := upload.NewChunkReader(source, p.chunkSize)
	defer body.Close()
	if err := body.Prime(); err != nil {
		return nil, p.submissionFailed(ctx, domain.StageUpload, err)
	}

	uploadURL, err := p.ai.Upload(ctx, body)
	metrics.AddUpload(body.BytesRead(), body.Chunks())
	if err != nil {
		return nil, p.submissionFailed(ctx, domain.StageUpload, err)
	}
	log.Info().Str("upload_url", uploadURL).Int64("bytes", body.BytesRead()).Int("chunks", body.Chunks()).Msg("audio uploaded")

	jobID, err := p.ai.CreateJob(ctx, adapter.JobRequest{AudioURL: uploadURL, Metadata: metadata})
	if err != nil {
		return nil, p.submissionFailed(ctx, domain.StageCreate, err)
	}

	now := p.clock.Now()
	job := &model.Job{
		ID:           jobID,
		SubmissionID: submissionID,
		UploadURL:    uploadURL,
		Status:       model.JobStatusSubmitted,
		Metadata:     metadata,
		SubmittedAt:  now,
		UpdatedAt:    now,
	}
	metrics.IncSubmission("ok")
	// The job exists remotely from here on; a store failure must not hide its id.
	p.remember(ctx, job)
	log.Info().Str("job_id", jobID).Msg("transcription job submitted")
	return job, nil
}

func (p *jobPollerUC) submissionFailed(ctx context.Context, stage string, err error) error {
	metrics.IncSubmission(stage)
	se := &domain.SubmissionError{Stage: stage, Cause: err}
	var sc interface{ HTTPStatus() int }
	if errors.As(err, &sc) {
		se.StatusCode = sc.HTTPStatus()
	}
	logging.With(ctx, p.log).Error().Err(err).Str("stage", stage).Msg("submission failed")
	return se
}

func (p *jobPollerUC) Poll(ctx context.Context, job *model.Job) (model.PollResult, error) {
	if job == nil || job.ID == "" {
		return model.PollResult{}, fmt.Errorf("%w: job id is empty", domain.ErrInvalidArgument)
	}
	if job.Status.Terminal() {
		return terminalResult(job), nil
	}

	start := time.Now()
	st, err := p.ai.GetStatus(ctx, job.ID)
	latencyMs := int(time.Since(start) / time.Millisecond)
	if err != nil {
		metrics.ObservePoll("error", latencyMs, false)
		return model.PollResult{}, &domain.PollError{JobID: job.ID, Cause: err}
	}

	now := p.clock.Now()
	switch st.Status {
	case "completed":
		if len(st.Result) == 0 {
			metrics.ObservePoll("error", latencyMs, false)
			return model.PollResult{}, &domain.PollError{JobID: job.ID, Cause: domain.ErrMissingPayload}
		}
		job.Result = append(json.RawMessage(nil), st.Result...)
		job.Advance(model.JobStatusCompleted, now)
	case "error":
		job.LastError = st.Error
		job.Advance(model.JobStatusFailed, now)
	default:
		if job.Status == model.JobStatusProcessing {
			metrics.ObservePoll(string(model.JobStatusProcessing), latencyMs, true)
			return model.PollResult{Status: model.JobStatusProcessing}, nil
		}
		job.Advance(model.JobStatusProcessing, now)
	}
	metrics.ObservePoll(string(job.Status), latencyMs, true)
	p.remember(ctx, job)

	if job.Status.Terminal() {
		return terminalResult(job), nil
	}
	return model.PollResult{Status: model.JobStatusProcessing}, nil
}

func terminalResult(job *model.Job) model.PollResult {
	if job.Status == model.JobStatusCompleted {
		return model.PollResult{Status: model.JobStatusCompleted, Payload: job.Result}
	}
	return model.PollResult{
		Status: model.JobStatusFailed,
		Err:    &domain.RemoteFailure{JobID: job.ID, Message: job.LastError},
	}
}

func (p *jobPollerUC) WaitUntilDone(ctx context.Context, job *model.Job, policy WaitPolicy) (model.PollResult, error) {
	if job == nil || job.ID == "" {
		return model.PollResult{}, fmt.Errorf("%w: job id is empty", domain.ErrInvalidArgument)
	}
	policy = policy.withDefaults()
	ctx = logging.WithJobID(ctx, job.ID)
	log := logging.With(ctx, p.log)

	start := p.clock.Now()
	transient := 0
	for {
		if err := ctx.Err(); err != nil {
			metrics.IncWaitAborted("cancelled")
			return model.PollResult{}, &domain.CancelledError{JobID: job.ID, Cause: err}
		}

		res, err := p.Poll(ctx, job)
		switch {
		case err == nil && res.Done():
			metrics.IncJobFinished(string(res.Status))
			log.Info().Str("status", string(res.Status)).Dur("waited", p.clock.Now().Sub(start)).Msg("job reached terminal state")
			return res, nil
		case err != nil:
			var pe *domain.PollError
			if !errors.As(err, &pe) {
				return model.PollResult{}, err
			}
			transient++
			if transient > policy.MaxTransientErrors {
				metrics.IncWaitAborted("poll_error")
				log.Warn().Err(err).Msg("giving up on wait; resume later with the job id")
				return model.PollResult{}, err
			}
			log.Warn().Err(err).Int("attempt", transient).Msg("transient poll error, retrying")
		default:
			transient = 0
			log.Debug().Msg("transcript processing")
		}

		wait := policy.Interval
		if policy.Deadline > 0 {
			elapsed := p.clock.Now().Sub(start)
			if elapsed >= policy.Deadline {
				metrics.IncWaitAborted("timeout")
				log.Warn().Dur("deadline", policy.Deadline).Msg("wait deadline exceeded; resume later with the job id")
				return model.PollResult{}, &domain.TimeoutError{JobID: job.ID, Elapsed: elapsed.String()}
			}
			if remaining := policy.Deadline - elapsed; remaining < wait {
				wait = remaining
			}
		}

		select {
		case <-ctx.Done():
			metrics.IncWaitAborted("cancelled")
			return model.PollResult{}, &domain.CancelledError{JobID: job.ID, Cause: ctx.Err()}
		case <-p.clock.After(wait):
		}
	}
}

func (p *jobPollerUC) Resume(ctx context.Context, jobID string, policy WaitPolicy) (*model.Job, model.PollResult, error) {
	job, err := p.Lookup(ctx, jobID)
	if err != nil {
		return nil, model.PollResult{}, err
	}
	res, err := p.WaitUntilDone(ctx, job, policy)
	return job, res, err
}

// Lookup returns the remembered job, or a fresh handle for ids submitted elsewhere.
func (p *jobPollerUC) Lookup(ctx context.Context, jobID string) (*model.Job, error) {
	if jobID == "" {
		return nil, fmt.Errorf("%w: job id is empty", domain.ErrInvalidArgument)
	}
	if p.jobs != nil {
		job, err := p.jobs.FindByID(ctx, jobID)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			logging.With(ctx, p.log).Warn().Err(err).Str("job_id", jobID).Msg("job store lookup failed")
		}
	}
	now := p.clock.Now()
	return &model.Job{ID: jobID, Status: model.JobStatusSubmitted, UpdatedAt: now}, nil
}

func (p *jobPollerUC) SubResource(ctx context.Context, jobID, name string) (json.RawMessage, error) {
	if jobID == "" {
		return nil, fmt.Errorf("%w: job id is empty", domain.ErrInvalidArgument)
	}
	return p.ai.GetSubResource(ctx, jobID, name)
}

func (p *jobPollerUC) remember(ctx context.Context, job *model.Job) {
	if p.jobs == nil {
		return
	}
	if err := p.jobs.Save(ctx, job); err != nil {
		logging.With(ctx, p.log).Warn().Err(err).Str("job_id", job.ID).Msg("could not persist job record")
	}
}
