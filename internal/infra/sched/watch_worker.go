package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"transcribe-jobs/internal/domain"
	"transcribe-jobs/internal/domain/model"
	"transcribe-jobs/internal/domain/ports/repository"
	"transcribe-jobs/internal/infra/export"
	"transcribe-jobs/internal/infra/logging"
	"transcribe-jobs/internal/infra/metrics"
	"transcribe-jobs/internal/infra/worker"
	"transcribe-jobs/internal/usecase"
)

// TaskSubmitter is the part of worker.Pool the watcher needs.
type TaskSubmitter interface {
	Submit(task worker.Task) error
}

// ResultWriter persists finished payloads; export.JSONWriter satisfies it.
type ResultWriter interface {
	Write(name string, v any) (string, error)
}

// WatchWorker periodically resumes polling of every remembered, non-terminal job.
type WatchWorker struct {
	interval time.Duration
	lockTTL  time.Duration
	jobs     repository.JobRepository
	locker   repository.Locker
	poller   usecase.JobPoller
	pool     TaskSubmitter
	out      ResultWriter
	log      *zerolog.Logger
}

func NewWatchWorker(interval, lockTTL time.Duration, jobs repository.JobRepository, locker repository.Locker, poller usecase.JobPoller, pool TaskSubmitter, out ResultWriter, logger *zerolog.Logger) *WatchWorker {
	if logger == nil {
		logger = logging.Nop()
	}
	if interval <= 0 {
		interval = usecase.DefaultPollInterval
	}
	watchLog := logger.With().Str("component", "WatchWorker").Logger()
	return &WatchWorker{
		interval: interval,
		lockTTL:  lockTTL,
		jobs:     jobs,
		locker:   locker,
		poller:   poller,
		pool:     pool,
		out:      out,
		log:      &watchLog,
	}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (w *WatchWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting watch worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweepAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping watch worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweepAndLog(ctx)
		}
	}
}

func (w *WatchWorker) sweepAndLog(ctx context.Context) {
	n, err := w.Sweep(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("watch sweep error")
		return
	}
	if n > 0 {
		w.log.Debug().Int("queued", n).Msg("pending jobs queued for polling")
	}
}

// Sweep queues one poll task per pending job and returns how many were queued.
func (w *WatchWorker) Sweep(ctx context.Context) (int, error) {
	pending, err := w.jobs.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending jobs: %w", err)
	}
	metrics.IncWatchTick(len(pending))

	queued := 0
	for _, job := range pending {
		if err := w.pool.Submit(w.pollTask(job.ID)); err != nil {
			metrics.IncWatchTask("dropped")
			w.log.Warn().Err(err).Str("job_id", job.ID).Msg("poll task not queued")
			continue
		}
		queued++
	}
	return queued, nil
}

func (w *WatchWorker) pollTask(jobID string) worker.Task {
	return func(ctx context.Context) error {
		ctx = logging.WithJobID(ctx, jobID)
		log := logging.With(ctx, w.log)

		key := "job:" + jobID
		token, err := w.locker.TryLock(ctx, key, w.lockTTL)
		if errors.Is(err, domain.ErrJobLocked) {
			metrics.IncWatchTask("locked")
			log.Debug().Msg("job polled elsewhere, skipping")
			return nil
		}
		if err != nil {
			metrics.IncWatchTask("error")
			return fmt.Errorf("lock job %s: %w", jobID, err)
		}
		defer func() {
			if err := w.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
				log.Warn().Err(err).Msg("unlock failed")
			}
		}()

		// reload under the lock: another watcher may have finished the job
		job, err := w.jobs.FindByID(ctx, jobID)
		if err != nil {
			metrics.IncWatchTask("error")
			return fmt.Errorf("load job %s: %w", jobID, err)
		}
		if job.Status.Terminal() {
			return nil
		}

		res, err := w.poller.Poll(ctx, job)
		if err != nil {
			metrics.IncWatchTask("error")
			return err
		}
		metrics.IncWatchTask(string(res.Status))

		switch res.Status {
		case model.JobStatusCompleted:
			metrics.IncJobFinished(string(res.Status))
			if w.out == nil {
				log.Info().Msg("job completed")
				return nil
			}
			path, err := w.out.Write(export.CategoriesFilename(jobID), res.Payload)
			if err != nil {
				return fmt.Errorf("export job %s: %w", jobID, err)
			}
			log.Info().Str("path", path).Msg("job completed, result saved")
		case model.JobStatusFailed:
			metrics.IncJobFinished(string(res.Status))
			log.Warn().Err(res.Err).Msg("job failed remotely")
		}
		return nil
	}
}
