package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"transcribe-jobs/internal/config"
	"transcribe-jobs/internal/domain/ports/adapter"
	"transcribe-jobs/internal/domain/ports/repository"
	"transcribe-jobs/internal/infra/adapters/assemblyai"
	"transcribe-jobs/internal/infra/db/memory"
	"transcribe-jobs/internal/infra/export"
	"transcribe-jobs/internal/infra/logging"
	red "transcribe-jobs/internal/infra/redis"
	"transcribe-jobs/internal/usecase"
)

// app holds the dependencies a command needs; close releases them.
type app struct {
	cfg    *config.Config
	log    *zerolog.Logger
	ai     adapter.TranscriptionAdapter
	jobs   repository.JobRepository
	locker repository.Locker
	poller usecase.JobPoller
	// limiter is only set with the redis store
	limiter *red.RateLimiter
	out     *export.JSONWriter
	closer  func() error
}

func (a *app) close() {
	if a.closer != nil {
		if err := a.closer(); err != nil {
			a.log.Warn().Err(err).Msg("close failed")
		}
	}
}

// loadLocal prepares config, logging and output for commands that never call the API.
func loadLocal(opts *rootOptions) (*app, error) {
	cfg, err := config.Read(opts.configPath, opts.dev)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return newLocalApp(cfg, opts), nil
}

func newLocalApp(cfg *config.Config, opts *rootOptions) *app {
	if opts.outDir != "" {
		cfg.Output.Dir = opts.outDir
	}
	return &app{
		cfg: cfg,
		log: logging.New(cfg.Log, cfg.Runtime.Dev),
		out: export.NewJSONWriter(cfg.Output.Dir, cfg.Runtime.Dev),
	}
}

// loadRemote additionally builds the API adapter, job store and poller.
func loadRemote(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.LoadConfig(opts.configPath, opts.dev)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	a := newLocalApp(cfg, opts)
	a.log.Debug().Str("api_key", logging.Redact(cfg.API.Key, cfg.Runtime.Dev)).Str("base_url", cfg.API.BaseURL).Msg("config loaded")

	ai, err := assemblyai.New(assemblyai.Config{
		BaseURL:       cfg.API.BaseURL,
		APIKey:        cfg.API.Key,
		Timeout:       cfg.API.Timeout,
		ResultField:   cfg.API.ResultField,
		IABCategories: cfg.API.IABCategories,
	})
	if err != nil {
		return nil, fmt.Errorf("transcription adapter: %w", err)
	}
	a.ai = assemblyai.NewLimited(ai, cfg.API.MaxConcurrent)

	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.jobs = red.NewJobRepo(rc, cfg.Redis.TTL)
		a.locker = red.NewLocker(rc)
		a.limiter = red.NewRateLimiter(rc)
		a.closer = rc.Close
		a.log.Debug().Str("addr", cfg.Redis.URL).Msg("job store: redis")
	} else {
		a.jobs = memory.NewJobRepo()
		a.locker = memory.NewLocker()
		a.log.Debug().Msg("job store: memory")
	}

	a.poller = usecase.NewJobPoller(a.ai, a.jobs, cfg.Upload.ChunkSize, a.log)
	return a, nil
}

func (a *app) waitPolicy(f *waitFlags) usecase.WaitPolicy {
	p := usecase.WaitPolicy{
		Interval:           a.cfg.Poll.Interval,
		Deadline:           a.cfg.Poll.Deadline,
		MaxTransientErrors: a.cfg.Poll.MaxTransientErrors,
	}
	if f == nil {
		return p
	}
	if f.interval > 0 {
		p.Interval = f.interval
	}
	if f.deadline > 0 {
		p.Deadline = f.deadline
	}
	if f.retries >= 0 {
		p.MaxTransientErrors = f.retries
	}
	return p
}
