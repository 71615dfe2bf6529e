package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"transcribe-jobs/internal/infra/api"
	"transcribe-jobs/internal/infra/api/apiv1"
	red "transcribe-jobs/internal/infra/redis"
	"transcribe-jobs/internal/infra/sched"
	"transcribe-jobs/internal/infra/worker"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		noAdmin bool
		port    int
	)
	cmd := &cobra.Command{
		Use:   "watch [job-id...]",
		Short: "Keep polling every remembered job until it finishes",
		Long:  "watch periodically polls all non-terminal jobs in the job store, saving results as they complete. Job ids given as arguments are adopted first. An admin HTTP API is served alongside unless --no-admin is set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadRemote(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()
			if cmd.Flags().Changed("port") {
				a.cfg.Admin.Port = port
			}
			return runWatch(cmd.Context(), a, args, !noAdmin)
		},
	}
	cmd.Flags().BoolVar(&noAdmin, "no-admin", false, "do not serve the admin HTTP API")
	cmd.Flags().IntVar(&port, "port", 0, "admin API port (default admin.port)")
	return cmd
}

func runWatch(ctx context.Context, a *app, adopt []string, admin bool) error {
	for _, id := range adopt {
		job, err := a.poller.Lookup(ctx, id)
		if err != nil {
			return err
		}
		if err := a.jobs.Save(ctx, job); err != nil {
			return fmt.Errorf("adopt job %s: %w", id, err)
		}
	}

	pool := worker.NewPool(a.cfg.Watch.Workers, a.log)
	pool.Start(ctx)
	defer pool.Stop()

	w := sched.NewWatchWorker(a.cfg.Watch.Interval, a.cfg.Watch.LockTTL, a.jobs, a.locker, a.poller, pool, a.out, a.log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	if admin {
		srv := apiv1.NewServer(a.poller, a.jobs, a.log)
		if a.limiter != nil {
			srv.WithPollLimit(a.limiter, a.cfg.Admin.PollLimit, a.cfg.Admin.PollWindow, red.PollKey)
		}
		h := api.NewRouter(srv, api.Options{APIKey: a.cfg.Admin.APIKey, RequestTimeout: a.cfg.API.Timeout}, a.log)
		g.Go(func() error { return api.Serve(gctx, h, a.cfg.Admin.Port, a.log) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		a.log.Info().Msg("watch stopped")
		return nil
	}
	return err
}
