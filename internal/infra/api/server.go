package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"transcribe-jobs/internal/infra/api/apiv1"
	"transcribe-jobs/internal/infra/logging"
)

// Options configures the admin HTTP surface.
type Options struct {
	APIKey         string
	RequestTimeout time.Duration
	// Metrics defaults to the promhttp default handler.
	Metrics http.Handler
}

// NewRouter mounts /health, /metrics and the authenticated /api/v1 routes.
func NewRouter(srv *apiv1.Server, opts Options, logger *zerolog.Logger) http.Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", opts.Metrics)
	r.Group(func(r chi.Router) {
		r.Use(BearerKey(opts.APIKey), Timeout(opts.RequestTimeout))
		apiv1.RegisterAPIV1(r, srv)
	})

	return Chain(r, TraceID(logger), Recover(logger), RequestLog(logger))
}

// Serve runs the admin server until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, handler http.Handler, port int, logger *zerolog.Logger) error {
	if logger == nil {
		logger = logging.Nop()
	}
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpSrv.Addr).Msg("admin server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("admin server shutdown: %w", err)
	}
	logger.Info().Msg("admin server stopped")
	return nil
}
