// Package apiv1 serves the read and poll endpoints for remembered transcription jobs.
package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"transcribe-jobs/internal/domain"
	"transcribe-jobs/internal/domain/model"
	"transcribe-jobs/internal/domain/ports/repository"
	"transcribe-jobs/internal/infra/logging"
	"transcribe-jobs/internal/usecase"
)

// Limiter caps how often a key may be hit within a window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Server struct {
	poller usecase.JobPoller
	jobs   repository.JobRepository
	log    *zerolog.Logger

	limiter    Limiter
	pollLimit  int
	pollWindow time.Duration
	limiterKey func(jobID string) string
}

func NewServer(poller usecase.JobPoller, jobs repository.JobRepository, logger *zerolog.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	l := logger.With().Str("component", "apiv1").Logger()
	return &Server{poller: poller, jobs: jobs, log: &l}
}

// WithPollLimit rate-limits manual polls of a single job.
func (s *Server) WithPollLimit(l Limiter, limit int, window time.Duration, key func(jobID string) string) *Server {
	s.limiter = l
	s.pollLimit = limit
	s.pollWindow = window
	s.limiterKey = key
	return s
}

// RegisterAPIV1 attaches the /api/v1 routes using absolute paths.
func RegisterAPIV1(r chi.Router, srv *Server) {
	r.Get("/api/v1/jobs", srv.listJobs)
	r.Get("/api/v1/jobs/{id}", srv.getJob)
	r.Post("/api/v1/jobs/{id}/poll", srv.pollJob)
}

// Job is the wire form of a remembered job.
type Job struct {
	ID           string            `json:"id"`
	SubmissionID string            `json:"submission_id,omitempty"`
	Status       string            `json:"status"`
	UploadURL    string            `json:"upload_url,omitempty"`
	Error        string            `json:"error,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Result       json.RawMessage   `json:"result,omitempty"`
	SubmittedAt  *time.Time        `json:"submitted_at,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

type PollResponse struct {
	Job    Job             `json:"job"`
	Status string          `json:"status"`
	Done   bool            `json:"done"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
	JobID string `json:"job_id,omitempty"`
}

func toJob(j *model.Job, withResult bool) Job {
	out := Job{
		ID:           j.ID,
		SubmissionID: j.SubmissionID,
		Status:       string(j.Status),
		UploadURL:    j.UploadURL,
		Error:        j.LastError,
		Metadata:     j.Metadata,
		UpdatedAt:    j.UpdatedAt,
	}
	if !j.SubmittedAt.IsZero() {
		at := j.SubmittedAt
		out.SubmittedAt = &at
	}
	if withResult {
		out.Result = j.Result
	}
	return out
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	var (
		jobs []*model.Job
		err  error
	)
	switch filter := r.URL.Query().Get("status"); filter {
	case "":
		jobs, err = s.jobs.List(r.Context())
	case "pending":
		jobs, err = s.jobs.ListPending(r.Context())
	default:
		if !validStatus(model.JobStatus(filter)) {
			s.writeError(w, r, http.StatusBadRequest, errors.New("unknown status filter"), "")
			return
		}
		jobs, err = s.jobs.List(r.Context())
		jobs = filterStatus(jobs, model.JobStatus(filter))
	}
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err, "")
		return
	}

	items := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, toJob(j, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func validStatus(s model.JobStatus) bool {
	switch s {
	case model.JobStatusSubmitted, model.JobStatusProcessing, model.JobStatusCompleted, model.JobStatusFailed:
		return true
	}
	return false
}

func filterStatus(jobs []*model.Job, st model.JobStatus) []*model.Job {
	out := jobs[:0]
	for _, j := range jobs {
		if j.Status == st {
			out = append(out, j)
		}
	}
	return out
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.jobs.FindByID(r.Context(), id)
	if err != nil {
		s.writeMapped(w, r, err, id)
		return
	}
	writeJSON(w, http.StatusOK, toJob(job, true))
}

// pollJob runs a single status check; unknown ids are adopted and remembered.
func (s *Server) pollJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := logging.WithJobID(r.Context(), id)
	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, s.limiterKey(id), s.pollLimit, s.pollWindow)
		if err != nil {
			logging.With(ctx, s.log).Warn().Err(err).Msg("poll limiter unavailable")
		} else if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(s.pollWindow/time.Second)))
			s.writeError(w, r, http.StatusTooManyRequests, errors.New("poll limit reached for this job"), id)
			return
		}
	}
	job, err := s.poller.Lookup(ctx, id)
	if err != nil {
		s.writeMapped(w, r, err, id)
		return
	}
	res, err := s.poller.Poll(ctx, job)
	if err != nil {
		s.writeMapped(w, r, err, id)
		return
	}

	out := PollResponse{
		Job:    toJob(job, false),
		Status: string(res.Status),
		Done:   res.Done(),
		Result: res.Payload,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeMapped(w http.ResponseWriter, r *http.Request, err error, jobID string) {
	var pe *domain.PollError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, r, http.StatusNotFound, err, jobID)
	case errors.Is(err, domain.ErrInvalidArgument):
		s.writeError(w, r, http.StatusBadRequest, err, jobID)
	case errors.As(err, &pe):
		s.writeError(w, r, http.StatusBadGateway, err, pe.JobID)
	default:
		s.writeError(w, r, http.StatusInternalServerError, err, jobID)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, code int, err error, jobID string) {
	if code >= http.StatusInternalServerError {
		logging.With(r.Context(), s.log).Error().Err(err).Str("job_id", jobID).Msg("request failed")
	}
	writeJSON(w, code, errorBody{Error: err.Error(), JobID: jobID})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
