package usecase

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"

	"transcribe-jobs/internal/domain"
	"transcribe-jobs/internal/domain/model"
	"transcribe-jobs/internal/domain/ports/repository"
)

type statusErr struct{ code int }

func (e statusErr) Error() string   { return "rejected" }
func (e statusErr) HTTPStatus() int { return e.code }

func newPoller(remote *stubRemote, repo *memJobRepo, clock *fakeClock) *jobPollerUC {
	var jobs repository.JobRepository
	if repo != nil {
		jobs = repo
	}
	p := NewJobPoller(remote, jobs, 4, nil)
	if clock != nil {
		p.WithClock(clock)
	}
	return p
}

func TestSubmit_UploadsInOrderAndCreatesJob(t *testing.T) {
	data := make([]byte, 1001)
	rand.New(rand.NewSource(1)).Read(data)
	remote := newStubRemote()
	repo := newMemJobRepo()

	job, err := newPoller(remote, repo, newFakeClock()).Submit(context.Background(), bytes.NewReader(data), map[string]string{"language_code": "en"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !bytes.Equal(remote.uploaded, data) {
		t.Fatalf("uploaded bytes differ from source")
	}
	if job.ID != "job-123" || job.Status != model.JobStatusSubmitted || job.SubmissionID == "" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if remote.lastReq.AudioURL != remote.uploadURL || remote.lastReq.Metadata["language_code"] != "en" {
		t.Fatalf("job request: %+v", remote.lastReq)
	}
	if _, err := repo.FindByID(context.Background(), "job-123"); err != nil {
		t.Fatalf("submitted job should be remembered: %v", err)
	}
}

func TestSubmit_Failures(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		setup     func(*stubRemote)
		wantStage string
		wantCode  int
		wantIs    error
	}{
		{name: "empty source", source: "", wantStage: domain.StageUpload, wantIs: domain.ErrEmptySource},
		{
			name:      "upload rejected",
			source:    "abc",
			setup:     func(s *stubRemote) { s.uploadErr = statusErr{code: 401} },
			wantStage: domain.StageUpload,
			wantCode:  401,
		},
		{
			name:      "create rejected",
			source:    "abc",
			setup:     func(s *stubRemote) { s.createErr = statusErr{code: 400} },
			wantStage: domain.StageCreate,
			wantCode:  400,
		},
		{
			name:      "create missing id",
			source:    "abc",
			setup:     func(s *stubRemote) { s.createErr = domain.ErrMissingField },
			wantStage: domain.StageCreate,
			wantIs:    domain.ErrMissingField,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := newStubRemote()
			if tt.setup != nil {
				tt.setup(remote)
			}
			repo := newMemJobRepo()
			job, err := newPoller(remote, repo, nil).Submit(context.Background(), strings.NewReader(tt.source), nil)
			if job != nil {
				t.Fatalf("no job expected, got %+v", job)
			}
			var se *domain.SubmissionError
			if !errors.As(err, &se) {
				t.Fatalf("want SubmissionError, got %v", err)
			}
			if se.Stage != tt.wantStage || se.StatusCode != tt.wantCode {
				t.Fatalf("got stage=%s code=%d", se.Stage, se.StatusCode)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Fatalf("want %v in chain, got %v", tt.wantIs, err)
			}
			if repo.saves != 0 {
				t.Fatalf("nothing should be stored on submission failure")
			}
		})
	}
}

func TestSubmit_StoreFailureStillReturnsJob(t *testing.T) {
	repo := newMemJobRepo()
	repo.saveErr = errors.New("redis down")
	job, err := newPoller(newStubRemote(), repo, nil).Submit(context.Background(), strings.NewReader("abc"), nil)
	if err != nil || job == nil || job.ID != "job-123" {
		t.Fatalf("job id must survive a store failure: job=%v err=%v", job, err)
	}
}

func TestPoll_CompletedWithPayload(t *testing.T) {
	remote := newStubRemote(completed(`{"x":1}`))
	job := &model.Job{ID: "job-123", Status: model.JobStatusSubmitted}

	res, err := newPoller(remote, newMemJobRepo(), newFakeClock()).Poll(context.Background(), job)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if res.Status != model.JobStatusCompleted || string(res.Payload) != `{"x":1}` {
		t.Fatalf("got %+v", res)
	}
	if job.Status != model.JobStatusCompleted {
		t.Fatalf("job not advanced: %s", job.Status)
	}
}

func TestPoll_CompletedWithoutPayloadIsPollError(t *testing.T) {
	remote := newStubRemote(completed(""))
	job := &model.Job{ID: "job-123", Status: model.JobStatusProcessing}

	res, err := newPoller(remote, newMemJobRepo(), nil).Poll(context.Background(), job)
	var pe *domain.PollError
	if !errors.As(err, &pe) || !errors.Is(err, domain.ErrMissingPayload) {
		t.Fatalf("want PollError(ErrMissingPayload), got %v", err)
	}
	if pe.JobID != "job-123" {
		t.Fatalf("poll error lost job id: %q", pe.JobID)
	}
	if res.Status != "" || res.Payload != nil {
		t.Fatalf("no result expected, got %+v", res)
	}
	if job.Status != model.JobStatusProcessing {
		t.Fatalf("job must not advance on a poll error, got %s", job.Status)
	}
}

func TestPoll_ProcessingAndTransportError(t *testing.T) {
	remote := newStubRemote(processing(), transportError())
	p := newPoller(remote, newMemJobRepo(), nil)
	job := &model.Job{ID: "job-123", Status: model.JobStatusSubmitted}

	res, err := p.Poll(context.Background(), job)
	if err != nil || res.Status != model.JobStatusProcessing || job.Status != model.JobStatusProcessing {
		t.Fatalf("got res=%+v err=%v job=%s", res, err, job.Status)
	}

	_, err = p.Poll(context.Background(), job)
	var pe *domain.PollError
	if !errors.As(err, &pe) {
		t.Fatalf("want PollError, got %v", err)
	}
}

func TestPoll_FailedIsDataAndAbsorbing(t *testing.T) {
	remote := newStubRemote(remoteError("audio too short"), completed(`{"x":1}`))
	p := newPoller(remote, newMemJobRepo(), nil)
	job := &model.Job{ID: "job-123", Status: model.JobStatusProcessing}

	for i := 0; i < 3; i++ {
		res, err := p.Poll(context.Background(), job)
		if err != nil {
			t.Fatalf("failed status must be data, not an error: %v", err)
		}
		if res.Status != model.JobStatusFailed {
			t.Fatalf("poll %d: status %s, failed must be absorbing", i, res.Status)
		}
		var rf *domain.RemoteFailure
		if !errors.As(res.Err, &rf) || rf.Message != "audio too short" {
			t.Fatalf("poll %d: remote failure = %v", i, res.Err)
		}
	}
	if remote.calls() != 1 {
		t.Fatalf("terminal job polled remotely %d times", remote.calls())
	}
}

func TestPoll_CompletedIsIdempotent(t *testing.T) {
	remote := newStubRemote(completed(`{"labels":["a"]}`), remoteError("late"))
	p := newPoller(remote, newMemJobRepo(), nil)
	job := &model.Job{ID: "job-123", Status: model.JobStatusProcessing}

	first, err := p.Poll(context.Background(), job)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := p.Poll(context.Background(), job)
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("repeated poll differs: %+v vs %+v", first, again)
		}
	}
}

func TestPoll_RejectsEmptyJob(t *testing.T) {
	_, err := newPoller(newStubRemote(), nil, nil).Poll(context.Background(), &model.Job{})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}

func TestWaitUntilDone_TwoSuspensionsThenCompleted(t *testing.T) {
	remote := newStubRemote(processing(), processing(), completed(`{"x":1}`))
	clock := newFakeClock()
	repo := newMemJobRepo()
	p := newPoller(remote, repo, clock)
	job := &model.Job{ID: "job-123", Status: model.JobStatusSubmitted}

	res, err := p.WaitUntilDone(context.Background(), job, WaitPolicy{Interval: 30 * time.Second})
	if err != nil {
		t.Fatalf("WaitUntilDone: %v", err)
	}
	if res.Status != model.JobStatusCompleted || string(res.Payload) != `{"x":1}` {
		t.Fatalf("got %+v", res)
	}
	want := []time.Duration{30 * time.Second, 30 * time.Second}
	if !reflect.DeepEqual(clock.sleeps, want) {
		t.Fatalf("sleeps = %v, want %v", clock.sleeps, want)
	}
	stored, _ := repo.FindByID(context.Background(), "job-123")
	if stored == nil || stored.Status != model.JobStatusCompleted {
		t.Fatalf("terminal state not persisted: %+v", stored)
	}
}

func TestWaitUntilDone_DefaultIntervalIs30s(t *testing.T) {
	remote := newStubRemote(processing(), completed(`{}`))
	clock := newFakeClock()
	_, err := newPoller(remote, nil, clock).WaitUntilDone(context.Background(), &model.Job{ID: "j"}, WaitPolicy{})
	if err != nil {
		t.Fatalf("WaitUntilDone: %v", err)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 30*time.Second {
		t.Fatalf("sleeps = %v", clock.sleeps)
	}
}

func TestWaitUntilDone_FailedReturnedAsData(t *testing.T) {
	remote := newStubRemote(processing(), remoteError("bad audio"))
	res, err := newPoller(remote, nil, newFakeClock()).WaitUntilDone(context.Background(), &model.Job{ID: "j"}, WaitPolicy{Interval: time.Second})
	if err != nil {
		t.Fatalf("failed job must not be an error: %v", err)
	}
	if res.Status != model.JobStatusFailed || res.Err == nil {
		t.Fatalf("got %+v", res)
	}
}

func TestWaitUntilDone_DeadlineTimeoutKeepsSubmissionJobID(t *testing.T) {
	remote := newStubRemote(processing())
	clock := newFakeClock()
	p := newPoller(remote, newMemJobRepo(), clock)

	job, err := p.Submit(context.Background(), strings.NewReader("audio"), nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	_, err = p.WaitUntilDone(context.Background(), job, WaitPolicy{Interval: 30 * time.Second, Deadline: 75 * time.Second})
	var te *domain.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("want TimeoutError, got %v", err)
	}
	if te.JobID != job.ID {
		t.Fatalf("timeout job id %q != submitted %q", te.JobID, job.ID)
	}
	if id, ok := domain.JobIDOf(err); !ok || id != job.ID {
		t.Fatalf("JobIDOf = %q, %v", id, ok)
	}
	// polls at 0s, 30s, 60s and a final one at the 75s deadline
	want := []time.Duration{30 * time.Second, 30 * time.Second, 15 * time.Second}
	if !reflect.DeepEqual(clock.sleeps, want) {
		t.Fatalf("sleeps = %v, want %v", clock.sleeps, want)
	}
	if remote.calls() != 4 {
		t.Fatalf("polls = %d, want 4", remote.calls())
	}
}

func TestWaitUntilDone_AbortsOnFirstTransientErrorByDefault(t *testing.T) {
	remote := newStubRemote(processing(), transportError(), completed(`{}`))
	clock := newFakeClock()
	_, err := newPoller(remote, nil, clock).WaitUntilDone(context.Background(), &model.Job{ID: "job-9"}, WaitPolicy{Interval: time.Second})

	var pe *domain.PollError
	if !errors.As(err, &pe) || pe.JobID != "job-9" {
		t.Fatalf("want PollError for job-9, got %v", err)
	}
	if !strings.Contains(err.Error(), "job-9") {
		t.Fatalf("error message must surface the job id: %q", err.Error())
	}
	if remote.calls() != 2 {
		t.Fatalf("polls = %d, want 2", remote.calls())
	}
}

func TestWaitUntilDone_RetriesTransientErrorsWhenAllowed(t *testing.T) {
	remote := newStubRemote(transportError(), transportError(), completed(`{"ok":true}`))
	res, err := newPoller(remote, nil, newFakeClock()).WaitUntilDone(context.Background(), &model.Job{ID: "j"},
		WaitPolicy{Interval: time.Second, MaxTransientErrors: 2})
	if err != nil {
		t.Fatalf("WaitUntilDone: %v", err)
	}
	if res.Status != model.JobStatusCompleted {
		t.Fatalf("got %+v", res)
	}

	remote = newStubRemote(transportError())
	_, err = newPoller(remote, nil, newFakeClock()).WaitUntilDone(context.Background(), &model.Job{ID: "j"},
		WaitPolicy{Interval: time.Second, MaxTransientErrors: 2})
	var pe *domain.PollError
	if !errors.As(err, &pe) {
		t.Fatalf("want PollError after exhausting retries, got %v", err)
	}
	if remote.calls() != 3 {
		t.Fatalf("polls = %d, want 3", remote.calls())
	}
}

func TestWaitUntilDone_CancelledBetweenPolls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	remote := newStubRemote(processing())
	_, err := newPoller(remote, nil, newFakeClock()).WaitUntilDone(ctx, &model.Job{ID: "job-c"}, WaitPolicy{Interval: time.Second})

	var ce *domain.CancelledError
	if !errors.As(err, &ce) || ce.JobID != "job-c" || !errors.Is(err, context.Canceled) {
		t.Fatalf("want CancelledError for job-c, got %v", err)
	}
	if remote.calls() != 0 {
		t.Fatalf("no request should start after cancellation")
	}
}

func TestWaitUntilDone_RealClockShortInterval(t *testing.T) {
	remote := newStubRemote(processing(), completed(`{"x":1}`))
	start := time.Now()
	res, err := NewJobPoller(remote, nil, 0, nil).WaitUntilDone(context.Background(), &model.Job{ID: "j"}, WaitPolicy{Interval: 10 * time.Millisecond})
	if err != nil || res.Status != model.JobStatusCompleted {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("wait returned before one interval elapsed")
	}
}

func TestResume_UsesStoredJobOrAdoptsUnknownID(t *testing.T) {
	repo := newMemJobRepo()
	_ = repo.Save(context.Background(), &model.Job{ID: "known", Status: model.JobStatusCompleted, Result: []byte(`{"x":1}`)})
	remote := newStubRemote(completed(`{"y":2}`))
	p := newPoller(remote, repo, newFakeClock())

	job, res, err := p.Resume(context.Background(), "known", WaitPolicy{})
	if err != nil || string(res.Payload) != `{"x":1}` || job.ID != "known" {
		t.Fatalf("stored terminal job should be returned as is: res=%+v err=%v", res, err)
	}
	if remote.calls() != 0 {
		t.Fatalf("stored terminal job must not be polled")
	}

	job, res, err = p.Resume(context.Background(), "elsewhere", WaitPolicy{})
	if err != nil || string(res.Payload) != `{"y":2}` || job.Status != model.JobStatusCompleted {
		t.Fatalf("unknown id should be adopted and polled: res=%+v err=%v", res, err)
	}
}

func TestSubResource(t *testing.T) {
	remote := newStubRemote()
	remote.subResources["sentences"] = []byte(`{"sentences":[]}`)
	p := newPoller(remote, nil, nil)

	raw, err := p.SubResource(context.Background(), "j", "sentences")
	if err != nil || string(raw) != `{"sentences":[]}` {
		t.Fatalf("raw=%s err=%v", raw, err)
	}
	if _, err := p.SubResource(context.Background(), "", "sentences"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}
