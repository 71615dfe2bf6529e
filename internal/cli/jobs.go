package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"transcribe-jobs/internal/domain"
	"transcribe-jobs/internal/domain/model"
	"transcribe-jobs/internal/infra/export"
)

type waitFlags struct {
	interval time.Duration
	deadline time.Duration
	retries  int
}

func (f *waitFlags) bind(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.interval, "interval", 0, "pause between status checks (default poll.interval)")
	cmd.Flags().DurationVar(&f.deadline, "deadline", 0, "give up after this long (default poll.deadline, 0 = never)")
	cmd.Flags().IntVar(&f.retries, "retries", -1, "consecutive transient poll errors to tolerate (default poll.max_transient_errors)")
}

func newSubmitCmd(opts *rootOptions) *cobra.Command {
	var (
		meta   map[string]string
		noWait bool
		wf     waitFlags
	)
	cmd := &cobra.Command{
		Use:   "submit <audio-file>",
		Short: "Upload audio, create a transcription job and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadRemote(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()
			return runSubmit(cmd, a, args[0], meta, noWait, &wf)
		},
	}
	cmd.Flags().StringToStringVarP(&meta, "meta", "m", nil, "extra job-creation fields, e.g. -m language_code=en_us")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "print the job id and exit without polling")
	wf.bind(cmd)
	return cmd
}

func runSubmit(cmd *cobra.Command, a *app, path string, meta map[string]string, noWait bool, wf *waitFlags) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	out := cmd.OutOrStdout()
	job, err := a.poller.Submit(cmd.Context(), f, meta)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Uploaded to", job.UploadURL)
	fmt.Fprintln(out, "Transcribing job", job.ID)
	if noWait {
		return nil
	}

	res, err := a.poller.WaitUntilDone(cmd.Context(), job, a.waitPolicy(wf))
	if err != nil {
		return abortHint(cmd, err)
	}
	return finish(cmd, a, job, res)
}

func newPollCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "poll <job-id>",
		Short: "Check a job's status once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadRemote(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			job, err := a.poller.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res, err := a.poller.Poll(cmd.Context(), job)
			if err != nil {
				return abortHint(cmd, err)
			}
			if !res.Done() {
				fmt.Fprintln(cmd.OutOrStdout(), "Transcript processing ...")
				return nil
			}
			return finish(cmd, a, job, res)
		},
	}
}

func newWaitCmd(opts *rootOptions) *cobra.Command {
	var wf waitFlags
	cmd := &cobra.Command{
		Use:   "wait <job-id>",
		Short: "Resume waiting on a previously submitted job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadRemote(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			job, res, err := a.poller.Resume(cmd.Context(), args[0], a.waitPolicy(&wf))
			if err != nil {
				return abortHint(cmd, err)
			}
			return finish(cmd, a, job, res)
		},
	}
	wf.bind(cmd)
	return cmd
}

func newSubResourceCmd(opts *rootOptions, name string) *cobra.Command {
	var download bool
	cmd := &cobra.Command{
		Use:   name + " <job-id>",
		Short: "Fetch the " + name + " of a finished transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadRemote(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			raw, err := a.poller.SubResource(cmd.Context(), args[0], name)
			if err != nil {
				return err
			}
			if download {
				return save(cmd, a, args[0]+"_"+name+".json", raw)
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
	cmd.Flags().BoolVarP(&download, "download", "d", false, "save to a JSON file instead of printing")
	return cmd
}

// finish reports a terminal result and saves a completed payload.
func finish(cmd *cobra.Command, a *app, job *model.Job, res model.PollResult) error {
	if res.Status == model.JobStatusFailed {
		return res.Err
	}
	return save(cmd, a, export.CategoriesFilename(job.ID), res.Payload)
}

// abortHint prints how to pick an abandoned wait back up.
func abortHint(cmd *cobra.Command, err error) error {
	if id, ok := domain.JobIDOf(err); ok {
		var te *domain.TimeoutError
		if errors.As(err, &te) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Expected to wait roughly 30% of the audio length.")
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Resume later with: transcribe wait %s\n", id)
	}
	return err
}
