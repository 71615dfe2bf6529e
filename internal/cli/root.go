// Package cli wires the transcribe commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"transcribe-jobs/internal/infra/metrics"
)

type rootOptions struct {
	configPath string
	dev        bool
	outDir     string
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "transcribe",
		Short:         "Submit audio for transcription and query transcript documents",
		Long:          "transcribe uploads audio to the transcription API, follows the job until it finishes and queries transcript JSON documents on disk.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to YAML config file")
	root.PersistentFlags().BoolVar(&opts.dev, "dev", false, "developer mode (console logs, debug level)")
	root.PersistentFlags().StringVarP(&opts.outDir, "out", "o", "", "directory for saved files (overrides output.dir)")

	root.AddCommand(
		newDocCmd(opts),
		newSubmitCmd(opts),
		newPollCmd(opts),
		newWaitCmd(opts),
		newSubResourceCmd(opts, "sentences"),
		newSubResourceCmd(opts, "paragraphs"),
		newWatchCmd(opts),
		newAutoCmd(opts),
	)
	return root
}

// Execute runs the CLI with signal-aware cancellation and returns the process exit code.
func Execute(version, commit string) int {
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.Version = version
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
