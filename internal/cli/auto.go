package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"transcribe-jobs/internal/usecase"
)

func newAutoCmd(opts *rootOptions) *cobra.Command {
	var wf waitFlags
	cmd := &cobra.Command{
		Use:   "auto <file>",
		Short: "List keys of a .json document, or submit any other file as audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if strings.EqualFold(filepath.Ext(path), ".json") {
				if _, err := loadLocal(opts); err != nil {
					return err
				}
				docs := usecase.NewDocumentUseCase()
				doc, err := docs.Load(path)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "The keys in the document are")
				return printJSON(cmd.OutOrStdout(), docs.Keys(doc))
			}

			a, err := loadRemote(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()
			return runSubmit(cmd, a, path, nil, false, &wf)
		},
	}
	wf.bind(cmd)
	return cmd
}
