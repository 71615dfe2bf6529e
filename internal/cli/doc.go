package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"transcribe-jobs/internal/domain/model"
	"transcribe-jobs/internal/usecase"
)

func newDocCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Query a transcript JSON document on disk",
	}
	docs := usecase.NewDocumentUseCase()

	load := func(path string) (*app, *model.Document, error) {
		a, err := loadLocal(opts)
		if err != nil {
			return nil, nil, err
		}
		doc, err := docs.Load(path)
		if err != nil {
			return nil, nil, err
		}
		return a, doc, nil
	}

	keys := &cobra.Command{
		Use:   "keys <file.json>",
		Short: "List the document's top-level keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, doc, err := load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "The keys in the document are")
			return printJSON(cmd.OutOrStdout(), docs.Keys(doc))
		},
	}

	key := &cobra.Command{
		Use:   "key <file.json> <key>",
		Short: "Print the value stored under a top-level key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, doc, err := load(args[0])
			if err != nil {
				return err
			}
			v, err := docs.Key(doc, args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}

	var (
		resultKey      string
		resultDownload bool
	)
	results := &cobra.Command{
		Use:   "results <file.json>",
		Short: "Print the results list, or one key aggregated across its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, doc, err := load(args[0])
			if err != nil {
				return err
			}
			v, err := docs.Results(doc, resultKey)
			if err != nil {
				return err
			}
			if resultDownload {
				return save(cmd, a, usecase.ResultsFilename(resultKey), v)
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
	results.Flags().StringVarP(&resultKey, "key", "k", "", "aggregate this key across result entries")
	results.Flags().BoolVarP(&resultDownload, "download", "d", false, "save to a JSON file instead of printing")

	summary := &cobra.Command{
		Use:   "summary <file.json>",
		Short: "Print the document summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, doc, err := load(args[0])
			if err != nil {
				return err
			}
			v, err := docs.Summary(doc)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}

	var sentences, paragraphs, textDownload bool
	text := &cobra.Command{
		Use:   "text <file.json>",
		Short: "Print the transcript text as one block, sentences or paragraphs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sentences && paragraphs {
				return errors.New("--sentences and --paragraphs are mutually exclusive")
			}
			mode := model.TextBlock
			switch {
			case sentences:
				mode = model.TextSentences
			case paragraphs:
				mode = model.TextParagraphs
			}
			a, doc, err := load(args[0])
			if err != nil {
				return err
			}
			view, err := docs.Text(doc, mode)
			if err != nil {
				return err
			}
			v := textViewValue(view)
			if err := printJSON(cmd.OutOrStdout(), v); err != nil {
				return err
			}
			if textDownload {
				return save(cmd, a, mode.Filename(), v)
			}
			return nil
		},
	}
	text.Flags().BoolVarP(&sentences, "sentences", "s", false, "split into sentences")
	text.Flags().BoolVarP(&paragraphs, "paragraphs", "p", false, "one entry per result paragraph")
	text.Flags().BoolVarP(&textDownload, "download", "d", false, "also save to a JSON file")

	cmd.AddCommand(keys, key, results, summary, text)
	return cmd
}

func save(cmd *cobra.Command, a *app, name string, v any) error {
	path, err := a.out.Write(name, v)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "File saved to", path)
	return nil
}
