package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newTextCmd(opts *options) *cobra.Command {
	var topK int
	c := &cobra.Command{
		Use:   "text [file]",
		Short: "Print the most relevant topics of a text file, or stdin when no file is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("top") && topK <= 0 {
				return errInvalidTopic
			}
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}
			data, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}

			analyzer, closeFn, err := newAnalyzer(cmd, opts)
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := analyzer.AnalyzeText(commandContext(cmd), string(data), topK)
			if err != nil {
				return userError(err)
			}
			return printReport(cmd.OutOrStdout(), report, opts)
		},
	}
	c.Flags().IntVarP(&topK, "top", "k", 0, "number of topics (configured default when unset)")
	return c
}
