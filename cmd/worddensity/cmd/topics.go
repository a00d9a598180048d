package cmd

import (
	"github.com/spf13/cobra"
)

func newTopicsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "topics <url> [k]",
		Short: "Print the k most relevant topics of a web page",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || args[0] == "" {
				return errNoURL
			}
			k, err := parseTopK(args[1:])
			if err != nil {
				return err
			}
			analyzer, closeFn, err := newAnalyzer(cmd, opts)
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := analyzer.AnalyzeURL(commandContext(cmd), args[0], k)
			if err != nil {
				return userError(err)
			}
			return printReport(cmd.OutOrStdout(), report, opts)
		},
	}
}
