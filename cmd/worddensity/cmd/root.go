package cmd

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/density"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/document"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/logger"
)

var (
	errNoURL        = errors.New("no URL")
	errInvalidTopic = errors.New(density.ErrInvalidTopK)
)

type options struct {
	configPath string
	logLevel   string
	asJSON     bool
	showFreq   bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "worddensity",
		Short:         "worddensity: find the most relevant topics of a document",
		Long:          "Ranks the most frequent phrases of a web page or text, preferring longer phrases on ties.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (defaults when empty)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print the full report as JSON")
	root.PersistentFlags().BoolVar(&opts.showFreq, "freq", false, "print phrase frequencies")

	root.AddCommand(newTopicsCmd(opts))
	root.AddCommand(newTextCmd(opts))
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// newAnalyzer loads the config and builds an analyzer with a live fetcher.
// The returned close func releases the fetcher.
func newAnalyzer(cmd *cobra.Command, opts *options) (*density.Analyzer, func(), error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	// Library logging goes to stderr so stdout stays parseable.
	slog.SetDefault(logger.New(cmd.ErrOrStderr(), opts.logLevel, "text"))
	fetcher := document.NewFetcher(cfg.Fetch)
	analyzer := density.NewAnalyzer(cfg.Analysis, fetcher)
	slog.Debug("analyzer ready",
		"default_k", cfg.Analysis.DefaultTopK,
		"stemming", cfg.Analysis.Stemming,
	)
	return analyzer, fetcher.Close, nil
}

// parseTopK reads the optional k argument. Zero means "use the default";
// anything unparsable or not positive is rejected.
func parseTopK(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	k, err := strconv.Atoi(args[0])
	if err != nil || k <= 0 {
		return 0, errInvalidTopic
	}
	return k, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
