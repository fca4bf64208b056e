package commands

import (
	"cmp"
	"context"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/healthfang/pkg/config"
	"github.com/Sumatoshi-tech/healthfang/pkg/coordinator"
	"github.com/Sumatoshi-tech/healthfang/pkg/observability"
	"github.com/Sumatoshi-tech/healthfang/pkg/report"
	"github.com/Sumatoshi-tech/healthfang/pkg/source"
)

const (
	analyzeCmdUse   = "analyze <events-file>"
	analyzeCmdShort = "Compute metrics for one repository from an events dump"
	analyzeCmdLong  = `Aggregate the git events of a dump file without contacting the backend.

The file holds a JSON array, newline-delimited JSON or search hits
("_source" wrapped); a .lz4 suffix selects LZ4 decompression.`
)

type analyzeOptions struct {
	commonOptions

	repository string
}

// NewAnalyzeCommand creates the analyze subcommand.
func NewAnalyzeCommand() *cobra.Command {
	return buildAnalyzeCommand(config.New())
}

func buildAnalyzeCommand(v *viper.Viper) *cobra.Command {
	opts := &analyzeOptions{}

	var bound bindings

	cmd := &cobra.Command{
		Use:   analyzeCmdUse,
		Short: analyzeCmdShort,
		Long:  analyzeCmdLong,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd, v, bound)
			if err != nil {
				return err
			}

			return runAnalyze(cmd, cfg, opts, args[0])
		},
	}

	opts.register(cmd, report.FormatJSON)
	bound = opts.registerAnalysisFlags(cmd.Flags())
	cmd.Flags().StringVar(&opts.repository, "repository", "", "only events of this repository URI (default all)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, cfg *config.Config, opts *analyzeOptions, eventsPath string) error {
	providers, err := observability.Init(observabilityConfig(cfg, opts.verbose, observability.ModeCLI))
	if err != nil {
		return err
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	aggOpts, err := cfg.Analysis.AggregatorOptions()
	if err != nil {
		return err
	}

	analyzer, err := coordinator.NewAnalyzer(source.NewFile(eventsPath),
		coordinator.WithAggregatorOptions(aggOpts...),
		coordinator.WithLogger(providers.Logger),
		coordinator.WithTracer(providers.Tracer),
	)
	if err != nil {
		return err
	}

	rm, err := analyzer.Analyze(cmd.Context(), opts.repository)
	if err != nil {
		return err
	}

	name := cmp.Or(opts.repository, filepath.Base(eventsPath))

	return writeOutput(cmd, opts.output, func(w io.Writer) error {
		return report.WriteRepositoryMetrics(w, name, rm, opts.format)
	})
}
