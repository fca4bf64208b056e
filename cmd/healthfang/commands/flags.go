// Package commands implements CLI command handlers for healthfang.
package commands

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/healthfang/pkg/aggregator"
	"github.com/Sumatoshi-tech/healthfang/pkg/config"
	"github.com/Sumatoshi-tech/healthfang/pkg/observability"
	"github.com/Sumatoshi-tech/healthfang/pkg/report"
	"github.com/Sumatoshi-tech/healthfang/pkg/version"
)

const (
	flagConfig       = "config"
	flagEnvFile      = "env-file"
	flagVerbose      = "verbose"
	flagOutput       = "output"
	flagOutputShort  = "o"
	flagFormat       = "format"
	flagDevCatsName  = "dev-categories-thresholds"
	devCatsKey       = "analysis.dev_categories_thresholds"
	outputFilePerm   = 0o600
	stdoutOutputPath = "-"
)

// commonOptions are the flags shared by the commands that load configuration.
type commonOptions struct {
	configPath string
	envFile    string
	verbose    bool
	output     string
	format     string
	devCats    []float64
}

func (o *commonOptions) register(cmd *cobra.Command, defaultFormat string) {
	cmd.Flags().StringVar(&o.configPath, flagConfig, "", "config file (default ./healthfang.yaml)")
	cmd.Flags().StringVar(&o.envFile, flagEnvFile, "", "dotenv file with credentials (default ./.env when present)")
	cmd.Flags().BoolVarP(&o.verbose, flagVerbose, "v", false, "verbose output")
	cmd.Flags().StringVarP(&o.output, flagOutput, flagOutputShort, "", "output file (default stdout)")
	cmd.Flags().StringVar(&o.format, flagFormat, defaultFormat,
		fmt.Sprintf("output format %v", report.Formats()))
}

// bindings maps flag names to config keys.
type bindings map[string]string

// registerAnalysisFlags adds the aggregator flags and returns their bindings.
func (o *commonOptions) registerAnalysisFlags(flags *pflag.FlagSet) bindings {
	flags.String("from-date", "", "analysis start, YYYY-MM-DD (default to-date minus 365 days)")
	flags.String("to-date", "", "analysis end, YYYY-MM-DD (default now)")
	flags.String("code-file-pattern", aggregator.DefaultCodePattern, "regular expression of code files")
	flags.String("binary-file-pattern", aggregator.DefaultBinaryPattern, "regular expression of binary files")
	flags.Float64("pony-threshold", aggregator.DefaultPonyThreshold, "commit share of the pony factor")
	flags.Float64("elephant-threshold", aggregator.DefaultElephantThreshold, "commit share of the elephant factor")
	flags.Float64SliceVar(&o.devCats, flagDevCatsName,
		[]float64{aggregator.DefaultRegularThreshold, aggregator.DefaultCasualThreshold},
		"regular and casual developer cutoffs")

	return bindings{
		"from-date":           "analysis.from_date",
		"to-date":             "analysis.to_date",
		"code-file-pattern":   "analysis.code_file_pattern",
		"binary-file-pattern": "analysis.binary_file_pattern",
		"pony-threshold":      "analysis.pony_threshold",
		"elephant-threshold":  "analysis.elephant_threshold",
	}
}

// load binds flags, reads the env file and config, and validates the format.
func (o *commonOptions) load(cmd *cobra.Command, v *viper.Viper, bound bindings) (*config.Config, error) {
	for name, key := range bound {
		err := v.BindPFlag(key, cmd.Flags().Lookup(name))
		if err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	// Viper cannot decode the string form of a float slice flag.
	if cmd.Flags().Changed(flagDevCatsName) {
		v.Set(devCatsKey, o.devCats)
	}

	err := config.LoadEnvFile(o.envFile)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(v, o.configPath)
	if err != nil {
		return nil, err
	}

	o.format, err = report.ValidateFormat(o.format)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// observabilityConfig derives telemetry settings from the loaded config.
func observabilityConfig(cfg *config.Config, verbose bool, mode observability.AppMode) observability.Config {
	obs := observability.DefaultConfig()
	obs.ServiceVersion = version.String()
	obs.Mode = mode
	obs.LogLevel = observability.ParseLevel(cfg.Logging.Level)
	obs.LogJSON = cfg.Logging.Format == "json"
	obs.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obs.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obs.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	obs.SampleRatio = cfg.Telemetry.SampleRatio
	obs.Prometheus = cfg.Telemetry.MetricsAddr != ""

	if verbose {
		obs.LogLevel = slog.LevelDebug
	}

	return obs
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// openOutput returns the command output, or a created file when path is set.
func openOutput(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if cmp.Or(path, stdoutOutputPath) == stdoutOutputPath {
		return nopCloser{cmd.OutOrStdout()}, nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, outputFilePerm)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}

	return file, nil
}

// writeOutput runs write against the selected output and closes it.
func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) (err error) {
	out, err := openOutput(cmd, path)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, out.Close())
	}()

	return write(out)
}
