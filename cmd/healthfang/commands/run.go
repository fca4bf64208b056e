package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/healthfang/pkg/config"
	"github.com/Sumatoshi-tech/healthfang/pkg/coordinator"
	"github.com/Sumatoshi-tech/healthfang/pkg/grimoirelab"
	"github.com/Sumatoshi-tech/healthfang/pkg/observability"
	"github.com/Sumatoshi-tech/healthfang/pkg/report"
	"github.com/Sumatoshi-tech/healthfang/pkg/sbom"
	"github.com/Sumatoshi-tech/healthfang/pkg/source"
)

const (
	runCmdUse   = "run <sbom>"
	runCmdShort = "Compute health metrics for the repositories of an SBOM"
	runCmdLong  = `Parse an SPDX SBOM (JSON, YAML, tag-value or RDF), map its packages to git
repositories, schedule them on the analysis backend, wait for their commit
events to be indexed and aggregate them into one metrics block per package.

Packages without a git download location are reported with null metrics.`
)

// ErrConnect wraps backend connection failures.
var ErrConnect = errors.New("connect to analysis backend")

type runOptions struct {
	commonOptions

	bound bindings
}

// runExecutor performs a run once configuration is loaded.
type runExecutor func(cmd *cobra.Command, cfg *config.Config, opts *runOptions, sbomPath string) error

// NewRunCommand creates the run subcommand.
func NewRunCommand() *cobra.Command {
	return buildRunCommand(config.New(), runSBOM)
}

func buildRunCommand(v *viper.Viper, execute runExecutor) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   runCmdUse,
		Short: runCmdShort,
		Long:  runCmdLong,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd, v, opts.bound)
			if err != nil {
				return err
			}

			return execute(cmd, cfg, opts, args[0])
		},
	}

	opts.register(cmd, report.FormatJSON)
	opts.bound = opts.registerAnalysisFlags(cmd.Flags())
	registerBackendFlags(cmd, opts.bound)

	return cmd
}

func registerBackendFlags(cmd *cobra.Command, bound bindings) {
	flags := cmd.Flags()

	flags.String("grimoirelab-url", config.DefaultGrimoireLabURL, "analysis backend URL")
	flags.String("grimoirelab-user", "", "analysis backend user")
	flags.String("grimoirelab-password", "", "analysis backend password")
	flags.Float64("rate-limit", 0, "backend requests per second, 0 is unlimited")
	flags.String("opensearch-url", config.DefaultOpenSearchURL, "events index URL")
	flags.String("opensearch-index", config.DefaultOpenSearchIndex, "events index name")
	flags.String("opensearch-user", "", "events index user")
	flags.String("opensearch-password", "", "events index password")
	flags.String("opensearch-ca-certs", "", "CA bundle for the events index")
	flags.Bool("verify-certs", false, "verify the events index TLS certificate")
	flags.Duration("repository-timeout", config.DefaultRepositoryTimeout, "how long to wait for one repository")
	flags.Int("workers", config.DefaultWorkers, "repositories analyzed in parallel")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")

	for name, key := range map[string]string{
		"grimoirelab-url":      "grimoirelab.url",
		"grimoirelab-user":     "grimoirelab.user",
		"grimoirelab-password": "grimoirelab.password",
		"rate-limit":           "grimoirelab.rate_limit",
		"opensearch-url":       "opensearch.url",
		"opensearch-index":     "opensearch.index",
		"opensearch-user":      "opensearch.user",
		"opensearch-password":  "opensearch.password",
		"opensearch-ca-certs":  "opensearch.ca_certs",
		"verify-certs":         "opensearch.verify_certs",
		"repository-timeout":   "coordinator.repository_timeout",
		"workers":              "coordinator.workers",
		"metrics-addr":         "telemetry.metrics_addr",
	} {
		bound[name] = key
	}
}

func runSBOM(cmd *cobra.Command, cfg *config.Config, opts *runOptions, sbomPath string) error {
	providers, err := observability.Init(observabilityConfig(cfg, opts.verbose, observability.ModeCLI))
	if err != nil {
		return err
	}

	logger := providers.Logger

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	packages, err := sbom.ParseFile(sbomPath)
	if err != nil {
		return err
	}

	for _, pkg := range packages.Unmapped() {
		logger.WarnContext(ctx, "package has no git repository", "package", pkg.ID, "name", pkg.Name)
	}

	repositories := packages.Repositories()
	logger.InfoContext(ctx, fmt.Sprintf("Found %d git repositories", len(repositories)))

	if len(repositories) == 0 {
		return nil
	}

	runMetrics, err := observability.NewRunMetrics(providers.Meter)
	if err != nil {
		return err
	}

	if providers.MetricsHandler != nil {
		go func() {
			serveErr := observability.ServeMetrics(ctx, cfg.Telemetry.MetricsAddr, providers.MetricsHandler, logger)
			if serveErr != nil {
				logger.ErrorContext(ctx, "metrics server stopped", "error", serveErr)
			}
		}()
	}

	coord, err := newCoordinator(ctx, cfg, providers, runMetrics)
	if err != nil {
		return err
	}

	rep, err := coord.Run(ctx, packages)
	if err != nil {
		return err
	}

	return writeOutput(cmd, opts.output, func(w io.Writer) error {
		return report.WritePackageReport(w, rep, opts.format)
	})
}

func newCoordinator(
	ctx context.Context, cfg *config.Config, providers observability.Providers, runMetrics *observability.RunMetrics,
) (*coordinator.Coordinator, error) {
	logger := providers.Logger

	client := grimoirelab.NewClient(cfg.GrimoireLab.URL, cfg.GrimoireLab.User, cfg.GrimoireLab.Password,
		grimoirelab.WithRateLimit(cfg.GrimoireLab.RateLimit),
		grimoirelab.WithLogger(logger),
	)

	err := client.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	events, err := source.NewOpenSearch(source.OpenSearchConfig{
		URL:         cfg.OpenSearch.URL,
		Index:       cfg.OpenSearch.Index,
		Username:    cfg.OpenSearch.User,
		Password:    cfg.OpenSearch.Password,
		CACertPath:  cfg.OpenSearch.CACerts,
		VerifyCerts: cfg.OpenSearch.VerifyCerts,
		PageSize:    cfg.OpenSearch.PageSize,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	aggOpts, err := cfg.Analysis.AggregatorOptions()
	if err != nil {
		return nil, err
	}

	return coordinator.New(client, events,
		coordinator.WithAggregatorOptions(aggOpts...),
		coordinator.WithPollInterval(cfg.Coordinator.PollInterval),
		coordinator.WithRepositoryTimeout(cfg.Coordinator.RepositoryTimeout),
		coordinator.WithReadyAfter(cfg.Coordinator.ReadyAfter),
		coordinator.WithWorkers(cfg.Coordinator.Workers),
		coordinator.WithLogger(logger),
		coordinator.WithTracer(providers.Tracer),
		coordinator.WithMetrics(runMetrics),
	)
}
