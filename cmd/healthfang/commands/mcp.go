package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/healthfang/pkg/mcp"
	"github.com/Sumatoshi-tech/healthfang/pkg/observability"
	"github.com/Sumatoshi-tech/healthfang/pkg/version"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes healthfang metrics as tools that AI agents can
discover and invoke:
  - healthfang_metrics: repository metrics from an events dump file
  - healthfang_describe_metrics: catalogue of the reported metrics`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			providers, err := observability.Init(mcpObservabilityConfig(debug))
			if err != nil {
				return err
			}

			defer func() {
				shutdownErr := providers.Shutdown(context.Background())
				if shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			runMetrics, err := observability.NewRunMetrics(providers.Meter)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{Logger: providers.Logger, Tracer: providers.Tracer, Metrics: runMetrics})

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")

	return cmd
}

// mcpObservabilityConfig reads telemetry from the standard OTel variables;
// stdout belongs to the protocol, so logs are JSON on stderr.
func mcpObservabilityConfig(debug bool) observability.Config {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version.String()
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	cfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	cfg.Mode = observability.ModeMCP
	cfg.LogJSON = true

	if debug {
		cfg.LogLevel = slog.LevelDebug
	}

	return cfg
}
