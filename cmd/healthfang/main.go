// Package main provides the entry point for the healthfang CLI tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/healthfang/cmd/healthfang/commands"
	"github.com/Sumatoshi-tech/healthfang/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "healthfang",
		Short: "Healthfang - repository health metrics for SBOM packages",
		Long: `Healthfang computes community and activity health metrics for the
repositories behind the packages of an SBOM.

Commands:
  run       Schedule SBOM repositories on the backend and report their metrics
  analyze   Compute metrics for one repository from an events dump
  render    Render a package report as an HTML dashboard
  validate  Check a package report against the report schema
  mcp       Serve the metrics tools over MCP stdio`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewRenderCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewMCPCommand())
	rootCmd.AddCommand(versionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "healthfang %s (commit: %s)\n", version.String(), version.Hash())
		},
	}
}
