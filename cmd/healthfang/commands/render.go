package commands

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/healthfang/pkg/report"
)

const (
	renderCmdUse      = "render <report>"
	renderCmdShort    = "Render a package report as an HTML dashboard"
	renderOutputUsage = "output HTML file"
)

// ErrNoOutputFile is returned when the --output flag is not set.
var ErrNoOutputFile = errors.New("output file is required (use --output)")

// NewRenderCommand creates the render subcommand.
func NewRenderCommand() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   renderCmdUse,
		Short: renderCmdShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputPath == "" {
				return ErrNoOutputFile
			}

			return runRender(cmd, args[0], outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, flagOutput, flagOutputShort, "", renderOutputUsage)

	return cmd
}

func runRender(cmd *cobra.Command, reportPath, outputPath string) error {
	rep, err := report.LoadPackageReport(reportPath)
	if err != nil {
		return err
	}

	return writeOutput(cmd, outputPath, func(w io.Writer) error {
		return report.RenderPlot(w, rep)
	})
}
