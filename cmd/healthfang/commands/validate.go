package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/healthfang/pkg/report"
)

const (
	validateCmdUse   = "validate <report>"
	validateCmdShort = "Check a package report against the report schema"
)

// NewValidateCommand creates the validate subcommand.
func NewValidateCommand() *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   validateCmdUse,
		Short: validateCmdShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0], noColor)
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")

	return cmd
}

func runValidate(cmd *cobra.Command, reportPath string, noColor bool) error {
	document, err := reportDocument(reportPath)
	if err != nil {
		return err
	}

	violations, err := report.Validate(document)

	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)

	if noColor {
		red.DisableColor()
		green.DisableColor()
	}

	out := cmd.OutOrStdout()

	for _, violation := range violations {
		red.Fprintf(out, "✗ %s\n", violation)
	}

	if err != nil {
		return err
	}

	green.Fprintf(out, "✓ %s is a valid report\n", reportPath)

	return nil
}

// reportDocument returns the report as JSON, converting YAML reports.
func reportDocument(path string) ([]byte, error) {
	codec, err := report.CodecForPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer file.Close()

	var doc any

	err = codec.Decode(file, &doc)
	if err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}

	document, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}

	return document, nil
}
