package report

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatText = "text"
	FormatPlot = "plot"

	formatYMLAlias  = "yml"
	formatHTMLAlias = "html"
)

// ErrUnsupportedFormat indicates the requested output format is not supported.
var ErrUnsupportedFormat = errors.New("unsupported format")

// NormalizeFormat canonicalizes a user-provided output format string.
func NormalizeFormat(format string) string {
	normalized := strings.ToLower(strings.TrimSpace(format))

	switch normalized {
	case formatYMLAlias:
		return FormatYAML
	case formatHTMLAlias:
		return FormatPlot
	default:
		return normalized
	}
}

// Formats returns the canonical output formats.
func Formats() []string {
	return []string{FormatJSON, FormatYAML, FormatText, FormatPlot}
}

// ValidateFormat checks that format is one of Formats.
func ValidateFormat(format string) (string, error) {
	normalized := NormalizeFormat(format)

	for _, candidate := range Formats() {
		if normalized == candidate {
			return normalized, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// WritePackageReport writes rep in the given format.
func WritePackageReport(w io.Writer, rep *PackageReport, format string) error {
	normalized, err := ValidateFormat(format)
	if err != nil {
		return err
	}

	switch normalized {
	case FormatJSON:
		return NewJSONCodec().Encode(w, rep)
	case FormatYAML:
		return NewYAMLCodec().Encode(w, rep)
	case FormatText:
		return NewTextRenderer(TextConfig{}).RenderPackages(w, rep)
	default:
		return RenderPlot(w, rep)
	}
}

// WriteRepositoryMetrics writes one repository block in the given format.
func WriteRepositoryMetrics(w io.Writer, name string, rm RepositoryMetrics, format string) error {
	normalized, err := ValidateFormat(format)
	if err != nil {
		return err
	}

	switch normalized {
	case FormatJSON:
		return NewJSONCodec().Encode(w, rm)
	case FormatYAML:
		return NewYAMLCodec().Encode(w, rm)
	case FormatText:
		return NewTextRenderer(TextConfig{}).RenderRepository(w, name, rm)
	default:
		return RenderPlot(w, &PackageReport{
			Packages: map[string]Package{name: {Metrics: rm.Metrics, Metadata: &rm.Metadata, Repository: name}},
		})
	}
}
