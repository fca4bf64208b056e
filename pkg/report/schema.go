package report

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/report.schema.json
var reportSchema []byte

// ErrInvalidReport is returned when a document does not match the report schema.
var ErrInvalidReport = errors.New("invalid report")

// Schema returns the JSON schema of package reports.
func Schema() []byte {
	return append([]byte(nil), reportSchema...)
}

// Validate checks a JSON document against the report schema. The returned
// slice lists every violation; err wraps ErrInvalidReport when it is non-empty.
func Validate(document []byte) ([]string, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(reportSchema),
		gojsonschema.NewBytesLoader(document),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	violations := make([]string, 0, len(result.Errors()))

	for _, resultErr := range result.Errors() {
		violations = append(violations, resultErr.String())
	}

	return violations, fmt.Errorf("%w: %d violations", ErrInvalidReport, len(violations))
}
