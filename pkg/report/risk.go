package report

import "github.com/Sumatoshi-tech/healthfang/pkg/metrics"

// Concentration risk cut points for pony and elephant factors.
const (
	criticalFactor = 1
	highFactor     = 2
	mediumFactor   = 4
)

// ConcentrationRisk grades a pony or elephant factor. Zero means no data
// and grades LOW.
func ConcentrationRisk(factor int) metrics.RiskLevel {
	switch {
	case factor <= 0:
		return metrics.RiskLow
	case factor <= criticalFactor:
		return metrics.RiskCritical
	case factor <= highFactor:
		return metrics.RiskHigh
	case factor <= mediumFactor:
		return metrics.RiskMedium
	default:
		return metrics.RiskLow
	}
}

// factorValue reads an integer factor from a metrics block that may have been
// decoded from JSON.
func factorValue(values Values, name string) (int, bool) {
	switch v := values[name].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
