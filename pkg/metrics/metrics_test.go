package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test constants to avoid magic strings/numbers.
const (
	testMetricName        = "test_metric"
	testMetricName2       = "test_metric_2"
	testMetricDisplayName = "Test Metric"
	testMetricDescription = "A test metric for unit testing"
	testMetricType        = "activity"
	testInputValue        = 42
	testOutputMultiplier  = 2
)

// testMetric is a concrete implementation for testing the Metric interface.
type testMetric struct {
	MetricMeta
}

// Compute doubles the input value.
func (m *testMetric) Compute(input int) int {
	return input * testOutputMultiplier
}

func newTestMetric(name string) *testMetric {
	return &testMetric{
		MetricMeta: MetricMeta{
			MetricName:        name,
			MetricDisplayName: testMetricDisplayName,
			MetricDescription: testMetricDescription,
			MetricType:        testMetricType,
		},
	}
}

func TestMetricMeta(t *testing.T) {
	t.Parallel()

	m := newTestMetric(testMetricName)

	assert.Equal(t, testMetricName, m.Name())
	assert.Equal(t, testMetricDisplayName, m.DisplayName())
	assert.Equal(t, testMetricDescription, m.Description())
	assert.Equal(t, testMetricType, m.Type())
	assert.Equal(t, testInputValue*testOutputMultiplier, m.Compute(testInputValue))
}

func TestFunc(t *testing.T) {
	t.Parallel()

	var m Metric[int, string] = Func[int, string]{
		MetricMeta: MetricMeta{MetricName: testMetricName},
		Fn: func(n int) string {
			if n > 0 {
				return "positive"
			}

			return "other"
		},
	}

	assert.Equal(t, "positive", m.Compute(testInputValue))
	assert.Equal(t, testMetricName, m.Name())
}

func TestRegistryKeepsOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry[int, int]()
	require.NoError(t, r.Register(newTestMetric(testMetricName2)))
	require.NoError(t, r.Register(newTestMetric(testMetricName)))

	assert.Equal(t, []string{testMetricName2, testMetricName}, r.Names())

	values := r.ComputeAll(testInputValue)
	require.Len(t, values, 2)
	assert.Equal(t, testMetricName2, values[0].Name)
	assert.Equal(t, testInputValue*testOutputMultiplier, values[1].Value)
}

func TestRegistryDuplicate(t *testing.T) {
	t.Parallel()

	r := NewRegistry[int, int]()
	require.NoError(t, r.Register(newTestMetric(testMetricName)))

	err := r.Register(newTestMetric(testMetricName))
	require.ErrorIs(t, err, ErrDuplicateMetric)

	assert.Panics(t, func() {
		r.MustRegister(newTestMetric(testMetricName))
	})
}

func TestRegistryGet(t *testing.T) {
	t.Parallel()

	r := NewRegistry[int, int]().MustRegister(newTestMetric(testMetricName))

	m, ok := r.Get(testMetricName)
	require.True(t, ok)
	assert.Equal(t, testMetricName, m.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}
