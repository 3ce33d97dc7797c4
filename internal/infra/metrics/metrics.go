// File: internal/infra/metrics/metrics.go
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(codeOperationsTotal, codeGenerationAttempts)
}

var (
	codeOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discount_code_operations_total",
			Help: "Discount code lifecycle operations by operation and result.",
		},
		[]string{"operation", "result"}, // operation: generate|grant|validate|use
	)

	codeGenerationAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "discount_code_generation_attempts",
			Help:    "Number of candidates drawn before an unused code was found.",
			Buckets: []float64{1, 2, 3, 5, 10, 50, 100, 1000},
		},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// IncCodeOperation counts one lifecycle operation outcome,
// e.g. IncCodeOperation("use", "conflict").
func IncCodeOperation(operation, result string) {
	codeOperationsTotal.WithLabelValues(norm(operation), norm(result)).Inc()
}

func ObserveGenerationAttempts(n int) {
	codeGenerationAttempts.Observe(float64(n))
}
