package cli

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/hyperledger-archives/composer-sub008/internal/metrics"
)

// runtimeMetrics collects the metrics of one command run in a private
// registry.
type runtimeMetrics struct {
	*metrics.Metrics
	registry *prometheus.Registry
}

func newRuntimeMetrics() *runtimeMetrics {
	reg := prometheus.NewRegistry()
	return &runtimeMetrics{Metrics: metrics.New(reg), registry: reg}
}

// WriteFile writes every gathered metric family to path in the
// Prometheus text exposition format.
func (m *runtimeMetrics) WriteFile(path string) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(f, mf); err != nil {
			f.Close()
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	return f.Close()
}
