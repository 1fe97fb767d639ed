package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	apNamespace = "ap"
	jobName     = "smartaccount"
)

// RunMetrics counts what a single CLI run did. Each run owns its registry so a
// short lived process can push it as a batch job.
type RunMetrics struct {
	registry *prometheus.Registry

	numUserOpSubmitted *prometheus.CounterVec
	numUserOpIncluded  *prometheus.CounterVec
	numFundingSent     prometheus.Counter
	numFailure         *prometheus.CounterVec
	lastSuccess        prometheus.Gauge
}

func NewRunMetrics() *RunMetrics {
	reg := prometheus.NewRegistry()

	return &RunMetrics{
		registry: reg,

		numUserOpSubmitted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: apNamespace,
				Name:      "num_userop_submitted_total",
				Help:      "The number of user operations accepted by the bundler",
			}, []string{"workflow"}),

		numUserOpIncluded: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: apNamespace,
				Name:      "num_userop_included_total",
				Help:      "The number of user operations seen in a mined transaction",
			}, []string{"workflow"}),

		numFundingSent: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: apNamespace,
				Name:      "num_funding_tx_sent_total",
				Help:      "The number of top-up transactions sent to the smart account",
			}),

		numFailure: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: apNamespace,
				Name:      "num_workflow_failure_total",
				Help:      "The number of workflow runs that aborted, by the last state reached",
			}, []string{"workflow", "stage"}),

		lastSuccess: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: apNamespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last run that completed",
			}),
	}
}

func (m *RunMetrics) IncUserOpSubmitted(workflow string) {
	m.numUserOpSubmitted.WithLabelValues(workflow).Inc()
}

func (m *RunMetrics) IncUserOpIncluded(workflow string) {
	m.numUserOpIncluded.WithLabelValues(workflow).Inc()
}

func (m *RunMetrics) IncFundingSent() {
	m.numFundingSent.Inc()
}

func (m *RunMetrics) IncFailure(workflow, stage string) {
	m.numFailure.WithLabelValues(workflow, stage).Inc()
}

func (m *RunMetrics) SetLastSuccess() {
	m.lastSuccess.SetToCurrentTime()
}

func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Push sends the registry to a Pushgateway, grouped by run id.
func (m *RunMetrics) Push(ctx context.Context, url string, runID string) error {
	err := push.New(url, jobName).
		Gatherer(m.registry).
		Grouping("run_id", runID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("cannot push metrics to %s: %w", url, err)
	}
	return nil
}
