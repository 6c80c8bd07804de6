package metrics

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	prometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

type StoreMetrics struct {
	Polls             metrics.Gauge
	OperationsTotal   metrics.Counter
	RejectionsTotal   metrics.Counter
	VotesTotal        metrics.Counter
	RemovedPollsTotal metrics.Counter
}

// Succeeded counts a committed operation.
func (m *StoreMetrics) Succeeded(operation string) {
	m.OperationsTotal.With("operation", operation).Add(1)
}

// Rejected counts an operation that ended with a poll error.
func (m *StoreMetrics) Rejected(operation string, reason string) {
	m.RejectionsTotal.With("operation", operation, "reason", reason).Add(1)
}

func (m *StoreMetrics) SetPolls(n int) {
	m.Polls.Set(float64(n))
}

func PromStoreMetrics() *StoreMetrics {
	return &StoreMetrics{
		Polls: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: StoreSubsystem,
			Name:      "polls",
			Help:      "Number of polls held by the store.",
		}, []string{}),
		OperationsTotal: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: StoreSubsystem,
			Name:      "operations_total",
			Help:      "Total number of successful store operations.",
		}, []string{"operation"}),
		RejectionsTotal: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: StoreSubsystem,
			Name:      "rejections_total",
			Help:      "Total number of store operations rejected with a poll error.",
		}, []string{"operation", "reason"}),
		VotesTotal: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: StoreSubsystem,
			Name:      "votes_total",
			Help:      "Total number of cast votes.",
		}, []string{}),
		RemovedPollsTotal: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: StoreSubsystem,
			Name:      "removed_polls_total",
			Help:      "Total number of expired polls removed from the store.",
		}, []string{}),
	}
}

func NopStoreMetrics() *StoreMetrics {
	return &StoreMetrics{
		Polls:             discard.NewGauge(),
		OperationsTotal:   discard.NewCounter(),
		RejectionsTotal:   discard.NewCounter(),
		VotesTotal:        discard.NewCounter(),
		RemovedPollsTotal: discard.NewCounter(),
	}
}
