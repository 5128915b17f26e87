package collector

import (
	"github.com/prometheus/client_golang/prometheus"

	"healthbench/internal/core"
)

const (
	metricsNamespace = "healthbench"
	metricsSubsystem = "driver"
)

// Instruments are the Prometheus series fed by a Collector. A nil
// *Instruments is valid and records nothing.
type Instruments struct {
	Transactions *prometheus.CounterVec
	Latency      *prometheus.HistogramVec
	Dropped      prometheus.Counter
}

// NewInstruments creates the driver's series and registers them with reg.
func NewInstruments(reg prometheus.Registerer) (*Instruments, error) {
	i := &Instruments{
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "transactions_total",
			Help:      "Transactions submitted, by round label and outcome.",
		}, []string{"round", "status"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "transaction_latency_seconds",
			Help:      "Time from submit to completion of a transaction.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"round"}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "events_dropped_total",
			Help:      "Events that did not fit in the collector buffer.",
		}),
	}

	for _, c := range []prometheus.Collector{i.Transactions, i.Latency, i.Dropped} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return i, nil
}

// Observe records one event.
func (i *Instruments) Observe(e core.Event) {
	if i == nil {
		return
	}
	status := "success"
	if !e.Success {
		status = "failure"
	}
	i.Transactions.WithLabelValues(e.Label, status).Inc()
	i.Latency.WithLabelValues(e.Label).Observe(e.Duration.Seconds())
}

func (i *Instruments) drop() {
	if i == nil {
		return
	}
	i.Dropped.Inc()
}
