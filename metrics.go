package optsync

import "github.com/prometheus/client_golang/prometheus"

// Direction labels for propagation metrics and activity events.
const (
	DirectionToComponent = "model_to_component"
	DirectionToModel     = "component_to_model"
)

// Metrics holds the Prometheus collectors an Engine reports to. One Metrics
// value is meant to be shared by every engine of a process.
type Metrics struct {
	Propagations  *prometheus.CounterVec
	GuardMisses   prometheus.Counter
	Renders       prometheus.Counter
	Transactions  *prometheus.CounterVec
	BindingErrors prometheus.Counter
	Watches       prometheus.Gauge
}

// NewMetrics builds the engine collectors. reg may be nil to skip
// registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Propagations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optsync_propagations_total",
			Help: "Total number of values propagated between options and models",
		}, []string{"direction"}),
		GuardMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optsync_guard_misses_total",
			Help: "Total number of writes dropped because their path was locked",
		}),
		Renders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optsync_renders_total",
			Help: "Total number of render passes requested from hosts",
		}),
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optsync_transactions_total",
			Help: "Total number of runtime transactions opened by engines",
		}, []string{"source"}),
		BindingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optsync_binding_errors_total",
			Help: "Total number of failed model reads or writes",
		}),
		Watches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optsync_watches",
			Help: "Current number of model watches placed by engines",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Propagations, m.GuardMisses, m.Renders, m.Transactions, m.BindingErrors, m.Watches)
	}
	return m
}

func (m *Metrics) propagated(direction string) {
	if m != nil {
		m.Propagations.WithLabelValues(direction).Inc()
	}
}

func (m *Metrics) guardMiss() {
	if m != nil {
		m.GuardMisses.Inc()
	}
}

func (m *Metrics) rendered() {
	if m != nil {
		m.Renders.Inc()
	}
}

func (m *Metrics) transaction(source string) {
	if m != nil {
		m.Transactions.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) bindingError() {
	if m != nil {
		m.BindingErrors.Inc()
	}
}

func (m *Metrics) watches(delta int) {
	if m != nil {
		m.Watches.Add(float64(delta))
	}
}
