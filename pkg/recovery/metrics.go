package recovery

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Errors  *prometheus.CounterVec
	Actions *prometheus.CounterVec
}

// NewMetrics creates the recovery counters and registers them with reg when it is not nil.
// Counters already registered by an earlier handler are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "approvals_errors_total",
			Help: "Engine failures handled by the recovery handler",
		}, []string{"category", "severity"}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "approvals_recovery_actions_total",
			Help: "Recovery actions selected by the recovery handler",
		}, []string{"category", "action"}),
	}

	if reg == nil {
		return m
	}

	m.Errors = register(reg, m.Errors)
	m.Actions = register(reg, m.Actions)

	return m
}

func register(reg prometheus.Registerer, collector *prometheus.CounterVec) *prometheus.CounterVec {
	err := reg.Register(collector)
	if err == nil {
		return collector
	}

	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
			return existing
		}
	}

	return collector
}
