package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bridge collectors.
type Metrics struct {
	registry *prometheus.Registry

	dispatches   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	abandoned    *prometheus.CounterVec
	active       prometheus.Gauge
	transitions  *prometheus.CounterVec
	terminations *prometheus.CounterVec
	values       *prometheus.CounterVec
}

// NewMetrics creates the collectors under namespace (default "opbridge").
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "opbridge"
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "total",
				Help:      "One-shot requests handed to the host.",
			},
			[]string{"kind"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "duration_seconds",
				Help:      "Time between dispatch and outcome.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind", "result"},
		),
		abandoned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "abandoned_total",
				Help:      "Outcomes that arrived after the caller stopped waiting.",
			},
			[]string{"kind"},
		),
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "subscriptions",
				Name:      "active",
				Help:      "Subscriptions that are not terminated.",
			},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "subscriptions",
				Name:      "transitions_total",
				Help:      "Subscription state transitions.",
			},
			[]string{"to"},
		),
		terminations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "subscriptions",
				Name:      "terminated_total",
				Help:      "Terminated subscriptions by reason.",
			},
			[]string{"reason"},
		),
		values: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "subscriptions",
				Name:      "values_total",
				Help:      "Values delivered to consumers or suppressed as repeats.",
			},
			[]string{"result"},
		),
	}
	m.registry.MustRegister(m.dispatches, m.duration, m.abandoned, m.active, m.transitions, m.terminations, m.values)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks recording into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDispatch: func(_ context.Context, e *domain.DispatchEvent) {
			m.dispatches.WithLabelValues(e.Kind.String()).Inc()
		},
		OnOutcome: func(_ context.Context, e *domain.OutcomeEvent) {
			result := "success"
			if e.Err != nil {
				result = "failure"
			}
			m.duration.WithLabelValues(e.Kind.String(), result).Observe(e.Duration.Seconds())
			if e.Abandoned {
				m.abandoned.WithLabelValues(e.Kind.String()).Inc()
			}
		},
		OnSubscriptionState: func(_ context.Context, e *domain.SubscriptionEvent) {
			m.transitions.WithLabelValues(e.To).Inc()
			switch {
			case e.From == "created" && e.To == "subscribed":
				m.active.Inc()
			case e.To == "terminated":
				m.terminations.WithLabelValues(e.Reason).Inc()
				if e.From != "created" {
					m.active.Dec()
				}
			}
		},
		OnValue: func(_ context.Context, e *domain.ValueEvent) {
			result := "delivered"
			if e.Suppressed {
				result = "suppressed"
			}
			m.values.WithLabelValues(result).Inc()
		},
	}
}
