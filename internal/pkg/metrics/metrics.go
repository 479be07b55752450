package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "attendance"

// Collectors groups the engine's prometheus instruments. A nil *Collectors is
// valid and records nothing.
type Collectors struct {
	registry         *prometheus.Registry
	decisions        *prometheus.CounterVec
	decisionDuration *prometheus.HistogramVec
	catalogLoads     *prometheus.CounterVec
	ruleConflicts    *prometheus.GaugeVec
}

// New registers the engine collectors, plus Go and process collectors, on a
// dedicated registry.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collectors{
		registry: reg,
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Punch decisions by mode and outcome.",
		}, []string{"mode", "outcome"}),
		decisionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_duration_seconds",
			Help:      "Time spent deciding a punch, including storage for commits.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"mode"}),
		catalogLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_loads_total",
			Help:      "Rule catalog snapshot loads by result.",
		}, []string{"result"}),
		ruleConflicts: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rule_conflicts",
			Help:      "Rule catalog conflicts found by the last audit, by severity.",
		}, []string{"severity"}),
	}
}

func (c *Collectors) ObserveDecision(mode, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.decisions.WithLabelValues(mode, outcome).Inc()
	c.decisionDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (c *Collectors) ObserveCatalogLoad(err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.catalogLoads.WithLabelValues(result).Inc()
}

func (c *Collectors) SetRuleConflicts(errors, warnings int) {
	if c == nil {
		return
	}
	c.ruleConflicts.WithLabelValues("error").Set(float64(errors))
	c.ruleConflicts.WithLabelValues("warning").Set(float64(warnings))
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}
