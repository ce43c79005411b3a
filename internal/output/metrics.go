package output

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/titan-sim/titan/internal/model"
)

const metricsNamespace = "titan"

// MetricsReport tracks run-level gauges in a private Prometheus registry and
// writes them in the text exposition format on Close.
type MetricsReport struct {
	path     string
	registry *prometheus.Registry
	c        *collector
	last     time.Time

	// Step is the last reported step.
	Step prometheus.Gauge
	// Reports counts reported steps.
	Reports prometheus.Counter
	// Agents, Relationships and Components describe the population.
	Agents        prometheus.Gauge
	Relationships prometheus.Gauge
	Components    prometheus.Gauge
	// Counters holds selected report counters summed over strata, labeled by
	// stat.
	Counters *prometheus.GaugeVec
	// ReportInterval measures wall time between reports.
	ReportInterval prometheus.Histogram
}

// metricStats are the report counters exported as gauges.
var metricStats = []string{"hiv", "hiv_new", "hiv_dx", "haart", "prep", "incar", "death"}

// NewMetricsReport returns a reporter writing its metrics to path on Close.
func NewMetricsReport(path string) *MetricsReport {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: metricsNamespace, Name: name, Help: help})
	}
	r := &MetricsReport{
		path:          path,
		registry:      prometheus.NewRegistry(),
		c:             &collector{},
		Step:          gauge("step", "Last reported time step"),
		Agents:        gauge("agents", "Agents in the population"),
		Relationships: gauge("relationships", "Active relationships"),
		Components:    gauge("components", "Connected components of the partnership graph"),
		Reports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reports_total",
			Help:      "Total number of reported steps",
		}),
		Counters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "stat",
			Help:      "Report counters summed over strata at the last reported step",
		}, []string{"stat"}),
		ReportInterval: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "report_interval_seconds",
			Help:      "Wall time between consecutive reports",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	r.registry.MustRegister(r.Step, r.Reports, r.Agents, r.Relationships, r.Components, r.Counters, r.ReportInterval)
	return r
}

// Registry exposes the registry the metrics are registered with.
func (r *MetricsReport) Registry() *prometheus.Registry { return r.registry }

// Report implements model.Reporter.
func (r *MetricsReport) Report(m *model.Model) error {
	s, err := r.c.collect(m)
	if err != nil {
		return err
	}
	now := time.Now()
	if !r.last.IsZero() {
		r.ReportInterval.Observe(now.Sub(r.last).Seconds())
	}
	r.last = now

	r.Step.Set(float64(m.Time))
	r.Reports.Inc()
	r.Agents.Set(float64(m.Pop.All.Len()))
	r.Relationships.Set(float64(m.Pop.Relationships.Len()))
	r.Components.Set(float64(len(m.Pop.Components)))
	for _, stat := range metricStats {
		r.Counters.WithLabelValues(stat).Set(float64(s.Total(stat)))
	}
	return nil
}

// Close implements model.Reporter.
func (r *MetricsReport) Close() error {
	if err := prometheus.WriteToTextfile(r.path, r.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
