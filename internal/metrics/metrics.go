// Package metrics exports per-step simulation gauges through a private
// Prometheus registry. Output is written as a node-exporter textfile; no
// HTTP endpoint is served.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/talgya/exodus/internal/engine"
)

// Recorder holds the run's collectors.
type Recorder struct {
	registry *prometheus.Registry

	step          prometheus.Gauge
	agents        prometheus.Gauge
	locAgents     *prometheus.GaugeVec
	conflictZones prometheus.Gauge
	arrivals      prometheus.Counter
	stepDuration  prometheus.Histogram
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		step: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exodus_step",
			Help: "Number of completed simulation steps.",
		}),
		agents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exodus_agents_total",
			Help: "Agents in the simulation.",
		}),
		locAgents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "exodus_location_agents",
			Help: "Agents resident at a location.",
		}, []string{"location"}),
		conflictZones: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exodus_conflict_zones",
			Help: "Locations currently marked as conflict zones.",
		}),
		arrivals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exodus_arrivals_total",
			Help: "Completed link traversals, when arrival logging is enabled.",
		}),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "exodus_step_duration_seconds",
			Help:    "Wall time of one evolve call.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
	r.registry.MustRegister(r.step, r.agents, r.locAgents, r.conflictZones, r.arrivals, r.stepDuration)
	return r
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe records a step's snapshot and how long the step took.
func (r *Recorder) Observe(snap engine.StepSnapshot, took time.Duration) {
	r.step.Set(float64(snap.Step))
	r.agents.Set(float64(snap.Total))

	zones := 0
	for _, l := range snap.Locations {
		r.locAgents.WithLabelValues(l.Name).Set(float64(l.Agents))
		if l.Conflict {
			zones++
		}
	}
	r.conflictZones.Set(float64(zones))

	if snap.Arrivals != nil {
		r.arrivals.Add(float64(snap.Arrivals.Arrivals))
	}
	r.stepDuration.Observe(took.Seconds())
}

// WriteTextfile writes the current values in the Prometheus text format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
