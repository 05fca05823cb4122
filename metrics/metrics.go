// Package metrics exposes Prometheus collectors for turn orchestration:
// turn latency, per-phase latency, per-task outcomes, safety rejections and
// early cancellations. A nil *Collector is valid and records nothing, so
// components can hold one unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "turnmesh"

// Collector groups the orchestrator's metric vectors.
type Collector struct {
	turnDuration  *prometheus.HistogramVec
	phaseDuration *prometheus.HistogramVec
	taskOutcomes  *prometheus.CounterVec
	rejected      *prometheus.CounterVec
	earlyCancels  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall-clock duration of a dialogue turn.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"result"}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Wall-clock duration of a turn phase.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
		taskOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_outcomes_total",
			Help:      "Task outcomes by phase, task and outcome kind.",
		}, []string{"phase", "task", "outcome"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_rejected_total",
			Help:      "Candidates discarded by the safety checker.",
		}, []string{"phase"}),
		earlyCancels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "early_cancellations_total",
			Help:      "Phases that stopped waiting after a decisive candidate.",
		}, []string{"phase"}),
	}

	reg.MustRegister(c.turnDuration, c.phaseDuration, c.taskOutcomes, c.rejected, c.earlyCancels)

	return c
}

// ObserveTurn records a finished turn. result is "ok" or the fatal reason.
func (c *Collector) ObserveTurn(d time.Duration, result string) {
	if c == nil {
		return
	}
	c.turnDuration.WithLabelValues(result).Observe(d.Seconds())
}

// ObservePhase records the duration of one phase.
func (c *Collector) ObservePhase(phase string, d time.Duration) {
	if c == nil {
		return
	}
	c.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// IncOutcome counts one task outcome.
func (c *Collector) IncOutcome(phase, task, outcome string) {
	if c == nil {
		return
	}
	c.taskOutcomes.WithLabelValues(phase, task, outcome).Inc()
}

// IncRejected counts a candidate rejected by the safety checker.
func (c *Collector) IncRejected(phase string) {
	if c == nil {
		return
	}
	c.rejected.WithLabelValues(phase).Inc()
}

// IncEarlyCancel counts a phase ended by early cancellation.
func (c *Collector) IncEarlyCancel(phase string) {
	if c == nil {
		return
	}
	c.earlyCancels.WithLabelValues(phase).Inc()
}
