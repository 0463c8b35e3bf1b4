package orchestrator

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report run activity.
type Metrics struct {
	phaseDuration *prometheus.HistogramVec
	runs          *prometheus.CounterVec
	tasks         *prometheus.CounterVec
	deadlocks     prometheus.Counter
	toolCalls     prometheus.Counter
	runsActive    prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// defaultMetrics returns the instance registered with the global registry.
// Collectors are created once so several orchestrators can share them.
func defaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Collectors that are already registered with identical descriptors are
// reused; any other registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "switchyard",
				Subsystem: "orchestrator",
				Name:      "phase_duration_seconds",
				Help:      "Duration spent in each run phase.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"phase", "status"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "switchyard",
				Subsystem: "orchestrator",
				Name:      "runs_total",
				Help:      "Runs by intent and outcome.",
			},
			[]string{"intent", "outcome"},
		),
		tasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "switchyard",
				Subsystem: "orchestrator",
				Name:      "tasks_total",
				Help:      "Worker task executions by status.",
			},
			[]string{"status"},
		),
		deadlocks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "switchyard",
				Subsystem: "orchestrator",
				Name:      "deadlocks_total",
				Help:      "Scheduling passes that found pending tasks but none ready.",
			},
		),
		toolCalls: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "switchyard",
				Subsystem: "orchestrator",
				Name:      "tool_calls_total",
				Help:      "Tool invocations made by workers.",
			},
		),
		runsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "switchyard",
				Subsystem: "orchestrator",
				Name:      "runs_active",
				Help:      "Number of runs currently executing.",
			},
		),
	}

	m.phaseDuration = register(reg, m.phaseDuration)
	m.runs = register(reg, m.runs)
	m.tasks = register(reg, m.tasks)
	m.deadlocks = register(reg, m.deadlocks)
	m.toolCalls = register(reg, m.toolCalls)
	m.runsActive = register(reg, m.runsActive)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObservePhase records the time spent in a phase with the provided status label.
func (m *Metrics) ObservePhase(phase, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase, status).Observe(d.Seconds())
}

// IncRun counts a finished, suspended, or failed run.
func (m *Metrics) IncRun(intent, outcome string) {
	if m == nil {
		return
	}
	if intent == "" {
		intent = "unknown"
	}
	m.runs.WithLabelValues(intent, outcome).Inc()
}

// IncTask counts one worker result.
func (m *Metrics) IncTask(failed bool) {
	if m == nil {
		return
	}
	status := "completed"
	if failed {
		status = "failed"
	}
	m.tasks.WithLabelValues(status).Inc()
}

// IncDeadlock counts a deadlocked scheduling pass.
func (m *Metrics) IncDeadlock() {
	if m == nil {
		return
	}
	m.deadlocks.Inc()
}

// AddToolCalls counts n tool invocations.
func (m *Metrics) AddToolCalls(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.toolCalls.Add(float64(n))
}

// IncActiveRuns marks a run as active.
func (m *Metrics) IncActiveRuns() {
	if m == nil {
		return
	}
	m.runsActive.Inc()
}

// DecActiveRuns marks a run as finished.
func (m *Metrics) DecActiveRuns() {
	if m == nil {
		return
	}
	m.runsActive.Dec()
}
