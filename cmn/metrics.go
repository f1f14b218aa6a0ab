package cmn

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the per-process counters/gauges the engine and dispatcher
// satellites update. One instance is shared process-wide (like the
// teacher's stats package), labeled per node instance on each observation
// rather than constructing a registry per engine.
type Metrics struct {
	SlotsAdvanced  *prometheus.CounterVec
	NullFrames     *prometheus.CounterVec
	BusCondition   *prometheus.GaugeVec
	StepBudgetUT   *prometheus.GaugeVec
	SafetyCapHits  *prometheus.CounterVec
}

var defaultMetrics *Metrics

// DefaultMetrics lazily builds and registers the package-global metric
// family on first use; tests that construct many engines in-process should
// use NewMetrics with their own prometheus.Registerer instead.
func DefaultMetrics() *Metrics {
	if defaultMetrics == nil {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	}
	return defaultMetrics
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SlotsAdvanced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flexray_slots_advanced_total",
			Help: "Number of slots consume_slot advanced past, by node.",
		}, []string{"node"}),
		NullFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flexray_null_frames_total",
			Help: "Number of NULL-frame Rx events emitted, by node.",
		}, []string{"node"}),
		BusCondition: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flexray_bus_condition",
			Help: "Current aggregate bus condition (0=NoConnection,1=NoSignal,2=FrameSync,3=WakeUp,4=FrameError).",
		}, []string{"node"}),
		StepBudgetUT: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flexray_step_budget_ut",
			Help: "Microtick budget available after the last calculate_budget() call, before any slot is consumed.",
		}, []string{"node"}),
		SafetyCapHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flexray_safety_cap_hits_total",
			Help: "Number of times the progress-loop safety cap terminated a step early.",
		}, []string{"node"}),
	}
	if reg != nil {
		reg.MustRegister(m.SlotsAdvanced, m.NullFrames, m.BusCondition, m.StepBudgetUT, m.SafetyCapHits)
	}
	return m
}
