package metrics

// Collector publishes one tick's worth of control loop results to the
// process's Prometheus gauges/counters. It is purely passive: the control
// loop already owns a tick cadence, so it pushes a snapshot here once per
// tick instead of this package polling anything itself.
type Collector struct{}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// ServiceObservation is one service's scaling outcome for a tick.
type ServiceObservation struct {
	Name        string
	Replicas    int
	LoadFactors map[string]float64 // dimension ("cpu"/"mem") -> L
	Action      string             // "", "up", "down", "clamp_min", "clamp_max", "clamp_blocked_up", "clamp_blocked_down"
}

// ObserveServices records per-service replica counts, load factors, and
// scale actions taken during a tick.
func (c *Collector) ObserveServices(observations []ServiceObservation) {
	for _, obs := range observations {
		ServiceReplicas.WithLabelValues(obs.Name).Set(float64(obs.Replicas))
		for dimension, l := range obs.LoadFactors {
			ServiceLoadFactor.WithLabelValues(obs.Name, dimension).Set(l)
		}
		if obs.Action != "" {
			ScaleActionsTotal.WithLabelValues(obs.Name, obs.Action).Inc()
		}
	}
}
