package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ServiceReplicas tracks the last-observed replica count per service.
	ServiceReplicas = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autopilot_service_replicas",
			Help: "Replica count last observed for an autopilot-enrolled service",
		},
		[]string{"service"},
	)

	// ServiceLoadFactor tracks the cascade's load factor L per service and
	// dimension (cpu or mem).
	ServiceLoadFactor = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autopilot_service_load_factor",
			Help: "Load factor (usage / (limit * replicas)) last computed for a service",
		},
		[]string{"service", "dimension"},
	)

	// ScaleActionsTotal counts cascade outcomes by service and action. The
	// clamp_blocked_up/clamp_blocked_down actions are counted too, although
	// no replica change is made for them.
	ScaleActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_scale_actions_total",
			Help: "Total number of replica scale actions taken, by service and direction",
		},
		[]string{"service", "action"},
	)

	// NodesOwnedTotal tracks the number of autoscaler-owned nodes by
	// lifecycle Status.
	NodesOwnedTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autopilot_nodes_owned_total",
			Help: "Number of autoscaler-owned provider nodes by lifecycle status",
		},
		[]string{"status"},
	)

	// NodeActionsTotal counts node lifecycle transitions.
	NodeActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_node_actions_total",
			Help: "Total number of node lifecycle actions taken, by action",
		},
		[]string{"action"},
	)

	// FreeCPURatio tracks the cluster-wide free ratio F computed each tick.
	FreeCPURatio = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autopilot_free_cpu_ratio",
			Help: "Cluster-wide free CPU ratio (free_cpu_resources / total_cpu_cores) computed on the last tick",
		},
	)

	// TickDuration measures wall-clock time spent in one control loop tick.
	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autopilot_tick_duration_seconds",
			Help:    "Time taken to complete one control loop tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RestartsTotal counts control-loop restarts after an unhandled tick
	// error.
	RestartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autopilot_loop_restarts_total",
			Help: "Total number of times the control loop restarted after an unhandled error",
		},
	)

	// ProviderErrorsTotal counts failed provider calls by operation.
	ProviderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_provider_errors_total",
			Help: "Total number of failed provider calls, by operation",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(ServiceReplicas)
	prometheus.MustRegister(ServiceLoadFactor)
	prometheus.MustRegister(ScaleActionsTotal)
	prometheus.MustRegister(NodesOwnedTotal)
	prometheus.MustRegister(NodeActionsTotal)
	prometheus.MustRegister(FreeCPURatio)
	prometheus.MustRegister(TickDuration)
	prometheus.MustRegister(RestartsTotal)
	prometheus.MustRegister(ProviderErrorsTotal)
}

// Handler returns the Prometheus HTTP handler the autoscaler exposes for
// its own operational metrics — separate from the cluster metrics backend
// it queries as a MetricsSource.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
