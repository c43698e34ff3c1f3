/*
Package metrics exposes the autoscaler's own operational state as
Prometheus metrics — how many replicas each enrolled service sits at, the
load factor driving each scaling decision, owned-node counts by lifecycle
status, and the cluster-wide free CPU ratio. This is distinct from
internal/metricsource, which queries the cluster's metrics backend for the
raw CPU signals the scaling decisions are based on: this package is what
the autoscaler reports about itself, not what it reads about the cluster.

A Collector is pushed one snapshot per control loop tick rather than
polling anything on its own ticker, since the control loop already owns a
tick cadence (pkg/health.WaitUntilHealthy's startup gates are the only
other place in this binary that waits on a timer).
*/
package metrics
