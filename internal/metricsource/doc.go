// Package metricsource queries the cluster's Prometheus-compatible metrics
// backend for the raw signals the rest of the autoscaler decides on: total
// cluster CPU capacity, per-service CPU usage, and per-service memory usage
// for the optional memory dimension. It is a thin,
// read-only client — no retries beyond the documented startup gate and the
// control loop's own 10s re-read on an empty result.
package metricsource
