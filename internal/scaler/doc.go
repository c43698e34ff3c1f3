// Package scaler implements the per-service replica cascade: for
// every service the metrics backend reports usage for, resolve its spec,
// validate it is eligible for autoscaling, compute its load factor, and
// apply the threshold cascade against the orchestrator.
package scaler
