// Package controlloop sequences one tick of the autoscaler: startup
// health gates, a periodic fetch-evaluate-act cycle across
// internal/metricsource, internal/scaler and internal/nodelifecycle, and
// crash containment that restarts the whole sequence, including the
// startup gates, after any unhandled error.
package controlloop
