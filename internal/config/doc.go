// Package config defines the autoscaler's top-level flag surface and
// the validation that turns it into a pkg/types.Policy plus connection
// settings for the orchestrator and metrics source clients.
package config
