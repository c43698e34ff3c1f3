// Package nodelifecycle drives the multi-step create/warm-up/drain/remove
// state machine across the Orchestrator and Provider. The durable
// checkpoint between ticks is the provider node's Status label — this
// package carries no state of its own across calls to Tick.
package nodelifecycle
