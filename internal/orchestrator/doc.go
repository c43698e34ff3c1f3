// Package orchestrator is a thin synchronous client for the container
// orchestrator's control API (Docker Swarm's engine API, reached over its
// local Unix domain socket). Every exported method maps to one API call,
// except that Scale and Drain follow a successful update with one read to
// refresh the version token; none of them retry — a failed call is
// reported to the caller and left for the next tick.
package orchestrator
