/*
Package health provides the startup-gate primitive the control loop uses
before it will begin ticking: a Checker interface plus WaitUntilHealthy,
a bounded retry loop over it.

Two call sites exist today. The metrics backend's gate retries up to 9
times, 60 seconds apart (roughly a 9 minute ceiling) before giving up.
The orchestrator's gate is a single, non-retried attempt — a fast-failing
precondition, not a wait. Both go through WaitUntilHealthy with a
different attempts argument: the orchestrator's gate uses HTTPChecker,
and the metrics gate uses its own Checker that also reads the response's
status field. Neither needs a bespoke retry loop of its own.
*/
package health
