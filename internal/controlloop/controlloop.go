package controlloop

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/swarm-autopilot/internal/metricsource"
	"github.com/cuemby/swarm-autopilot/pkg/log"
	"github.com/cuemby/swarm-autopilot/pkg/metrics"
	"github.com/cuemby/swarm-autopilot/pkg/types"
)

const (
	defaultTickInterval  = 60 * time.Second
	defaultRetryInterval = 10 * time.Second
)

// ErrStartupGateFailed is returned by Run when either startup health gate
// never reports healthy.
var ErrStartupGateFailed = errors.New("controlloop: startup gate failed")

// Orchestrator is the narrow slice of internal/orchestrator.Client the
// control loop depends on directly (the startup ping gate; everything
// else is reached through ServiceScaler/NodeLifecycle).
type Orchestrator interface {
	Ping(ctx context.Context) bool
}

// MetricsSource is the narrow slice of internal/metricsource.Client the
// control loop depends on directly.
type MetricsSource interface {
	Ping(ctx context.Context) bool
	TotalCPUCores(ctx context.Context, reserved float64) (float64, bool)
	ServicesCPUUsage(ctx context.Context) ([]metricsource.ServiceUsage, float64, bool)
	ServicesMemoryUsage(ctx context.Context) ([]metricsource.ServiceMemoryUsage, bool)
}

// ServiceScaler is the narrow slice of internal/scaler.Scaler the control
// loop depends on.
type ServiceScaler interface {
	Tick(ctx context.Context, cpuUsage []metricsource.ServiceUsage, memUsage []metricsource.ServiceMemoryUsage)
}

// NodeLifecycle is the narrow slice of internal/nodelifecycle.NodeLifecycle
// the control loop depends on.
type NodeLifecycle interface {
	Tick(ctx context.Context, freeRatio float64)
}

// ControlLoop sequences startup gates, periodic ticks, and crash
// containment.
type ControlLoop struct {
	orchestrator  Orchestrator
	metricsource  MetricsSource
	scaler        ServiceScaler
	nodeLifecycle NodeLifecycle
	policy        *types.Policy
	logger        zerolog.Logger

	tickInterval  time.Duration
	retryInterval time.Duration
}

// New builds a ControlLoop. nodeLifecycle may be nil when
// policy.NodeScalingEnabled is false.
func New(orchestrator Orchestrator, metricsSource MetricsSource, scaler ServiceScaler, nodeLifecycle NodeLifecycle, policy *types.Policy) *ControlLoop {
	return &ControlLoop{
		orchestrator:  orchestrator,
		metricsource:  metricsSource,
		scaler:        scaler,
		nodeLifecycle: nodeLifecycle,
		policy:        policy,
		logger:        log.WithComponent("controlloop"),
		tickInterval:  defaultTickInterval,
		retryInterval: defaultRetryInterval,
	}
}

// Run blocks until ctx is cancelled (clean shutdown, nil returned) or a
// startup gate fails to ever become healthy (ErrStartupGateFailed, fatal
// to the process). Any unhandled error during steady-state
// ticking restarts the whole sequence, including the startup gates, with
// no backoff and no maximum restart count.
func (c *ControlLoop) Run(ctx context.Context) error {
	for {
		if err := c.runStartupGates(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		restart := c.runSteadyState(ctx)
		if !restart {
			return nil
		}
		metrics.RestartsTotal.Inc()
		c.logger.Warn().Msg("restarting control loop from startup gates")
	}
}

func (c *ControlLoop) runStartupGates(ctx context.Context) error {
	if !c.orchestrator.Ping(ctx) {
		c.logger.Error().Msg("orchestrator failed to become healthy")
		return ErrStartupGateFailed
	}
	if !c.metricsource.Ping(ctx) {
		c.logger.Error().Msg("metrics source failed to become healthy")
		return ErrStartupGateFailed
	}
	return nil
}

// runSteadyState ticks until ctx is cancelled (returns false) or an
// unhandled panic escapes a tick (returns true, meaning "restart me").
func (c *ControlLoop) runSteadyState(ctx context.Context) (restart bool) {
	for {
		if ctx.Err() != nil {
			return false
		}

		if c.runTickRecovered(ctx) {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.tickInterval):
		}
	}
}

// runTickRecovered runs one tick, converting any panic into a restart
// signal rather than letting it escape the loop, so stack depth stays
// bounded no matter how many times the loop restarts.
func (c *ControlLoop) runTickRecovered(ctx context.Context) (needsRestart bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("unhandled error in tick")
			needsRestart = true
		}
	}()

	c.runTick(ctx)
	return false
}

func (c *ControlLoop) runTick(ctx context.Context) {
	tickID := uuid.NewString()
	logger := c.logger.With().Str("tick_id", tickID).Logger()

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TickDuration)

	for {
		total, ok := c.metricsource.TotalCPUCores(ctx, c.policy.ReservedCPUCores)
		if !ok {
			logger.Warn().Msg("total_cpu_cores fetch failed, retrying tick head")
			if !c.sleepRetry(ctx) {
				return
			}
			continue
		}

		cpuUsage, totalUsage, ok := c.metricsource.ServicesCPUUsage(ctx)
		if !ok {
			logger.Warn().Msg("services_cpu_usage fetch failed, retrying tick head")
			if !c.sleepRetry(ctx) {
				return
			}
			continue
		}

		var memUsage []metricsource.ServiceMemoryUsage
		if c.policy.HasMemThresholds {
			memUsage, _ = c.metricsource.ServicesMemoryUsage(ctx)
		}

		var freeRatio float64
		if total > 0 {
			freeRatio = (total - totalUsage) / total
		}
		metrics.FreeCPURatio.Set(freeRatio)

		c.scaler.Tick(ctx, cpuUsage, memUsage)

		if c.policy.NodeScalingEnabled && c.nodeLifecycle != nil {
			c.nodeLifecycle.Tick(ctx, freeRatio)
		}

		logger.Debug().Float64("free_cpu_ratio", freeRatio).Msg("tick complete")
		return
	}
}

// sleepRetry waits retryInterval before the caller retries the tick head.
// It returns false if ctx is cancelled during the wait, signalling the
// caller to abandon the tick entirely.
func (c *ControlLoop) sleepRetry(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.retryInterval):
		return true
	}
}
