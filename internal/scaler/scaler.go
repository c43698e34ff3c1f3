package scaler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/cuemby/swarm-autopilot/internal/metricsource"
	"github.com/cuemby/swarm-autopilot/pkg/log"
	"github.com/cuemby/swarm-autopilot/pkg/metrics"
	"github.com/cuemby/swarm-autopilot/pkg/types"
)

// Orchestrator is the narrow slice of internal/orchestrator.Client the
// scaler depends on. Declared here (not in the orchestrator package) so
// tests can satisfy it with a hand-written fake.
type Orchestrator interface {
	GetService(ctx context.Context, name string) (*types.ServiceSpec, bool)
	Scale(ctx context.Context, spec *types.ServiceSpec, newReplicas int) (*types.ServiceSpec, bool)
}

// Scaler implements the per-service replica cascade.
type Scaler struct {
	orchestrator Orchestrator
	policy       *types.Policy
	logger       zerolog.Logger
	collector    *metrics.Collector
}

// New builds a Scaler against orchestrator, enforcing policy's thresholds.
func New(orchestrator Orchestrator, policy *types.Policy) *Scaler {
	return &Scaler{
		orchestrator: orchestrator,
		policy:       policy,
		logger:       log.WithComponent("scaler"),
		collector:    metrics.NewCollector(),
	}
}

// Tick evaluates every service the metrics backend reported CPU usage for,
// in iteration order, against the scale cascade, then
// publishes one tick's worth of observations to the self-metrics
// collector. memUsage is consulted only for services whose CPU dimension
// didn't act this tick (CPU takes precedence when both are configured).
func (s *Scaler) Tick(ctx context.Context, cpuUsage []metricsource.ServiceUsage, memUsage []metricsource.ServiceMemoryUsage) {
	memByName := make(map[string]float64, len(memUsage))
	for _, m := range memUsage {
		memByName[m.Name] = m.MemoryUsage
	}

	observations := make([]metrics.ServiceObservation, 0, len(cpuUsage))
	for _, usage := range cpuUsage {
		if obs, ok := s.evaluateService(ctx, usage.Name, usage.CPUUsage, memByName[usage.Name]); ok {
			observations = append(observations, obs)
		}
	}
	s.collector.ObserveServices(observations)
}

func (s *Scaler) evaluateService(ctx context.Context, name string, cpuUsage float64, memUsage float64) (metrics.ServiceObservation, bool) {
	spec, ok := s.orchestrator.GetService(ctx, name)
	if !ok {
		s.logger.Debug().Str("service", name).Msg("service not found, skipping")
		return metrics.ServiceObservation{}, false
	}

	if !spec.AutopilotEnabled() {
		s.logger.Debug().Str("service", name).Msg("autopilot not enabled, skipping")
		return metrics.ServiceObservation{}, false
	}

	scaleMin, ok := spec.ScaleMin()
	if !ok {
		s.logger.Error().Str("service", name).Msg("autopilot enabled but scale_min is not set, skipping")
		return metrics.ServiceObservation{}, false
	}

	if spec.CPULimitCores == nil && spec.MemoryLimitMiB == nil {
		s.logger.Error().Str("service", name).Msg("no CPU or memory limits configured, skipping")
		return metrics.ServiceObservation{}, false
	}

	if spec.Mode != types.ModeReplicated {
		s.logger.Error().Str("service", name).Msg("mode is not Replicated, skipping")
		return metrics.ServiceObservation{}, false
	}

	if spec.Replicas == 0 {
		s.logger.Error().Str("service", name).Msg("replicas is 0, skipping")
		return metrics.ServiceObservation{}, false
	}

	scaleMax := spec.ScaleMax()
	obs := metrics.ServiceObservation{
		Name:        name,
		Replicas:    spec.Replicas,
		LoadFactors: make(map[string]float64, 2),
	}

	var acted bool
	if spec.CPULimitCores != nil && s.policy.HasCPUThresholds {
		result := s.applyDimension(ctx, spec, "cpu", cpuUsage, *spec.CPULimitCores, s.policy.CPUUpThreshold, s.policy.CPUDownThreshold, scaleMin, scaleMax)
		obs.LoadFactors["cpu"] = result.load
		if result.acted {
			obs.Action = result.action
			acted = true
		}
	}

	if !acted && spec.MemoryLimitMiB != nil && s.policy.HasMemThresholds {
		result := s.applyDimension(ctx, spec, "mem", memUsage, *spec.MemoryLimitMiB, s.policy.MemUpThreshold, s.policy.MemDownThreshold, scaleMin, scaleMax)
		obs.LoadFactors["mem"] = result.load
		if result.acted {
			obs.Action = result.action
		}
	}

	return obs, true
}

type dimensionResult struct {
	load   float64
	action string
	acted  bool
}

// applyDimension computes the load factor for one dimension and applies
// the cascade, issuing the Scale call when the cascade wants one. acted
// is true whenever the cascade fired any branch other than actionNone —
// the caller uses it to decide whether CPU already claimed this tick.
func (s *Scaler) applyDimension(ctx context.Context, spec *types.ServiceSpec, dimension string, usage, limit, up, down float64, scaleMin, scaleMax int) dimensionResult {
	load := usage / (limit * float64(spec.Replicas))
	newReplicas, result := evaluate(load, up, down, spec.Replicas, scaleMin, scaleMax)

	switch result {
	case actionNone:
		return dimensionResult{load: load}
	case actionClampBlocked:
		label := "clamp_blocked_down"
		if load > up {
			label = "clamp_blocked_up"
		}
		s.logger.Warn().Str("service", spec.Name).Str("dimension", dimension).Int("replicas", spec.Replicas).Msg("scale clamped at bound")
		return dimensionResult{load: load, action: label, acted: true}
	case actionScale, actionClampMin, actionClampMax:
		label := scaleActionLabel(result, newReplicas, spec.Replicas)
		if _, ok := s.orchestrator.Scale(ctx, spec, newReplicas); !ok {
			s.logger.Error().Str("service", spec.Name).Str("dimension", dimension).Msg("scale call failed")
			return dimensionResult{load: load, acted: true}
		}
		s.logger.Info().Str("service", spec.Name).Str("dimension", dimension).Int("from", spec.Replicas).Int("to", newReplicas).Msg("scaled service")
		return dimensionResult{load: load, action: label, acted: true}
	}
	return dimensionResult{load: load}
}

func scaleActionLabel(result action, newReplicas, oldReplicas int) string {
	switch result {
	case actionClampMin:
		return "clamp_min"
	case actionClampMax:
		return "clamp_max"
	default:
		if newReplicas > oldReplicas {
			return "up"
		}
		return "down"
	}
}
