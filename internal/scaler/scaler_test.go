package scaler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/swarm-autopilot/internal/metricsource"
	"github.com/cuemby/swarm-autopilot/pkg/types"
)

func cpuLimit(v float64) *float64 { return &v }
func memLimit(v float64) *float64 { return &v }

// fakeOrchestrator is a hand-written test double.
type fakeOrchestrator struct {
	services  map[string]*types.ServiceSpec
	scaleCall *scaleCall
}

type scaleCall struct {
	service     string
	newReplicas int
}

func (f *fakeOrchestrator) GetService(_ context.Context, name string) (*types.ServiceSpec, bool) {
	spec, ok := f.services[name]
	return spec, ok
}

func (f *fakeOrchestrator) Scale(_ context.Context, spec *types.ServiceSpec, newReplicas int) (*types.ServiceSpec, bool) {
	f.scaleCall = &scaleCall{service: spec.Name, newReplicas: newReplicas}
	spec.Replicas = newReplicas
	return spec, true
}

func eligibleSpec(replicas int) *types.ServiceSpec {
	return &types.ServiceSpec{
		Name:          "web",
		Mode:          types.ModeReplicated,
		Replicas:      replicas,
		CPULimitCores: cpuLimit(1.0),
		Labels: map[string]string{
			"autopilot_enabled": "true",
			"scale_min":         "1",
			"scale_max":         "5",
		},
	}
}

func defaultPolicy() *types.Policy {
	return &types.Policy{
		CPUUpThreshold:   0.8,
		CPUDownThreshold: 0.2,
		HasCPUThresholds: true,
	}
}

// S1: load above the up-threshold scales up by one replica.
func TestTickScalesUpWhenCPULoadExceedsThreshold(t *testing.T) {
	spec := eligibleSpec(2)
	orch := &fakeOrchestrator{services: map[string]*types.ServiceSpec{"web": spec}}
	s := New(orch, defaultPolicy())

	// load = 1.9 / (1.0 * 2) = 0.95 > 0.8
	s.Tick(context.Background(), []metricsource.ServiceUsage{{Name: "web", CPUUsage: 1.9}}, nil)

	require.NotNil(t, orch.scaleCall)
	assert.Equal(t, 3, orch.scaleCall.newReplicas)
}

// S2: load above the up-threshold but already at scale_max is clamped,
// no Scale call issued.
func TestTickClampsAtScaleMaxWithoutScaling(t *testing.T) {
	spec := eligibleSpec(5)
	orch := &fakeOrchestrator{services: map[string]*types.ServiceSpec{"web": spec}}
	s := New(orch, defaultPolicy())

	s.Tick(context.Background(), []metricsource.ServiceUsage{{Name: "web", CPUUsage: 4.9}}, nil)

	assert.Nil(t, orch.scaleCall)
	assert.Equal(t, 5, spec.Replicas)
}

// S3: load below the down-threshold scales down by one replica.
func TestTickScalesDownWhenCPULoadBelowThreshold(t *testing.T) {
	spec := eligibleSpec(3)
	orch := &fakeOrchestrator{services: map[string]*types.ServiceSpec{"web": spec}}
	s := New(orch, defaultPolicy())

	// load = 0.1 / (1.0 * 3) = 0.033 < 0.2
	s.Tick(context.Background(), []metricsource.ServiceUsage{{Name: "web", CPUUsage: 0.1}}, nil)

	require.NotNil(t, orch.scaleCall)
	assert.Equal(t, 2, orch.scaleCall.newReplicas)
}

func TestTickSkipsServiceNotFound(t *testing.T) {
	orch := &fakeOrchestrator{services: map[string]*types.ServiceSpec{}}
	s := New(orch, defaultPolicy())

	assert.NotPanics(t, func() {
		s.Tick(context.Background(), []metricsource.ServiceUsage{{Name: "missing", CPUUsage: 1.0}}, nil)
	})
	assert.Nil(t, orch.scaleCall)
}

func TestTickSkipsWhenAutopilotDisabled(t *testing.T) {
	spec := eligibleSpec(2)
	spec.Labels["autopilot_enabled"] = "false"
	orch := &fakeOrchestrator{services: map[string]*types.ServiceSpec{"web": spec}}
	s := New(orch, defaultPolicy())

	s.Tick(context.Background(), []metricsource.ServiceUsage{{Name: "web", CPUUsage: 1.9}}, nil)
	assert.Nil(t, orch.scaleCall)
}

func TestTickSkipsWhenScaleMinMissing(t *testing.T) {
	spec := eligibleSpec(2)
	delete(spec.Labels, "scale_min")
	orch := &fakeOrchestrator{services: map[string]*types.ServiceSpec{"web": spec}}
	s := New(orch, defaultPolicy())

	s.Tick(context.Background(), []metricsource.ServiceUsage{{Name: "web", CPUUsage: 1.9}}, nil)
	assert.Nil(t, orch.scaleCall)
}

func TestTickSkipsWhenNoResourceLimits(t *testing.T) {
	spec := eligibleSpec(2)
	spec.CPULimitCores = nil
	orch := &fakeOrchestrator{services: map[string]*types.ServiceSpec{"web": spec}}
	s := New(orch, defaultPolicy())

	s.Tick(context.Background(), []metricsource.ServiceUsage{{Name: "web", CPUUsage: 1.9}}, nil)
	assert.Nil(t, orch.scaleCall)
}

func TestTickSkipsGlobalMode(t *testing.T) {
	spec := eligibleSpec(2)
	spec.Mode = types.ModeGlobal
	orch := &fakeOrchestrator{services: map[string]*types.ServiceSpec{"web": spec}}
	s := New(orch, defaultPolicy())

	s.Tick(context.Background(), []metricsource.ServiceUsage{{Name: "web", CPUUsage: 1.9}}, nil)
	assert.Nil(t, orch.scaleCall)
}

func TestTickSkipsZeroReplicas(t *testing.T) {
	spec := eligibleSpec(0)
	orch := &fakeOrchestrator{services: map[string]*types.ServiceSpec{"web": spec}}
	s := New(orch, defaultPolicy())

	s.Tick(context.Background(), []metricsource.ServiceUsage{{Name: "web", CPUUsage: 1.9}}, nil)
	assert.Nil(t, orch.scaleCall)
}

// CPU precedence: when CPU fires, memory is never consulted even if it
// also crosses a threshold in the opposite direction.
func TestTickCPUTakesPrecedenceOverMemory(t *testing.T) {
	spec := eligibleSpec(2)
	spec.MemoryLimitMiB = memLimit(1024)
	orch := &fakeOrchestrator{services: map[string]*types.ServiceSpec{"web": spec}}
	policy := defaultPolicy()
	policy.HasMemThresholds = true
	policy.MemUpThreshold = 0.8
	policy.MemDownThreshold = 0.2
	s := New(orch, policy)

	// CPU load crosses up-threshold; memory load (10/2048=0.005) would
	// independently cross down-threshold. Only one Scale call should fire,
	// and it must be the up direction the CPU cascade chose.
	s.Tick(context.Background(),
		[]metricsource.ServiceUsage{{Name: "web", CPUUsage: 1.9}},
		[]metricsource.ServiceMemoryUsage{{Name: "web", MemoryUsage: 10}},
	)

	require.NotNil(t, orch.scaleCall)
	assert.Equal(t, 3, orch.scaleCall.newReplicas)
}

// A memory-only configuration leaves the CPU dimension inert: zero-valued
// CPU thresholds must not turn every positive load into a scale-up.
func TestTickMemoryOnlyConfigIgnoresCPUDimension(t *testing.T) {
	spec := eligibleSpec(2)
	spec.MemoryLimitMiB = memLimit(1024)
	orch := &fakeOrchestrator{services: map[string]*types.ServiceSpec{"web": spec}}
	policy := &types.Policy{
		HasMemThresholds: true,
		MemUpThreshold:   0.8,
		MemDownThreshold: 0.2,
	}
	s := New(orch, policy)

	// CPU load = 1.0/(1*2) = 0.5 > 0, which would beat an unset up
	// threshold of 0. Mem load = 1000/(1024*2) = 0.488, between
	// thresholds: no action expected at all.
	s.Tick(context.Background(),
		[]metricsource.ServiceUsage{{Name: "web", CPUUsage: 1.0}},
		[]metricsource.ServiceMemoryUsage{{Name: "web", MemoryUsage: 1000}},
	)

	assert.Nil(t, orch.scaleCall)
	assert.Equal(t, 2, spec.Replicas)
}

// When CPU is a no-op this tick, memory is still consulted.
func TestTickFallsBackToMemoryWhenCPUIsNoOp(t *testing.T) {
	spec := eligibleSpec(2)
	spec.MemoryLimitMiB = memLimit(1024)
	orch := &fakeOrchestrator{services: map[string]*types.ServiceSpec{"web": spec}}
	policy := defaultPolicy()
	policy.HasMemThresholds = true
	policy.MemUpThreshold = 0.8
	policy.MemDownThreshold = 0.2
	s := New(orch, policy)

	// CPU load = 1.0/(1*2) = 0.5, between thresholds: no-op.
	// Mem load = 1900/(1024*2) = 0.928 > 0.8: scale up.
	s.Tick(context.Background(),
		[]metricsource.ServiceUsage{{Name: "web", CPUUsage: 1.0}},
		[]metricsource.ServiceMemoryUsage{{Name: "web", MemoryUsage: 1900}},
	)

	require.NotNil(t, orch.scaleCall)
	assert.Equal(t, 3, orch.scaleCall.newReplicas)
}
