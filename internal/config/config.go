package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/cuemby/swarm-autopilot/pkg/types"
)

const (
	defaultNodeScaleMinScale = 0
	defaultNodeScaleMaxScale = 10
	defaultReservedCPUCores  = 0.0
	defaultMetricsURL        = "http://localhost:9090"
	defaultDockerSocket      = "/var/run/docker.sock"
	defaultClientTimeout     = 30 * time.Second
)

// Config is the fully validated result of parsing the top-level flag
// surface. Provider-specific flags are validated separately by the
// selected provider's own LoadConfig.
type Config struct {
	MetricsURL   string
	DockerSocket string

	NodeScaleEnabled  bool
	NodeScaleProvider string

	Policy *types.Policy
}

// RegisterFlags adds the autopilot's own flag surface to flags. Provider
// flags are added separately via provider.RegisterAllFlags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("metrics_url", defaultMetricsURL, "Base URL of the Prometheus-compatible metrics backend")
	flags.String("docker_socket", defaultDockerSocket, "Path to the Docker engine Unix domain socket")

	flags.Bool("node_scale_enabled", false, "Enable node-level autoscaling via a cloud provider")
	flags.String("node_scale_provider", "", "Name of the registered node provider to use (required if node_scale_enabled)")
	flags.Int("node_scale_min_scale", defaultNodeScaleMinScale, "Minimum number of autoscaler-owned nodes")
	flags.Int("node_scale_max_scale", defaultNodeScaleMaxScale, "Maximum number of autoscaler-owned nodes")

	flags.Float64("cpu_scale_up_threshold", 0, "CPU load factor above which a service scales up (must be set with cpu_scale_down_threshold)")
	flags.Float64("cpu_scale_down_threshold", 0, "CPU load factor below which a service scales down (must be set with cpu_scale_up_threshold)")
	flags.Float64("memory_scale_up_threshold", 0, "Memory load factor above which a service scales up (must be set with memory_scale_down_threshold)")
	flags.Float64("memory_scale_down_threshold", 0, "Memory load factor below which a service scales down (must be set with memory_scale_up_threshold)")

	flags.Float64("reserved_cpu_cores", defaultReservedCPUCores, "CPU cores reserved off the cluster total before computing free ratio")
}

// Load reads and validates the flag surface into a Config. Violations
// return an error; the caller (main) treats any error as fatal to startup
// with a nonzero exit code.
func Load(flags *pflag.FlagSet) (*Config, error) {
	metricsURL, _ := flags.GetString("metrics_url")
	dockerSocket, _ := flags.GetString("docker_socket")

	nodeScaleEnabled, _ := flags.GetBool("node_scale_enabled")
	nodeScaleProvider, _ := flags.GetString("node_scale_provider")
	nodeMin, _ := flags.GetInt("node_scale_min_scale")
	nodeMax, _ := flags.GetInt("node_scale_max_scale")

	cpuUp, _ := flags.GetFloat64("cpu_scale_up_threshold")
	cpuDown, _ := flags.GetFloat64("cpu_scale_down_threshold")
	memUp, _ := flags.GetFloat64("memory_scale_up_threshold")
	memDown, _ := flags.GetFloat64("memory_scale_down_threshold")

	reservedCPUCores, _ := flags.GetFloat64("reserved_cpu_cores")

	hasCPU := flags.Changed("cpu_scale_up_threshold") || flags.Changed("cpu_scale_down_threshold")
	hasMem := flags.Changed("memory_scale_up_threshold") || flags.Changed("memory_scale_down_threshold")

	if hasCPU && !(flags.Changed("cpu_scale_up_threshold") && flags.Changed("cpu_scale_down_threshold")) {
		return nil, fmt.Errorf("config: --cpu_scale_up_threshold and --cpu_scale_down_threshold must be specified together")
	}
	if hasMem && !(flags.Changed("memory_scale_up_threshold") && flags.Changed("memory_scale_down_threshold")) {
		return nil, fmt.Errorf("config: --memory_scale_up_threshold and --memory_scale_down_threshold must be specified together")
	}
	if !hasCPU && !hasMem {
		return nil, fmt.Errorf("config: at least one of the CPU or memory threshold pairs must be specified")
	}
	if nodeScaleEnabled && nodeScaleProvider == "" {
		return nil, fmt.Errorf("config: --node_scale_enabled requires --node_scale_provider")
	}

	return &Config{
		MetricsURL:        metricsURL,
		DockerSocket:      dockerSocket,
		NodeScaleEnabled:  nodeScaleEnabled,
		NodeScaleProvider: nodeScaleProvider,
		Policy: &types.Policy{
			CPUUpThreshold:     cpuUp,
			CPUDownThreshold:   cpuDown,
			HasCPUThresholds:   hasCPU,
			MemUpThreshold:     memUp,
			MemDownThreshold:   memDown,
			HasMemThresholds:   hasMem,
			ReservedCPUCores:   reservedCPUCores,
			NodeScalingEnabled: nodeScaleEnabled,
			NodeMin:            nodeMin,
			NodeMax:            nodeMax,
		},
	}, nil
}

// ClientTimeout is the per-request timeout for the orchestrator and
// metrics source clients, so a hung remote cannot stall the control loop.
func ClientTimeout() time.Duration {
	return defaultClientTimeout
}
