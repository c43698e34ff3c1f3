package metricsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cuemby/swarm-autopilot/pkg/health"
	"github.com/cuemby/swarm-autopilot/pkg/log"
)

const (
	totalCPUCoresQuery       = `sum(machine_cpu_cores)`
	servicesCPUUsageQuery    = `sum(rate(container_cpu_usage_seconds_total{container_label_com_docker_swarm_task_name=~'.+'}[5m]))BY(container_label_com_docker_swarm_service_name)`
	servicesMemoryUsageQuery = `sum(container_memory_working_set_bytes{container_label_com_docker_swarm_task_name=~'.+'})BY(container_label_com_docker_swarm_service_name)`

	pingAttempts = 9
	pingInterval = 60 * time.Second
)

// ServiceUsage is one service's aggregated CPU usage, in cores, over the
// backend's 5-minute rate window.
type ServiceUsage struct {
	Name     string
	CPUUsage float64
}

// ServiceMemoryUsage is one service's aggregated memory working-set usage,
// in MiB. There is no rate window here — memory is a gauge, not a counter.
type ServiceMemoryUsage struct {
	Name        string
	MemoryUsage float64
}

// Client queries a Prometheus-compatible HTTP API for cluster CPU and
// per-service memory signals.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a MetricsSource client against baseURL (e.g.
// "http://prometheus:9090"). Every call carries timeout as its per-request
// deadline.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type queryResponse struct {
	Status string `json:"status"`
	Data   struct {
		Result []struct {
			Metric map[string]string `json:"metric"`
			Value  [2]interface{}     `json:"value"`
		} `json:"result"`
	} `json:"data"`
}

type configStatusResponse struct {
	Status string `json:"status"`
}

// configChecker satisfies health.Checker: healthy iff the backend answers
// /api/v1/status/config with status "success".
type configChecker struct {
	baseURL string
	http    *http.Client
}

func (c *configChecker) Type() health.CheckType { return health.CheckTypeHTTP }

func (c *configChecker) Check(ctx context.Context) health.Result {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/status/config", nil)
	if err != nil {
		return health.Result{Healthy: false, Message: err.Error(), CheckedAt: start, Duration: time.Since(start)}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return health.Result{Healthy: false, Message: err.Error(), CheckedAt: start, Duration: time.Since(start)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return health.Result{Healthy: false, Message: fmt.Sprintf("status %d", resp.StatusCode), CheckedAt: start, Duration: time.Since(start)}
	}

	var parsed configStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return health.Result{Healthy: false, Message: err.Error(), CheckedAt: start, Duration: time.Since(start)}
	}

	return health.Result{Healthy: parsed.Status == "success", CheckedAt: start, Duration: time.Since(start)}
}

// Ping is the startup gate: succeed if the backend reports config-status
// "success" within 9 attempts spaced 60s apart (bounded ≈9 minutes).
func (c *Client) Ping(ctx context.Context) bool {
	return health.WaitUntilHealthy(ctx, &configChecker{baseURL: c.baseURL, http: c.http}, pingAttempts, pingInterval)
}

// TotalCPUCores returns sum(machine_cpu_cores) - reserved, or false if the
// backend returns a non-success status or an empty result set.
func (c *Client) TotalCPUCores(ctx context.Context, reserved float64) (float64, bool) {
	parsed, ok := c.query(ctx, totalCPUCoresQuery)
	if !ok || len(parsed.Data.Result) == 0 {
		return 0, false
	}

	value, ok := scalarValue(parsed.Data.Result[0].Value)
	if !ok {
		return 0, false
	}
	return value - reserved, true
}

// ServicesCPUUsage returns per-service aggregated CPU usage (cores) and the
// scalar sum across the returned set, or false on a non-success status.
func (c *Client) ServicesCPUUsage(ctx context.Context) ([]ServiceUsage, float64, bool) {
	parsed, ok := c.query(ctx, servicesCPUUsageQuery)
	if !ok {
		return nil, 0, false
	}

	var total float64
	services := make([]ServiceUsage, 0, len(parsed.Data.Result))
	for _, result := range parsed.Data.Result {
		name := result.Metric["container_label_com_docker_swarm_service_name"]
		value, ok := scalarValue(result.Value)
		if !ok {
			continue
		}
		total += value
		services = append(services, ServiceUsage{Name: name, CPUUsage: value})
	}
	return services, total, true
}

// ServicesMemoryUsage returns per-service memory working-set usage in MiB.
// Unlike ServicesCPUUsage it has no scalar total; the node-level free-ratio
// computation is defined only in terms of CPU.
func (c *Client) ServicesMemoryUsage(ctx context.Context) ([]ServiceMemoryUsage, bool) {
	parsed, ok := c.query(ctx, servicesMemoryUsageQuery)
	if !ok {
		return nil, false
	}

	services := make([]ServiceMemoryUsage, 0, len(parsed.Data.Result))
	for _, result := range parsed.Data.Result {
		name := result.Metric["container_label_com_docker_swarm_service_name"]
		value, ok := scalarValue(result.Value)
		if !ok {
			continue
		}
		mib := value / 1024 / 1024
		services = append(services, ServiceMemoryUsage{Name: name, MemoryUsage: mib})
	}
	return services, true
}

func (c *Client) query(ctx context.Context, promQL string) (*queryResponse, bool) {
	u := fmt.Sprintf("%s/api/v1/query?query=%s", c.baseURL, url.QueryEscape(promQL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		log.Error(fmt.Sprintf("metricsource: building query request: %v", err))
		return nil, false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Error(fmt.Sprintf("metricsource: query request failed: %v", err))
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false
	}

	var parsed queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		log.Error(fmt.Sprintf("metricsource: decoding query response: %v", err))
		return nil, false
	}
	if parsed.Status != "success" {
		return nil, false
	}
	return &parsed, true
}

// scalarValue extracts the string-encoded float at value[1], the format
// Prometheus's /api/v1/query returns: [unix_timestamp, "123.4"].
func scalarValue(value [2]interface{}) (float64, bool) {
	raw, ok := value[1].(string)
	if !ok {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
