package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cuemby/swarm-autopilot/pkg/health"
	"github.com/cuemby/swarm-autopilot/pkg/log"
	"github.com/cuemby/swarm-autopilot/pkg/types"
)

// DefaultSocket is the well-known Docker engine socket path.
const DefaultSocket = "/var/run/docker.sock"

// Client talks to the orchestrator's engine API over a Unix domain socket.
// The base URL is a fixed, unroutable host ("orchestrator") since the
// socket is the real address — only Transport.DialContext matters.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient builds an orchestrator client that dials socketPath for every
// request. timeout bounds each individual call so a hung engine cannot
// stall the control loop.
func NewClient(socketPath string, timeout time.Duration) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}
	return &Client{
		http:    &http.Client{Transport: transport, Timeout: timeout},
		baseURL: "http://orchestrator",
	}
}

// Ping is the startup gate: a single, non-retried HTTP call to /_ping.
func (c *Client) Ping(ctx context.Context) bool {
	checker := health.NewHTTPChecker(c.baseURL + "/_ping")
	checker.Client = c.http
	return health.WaitUntilHealthy(ctx, checker, 1, 0)
}

// --- wire shapes -----------------------------------------------------

type versionWire struct {
	Index uint64 `json:"Index"`
}

type modeWire struct {
	Replicated *struct {
		Replicas int `json:"Replicas"`
	} `json:"Replicated,omitempty"`
	Global *struct{} `json:"Global,omitempty"`
}

type resourceLimitsWire struct {
	NanoCPUs    *int64 `json:"NanoCPUs,omitempty"`
	MemoryBytes *int64 `json:"MemoryBytes,omitempty"`
}

type resourcesWire struct {
	Limits *resourceLimitsWire `json:"Limits,omitempty"`
}

type serviceSpecWire struct {
	Name           string                 `json:"Name"`
	TaskTemplate   json.RawMessage        `json:"TaskTemplate"`
	Mode           modeWire               `json:"Mode"`
	UpdateConfig   map[string]interface{} `json:"UpdateConfig,omitempty"`
	RollbackConfig map[string]interface{} `json:"RollbackConfig,omitempty"`
	EndpointSpec   map[string]interface{} `json:"EndpointSpec,omitempty"`
}

type serviceWire struct {
	ID      string          `json:"ID"`
	Version versionWire     `json:"Version"`
	Spec    serviceSpecWire `json:"Spec"`
}

// GetService fetches the single service named name, or ok=false if absent
// or the call fails.
func (c *Client) GetService(ctx context.Context, name string) (*types.ServiceSpec, bool) {
	filters := fmt.Sprintf(`{"name":["%s"]}`, name)
	u := fmt.Sprintf("%s/services?filters=%s", c.baseURL, url.QueryEscape(filters))

	var wires []serviceWire
	if !c.getJSON(ctx, u, &wires) {
		return nil, false
	}
	if len(wires) == 0 {
		return nil, false
	}

	return decodeServiceWire(wires[0]), true
}

func decodeServiceWire(w serviceWire) *types.ServiceSpec {
	var taskTemplate struct {
		ContainerSpec struct {
			Labels map[string]string `json:"Labels"`
		} `json:"ContainerSpec"`
		Resources resourcesWire `json:"Resources"`
	}
	_ = json.Unmarshal(w.Spec.TaskTemplate, &taskTemplate)

	var rawTemplate map[string]interface{}
	_ = json.Unmarshal(w.Spec.TaskTemplate, &rawTemplate)

	spec := &types.ServiceSpec{
		ID:             w.ID,
		Name:           w.Spec.Name,
		Version:        w.Version.Index,
		Labels:         taskTemplate.ContainerSpec.Labels,
		TaskTemplate:   rawTemplate,
		UpdateConfig:   w.Spec.UpdateConfig,
		RollbackConfig: w.Spec.RollbackConfig,
		EndpointSpec:   w.Spec.EndpointSpec,
	}
	if spec.Labels == nil {
		spec.Labels = map[string]string{}
	}
	if spec.UpdateConfig == nil {
		spec.UpdateConfig = map[string]interface{}{}
	}
	if spec.RollbackConfig == nil {
		spec.RollbackConfig = map[string]interface{}{}
	}
	if spec.EndpointSpec == nil {
		spec.EndpointSpec = map[string]interface{}{}
	}

	if limits := taskTemplate.Resources.Limits; limits != nil {
		if limits.NanoCPUs != nil {
			cores := float64(*limits.NanoCPUs) / 1_000_000_000
			spec.CPULimitCores = &cores
		}
		if limits.MemoryBytes != nil {
			mib := float64(*limits.MemoryBytes) / 1024 / 1024
			spec.MemoryLimitMiB = &mib
		}
	}

	if w.Spec.Mode.Replicated != nil {
		spec.Mode = types.ModeReplicated
		spec.Replicas = w.Spec.Mode.Replicated.Replicas
	} else {
		spec.Mode = types.ModeGlobal
	}

	return spec
}

// Scale posts an update at spec.Version, replacing Mode with
// Replicated{Replicas: newReplicas} while preserving TaskTemplate,
// UpdateConfig, RollbackConfig, EndpointSpec. On success the returned
// spec's version token has been refreshed by a follow-up read, so a later
// mutation in the same tick carries a current token; on failure the input
// spec is returned unchanged alongside ok=false.
func (c *Client) Scale(ctx context.Context, spec *types.ServiceSpec, newReplicas int) (*types.ServiceSpec, bool) {
	payload := map[string]interface{}{
		"Name":           spec.Name,
		"TaskTemplate":   spec.TaskTemplate,
		"Mode":           map[string]interface{}{"Replicated": map[string]interface{}{"Replicas": newReplicas}},
		"UpdateConfig":   spec.UpdateConfig,
		"RollbackConfig": spec.RollbackConfig,
		"EndpointSpec":   spec.EndpointSpec,
	}

	u := fmt.Sprintf("%s/services/%s/update?version=%d", c.baseURL, spec.ID, spec.Version)
	if !c.postJSON(ctx, u, payload) {
		log.Error(fmt.Sprintf("orchestrator: scale of service %s to %d replicas failed", spec.Name, newReplicas))
		return spec, false
	}

	refreshed, ok := c.GetService(ctx, spec.Name)
	if !ok {
		return spec, false
	}
	return refreshed, true
}

type nodeWire struct {
	ID          string      `json:"ID"`
	Version     versionWire `json:"Version"`
	Description struct {
		Hostname string `json:"Hostname"`
	} `json:"Description"`
	Spec struct {
		Role         string `json:"Role"`
		Availability string `json:"Availability"`
	} `json:"Spec"`
}

func decodeNodeWire(w nodeWire) *types.OrchestratorNode {
	return &types.OrchestratorNode{
		ID:           w.ID,
		Version:      w.Version.Index,
		Hostname:     w.Description.Hostname,
		Role:         w.Spec.Role,
		Availability: w.Spec.Availability,
	}
}

// GetNode fetches the single node named hostname, or ok=false if absent
// or the call fails.
func (c *Client) GetNode(ctx context.Context, hostname string) (*types.OrchestratorNode, bool) {
	filters := fmt.Sprintf(`{"name":["%s"]}`, hostname)
	u := fmt.Sprintf("%s/nodes?filters=%s", c.baseURL, url.QueryEscape(filters))

	var wires []nodeWire
	if !c.getJSON(ctx, u, &wires) {
		return nil, false
	}
	if len(wires) == 0 {
		return nil, false
	}
	return decodeNodeWire(wires[0]), true
}

// Drain posts a node update at node.Version with Availability=drain and
// label draining=true, preserving name and role. Returns the refreshed
// node and true on success.
func (c *Client) Drain(ctx context.Context, node *types.OrchestratorNode) (*types.OrchestratorNode, bool) {
	payload := map[string]interface{}{
		"Name":         node.Hostname,
		"Labels":       map[string]string{"draining": "true"},
		"Role":         node.Role,
		"Availability": "drain",
	}

	u := fmt.Sprintf("%s/nodes/%s/update?version=%d", c.baseURL, node.ID, node.Version)
	if !c.postJSON(ctx, u, payload) {
		log.Error(fmt.Sprintf("orchestrator: drain of node %s failed", node.Hostname))
		return node, false
	}

	refreshed, ok := c.GetNode(ctx, node.Hostname)
	if !ok {
		return node, false
	}
	return refreshed, true
}

type taskWire struct {
	Status struct {
		State string `json:"State"`
	} `json:"Status"`
}

// ConfirmDrain lists tasks filtered by node id and returns true iff no
// task is in state "running".
func (c *Client) ConfirmDrain(ctx context.Context, node *types.OrchestratorNode) bool {
	filters := fmt.Sprintf(`{"node":["%s"]}`, node.ID)
	u := fmt.Sprintf("%s/tasks?filters=%s", c.baseURL, url.QueryEscape(filters))

	var tasks []taskWire
	if !c.getJSON(ctx, u, &tasks) {
		log.Error(fmt.Sprintf("orchestrator: confirming drain on node %s failed", node.Hostname))
		return false
	}

	for _, task := range tasks {
		if task.Status.State == "running" {
			return false
		}
	}
	return true
}

// Remove force-deletes node from the orchestrator.
func (c *Client) Remove(ctx context.Context, node *types.OrchestratorNode) bool {
	u := fmt.Sprintf("%s/nodes/%s?force=true", c.baseURL, node.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Error(fmt.Sprintf("orchestrator: removing node %s: %v", node.Hostname, err))
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// --- HTTP plumbing -----------------------------------------------------

func (c *Client) getJSON(ctx context.Context, u string, out interface{}) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Error(fmt.Sprintf("orchestrator: GET %s: %v", u, err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	return json.NewDecoder(resp.Body).Decode(out) == nil
}

func (c *Client) postJSON(ctx context.Context, u string, payload interface{}) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Error(fmt.Sprintf("orchestrator: POST %s: %v", u, err))
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
