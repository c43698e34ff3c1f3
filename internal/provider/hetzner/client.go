package hetzner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/swarm-autopilot/pkg/log"
	"github.com/cuemby/swarm-autopilot/pkg/types"
)

const defaultBaseURL = "https://api.hetzner.cloud/v1"
const perPage = 50

// Provider implements provider.Provider against the Hetzner Cloud API.
type Provider struct {
	cfg     *Config
	http    *http.Client
	baseURL string
}

// New builds a Hetzner Provider from a validated Config.
func New(cfg *Config, timeout time.Duration) *Provider {
	if err := validateNetworkIDs(cfg.NodeNetworks); err != nil {
		log.Error(fmt.Sprintf("hetzner: %v", err))
	}
	return &Provider{cfg: cfg, http: &http.Client{Timeout: timeout}, baseURL: defaultBaseURL}
}

func (p *Provider) authHeader(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

type serverWire struct {
	ID      int64             `json:"id"`
	Name    string            `json:"name"`
	Created string            `json:"created"`
	Labels  map[string]string `json:"labels"`
}

type listServersResponse struct {
	Servers []serverWire `json:"servers"`
	Meta    struct {
		Pagination struct {
			LastPage int `json:"last_page"`
		} `json:"pagination"`
	} `json:"meta"`
}

// ListNodes paginates /servers filtered by label_selector Type=<node_label>
// until meta.pagination.last_page is reached.
func (p *Provider) ListNodes(ctx context.Context) ([]types.ProviderNode, error) {
	var out []types.ProviderNode
	page := 1

	for {
		u := fmt.Sprintf("%s/servers?page=%d&per_page=%d&label_selector=Type=%s", p.baseURL, page, perPage, p.cfg.NodeLabel)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		p.authHeader(req)

		resp, err := p.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("hetzner: list_nodes request: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("hetzner: list_nodes returned status %d", resp.StatusCode)
		}

		var parsed listServersResponse
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("hetzner: decoding list_nodes response: %w", err)
		}

		for _, s := range parsed.Servers {
			created, parseErr := time.Parse(time.RFC3339, s.Created)
			if parseErr != nil {
				created = time.Time{}
			}
			out = append(out, types.ProviderNode{
				ID:        fmt.Sprintf("%d", s.ID),
				Name:      s.Name,
				CreatedAt: created,
				Labels:    s.Labels,
			})
		}

		if page == parsed.Meta.Pagination.LastPage {
			return out, nil
		}
		page++
	}
}

// CreateNode provisions a server with initial labels {Type, Status:
// Creating} and a random name.
func (p *Provider) CreateNode(ctx context.Context) (types.ProviderNode, error) {
	name, err := randomNodeName(p.cfg.NodePrefix)
	if err != nil {
		return types.ProviderNode{}, fmt.Errorf("hetzner: generating node name: %w", err)
	}

	firewalls := make([]map[string]string, 0, len(p.cfg.NodeFirewalls))
	for _, fw := range p.cfg.NodeFirewalls {
		if fw == "" {
			continue
		}
		firewalls = append(firewalls, map[string]string{"firewall": fw})
	}

	networks := make([]int64, 0, len(p.cfg.NodeNetworks))
	for _, n := range p.cfg.NodeNetworks {
		if n == "" {
			continue
		}
		var id int64
		if _, scanErr := fmt.Sscanf(n, "%d", &id); scanErr == nil {
			networks = append(networks, id)
		}
	}

	sshKeys := make([]string, 0, len(p.cfg.NodeSSHKeys))
	for _, k := range p.cfg.NodeSSHKeys {
		if k == "" {
			continue
		}
		sshKeys = append(sshKeys, k)
	}

	payload := map[string]interface{}{
		"firewalls":   firewalls,
		"image":       p.cfg.NodeImage,
		"labels":      map[string]string{types.LabelType: p.cfg.NodeLabel, types.LabelStatus: string(types.NodeStatusCreating)},
		"location":    p.cfg.NodeLocation,
		"name":        name,
		"networks":    networks,
		"server_type": p.cfg.NodeType,
		"ssh_keys":    sshKeys,
		"user_data":   p.cfg.NodeUserData,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return types.ProviderNode{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/servers", bytes.NewReader(body))
	if err != nil {
		return types.ProviderNode{}, err
	}
	p.authHeader(req)

	resp, err := p.http.Do(req)
	if err != nil {
		return types.ProviderNode{}, fmt.Errorf("hetzner: create_node request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return types.ProviderNode{}, fmt.Errorf("hetzner: create_node returned status %d", resp.StatusCode)
	}

	var created struct {
		Server serverWire `json:"server"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return types.ProviderNode{}, fmt.Errorf("hetzner: decoding create_node response: %w", err)
	}

	return types.ProviderNode{
		ID:     fmt.Sprintf("%d", created.Server.ID),
		Name:   name,
		Labels: map[string]string{types.LabelType: p.cfg.NodeLabel, types.LabelStatus: string(types.NodeStatusCreating)},
	}, nil
}

// DeleteNode deletes the server identified by id.
func (p *Provider) DeleteNode(ctx context.Context, id string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/servers/%s", p.baseURL, id), nil)
	if err != nil {
		return false
	}
	p.authHeader(req)

	resp, err := p.http.Do(req)
	if err != nil {
		log.Error(fmt.Sprintf("hetzner: delete_node request for %s: %v", id, err))
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// UpdateLabels fully replaces the server's labels (not a merge).
func (p *Provider) UpdateLabels(ctx context.Context, id string, labels map[string]string) bool {
	body, err := json.Marshal(map[string]interface{}{"labels": labels})
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, fmt.Sprintf("%s/servers/%s", p.baseURL, id), bytes.NewReader(body))
	if err != nil {
		return false
	}
	p.authHeader(req)

	resp, err := p.http.Do(req)
	if err != nil {
		log.Error(fmt.Sprintf("hetzner: update_labels request for %s: %v", id, err))
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
