package nodelifecycle

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/swarm-autopilot/pkg/log"
	"github.com/cuemby/swarm-autopilot/pkg/metrics"
	"github.com/cuemby/swarm-autopilot/pkg/types"
)

// graceWindow is the minimum node age before it is eligible for removal.
const graceWindow = 15 * time.Minute

// orphanWindow is how long a node may sit in Creating before it is
// considered abandoned and deleted.
const orphanWindow = time.Hour

// Orchestrator is the narrow slice of internal/orchestrator.Client the
// node lifecycle depends on.
type Orchestrator interface {
	GetNode(ctx context.Context, hostname string) (*types.OrchestratorNode, bool)
	Drain(ctx context.Context, node *types.OrchestratorNode) (*types.OrchestratorNode, bool)
	ConfirmDrain(ctx context.Context, node *types.OrchestratorNode) bool
	Remove(ctx context.Context, node *types.OrchestratorNode) bool
}

// Provider is the narrow slice of internal/provider.Provider the node
// lifecycle depends on.
type Provider interface {
	ListNodes(ctx context.Context) ([]types.ProviderNode, error)
	CreateNode(ctx context.Context) (types.ProviderNode, error)
	DeleteNode(ctx context.Context, id string) bool
	UpdateLabels(ctx context.Context, id string, labels map[string]string) bool
}

// NodeLifecycle implements the node scale-up/scale-down/reconciliation
// pass, invoked once per control loop tick after service scaling.
type NodeLifecycle struct {
	orchestrator Orchestrator
	provider     Provider
	policy       *types.Policy
	logger       zerolog.Logger
	now          func() time.Time
}

// New builds a NodeLifecycle against orchestrator and provider, enforcing
// policy's node_min/node_max/cpu thresholds.
func New(orchestrator Orchestrator, provider Provider, policy *types.Policy) *NodeLifecycle {
	return &NodeLifecycle{
		orchestrator: orchestrator,
		provider:     provider,
		policy:       policy,
		logger:       log.WithComponent("nodelifecycle"),
		now:          time.Now,
	}
}

// Tick runs one node-lifecycle pass: list nodes, try the scale-up
// decision (which, if it fires, ends the pass early for this tick), else
// try the scale-down decision, then run warm-up reconciliation.
func (n *NodeLifecycle) Tick(ctx context.Context, freeRatio float64) {
	nodes, err := n.provider.ListNodes(ctx)
	if err != nil {
		n.logger.Error().Err(err).Msg("listing nodes failed, skipping node pass")
		metrics.ProviderErrorsTotal.WithLabelValues("list_nodes").Inc()
		return
	}

	n.observeNodeCounts(nodes)

	if n.scaleUp(ctx, freeRatio, nodes) {
		return
	}

	n.scaleDown(ctx, freeRatio, nodes)
	n.reconcile(ctx, nodes)
}

func (n *NodeLifecycle) observeNodeCounts(nodes []types.ProviderNode) {
	counts := map[types.NodeStatus]int{}
	for _, node := range nodes {
		counts[node.Status()]++
	}
	metrics.NodesOwnedTotal.WithLabelValues(string(types.NodeStatusCreating)).Set(float64(counts[types.NodeStatusCreating]))
	metrics.NodesOwnedTotal.WithLabelValues(string(types.NodeStatusRunning)).Set(float64(counts[types.NodeStatusRunning]))
	metrics.NodesOwnedTotal.WithLabelValues(string(types.NodeStatusDraining)).Set(float64(counts[types.NodeStatusDraining]))
}

// scaleUp grows the node set when free capacity drops below the up
// threshold or the set is under node_min. It returns true iff it fired,
// in which case the caller must end the node pass for this tick without
// running scale-down or reconciliation.
func (n *NodeLifecycle) scaleUp(ctx context.Context, freeRatio float64, nodes []types.ProviderNode) bool {
	belowMin := len(nodes) < n.policy.NodeMin
	if freeRatio >= n.policy.CPUUpThreshold && !belowMin {
		return false
	}

	if belowMin {
		deficit := n.policy.NodeMin - len(nodes)
		for i := 0; i < deficit; i++ {
			n.createNode(ctx)
		}
		return true
	}

	n.createNode(ctx)
	return true
}

func (n *NodeLifecycle) createNode(ctx context.Context) {
	node, err := n.provider.CreateNode(ctx)
	if err != nil {
		n.logger.Error().Err(err).Msg("creating node failed")
		metrics.ProviderErrorsTotal.WithLabelValues("create_node").Inc()
		return
	}
	metrics.NodeActionsTotal.WithLabelValues("create").Inc()
	n.logger.Info().Str("node", node.Name).Msg("created node")
}

// scaleDown iterates nodes in listing order, skipping any younger than
// the grace window, and stops after the first node selected for action.
// At most one node transitions per tick.
func (n *NodeLifecycle) scaleDown(ctx context.Context, freeRatio float64, nodes []types.ProviderNode) {
	if len(nodes) == 0 {
		return
	}
	if !(freeRatio > n.policy.CPUDownThreshold || len(nodes) > n.policy.NodeMax) {
		return
	}

	for _, node := range nodes {
		if n.now().Sub(node.CreatedAt) < graceWindow {
			continue
		}

		switch node.Status() {
		case types.NodeStatusRunning:
			n.handleRunning(ctx, node)
			return
		case types.NodeStatusDraining:
			n.handleDraining(ctx, node)
			return
		case types.NodeStatusCreating:
			continue
		}
	}
}

func (n *NodeLifecycle) handleRunning(ctx context.Context, node types.ProviderNode) {
	orchNode, ok := n.orchestrator.GetNode(ctx, node.Name)
	if !ok {
		n.logger.Warn().Str("node", node.Name).Msg("orchestrator node not found, cannot drain")
		return
	}

	if _, ok := n.orchestrator.Drain(ctx, orchNode); !ok {
		n.logger.Error().Str("node", node.Name).Msg("drain failed")
		return
	}

	labels := withLabel(node.Labels, types.LabelStatus, string(types.NodeStatusDraining))
	if !n.provider.UpdateLabels(ctx, node.ID, labels) {
		n.logger.Error().Str("node", node.Name).Msg("updating labels to Draining failed")
		return
	}
	metrics.NodeActionsTotal.WithLabelValues("drain").Inc()
	n.logger.Info().Str("node", node.Name).Msg("node draining")
}

func (n *NodeLifecycle) handleDraining(ctx context.Context, node types.ProviderNode) {
	orchNode, ok := n.orchestrator.GetNode(ctx, node.Name)
	if !ok {
		n.logger.Warn().Str("node", node.Name).Msg("orchestrator node not found, cannot confirm drain")
		return
	}

	if !n.orchestrator.ConfirmDrain(ctx, orchNode) {
		n.logger.Debug().Str("node", node.Name).Msg("drain not yet confirmed")
		return
	}

	if !n.orchestrator.Remove(ctx, orchNode) {
		n.logger.Error().Str("node", node.Name).Msg("removing node from orchestrator failed")
		return
	}

	if !n.provider.DeleteNode(ctx, node.ID) {
		n.logger.Error().Str("node", node.Name).Msg("deleting node from provider failed")
		return
	}
	metrics.NodeActionsTotal.WithLabelValues("remove").Inc()
	n.logger.Info().Str("node", node.Name).Msg("node removed")
}

// reconcile promotes Creating nodes that have joined the swarm to
// Running, and deletes those that never joined within the orphan window.
func (n *NodeLifecycle) reconcile(ctx context.Context, nodes []types.ProviderNode) {
	for _, node := range nodes {
		if node.Status() != types.NodeStatusCreating {
			continue
		}

		if _, ok := n.orchestrator.GetNode(ctx, node.Name); ok {
			labels := withLabel(node.Labels, types.LabelStatus, string(types.NodeStatusRunning))
			if n.provider.UpdateLabels(ctx, node.ID, labels) {
				n.logger.Info().Str("node", node.Name).Msg("node joined, marked Running")
			}
			continue
		}

		if n.now().Sub(node.CreatedAt) > orphanWindow {
			if n.provider.DeleteNode(ctx, node.ID) {
				metrics.NodeActionsTotal.WithLabelValues("orphan_delete").Inc()
				n.logger.Warn().Str("node", node.Name).Msg("deleted orphaned node that never joined")
			}
		}
	}
}

func withLabel(labels map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out[key] = value
	return out
}
