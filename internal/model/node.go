package model

// NodeState pool node lifecycle state
type NodeState string

const (
	NodeStateNotDeployed  NodeState = "NotDeployed"  // NotDeployed - raw capacity, needs a full deploy before use
	NodeStateOffline      NodeState = "Offline"      // Offline - deployed but taken out of service
	NodeStateOnline       NodeState = "Online"       // Online - in service, accepting jobs
	NodeStateProvisioning NodeState = "Provisioning" // Provisioning - deploy in progress, not yet accepting jobs
	NodeStateOther        NodeState = "Other"        // Other - unknown/unhealthy, excluded from scaling
)

// Node is a point-in-time snapshot of a pool node as reported by the cluster
// manager. Immutable per cycle, same as Job.
type Node struct {
	Name       string    `json:"name"`
	Template   string    `json:"template,omitempty"`
	State      NodeState `json:"state"`
	Cores      int       `json:"cores"`
	MemoryMB   int64     `json:"memory_mb"`
	IsHeadNode bool      `json:"is_head_node,omitempty"`
}

// IsActive reports whether the node already contributes (or is about to
// contribute) capacity to the pool.
func (s NodeState) IsActive() bool {
	return s == NodeStateOnline || s == NodeStateProvisioning
}

// IsGrowCandidate reports whether the node can be brought into service by a
// grow action.
func (s NodeState) IsGrowCandidate() bool {
	return s == NodeStateNotDeployed || s == NodeStateOffline
}

// NodeNames extracts the names of the given nodes, preserving order.
func NodeNames(nodes []Node) []string {
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	return names
}

// FilterNodesByState returns the subset of nodes in the given state.
func FilterNodesByState(nodes []Node, state NodeState) []Node {
	var out []Node
	for _, n := range nodes {
		if n.State == state {
			out = append(out, n)
		}
	}
	return out
}

// ExcludeHeadNodes drops head nodes from the snapshot. The scaler manages
// compute capacity only; the head node must never be powered off.
func ExcludeHeadNodes(nodes []Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n.IsHeadNode {
			continue
		}
		out = append(out, n)
	}
	return out
}
