package k8s

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"

	"gridpool/internal/model"
	"gridpool/pkg/constants"
	"gridpool/pkg/logger"
)

// QueryNodes lists the group's cluster nodes and merges in inventory
// machines that have not joined yet, reported as NotDeployed.
func (p *Provider) QueryNodes(ctx context.Context, group, templateFilter string, state model.NodeState) ([]model.Node, error) {
	selector := labels.Set{p.k8sCfg.NodeGroupLabel: group}
	if templateFilter != "" {
		selector[p.k8sCfg.TemplateLabel] = templateFilter
	}

	list, err := p.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{
		LabelSelector: selector.AsSelector().String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	joined := make(map[string]bool, len(list.Items))
	nodes := make([]model.Node, 0, len(list.Items))
	for i := range list.Items {
		node := p.nodeFromCore(&list.Items[i])
		joined[node.Name] = true
		nodes = append(nodes, node)
	}

	// Inventory machines absent from the cluster are raw capacity.
	for _, machine := range p.inventory {
		if joined[machine.Name] || machine.Group != group {
			continue
		}
		if templateFilter != "" && machine.Template != templateFilter {
			continue
		}
		nodes = append(nodes, model.Node{
			Name:     machine.Name,
			Template: machine.Template,
			State:    model.NodeStateNotDeployed,
			Cores:    machine.Cores,
			MemoryMB: machine.MemoryMB,
		})
	}

	if state == "" {
		return nodes, nil
	}
	return model.FilterNodesByState(nodes, state), nil
}

// nodeFromCore maps one cluster node to a pool node snapshot
func (p *Provider) nodeFromCore(node *corev1.Node) model.Node {
	cores := 0
	if cpu, ok := node.Status.Allocatable[corev1.ResourceCPU]; ok {
		cores = int(cpu.Value())
	}
	memoryMB := int64(0)
	if mem, ok := node.Status.Allocatable[corev1.ResourceMemory]; ok {
		memoryMB = mem.Value() / (1024 * 1024)
	}

	return model.Node{
		Name:       node.Name,
		Template:   node.Labels[p.k8sCfg.TemplateLabel],
		State:      coreNodeState(node),
		Cores:      cores,
		MemoryMB:   memoryMB,
		IsHeadNode: isHeadNode(node),
	}
}

// coreNodeState derives the pool state: cordoned wins over readiness because
// cordoning is operator intent, then Ready means Online.
func coreNodeState(node *corev1.Node) model.NodeState {
	if node.Spec.Unschedulable {
		return model.NodeStateOffline
	}
	if isNodeReady(node) {
		return model.NodeStateOnline
	}
	return model.NodeStateProvisioning
}

func isNodeReady(node *corev1.Node) bool {
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

func isHeadNode(node *corev1.Node) bool {
	if _, ok := node.Labels[constants.LabelControlPlane]; ok {
		return true
	}
	_, ok := node.Labels[constants.LabelMasterLegacy]
	return ok
}

// CountActiveJobs counts the namespace's Pending/Running pods assigned to
// the node.
func (p *Provider) CountActiveJobs(ctx context.Context, nodeName string) (int, error) {
	list, err := p.client.CoreV1().Pods(p.namespace).List(ctx, metav1.ListOptions{
		FieldSelector: fields.OneTermEqualSelector("spec.nodeName", nodeName).String(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list pods on node %s: %w", nodeName, err)
	}

	count := 0
	for i := range list.Items {
		switch list.Items[i].Status.Phase {
		case corev1.PodPending, corev1.PodRunning:
			count++
		}
	}
	return count, nil
}

// SetNodeState cordons (Offline) or uncordons (Online) the named nodes via
// a merge patch of spec.unschedulable.
func (p *Provider) SetNodeState(ctx context.Context, nodes []string, target model.NodeState) error {
	var unschedulable bool
	switch target {
	case model.NodeStateOnline:
		unschedulable = false
	case model.NodeStateOffline:
		unschedulable = true
	default:
		return fmt.Errorf("unsupported node state transition: %s", target)
	}

	patch := []byte(fmt.Sprintf(`{"spec":{"unschedulable":%t}}`, unschedulable))
	for _, name := range nodes {
		_, err := p.client.CoreV1().Nodes().Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{})
		if err != nil {
			return fmt.Errorf("failed to patch node %s: %w", name, err)
		}
		logger.DebugCtx(ctx, "node %s set unschedulable=%t", name, unschedulable)
	}
	return nil
}

// StopNodes drains the named nodes: the namespace's pods on each node are
// deleted, with zero grace when force is set. Powering the machine off stays
// with the platform.
func (p *Provider) StopNodes(ctx context.Context, nodes []string, force, async bool) error {
	var deleteOpts metav1.DeleteOptions
	if force {
		var zero int64
		deleteOpts.GracePeriodSeconds = &zero
	}

	for _, name := range nodes {
		list, err := p.client.CoreV1().Pods(p.namespace).List(ctx, metav1.ListOptions{
			FieldSelector: fields.OneTermEqualSelector("spec.nodeName", name).String(),
		})
		if err != nil {
			return fmt.Errorf("failed to list pods on node %s: %w", name, err)
		}

		for i := range list.Items {
			pod := &list.Items[i]
			if ownedByDaemonSet(pod) {
				continue
			}
			if err := p.client.CoreV1().Pods(p.namespace).Delete(ctx, pod.Name, deleteOpts); err != nil {
				return fmt.Errorf("failed to evict pod %s from node %s: %w", pod.Name, name, err)
			}
		}
		logger.InfoCtx(ctx, "node %s drained (%d pods)", name, len(list.Items))
	}
	return nil
}

func ownedByDaemonSet(pod *corev1.Pod) bool {
	for _, ref := range pod.OwnerReferences {
		if ref.Kind == "DaemonSet" {
			return true
		}
	}
	return false
}
