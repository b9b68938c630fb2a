package k8s

import (
	"context"
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"gridpool/pkg/config"
	"gridpool/pkg/logger"
)

// Provider implements the cluster provider interface for pools whose workers
// are Kubernetes nodes running batch Jobs. Node power management stays with
// the platform: this provider moves nodes in and out of service, it never
// provisions machines.
type Provider struct {
	client    kubernetes.Interface
	namespace string
	k8sCfg    *config.K8sConfig
	inventory []InventoryMachine
}

// NewProvider creates a Kubernetes provider from the in-cluster config or,
// outside a cluster, from the configured kubeconfig.
func NewProvider(cfg *config.Config) (*Provider, error) {
	restConfig, err := buildRestConfig(cfg.Cluster.K8s.Kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to get kubernetes config: %w", err)
	}

	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	return newProvider(client, &cfg.Cluster.K8s)
}

// newProvider wires a provider onto an existing clientset. Split out so
// tests can inject a fake.
func newProvider(client kubernetes.Interface, k8sCfg *config.K8sConfig) (*Provider, error) {
	var inventory []InventoryMachine
	if k8sCfg.InventoryFile != "" {
		var err error
		inventory, err = LoadInventory(k8sCfg.InventoryFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load machine inventory: %w", err)
		}
		logger.Infof("loaded machine inventory: %d machines from %s", len(inventory), k8sCfg.InventoryFile)
	}

	return &Provider{
		client:    client,
		namespace: k8sCfg.Namespace,
		k8sCfg:    k8sCfg,
		inventory: inventory,
	}, nil
}

func buildRestConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig != "" {
		return clientcmd.BuildConfigFromFlags("", kubeconfig)
	}

	restConfig, err := rest.InClusterConfig()
	if err == nil {
		return restConfig, nil
	}

	// Not in a cluster: fall back to the default kubeconfig chain.
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{}).ClientConfig()
}

// Name identifies the provider in logs and status output
func (p *Provider) Name() string {
	return config.ProviderKubernetes
}

// StartNodes is unsupported on Kubernetes: machine provisioning is owned by
// the platform, so growth only uses the cordoned-node path here.
func (p *Provider) StartNodes(ctx context.Context, nodes []string, async bool) error {
	return fmt.Errorf("starting nodes is not supported by the kubernetes provider (machine provisioning is owned by the platform)")
}
