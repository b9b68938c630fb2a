package cluster

import (
	"fmt"

	"gridpool/pkg/cluster/hpc"
	"gridpool/pkg/cluster/k8s"
	"gridpool/pkg/config"
	"gridpool/pkg/interfaces"
)

// NewProvider creates the cluster provider named by cluster.provider
func NewProvider(cfg *config.Config) (interfaces.ClusterProvider, error) {
	switch cfg.Cluster.Provider {
	case config.ProviderHPC:
		return hpc.NewProvider(cfg)
	case config.ProviderKubernetes:
		return k8s.NewProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported cluster provider: %s", cfg.Cluster.Provider)
	}
}
