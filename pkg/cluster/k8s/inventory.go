package k8s

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// InventoryMachine is one machine in the static pool inventory. The
// inventory names capacity that exists physically but has not joined the
// cluster, so the selector can see it as NotDeployed.
type InventoryMachine struct {
	Name     string `json:"name"`
	Group    string `json:"group"`
	Template string `json:"template,omitempty"`
	Cores    int    `json:"cores"`
	MemoryMB int64  `json:"memoryMb"`
}

type inventoryFile struct {
	Machines []InventoryMachine `json:"machines"`
}

// LoadInventory reads the machine inventory YAML
func LoadInventory(path string) ([]InventoryMachine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory file %s: %w", path, err)
	}

	var file inventoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse inventory file %s: %w", path, err)
	}

	for i, m := range file.Machines {
		if m.Name == "" {
			return nil, fmt.Errorf("inventory machine %d has no name", i)
		}
	}
	return file.Machines, nil
}
