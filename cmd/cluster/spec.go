package cluster

import (
	"fmt"
	"os"

	awsinfra "github.com/stolostron/automation-capi/cmd/infra/aws"

	"sigs.k8s.io/yaml"
)

// ClusterSpec is the manifest a provisioning request carries. It is passed
// through to the provisioner unchanged; only the fields needed for
// validation and routing are decoded here.
type ClusterSpec struct {
	Name     string `json:"name"`
	Region   string `json:"region,omitempty"`
	Replicas int    `json:"replicas,omitempty"`
}

// LoadClusterSpec reads and validates a cluster manifest, filling in
// defaults for the optional fields.
func LoadClusterSpec(path string) (*ClusterSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read cluster spec: %w", err)
	}
	spec := &ClusterSpec{}
	if err := yaml.Unmarshal(data, spec); err != nil {
		return nil, fmt.Errorf("cannot parse cluster spec %s: %w", path, err)
	}
	if spec.Name == "" {
		return nil, fmt.Errorf("cluster spec %s: name is required", path)
	}
	if spec.Region == "" {
		spec.Region = awsinfra.DefaultRegion
	}
	if spec.Replicas == 0 {
		spec.Replicas = 2
	}
	if spec.Replicas < 0 {
		return nil, fmt.Errorf("cluster spec %s: replicas must be positive, got %d", path, spec.Replicas)
	}
	return spec, nil
}
