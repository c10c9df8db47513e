package cluster

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// ExecProvisioner delegates provisioning to an external command, typically
// the playbook wrapper that submits the actual cluster request. The cluster
// spec is handed over through the environment.
type ExecProvisioner struct {
	Command []string
}

func (p *ExecProvisioner) Provision(ctx context.Context, spec *ClusterSpec) error {
	if len(p.Command) == 0 {
		return fmt.Errorf("no provisioning command configured")
	}
	cmd := exec.CommandContext(ctx, p.Command[0], p.Command[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("CLUSTER_NAME=%s", spec.Name),
		fmt.Sprintf("CLUSTER_REGION=%s", spec.Region),
		fmt.Sprintf("CLUSTER_REPLICAS=%d", spec.Replicas),
	)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("provisioning command failed: %w", err)
	}
	return nil
}

// ExecConfigurator runs the configuration procedure as an external command.
type ExecConfigurator struct {
	Command []string
}

func (c *ExecConfigurator) Configure(ctx context.Context) error {
	if len(c.Command) == 0 {
		return fmt.Errorf("no configuration command configured")
	}
	cmd := exec.CommandContext(ctx, c.Command[0], c.Command[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("configuration command failed: %w", err)
	}
	return nil
}
