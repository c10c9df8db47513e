package cluster

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecProvisionerPassesSpecThroughEnv(t *testing.T) {
	out := filepath.Join(t.TempDir(), "env.txt")
	p := &ExecProvisioner{
		Command: []string{"sh", "-c", `echo "$CLUSTER_NAME $CLUSTER_REGION $CLUSTER_REPLICAS" > ` + out},
	}

	require.NoError(t, p.Provision(context.Background(), testSpec()))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "rosa-ci-1 us-east-1 2\n", string(data))
}

func TestExecProvisionerFailureSurfaces(t *testing.T) {
	p := &ExecProvisioner{Command: []string{"sh", "-c", "exit 3"}}
	require.Error(t, p.Provision(context.Background(), testSpec()))
}

func TestExecProvisionerEmptyCommand(t *testing.T) {
	p := &ExecProvisioner{}
	require.Error(t, p.Provision(context.Background(), testSpec()))
}

func TestExecConfigurator(t *testing.T) {
	ok := &ExecConfigurator{Command: []string{"sh", "-c", "true"}}
	require.NoError(t, ok.Configure(context.Background()))

	failing := &ExecConfigurator{Command: []string{"sh", "-c", "exit 1"}}
	require.Error(t, failing.Configure(context.Background()))
}
