package cluster

import (
	"github.com/spf13/cobra"
)

// NewCommand groups the cluster lifecycle operations.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "cluster",
		Short:        "Provision and tear down ROSA HCP clusters",
		SilenceUsage: true,
	}
	cmd.AddCommand(newProvisionCommand())
	cmd.AddCommand(newTeardownCommand())
	return cmd
}
