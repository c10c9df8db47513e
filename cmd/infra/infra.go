package infra

import (
	"github.com/spf13/cobra"

	"github.com/stolostron/automation-capi/cmd/infra/aws"
)

// NewCommand groups the raw infrastructure operations, one subcommand per
// cloud provider.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "reclaim",
		Short:        "Reclaims cloud infrastructure leaked by failed teardowns",
		SilenceUsage: true,
	}
	cmd.AddCommand(aws.NewReclaimCommand())
	return cmd
}
