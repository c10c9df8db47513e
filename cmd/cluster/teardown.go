package cluster

import (
	"os"

	awsinfra "github.com/stolostron/automation-capi/cmd/infra/aws"
	"github.com/stolostron/automation-capi/cmd/log"
	"github.com/stolostron/automation-capi/support/poll"

	"github.com/spf13/cobra"
)

// newTeardownCommand reclaims the cluster's leaked infrastructure. It is the
// same reclamation flow the infra subtree exposes, surfaced here so teardown
// reads as a cluster lifecycle operation.
func newTeardownCommand() *cobra.Command {
	opts := awsinfra.ReclaimOptions{
		Region:        awsinfra.DefaultRegion,
		StackAttempts: poll.DefaultAttempts,
		StackInterval: poll.DefaultInterval,
	}

	cmd := &cobra.Command{
		Use:          "teardown CLUSTER_NAME [REGION]",
		Short:        "Tears down a cluster's leaked AWS infrastructure",
		Args:         cobra.RangeArgs(1, 2),
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&opts.CredentialsFile, "aws-creds", opts.CredentialsFile, "Path to an AWS credentials file")
	cmd.Flags().StringVar(&opts.ReportFile, "report-file", opts.ReportFile, "Path to persist the teardown report as YAML")

	cmd.Run = func(cmd *cobra.Command, args []string) {
		opts.ClusterName = args[0]
		if len(args) > 1 {
			opts.Region = args[1]
		}
		opts.Log = log.Logger()

		report, err := opts.Run(cmd.Context())
		if err != nil {
			opts.Log.Error(err, "Teardown failed", "cluster", opts.ClusterName)
			os.Exit(1)
		}
		if !report.Complete {
			for _, entry := range report.Failed() {
				opts.Log.Info("Resource could not be deleted", "kind", entry.Kind, "id", entry.ID, "reason", entry.Reason)
			}
			opts.Log.Info("Teardown incomplete: inspect the remaining dependencies and re-run", "vpc", report.VPC)
			os.Exit(1)
		}
		opts.Log.Info("Teardown complete", "cluster", opts.ClusterName)
	}

	return cmd
}
