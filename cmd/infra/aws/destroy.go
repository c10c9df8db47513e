package aws

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/stolostron/automation-capi/cmd/log"
	"github.com/stolostron/automation-capi/support/awsapi"
	"github.com/stolostron/automation-capi/support/poll"

	awssdk "github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/cloudformation"
	"github.com/aws/aws-sdk-go/service/cloudformation/cloudformationiface"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
)

// DefaultRegion applies when the caller does not name one.
const DefaultRegion = "us-east-1"

// ReclaimOptions drives one reclamation of the infrastructure leaked by a
// failed cluster teardown.
type ReclaimOptions struct {
	ClusterName     string
	Region          string
	CredentialsFile string
	// ReportFile, when set, receives the teardown report as YAML.
	ReportFile string

	// Poll budget for waiting on a re-triggered stack deletion.
	StackAttempts int
	StackInterval time.Duration

	Log logr.Logger
}

// NewReclaimCommand reclaims the networking resources a failed teardown left
// behind. Safe to re-run: resources already gone count as success.
func NewReclaimCommand() *cobra.Command {
	opts := ReclaimOptions{
		Region:        DefaultRegion,
		StackAttempts: poll.DefaultAttempts,
		StackInterval: poll.DefaultInterval,
	}

	cmd := &cobra.Command{
		Use:          "aws CLUSTER_NAME [REGION]",
		Short:        "Reclaims leaked AWS networking resources for a cluster",
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
			opts.Log.Error(err, "Failed to reclaim infrastructure")
			os.Exit(1)
		}
		if !report.Complete {
			for _, entry := range report.Failed() {
				opts.Log.Info("Resource could not be deleted", "kind", entry.Kind, "id", entry.ID, "reason", entry.Reason)
			}
			opts.Log.Info("Reclamation incomplete: inspect the remaining dependencies and re-run", "vpc", report.VPC)
			os.Exit(1)
		}
		opts.Log.Info("Reclamation complete", "cluster", opts.ClusterName)
	}

	return cmd
}

// Run builds the AWS clients and executes the reclamation flow.
func (o *ReclaimOptions) Run(ctx context.Context) (*TeardownReport, error) {
	awsSession := awsapi.NewSession("reclaim")
	awsConfig := awsapi.NewConfig(o.CredentialsFile, o.Region)
	return o.reclaim(ctx, ec2.New(awsSession, awsConfig), cloudformation.New(awsSession, awsConfig))
}

// reclaim locates the leaked VPC, executes its teardown plan, and, when the
// infrastructure stack was stuck in DELETE_FAILED, re-triggers the stack
// deletion once the manual reclamation has cleared the blockage.
func (o *ReclaimOptions) reclaim(ctx context.Context, ec2Client ec2iface.EC2API, cfClient cloudformationiface.CloudFormationAPI) (*TeardownReport, error) {
	query := &NetworkQuery{EC2: ec2Client}

	// Stack lookup first: the stack knows which VPC it created. Lookup
	// failures degrade to tag-based discovery rather than aborting.
	stack, err := findStack(ctx, cfClient, o.ClusterName)
	if err != nil {
		o.Log.Error(err, "Stack lookup failed, falling back to tag search", "stack", o.ClusterName)
		stack = nil
	}

	var vpcID string
	if stack != nil {
		vpcID = stackOutput(stack, vpcStackOutputKey)
		o.Log.Info("Found infrastructure stack", "id", awssdk.StringValue(stack.StackId), "status", awssdk.StringValue(stack.StackStatus))
	}
	if vpcID == "" {
		vpcID, err = query.VPCByClusterTag(ctx, o.ClusterName)
		if err != nil {
			return nil, fmt.Errorf("cannot locate VPC for cluster %s: %w", o.ClusterName, err)
		}
	}
	if vpcID == "" {
		o.Log.Info("No VPC found, nothing to reclaim", "cluster", o.ClusterName)
		report := &TeardownReport{Complete: true}
		return report, o.persist(report)
	}

	plan, err := query.Plan(ctx, vpcID)
	if err != nil {
		return nil, err
	}
	o.Log.Info("Computed teardown plan", "vpc", vpcID, "steps", len(plan.Steps))

	reclaimer := NewReclaimer(ec2Client, o.Log)
	report := reclaimer.Execute(ctx, plan)

	if stack != nil && awssdk.StringValue(stack.StackStatus) == cloudformation.StackStatusDeleteFailed && report.Complete {
		if err := retryStackDeletion(ctx, cfClient, o.Log, stack, o.StackAttempts, o.StackInterval); err != nil {
			// The VPC is gone; a lagging stack is a warning, not a failure.
			o.Log.Error(err, "Stack deletion retry did not finish")
			report.Warnings = append(report.Warnings, err.Error())
		}
	}

	return report, o.persist(report)
}

func (o *ReclaimOptions) persist(report *TeardownReport) error {
	if o.ReportFile == "" {
		return nil
	}
	return report.WriteFile(o.ReportFile)
}
