package aws

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/go-logr/logr"

	"sigs.k8s.io/yaml"
)

// Outcome is the per-resource result of a reclamation step.
type Outcome string

const (
	OutcomeDeleted Outcome = "deleted"
	// OutcomeSkipped means the resource was already gone. Absence is
	// success; it is what makes re-running reclamation safe.
	OutcomeSkipped Outcome = "skipped-not-found"
	OutcomeFailed  Outcome = "failed"
)

// ReportEntry records the outcome of one deletion step.
type ReportEntry struct {
	Kind    ResourceKind `json:"kind"`
	ID      string       `json:"id"`
	Outcome Outcome      `json:"outcome"`
	Reason  string       `json:"reason,omitempty"`
}

// TeardownReport is the immutable record of one reclamation run. Complete
// means the terminal objective was reached: the VPC itself is gone, deleted
// now or already absent. Individual step failures never flip Complete; only
// the VPC step does.
type TeardownReport struct {
	VPC      string        `json:"vpc,omitempty"`
	Entries  []ReportEntry `json:"entries,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Complete bool          `json:"complete"`
}

// Failed returns the entries that failed, for remediation messaging.
func (r *TeardownReport) Failed() []ReportEntry {
	var failed []ReportEntry
	for _, entry := range r.Entries {
		if entry.Outcome == OutcomeFailed {
			failed = append(failed, entry)
		}
	}
	return failed
}

// WriteFile persists the report as YAML for postmortem inspection.
func (r *TeardownReport) WriteFile(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("cannot marshal teardown report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write teardown report: %w", err)
	}
	return nil
}

// Reclaimer executes teardown plans. Deletions are strictly sequential: the
// cloud API rejects deletion of a resource with live dependents, so the plan
// order is a correctness requirement, not a style choice.
type Reclaimer struct {
	EC2   ec2iface.EC2API
	Query *NetworkQuery
	Log   logr.Logger
}

func NewReclaimer(client ec2iface.EC2API, log logr.Logger) *Reclaimer {
	return &Reclaimer{
		EC2:   client,
		Query: &NetworkQuery{EC2: client},
		Log:   log,
	}
}

// Execute runs the plan step by step, best effort. A failed step is recorded
// and the run continues; re-running after fixing the cause is the retry
// model. Deleting an already-deleted resource is success.
func (r *Reclaimer) Execute(ctx context.Context, plan *TeardownPlan) *TeardownReport {
	report := &TeardownReport{VPC: plan.VPC}
	for _, step := range plan.Steps {
		if step.Kind == KindVPC {
			// The pre-flight check only warns. The VPC deletion is always
			// attempted: when dependents remain it fails fast and cheaply,
			// and predicting the failure must never block the attempt.
			if remaining := r.remainingDependents(ctx, plan.VPC); len(remaining) > 0 {
				warning := fmt.Sprintf("%d dependent resources still present before VPC deletion: %s",
					len(remaining), strings.Join(remaining, ", "))
				r.Log.Info("Pre-flight warning", "vpc", plan.VPC, "warning", warning)
				report.Warnings = append(report.Warnings, warning)
			}
		}
		entry := r.deleteResource(ctx, step)
		report.Entries = append(report.Entries, entry)
		switch entry.Outcome {
		case OutcomeDeleted:
			r.Log.Info("Deleted resource", "kind", entry.Kind, "id", entry.ID)
		case OutcomeSkipped:
			r.Log.Info("Resource already gone", "kind", entry.Kind, "id", entry.ID)
		case OutcomeFailed:
			r.Log.Info("Failed to delete resource", "kind", entry.Kind, "id", entry.ID, "reason", entry.Reason)
		}
	}
	report.Complete = true
	for _, entry := range report.Entries {
		if entry.Kind == KindVPC && entry.Outcome == OutcomeFailed {
			report.Complete = false
		}
	}
	return report
}

func (r *Reclaimer) deleteResource(ctx context.Context, resource CloudResource) ReportEntry {
	entry := ReportEntry{Kind: resource.Kind, ID: resource.ID}

	var err error
	switch resource.Kind {
	case KindENI:
		_, err = r.EC2.DeleteNetworkInterfaceWithContext(ctx, &ec2.DeleteNetworkInterfaceInput{
			NetworkInterfaceId: aws.String(resource.ID),
		})
	case KindSecurityGroup:
		_, err = r.EC2.DeleteSecurityGroupWithContext(ctx, &ec2.DeleteSecurityGroupInput{
			GroupId: aws.String(resource.ID),
		})
	case KindSubnet:
		_, err = r.EC2.DeleteSubnetWithContext(ctx, &ec2.DeleteSubnetInput{
			SubnetId: aws.String(resource.ID),
		})
	case KindInternetGateway:
		err = r.deleteInternetGateway(ctx, resource)
	case KindRouteTable:
		_, err = r.EC2.DeleteRouteTableWithContext(ctx, &ec2.DeleteRouteTableInput{
			RouteTableId: aws.String(resource.ID),
		})
	case KindNetworkACL:
		_, err = r.EC2.DeleteNetworkAclWithContext(ctx, &ec2.DeleteNetworkAclInput{
			NetworkAclId: aws.String(resource.ID),
		})
	case KindVPC:
		_, err = r.EC2.DeleteVpcWithContext(ctx, &ec2.DeleteVpcInput{
			VpcId: aws.String(resource.ID),
		})
	default:
		err = fmt.Errorf("unknown resource kind %q", resource.Kind)
	}

	switch {
	case err == nil:
		entry.Outcome = OutcomeDeleted
	case isNotFound(err):
		entry.Outcome = OutcomeSkipped
	default:
		entry.Outcome = OutcomeFailed
		entry.Reason = err.Error()
		if len(resource.Dependencies) > 0 {
			entry.Reason = fmt.Sprintf("%s (attached to %s)", entry.Reason, strings.Join(resource.Dependencies, ", "))
		}
	}
	return entry
}

// deleteInternetGateway detaches the gateway from its VPC first; an attached
// gateway cannot be deleted.
func (r *Reclaimer) deleteInternetGateway(ctx context.Context, resource CloudResource) error {
	_, err := r.EC2.DetachInternetGatewayWithContext(ctx, &ec2.DetachInternetGatewayInput{
		InternetGatewayId: aws.String(resource.ID),
		VpcId:             aws.String(resource.VPC),
	})
	if err != nil && !isNotFound(err) && !isNotAttached(err) {
		return fmt.Errorf("cannot detach internet gateway: %w", err)
	}
	_, err = r.EC2.DeleteInternetGatewayWithContext(ctx, &ec2.DeleteInternetGatewayInput{
		InternetGatewayId: aws.String(resource.ID),
	})
	return err
}

// remainingDependents re-queries for resources that would block VPC
// deletion. Query failures are absorbed; the pre-flight is advisory only.
func (r *Reclaimer) remainingDependents(ctx context.Context, vpcID string) []string {
	var remaining []string
	for _, list := range []func(context.Context, string) ([]CloudResource, error){
		r.Query.Subnets,
		r.Query.InternetGateways,
		r.Query.RouteTables,
		r.Query.NetworkACLs,
	} {
		resources, err := list(ctx, vpcID)
		if err != nil {
			r.Log.Error(err, "Pre-flight query failed", "vpc", vpcID)
			continue
		}
		for _, resource := range resources {
			remaining = append(remaining, fmt.Sprintf("%s %s", resource.Kind, resource.ID))
		}
	}
	return remaining
}

// isNotFound reports whether the error means the resource no longer exists.
// EC2 spells these codes per resource (InvalidVpcID.NotFound,
// InvalidGroup.NotFound, ...) so we match on the shared suffix.
func isNotFound(err error) bool {
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		return strings.HasSuffix(awsErr.Code(), ".NotFound")
	}
	return false
}

func isNotAttached(err error) bool {
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		return awsErr.Code() == "Gateway.NotAttached"
	}
	return false
}
