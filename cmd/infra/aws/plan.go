package aws

import (
	"context"
	"fmt"
)

// TeardownPlan is the ordered deletion sequence for one VPC: dependents
// first, the VPC itself always last.
type TeardownPlan struct {
	VPC   string
	Steps []CloudResource
}

// Plan computes the teardown plan from live queries. The kind order is a
// hardcoded taxonomy, not a general topological sort: with six fixed kinds
// there is exactly one correct order, and the cloud API enforces it anyway
// (a resource with live dependents cannot be deleted). Within a kind, steps
// keep discovery order.
func (q *NetworkQuery) Plan(ctx context.Context, vpcID string) (*TeardownPlan, error) {
	plan := &TeardownPlan{VPC: vpcID}
	for _, list := range []func(context.Context, string) ([]CloudResource, error){
		q.NetworkInterfaces,
		q.SecurityGroups,
		q.Subnets,
		q.InternetGateways,
		q.RouteTables,
		q.NetworkACLs,
	} {
		resources, err := list(ctx, vpcID)
		if err != nil {
			return nil, fmt.Errorf("cannot plan teardown of %s: %w", vpcID, err)
		}
		plan.Steps = append(plan.Steps, resources...)
	}
	plan.Steps = append(plan.Steps, CloudResource{Kind: KindVPC, ID: vpcID, VPC: vpcID})
	return plan, nil
}
