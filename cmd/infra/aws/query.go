package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
)

// ResourceKind is the closed set of networking resource kinds the
// reclamation engine knows how to discover and delete.
type ResourceKind string

const (
	KindENI             ResourceKind = "NetworkInterface"
	KindSecurityGroup   ResourceKind = "SecurityGroup"
	KindSubnet          ResourceKind = "Subnet"
	KindInternetGateway ResourceKind = "InternetGateway"
	KindRouteTable      ResourceKind = "RouteTable"
	KindNetworkACL      ResourceKind = "NetworkACL"
	KindVPC             ResourceKind = "VPC"
)

// CloudResource is one discovered resource inside a VPC. Dependencies holds
// identifiers of resources this one is attached to (for an ENI, the instance
// it is attached to); they surface in the teardown report for diagnostics.
type CloudResource struct {
	Kind         ResourceKind `json:"kind"`
	ID           string       `json:"id"`
	VPC          string       `json:"vpc"`
	Dependencies []string     `json:"dependencies,omitempty"`
}

// clusterNameTag is the cluster-api ownership tag CAPA stamps on every
// networking resource it creates.
const clusterNameTag = "cluster.x-k8s.io/cluster-name"

// NetworkQuery is the read-only half of reclamation: VPC-scoped lookups that
// feed the teardown plan. All methods are stateless and side-effect free.
type NetworkQuery struct {
	EC2 ec2iface.EC2API
}

func vpcFilter(vpcID string) []*ec2.Filter {
	return []*ec2.Filter{
		{
			Name:   aws.String("vpc-id"),
			Values: []*string{aws.String(vpcID)},
		},
	}
}

// VPCByClusterTag finds the leaked VPC by its cluster-api ownership tag.
// Returns "" when no such VPC exists, which callers treat as nothing to
// reclaim.
func (q *NetworkQuery) VPCByClusterTag(ctx context.Context, clusterName string) (string, error) {
	result, err := q.EC2.DescribeVpcsWithContext(ctx, &ec2.DescribeVpcsInput{
		Filters: []*ec2.Filter{
			{
				Name:   aws.String(fmt.Sprintf("tag:%s", clusterNameTag)),
				Values: []*string{aws.String(clusterName)},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("cannot list VPCs by cluster tag: %w", err)
	}
	for _, vpc := range result.Vpcs {
		return aws.StringValue(vpc.VpcId), nil
	}
	return "", nil
}

// NetworkInterfaces lists the ENIs left inside the VPC. An ENI's attachment
// instance is recorded as its dependency.
func (q *NetworkQuery) NetworkInterfaces(ctx context.Context, vpcID string) ([]CloudResource, error) {
	result, err := q.EC2.DescribeNetworkInterfacesWithContext(ctx, &ec2.DescribeNetworkInterfacesInput{
		Filters: vpcFilter(vpcID),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot list network interfaces: %w", err)
	}
	var resources []CloudResource
	for _, eni := range result.NetworkInterfaces {
		resource := CloudResource{
			Kind: KindENI,
			ID:   aws.StringValue(eni.NetworkInterfaceId),
			VPC:  vpcID,
		}
		if eni.Attachment != nil && aws.StringValue(eni.Attachment.InstanceId) != "" {
			resource.Dependencies = append(resource.Dependencies, aws.StringValue(eni.Attachment.InstanceId))
		}
		resources = append(resources, resource)
	}
	return resources, nil
}

// SecurityGroups lists the non-default security groups in the VPC. The
// default group cannot be deleted and goes down with the VPC itself.
func (q *NetworkQuery) SecurityGroups(ctx context.Context, vpcID string) ([]CloudResource, error) {
	result, err := q.EC2.DescribeSecurityGroupsWithContext(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: vpcFilter(vpcID),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot list security groups: %w", err)
	}
	var resources []CloudResource
	for _, sg := range result.SecurityGroups {
		if aws.StringValue(sg.GroupName) == "default" {
			continue
		}
		resources = append(resources, CloudResource{
			Kind: KindSecurityGroup,
			ID:   aws.StringValue(sg.GroupId),
			VPC:  vpcID,
		})
	}
	return resources, nil
}

func (q *NetworkQuery) Subnets(ctx context.Context, vpcID string) ([]CloudResource, error) {
	result, err := q.EC2.DescribeSubnetsWithContext(ctx, &ec2.DescribeSubnetsInput{
		Filters: vpcFilter(vpcID),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot list subnets: %w", err)
	}
	var resources []CloudResource
	for _, subnet := range result.Subnets {
		resources = append(resources, CloudResource{
			Kind: KindSubnet,
			ID:   aws.StringValue(subnet.SubnetId),
			VPC:  vpcID,
		})
	}
	return resources, nil
}

func (q *NetworkQuery) InternetGateways(ctx context.Context, vpcID string) ([]CloudResource, error) {
	result, err := q.EC2.DescribeInternetGatewaysWithContext(ctx, &ec2.DescribeInternetGatewaysInput{
		Filters: []*ec2.Filter{
			{
				Name:   aws.String("attachment.vpc-id"),
				Values: []*string{aws.String(vpcID)},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cannot list internet gateways: %w", err)
	}
	var resources []CloudResource
	for _, igw := range result.InternetGateways {
		resources = append(resources, CloudResource{
			Kind:         KindInternetGateway,
			ID:           aws.StringValue(igw.InternetGatewayId),
			VPC:          vpcID,
			Dependencies: []string{vpcID},
		})
	}
	return resources, nil
}

// RouteTables lists the non-main route tables. The main table is implicit
// and deleted by AWS together with the VPC.
func (q *NetworkQuery) RouteTables(ctx context.Context, vpcID string) ([]CloudResource, error) {
	result, err := q.EC2.DescribeRouteTablesWithContext(ctx, &ec2.DescribeRouteTablesInput{
		Filters: vpcFilter(vpcID),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot list route tables: %w", err)
	}
	var resources []CloudResource
	for _, table := range result.RouteTables {
		main := false
		for _, assoc := range table.Associations {
			if aws.BoolValue(assoc.Main) {
				main = true
				break
			}
		}
		if main {
			continue
		}
		resources = append(resources, CloudResource{
			Kind: KindRouteTable,
			ID:   aws.StringValue(table.RouteTableId),
			VPC:  vpcID,
		})
	}
	return resources, nil
}

// NetworkACLs lists the non-default network ACLs.
func (q *NetworkQuery) NetworkACLs(ctx context.Context, vpcID string) ([]CloudResource, error) {
	result, err := q.EC2.DescribeNetworkAclsWithContext(ctx, &ec2.DescribeNetworkAclsInput{
		Filters: vpcFilter(vpcID),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot list network ACLs: %w", err)
	}
	var resources []CloudResource
	for _, acl := range result.NetworkAcls {
		if aws.BoolValue(acl.IsDefault) {
			continue
		}
		resources = append(resources, CloudResource{
			Kind: KindNetworkACL,
			ID:   aws.StringValue(acl.NetworkAclId),
			VPC:  vpcID,
		})
	}
	return resources, nil
}
