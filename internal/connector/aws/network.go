package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/sentinel/discovery-engine/internal/connector"
	"github.com/sentinel/discovery-engine/internal/core"
)

func discoverVpcs(ctx context.Context, tenant core.TenantID, region string, client EC2Client, now time.Time) ([]*core.Vpc, []*core.Edge, error) {
	out, err := client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{})
	if err != nil {
		return nil, nil, err
	}
	vpcs := make([]*core.Vpc, 0, len(out.Vpcs))
	for _, v := range out.Vpcs {
		vpc := core.NewVpc(tenant, core.CloudProviderAWS, aws.ToString(v.VpcId), region, now)
		if cidr := aws.ToString(v.CidrBlock); cidr != "" {
			vpc.CIDR = &cidr
		}
		if name := tagValue(v.Tags, "Name"); name != "" {
			vpc.Name = &name
		}
		vpcs = append(vpcs, vpc)
	}
	return vpcs, nil, nil
}

// discoverSubnets also returns a subnet-ID-to-CIDR lookup: Subnet's natural
// key is its CIDR (spec scenario S1), but every other AWS API that
// references a subnet does so by its opaque ID, so callers building
// BELONGS_TO_SUBNET edges need this to resolve one from the other.
func discoverSubnets(ctx context.Context, tenant core.TenantID, region string, client EC2Client, now time.Time) ([]*core.Subnet, []*core.Edge, map[string]string, error) {
	out, err := client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{})
	if err != nil {
		return nil, nil, nil, err
	}
	subnets := make([]*core.Subnet, 0, len(out.Subnets))
	cidrByID := make(map[string]string, len(out.Subnets))
	var edges []*core.Edge
	for _, s := range out.Subnets {
		cidr := aws.ToString(s.CidrBlock)
		subnet := core.NewSubnet(tenant, cidr, now)
		subnet.CloudProvider = ptr(core.CloudProviderAWS)
		subnet.IsPublic = aws.ToBool(s.MapPublicIpOnLaunch)
		if name := tagValue(s.Tags, "Name"); name != "" {
			subnet.Name = &name
		}
		vpcID := aws.ToString(s.VpcId)
		if vpcID != "" {
			subnet.VpcID = &vpcID
			edges = append(edges, connector.MakeEdge(tenant, subnet.ID(), vpcNaturalKey(tenant, vpcID), core.EdgeBelongsToVpc, core.EdgeProperties{}, now))
		}
		subnets = append(subnets, subnet)
		cidrByID[aws.ToString(s.SubnetId)] = cidr
	}
	return subnets, edges, cidrByID, nil
}

func discoverSecurityGroups(ctx context.Context, tenant core.TenantID, region string, client EC2Client, now time.Time) ([]*core.Policy, error) {
	out, err := client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{})
	if err != nil {
		return nil, err
	}
	groups := make([]*core.Policy, 0, len(out.SecurityGroups))
	for _, g := range out.SecurityGroups {
		name := aws.ToString(g.GroupName)
		if name == "" {
			name = aws.ToString(g.GroupId)
		}
		policy := core.NewPolicy(tenant, "aws:"+region, name, core.PolicyTypeSecurityGroup, now)
		groups = append(groups, policy)
	}
	return groups, nil
}

// vpcNaturalKey reconstructs the node identity a core.Vpc built through
// core.NewVpc would carry, without needing the *core.Vpc value itself, so an
// edge can reference a VPC discovered earlier in the same batch by its raw
// AWS ID alone.
func vpcNaturalKey(tenant core.TenantID, vpcID string) string {
	return core.NewVpc(tenant, core.CloudProviderAWS, vpcID, "", time.Time{}).ID()
}

// subnetNaturalKeyForCIDR reconstructs the node identity core.NewSubnet
// would assign a subnet with the given CIDR, for building edges toward a
// Subnet node discovered elsewhere in the same batch.
func subnetNaturalKeyForCIDR(tenant core.TenantID, cidr string) string {
	return core.NewSubnet(tenant, cidr, time.Time{}).ID()
}

func tagValue(tags []ec2types.Tag, key string) string {
	for _, t := range tags {
		if aws.ToString(t.Key) == key {
			return aws.ToString(t.Value)
		}
	}
	return ""
}

func ptr[T any](v T) *T { return &v }
