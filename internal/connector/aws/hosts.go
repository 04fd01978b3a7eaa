package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/sentinel/discovery-engine/internal/connector"
	"github.com/sentinel/discovery-engine/internal/core"
)

func discoverInstances(ctx context.Context, tenant core.TenantID, region string, client EC2Client, subnetCIDRByID map[string]string, now time.Time) ([]*core.Host, []*core.Edge, error) {
	var hosts []*core.Host
	var edges []*core.Edge

	paginator := ec2.NewDescribeInstancesPaginator(client, &ec2.DescribeInstancesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return hosts, edges, err
		}
		for _, reservation := range page.Reservations {
			for _, inst := range reservation.Instances {
				ip := aws.ToString(inst.PrivateIpAddress)
				if ip == "" {
					ip = aws.ToString(inst.PublicIpAddress)
				}
				instanceID := aws.ToString(inst.InstanceId)
				host := core.NewHost(tenant, ip, instanceID, now)
				host.CloudProvider = ptr(core.CloudProviderAWS)
				host.CloudInstanceID = &instanceID
				host.CloudRegion = &region
				host.OS = osHintFromPlatform(inst.PlatformDetails)
				host.Tags = tagPairs(inst.Tags)
				if name := tagValue(inst.Tags, "Name"); name != "" {
					host.Hostname = &name
				}
				hosts = append(hosts, host)

				// A host's VPC membership is reachable transitively through its
				// subnet (BELONGS_TO_SUBNET, then the subnet's own
				// BELONGS_TO_VPC edge); it does not also get a direct edge to
				// the Vpc node.
				if subnetID := aws.ToString(inst.SubnetId); subnetID != "" {
					if cidr, ok := subnetCIDRByID[subnetID]; ok {
						edges = append(edges, connector.MakeEdge(tenant, host.ID(), subnetNaturalKeyForCIDR(tenant, cidr), core.EdgeBelongsToSubnet, core.EdgeProperties{}, now))
					}
				}
				for _, sg := range inst.SecurityGroups {
					edges = append(edges, connector.MakeEdge(tenant, host.ID(), securityGroupNaturalKey(tenant, region, sg), core.EdgeHasAccess, core.EdgeProperties{}, now))
				}
			}
		}
	}
	return hosts, edges, nil
}

func osHintFromPlatform(platformDetails *string) *string {
	if platformDetails == nil {
		return nil
	}
	v := aws.ToString(platformDetails)
	return &v
}

func tagPairs(tags []ec2types.Tag) []string {
	pairs := make([]string, 0, len(tags))
	for _, t := range tags {
		pairs = append(pairs, fmt.Sprintf("%s=%s", aws.ToString(t.Key), aws.ToString(t.Value)))
	}
	return pairs
}

func securityGroupNaturalKey(tenant core.TenantID, region string, sg ec2types.GroupIdentifier) string {
	name := aws.ToString(sg.GroupName)
	if name == "" {
		name = aws.ToString(sg.GroupId)
	}
	return core.NewPolicy(tenant, "aws:"+region, name, core.PolicyTypeSecurityGroup, time.Time{}).ID()
}
