package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sentinel/discovery-engine/internal/connector"
	"github.com/sentinel/discovery-engine/internal/core"
)

func discoverBuckets(ctx context.Context, tenant core.TenantID, client S3Client, now time.Time) ([]*core.Application, error) {
	out, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, err
	}
	apps := make([]*core.Application, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		apps = append(apps, core.NewApplication(tenant, core.AppTypeObjectStorage, aws.ToString(b.Name), now))
	}
	return apps, nil
}

func discoverEKSClusters(ctx context.Context, tenant core.TenantID, region string, client EKSClient, now time.Time) ([]*core.Application, []*core.Edge, error) {
	list, err := client.ListClusters(ctx, &eks.ListClustersInput{})
	if err != nil {
		return nil, nil, err
	}

	var apps []*core.Application
	var edges []*core.Edge
	for _, name := range list.Clusters {
		app := core.NewApplication(tenant, core.AppTypeManagedCluster, name, now)
		apps = append(apps, app)

		desc, err := client.DescribeCluster(ctx, &eks.DescribeClusterInput{Name: aws.String(name)})
		if err != nil || desc.Cluster == nil || desc.Cluster.ResourcesVpcConfig == nil {
			continue
		}
		if vpcID := aws.ToString(desc.Cluster.ResourcesVpcConfig.VpcId); vpcID != "" {
			edges = append(edges, connector.MakeEdge(tenant, app.ID(), vpcNaturalKey(tenant, vpcID), core.EdgeBelongsToVpc, core.EdgeProperties{}, now))
		}
	}
	return apps, edges, nil
}
