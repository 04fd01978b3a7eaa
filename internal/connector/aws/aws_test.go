package aws

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/sentinel/discovery-engine/internal/connector"
	"github.com/sentinel/discovery-engine/internal/core"
)

type fakeEC2 struct {
	instances    []ec2types.Reservation
	vpcs         []ec2types.Vpc
	subnets      []ec2types.Subnet
	groups       []ec2types.SecurityGroup
}

func (f *fakeEC2) DescribeRegions(ctx context.Context, in *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error) {
	return &ec2.DescribeRegionsOutput{}, nil
}
func (f *fakeEC2) DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	return &ec2.DescribeInstancesOutput{Reservations: f.instances}, nil
}
func (f *fakeEC2) DescribeVpcs(ctx context.Context, in *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	return &ec2.DescribeVpcsOutput{Vpcs: f.vpcs}, nil
}
func (f *fakeEC2) DescribeSubnets(ctx context.Context, in *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	return &ec2.DescribeSubnetsOutput{Subnets: f.subnets}, nil
}
func (f *fakeEC2) DescribeSecurityGroups(ctx context.Context, in *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	return &ec2.DescribeSecurityGroupsOutput{SecurityGroups: f.groups}, nil
}

type fakeRDS struct{ instances []rdstypes.DBInstance }

func (f *fakeRDS) DescribeDBInstances(ctx context.Context, in *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
	return &rds.DescribeDBInstancesOutput{DBInstances: f.instances}, nil
}

type fakeS3 struct{ buckets []s3types.Bucket }

func (f *fakeS3) ListBuckets(ctx context.Context, in *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	return &s3.ListBucketsOutput{Buckets: f.buckets}, nil
}

type fakeEKS struct{ clusterNames []string }

func (f *fakeEKS) ListClusters(ctx context.Context, in *eks.ListClustersInput, optFns ...func(*eks.Options)) (*eks.ListClustersOutput, error) {
	return &eks.ListClustersOutput{Clusters: f.clusterNames}, nil
}
func (f *fakeEKS) DescribeCluster(ctx context.Context, in *eks.DescribeClusterInput, optFns ...func(*eks.Options)) (*eks.DescribeClusterOutput, error) {
	return &eks.DescribeClusterOutput{}, nil
}

type fakeIAM struct {
	users    []iamtypes.User
	groups   []iamtypes.Group
	roles    []iamtypes.Role
	policies []iamtypes.Policy
}

func (f *fakeIAM) ListUsers(ctx context.Context, in *iam.ListUsersInput, optFns ...func(*iam.Options)) (*iam.ListUsersOutput, error) {
	return &iam.ListUsersOutput{Users: f.users}, nil
}
func (f *fakeIAM) ListGroups(ctx context.Context, in *iam.ListGroupsInput, optFns ...func(*iam.Options)) (*iam.ListGroupsOutput, error) {
	return &iam.ListGroupsOutput{Groups: f.groups}, nil
}
func (f *fakeIAM) ListRoles(ctx context.Context, in *iam.ListRolesInput, optFns ...func(*iam.Options)) (*iam.ListRolesOutput, error) {
	return &iam.ListRolesOutput{Roles: f.roles}, nil
}
func (f *fakeIAM) ListPolicies(ctx context.Context, in *iam.ListPoliciesInput, optFns ...func(*iam.Options)) (*iam.ListPoliciesOutput, error) {
	return &iam.ListPoliciesOutput{Policies: f.policies}, nil
}
func (f *fakeIAM) ListAttachedUserPolicies(ctx context.Context, in *iam.ListAttachedUserPoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedUserPoliciesOutput, error) {
	return &iam.ListAttachedUserPoliciesOutput{}, nil
}
func (f *fakeIAM) ListGroupsForUser(ctx context.Context, in *iam.ListGroupsForUserInput, optFns ...func(*iam.Options)) (*iam.ListGroupsForUserOutput, error) {
	return &iam.ListGroupsForUserOutput{}, nil
}

type fakeSTS struct{ accountID string }

func (f *fakeSTS) GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return &sts.GetCallerIdentityOutput{Account: aws.String(f.accountID)}, nil
}

func TestDiscoverVpcsAndSubnets_S1Scenario(t *testing.T) {
	tenant := core.NewTenantID()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ec2Client := &fakeEC2{
		vpcs:    []ec2types.Vpc{{VpcId: aws.String("vpc-x")}},
		subnets: []ec2types.Subnet{{SubnetId: aws.String("subnet-1"), CidrBlock: aws.String("10.0.0.0/24"), VpcId: aws.String("vpc-x")}},
		instances: []ec2types.Reservation{{
			Instances: []ec2types.Instance{
				{InstanceId: aws.String("i-1"), PrivateIpAddress: aws.String("10.0.0.1"), SubnetId: aws.String("subnet-1"), VpcId: aws.String("vpc-x")},
				{InstanceId: aws.String("i-2"), PrivateIpAddress: aws.String("10.0.0.2"), SubnetId: aws.String("subnet-1"), VpcId: aws.String("vpc-x")},
			},
		}},
	}

	vpcs, _, err := discoverVpcs(context.Background(), tenant, "us-east-1", ec2Client, now)
	if err != nil {
		t.Fatalf("discoverVpcs: %v", err)
	}
	if len(vpcs) != 1 {
		t.Fatalf("expected 1 vpc, got %d", len(vpcs))
	}

	subnets, subnetEdges, cidrByID, err := discoverSubnets(context.Background(), tenant, "us-east-1", ec2Client, now)
	if err != nil {
		t.Fatalf("discoverSubnets: %v", err)
	}
	if len(subnets) != 1 || len(subnetEdges) != 1 {
		t.Fatalf("expected 1 subnet and 1 BELONGS_TO_VPC edge, got %d/%d", len(subnets), len(subnetEdges))
	}

	hosts, hostEdges, err := discoverInstances(context.Background(), tenant, "us-east-1", ec2Client, cidrByID, now)
	if err != nil {
		t.Fatalf("discoverInstances: %v", err)
	}
	if len(hosts) != 2 {
		t.Fatalf("expected 2 hosts, got %d", len(hosts))
	}

	if len(hostEdges) != 2 {
		t.Fatalf("expected 2 BELONGS_TO_SUBNET edges (one per host) and no direct host-to-vpc edge, got %d", len(hostEdges))
	}
	for _, e := range hostEdges {
		if e.Type != core.EdgeBelongsToSubnet {
			t.Fatalf("expected only BELONGS_TO_SUBNET edges from hosts, got %s", e.Type)
		}
		if e.TargetID != subnets[0].ID() {
			t.Errorf("host subnet edge targets %q, want subnet node id %q", e.TargetID, subnets[0].ID())
		}
	}

	// Total graph shape matches the cloud-discovery scenario exactly: 2
	// Hosts, 1 Subnet, 1 Vpc, 2 BELONGS_TO_SUBNET edges, 1 BELONGS_TO_VPC
	// edge (the Subnet's, not the Host's).
	if len(subnetEdges) != 1 || subnetEdges[0].Type != core.EdgeBelongsToVpc {
		t.Fatalf("expected exactly 1 BELONGS_TO_VPC edge from the subnet, got %+v", subnetEdges)
	}
}

func TestDiscoverDBInstances_MapsEndpointPortAndState(t *testing.T) {
	tenant := core.NewTenantID()
	now := time.Now()
	client := &fakeRDS{instances: []rdstypes.DBInstance{
		{
			DBInstanceIdentifier: aws.String("prod-db"),
			DBInstanceStatus:     aws.String("available"),
			Engine:               aws.String("postgres"),
			Endpoint:             &rdstypes.Endpoint{Address: aws.String("prod-db.example"), Port: aws.Int32(5432)},
		},
	}}

	services, err := discoverDBInstances(context.Background(), tenant, "us-east-1", client, now)
	if err != nil {
		t.Fatalf("discoverDBInstances: %v", err)
	}
	if len(services) != 1 {
		t.Fatalf("expected 1 service, got %d", len(services))
	}
	if services[0].Port != 5432 || services[0].State != core.ServiceStateRunning {
		t.Fatalf("unexpected service: %+v", services[0])
	}
}

func TestDiscoverBuckets_EmitsObjectStorageApplications(t *testing.T) {
	tenant := core.NewTenantID()
	client := &fakeS3{buckets: []s3types.Bucket{{Name: aws.String("my-bucket")}}}
	apps, err := discoverBuckets(context.Background(), tenant, client, time.Now())
	if err != nil {
		t.Fatalf("discoverBuckets: %v", err)
	}
	if len(apps) != 1 || apps[0].AppType != core.AppTypeObjectStorage {
		t.Fatalf("unexpected apps: %+v", apps)
	}
}

func TestDiscoverIAMUsers_TypesUsersAsHuman(t *testing.T) {
	tenant := core.NewTenantID()
	client := &fakeIAM{users: []iamtypes.User{{UserName: aws.String("alice")}}}
	users, err := discoverIAMUsers(context.Background(), tenant, client, time.Now())
	if err != nil {
		t.Fatalf("discoverIAMUsers: %v", err)
	}
	if len(users) != 1 || users[0].Username != "alice" || users[0].UserType != core.UserTypeHuman {
		t.Fatalf("unexpected users: %+v", users)
	}
}

type fakeClientProvider struct {
	profile *ProfileConfig
	regions []string
}

func (f *fakeClientProvider) LoadProfile(ctx context.Context, profile string) (*ProfileConfig, error) {
	return f.profile, nil
}
func (f *fakeClientProvider) ActiveRegions(ctx context.Context, cfg *ProfileConfig) ([]string, error) {
	return f.regions, nil
}
func (f *fakeClientProvider) ConfigForRegion(cfg *ProfileConfig, region string) aws.Config {
	return aws.Config{Region: region}
}

func TestConnectorDiscover_AggregatesAcrossRegionsAndGlobalListings(t *testing.T) {
	tenant := core.NewTenantID()
	clients := &ClientSet{
		STS: &fakeSTS{accountID: "111122223333"},
		EC2: &fakeEC2{
			vpcs: []ec2types.Vpc{{VpcId: aws.String("vpc-x")}},
			instances: []ec2types.Reservation{{Instances: []ec2types.Instance{
				{InstanceId: aws.String("i-1"), PrivateIpAddress: aws.String("10.0.0.1")},
			}}},
		},
		RDS: &fakeRDS{},
		S3:  &fakeS3{buckets: []s3types.Bucket{{Name: aws.String("bucket-1")}}},
		EKS: &fakeEKS{},
		IAM: &fakeIAM{users: []iamtypes.User{{UserName: aws.String("alice")}}},
	}
	provider := &fakeClientProvider{
		profile: &ProfileConfig{ProfileName: "default", AccountID: "111122223333", Clients: clients},
		regions: []string{"us-east-1", "us-west-2"},
	}
	conn := &Connector{Provider: provider, Now: func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }}

	result, err := conn.Discover(context.Background(), tenant, connector.Config{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(result.Hosts) != 2 {
		t.Fatalf("expected 1 host per region x 2 regions = 2, got %d", len(result.Hosts))
	}
	if len(result.Applications) != 1 {
		t.Fatalf("expected 1 S3 bucket application (listed once, not once per region), got %d", len(result.Applications))
	}
	if len(result.Users) != 1 {
		t.Fatalf("expected 1 IAM user (listed once, not once per region), got %d", len(result.Users))
	}
	if result.Status != connector.StatusSuccess {
		t.Fatalf("expected success status, got %v (dead ends: %+v)", result.Status, result.DeadEnds)
	}
}

func TestIdentifyAccount_ReadsSTSAccountField(t *testing.T) {
	id, err := identifyAccount(context.Background(), &fakeSTS{accountID: "111122223333"})
	if err != nil {
		t.Fatalf("identifyAccount: %v", err)
	}
	if id != "111122223333" {
		t.Fatalf("expected account id 111122223333, got %q", id)
	}
}
