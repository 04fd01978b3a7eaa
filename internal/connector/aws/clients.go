// Package aws implements the AWS discovery connector: it walks EC2, VPC,
// RDS, S3, EKS, and IAM in every region a profile has access to and emits
// graph nodes/edges instead of the teacher's audit findings (spec.md §4.5).
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// ---------------------------------------------------------------------------
// Per-service client interfaces
//
// Each interface covers only the operations this connector calls. Narrow
// interfaces instead of full SDK clients keep unit tests free of any real
// AWS dependency: a test struct that satisfies the interface returns canned
// data.
// ---------------------------------------------------------------------------

// STSClient is the subset of STS used to resolve the account ID behind a
// profile's credentials.
type STSClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// EC2Client covers region discovery plus instance, VPC, subnet, and
// security-group enumeration.
type EC2Client interface {
	DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeVpcs(ctx context.Context, params *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
	DescribeSubnets(ctx context.Context, params *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
	DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
}

// RDSClient covers DB instance enumeration.
type RDSClient interface {
	DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
}

// S3Client covers bucket enumeration. S3 is a global listing, called once
// per profile rather than per region.
type S3Client interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
}

// EKSClient covers managed Kubernetes cluster enumeration.
type EKSClient interface {
	ListClusters(ctx context.Context, params *eks.ListClustersInput, optFns ...func(*eks.Options)) (*eks.ListClustersOutput, error)
	DescribeCluster(ctx context.Context, params *eks.DescribeClusterInput, optFns ...func(*eks.Options)) (*eks.DescribeClusterOutput, error)
}

// IAMClient covers user, group, role, and policy enumeration. IAM is a
// global service; callers always use the us-east-1 endpoint.
type IAMClient interface {
	ListUsers(ctx context.Context, params *iam.ListUsersInput, optFns ...func(*iam.Options)) (*iam.ListUsersOutput, error)
	ListGroups(ctx context.Context, params *iam.ListGroupsInput, optFns ...func(*iam.Options)) (*iam.ListGroupsOutput, error)
	ListRoles(ctx context.Context, params *iam.ListRolesInput, optFns ...func(*iam.Options)) (*iam.ListRolesOutput, error)
	ListPolicies(ctx context.Context, params *iam.ListPoliciesInput, optFns ...func(*iam.Options)) (*iam.ListPoliciesOutput, error)
	ListAttachedUserPolicies(ctx context.Context, params *iam.ListAttachedUserPoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedUserPoliciesOutput, error)
	ListGroupsForUser(ctx context.Context, params *iam.ListGroupsForUserInput, optFns ...func(*iam.Options)) (*iam.ListGroupsForUserOutput, error)
}

// ---------------------------------------------------------------------------
// ClientSet and ClientFactory
// ---------------------------------------------------------------------------

// ClientSet holds the initialised AWS service clients for one profile and
// region. All fields are interfaces so tests can substitute mocks without
// importing the AWS SDK.
type ClientSet struct {
	STS   STSClient
	EC2   EC2Client
	RDS   RDSClient
	S3    S3Client
	EKS   EKSClient
	IAM   IAMClient
}

// ClientFactory builds a ClientSet from an aws.Config. Swap this in tests to
// inject mocks.
type ClientFactory func(cfg awssdk.Config) *ClientSet

// NewClientSet is the production ClientFactory. IAM is a global service and
// is always addressed through us-east-1, mirroring the teacher's treatment
// of Cost Explorer in internal/providers/aws/common/clients.go.
func NewClientSet(cfg awssdk.Config) *ClientSet {
	iamCfg := cfg
	iamCfg.Region = "us-east-1"

	return &ClientSet{
		STS: sts.NewFromConfig(cfg),
		EC2: ec2.NewFromConfig(cfg),
		RDS: rds.NewFromConfig(cfg),
		S3:  s3.NewFromConfig(cfg),
		EKS: eks.NewFromConfig(cfg),
		IAM: iam.NewFromConfig(iamCfg),
	}
}

// ---------------------------------------------------------------------------
// Profile loading and region discovery
//
// Unlike the teacher's cost-explorer command, which walks every profile it
// finds in ~/.aws/{credentials,config} because it is a standalone scan over
// "all accounts this machine knows about", this connector is driven by the
// framework's one-credential_ref-per-run contract (spec.md §4.4) the same
// way the Azure/GCP/Entra/Okta connectors are: one Connector value names
// exactly one profile, resolved once per Run. There is no multi-profile
// auto-discovery path to reach from Discover or HealthCheck, so it is not
// carried over here (see DESIGN.md).
// ---------------------------------------------------------------------------

// ProfileConfig is a resolved AWS profile together with its clients and the
// account identity behind its credentials.
type ProfileConfig struct {
	ProfileName string
	AccountID   string
	Region      string
	Config      awssdk.Config
	Clients     *ClientSet
}

// accountTag formats cfg's account ID as a Host/Service tag, so the
// identity this connector already resolves per profile (previously kept on
// ProfileConfig and never read again) actually reaches the graph instead of
// being discarded after HealthCheck/Discover finish with it.
func (cfg *ProfileConfig) accountTag() string {
	return "aws_account_id=" + cfg.AccountID
}

// ClientProvider loads AWS configuration and resolves active regions. It is
// the connector's sole entry point for credential and region management
// (grounded on internal/providers/aws/common.AWSClientProvider).
type ClientProvider interface {
	LoadProfile(ctx context.Context, profile string) (*ProfileConfig, error)
	ActiveRegions(ctx context.Context, cfg *ProfileConfig) ([]string, error)
	ConfigForRegion(cfg *ProfileConfig, region string) awssdk.Config
}

// DefaultClientProvider is the production ClientProvider, reading credentials
// from the standard AWS shared config/credentials files.
type DefaultClientProvider struct {
	factory ClientFactory
}

// NewDefaultClientProvider returns a provider backed by the real AWS SDK.
func NewDefaultClientProvider() *DefaultClientProvider {
	return &DefaultClientProvider{factory: NewClientSet}
}

// NewDefaultClientProviderWithFactory returns a provider using f to build its
// ClientSet. Tests pass a factory that returns mock clients.
func NewDefaultClientProviderWithFactory(f ClientFactory) *DefaultClientProvider {
	return &DefaultClientProvider{factory: f}
}

// LoadProfile resolves profile against the standard AWS shared config
// chain, builds its service clients, and identifies the account behind
// them. An empty profile loads the default profile.
func (p *DefaultClientProvider) LoadProfile(ctx context.Context, profile string) (*ProfileConfig, error) {
	displayName := profileDisplayName(profile)

	cfg, err := p.loadSDKConfig(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("load AWS profile %q: %w", displayName, err)
	}

	clients := p.factory(cfg)
	account, err := identifyAccount(ctx, clients.STS)
	if err != nil {
		return nil, fmt.Errorf("identify account for profile %q: %w", displayName, err)
	}

	return &ProfileConfig{
		ProfileName: displayName,
		AccountID:   account,
		Region:      cfg.Region,
		Config:      cfg,
		Clients:     clients,
	}, nil
}

func (p *DefaultClientProvider) loadSDKConfig(ctx context.Context, profile string) (awssdk.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return awssdk.Config{}, err
	}
	// Every service client this connector builds needs a region, including
	// IAM's forced us-east-1 override in NewClientSet; a profile that omits
	// one would otherwise fail client construction outright.
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	return cfg, nil
}

// ActiveRegions returns the regions enabled (opted-in) for cfg's account.
func (p *DefaultClientProvider) ActiveRegions(ctx context.Context, cfg *ProfileConfig) ([]string, error) {
	out, err := cfg.Clients.EC2.DescribeRegions(ctx, &ec2.DescribeRegionsInput{
		AllRegions: awssdk.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("describe regions for profile %q: %w", cfg.ProfileName, err)
	}
	regions := make([]string, 0, len(out.Regions))
	for _, r := range out.Regions {
		if name := awssdk.ToString(r.RegionName); name != "" {
			regions = append(regions, name)
		}
	}
	return regions, nil
}

// ConfigForRegion clones cfg.Config with Region set to region.
func (p *DefaultClientProvider) ConfigForRegion(cfg *ProfileConfig, region string) awssdk.Config {
	regional := cfg.Config
	regional.Region = region
	return regional
}

func profileDisplayName(profile string) string {
	if profile == "" {
		return "default"
	}
	return profile
}

// identifyAccount calls STS to learn which account owns the credentials
// stsClient was built from.
func identifyAccount(ctx context.Context, stsClient STSClient) (string, error) {
	identity, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("STS GetCallerIdentity: %w", err)
	}
	if identity.Account == nil {
		return "", fmt.Errorf("STS GetCallerIdentity returned no account")
	}
	return awssdk.ToString(identity.Account), nil
}
