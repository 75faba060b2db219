// Package aws implements the provider adapter for AWS. Each supported
// service gets a small lister that turns SDK responses into candidate
// resources; clients sit behind narrow interfaces so tests can script
// them without the SDK.
package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/costhound/costhound/provider"
	"github.com/costhound/costhound/telemetry"
	"github.com/costhound/costhound/types"
)

// lookbackDays is the metric window used to judge idleness
const lookbackDays = 30

func init() {
	provider.Register("aws", NewAdapterFactory)
}

// NewAdapterFactory is the registered provider.Factory for AWS
func NewAdapterFactory(ctx context.Context, creds provider.Credentials) (provider.Adapter, error) {
	return NewAdapter(ctx, creds)
}

// STSClient is the identity surface used for credential validation
type STSClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// RegionLister enumerates the account's enabled regions
type RegionLister interface {
	DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
}

// EC2Client covers the EC2 calls the listers make
type EC2Client interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeVolumes(ctx context.Context, params *ec2.DescribeVolumesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error)
	DescribeSnapshots(ctx context.Context, params *ec2.DescribeSnapshotsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error)
	DescribeAddresses(ctx context.Context, params *ec2.DescribeAddressesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeAddressesOutput, error)
	DescribeNatGateways(ctx context.Context, params *ec2.DescribeNatGatewaysInput, optFns ...func(*ec2.Options)) (*ec2.DescribeNatGatewaysOutput, error)
}

// RDSClient covers the RDS calls the listers make
type RDSClient interface {
	DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
	DescribeDBSnapshots(ctx context.Context, params *rds.DescribeDBSnapshotsInput, optFns ...func(*rds.Options)) (*rds.DescribeDBSnapshotsOutput, error)
}

// ELBClient covers the ELBv2 calls the listers make
type ELBClient interface {
	DescribeLoadBalancers(ctx context.Context, params *elasticloadbalancingv2.DescribeLoadBalancersInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeLoadBalancersOutput, error)
	DescribeTargetGroups(ctx context.Context, params *elasticloadbalancingv2.DescribeTargetGroupsInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTargetGroupsOutput, error)
	DescribeTargetHealth(ctx context.Context, params *elasticloadbalancingv2.DescribeTargetHealthInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTargetHealthOutput, error)
}

// LambdaClient covers the Lambda calls the listers make
type LambdaClient interface {
	ListFunctions(ctx context.Context, params *lambda.ListFunctionsInput, optFns ...func(*lambda.Options)) (*lambda.ListFunctionsOutput, error)
}

// LogsClient covers the CloudWatch Logs calls the listers make
type LogsClient interface {
	DescribeLogGroups(ctx context.Context, params *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
}

// ECRClient covers the ECR calls the listers make
type ECRClient interface {
	DescribeRepositories(ctx context.Context, params *ecr.DescribeRepositoriesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error)
	DescribeImages(ctx context.Context, params *ecr.DescribeImagesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error)
}

// DynamoDBClient covers the DynamoDB calls the listers make
type DynamoDBClient interface {
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// S3Client covers the S3 calls the listers make
type S3Client interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	GetBucketLocation(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// RedshiftClient covers the Redshift calls the listers make
type RedshiftClient interface {
	DescribeClusters(ctx context.Context, params *redshift.DescribeClustersInput, optFns ...func(*redshift.Options)) (*redshift.DescribeClustersOutput, error)
}

// MetricsClient covers the CloudWatch metric reads
type MetricsClient interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// regionClients bundles the per-region service clients
type regionClients struct {
	ec2      EC2Client
	rds      RDSClient
	elbv2    ELBClient
	lambda   LambdaClient
	logs     LogsClient
	ecr      ECRClient
	dynamodb DynamoDBClient
	s3       S3Client
	redshift RedshiftClient
	metrics  MetricsClient
}

// Adapter implements provider.Adapter for AWS
type Adapter struct {
	sts        STSClient
	regions    RegionLister
	newClients func(region string) *regionClients
	logger     *telemetry.Logger
	now        func() time.Time
}

// NewAdapter builds an adapter bound to one account's credentials
func NewAdapter(ctx context.Context, creds provider.Credentials) (*Adapter, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if creds.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(creds.Profile))
	}
	if creds.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	return &Adapter{
		sts:     sts.NewFromConfig(cfg),
		regions: ec2.NewFromConfig(cfg),
		newClients: func(region string) *regionClients {
			regional := cfg.Copy()
			regional.Region = region
			return &regionClients{
				ec2:      ec2.NewFromConfig(regional),
				rds:      rds.NewFromConfig(regional),
				elbv2:    elasticloadbalancingv2.NewFromConfig(regional),
				lambda:   lambda.NewFromConfig(regional),
				logs:     cloudwatchlogs.NewFromConfig(regional),
				ecr:      ecr.NewFromConfig(regional),
				dynamodb: dynamodb.NewFromConfig(regional),
				s3:       s3.NewFromConfig(regional),
				redshift: redshift.NewFromConfig(regional),
				metrics:  cloudwatch.NewFromConfig(regional),
			}
		},
		logger: telemetry.NewLogger("provider.aws"),
		now:    time.Now,
	}, nil
}

// Name identifies the cloud vendor
func (a *Adapter) Name() string { return "aws" }

// ValidateCredentials checks the account's credentials with a cheap
// identity call.
func (a *Adapter) ValidateCredentials(ctx context.Context) error {
	if _, err := a.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		return &provider.AuthError{Provider: "aws", Err: err}
	}
	return nil
}

// ListRegions returns the account's enabled regions
func (a *Adapter) ListRegions(ctx context.Context) ([]string, error) {
	out, err := a.regions.DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
	if err != nil {
		return nil, classifyError("", err)
	}

	regions := make([]string, 0, len(out.Regions))
	for _, r := range out.Regions {
		regions = append(regions, aws.ToString(r.RegionName))
	}
	return regions, nil
}

// lister is one service enumeration within a region
type lister struct {
	name string
	list func(ctx context.Context, c *regionClients, region string) ([]types.Candidate, error)
}

func (a *Adapter) listers() []lister {
	return []lister{
		{"ec2_instances", a.listInstances},
		{"ebs_volumes", a.listVolumes},
		{"ebs_snapshots", a.listSnapshots},
		{"elastic_ips", a.listAddresses},
		{"nat_gateways", a.listNATGateways},
		{"load_balancers", a.listLoadBalancers},
		{"rds_instances", a.listDBInstances},
		{"rds_snapshots", a.listDBSnapshots},
		{"redshift_clusters", a.listRedshiftClusters},
		{"dynamodb_tables", a.listDynamoDBTables},
		{"lambda_functions", a.listFunctions},
		{"log_groups", a.listLogGroups},
		{"ecr_repositories", a.listRepositories},
		{"s3_buckets", a.listBuckets},
	}
}

// ScanRegion enumerates candidate resources in one region. A single
// service failing is logged and skipped; the region only fails when
// credentials go bad or every service fails.
func (a *Adapter) ScanRegion(ctx context.Context, region string) ([]types.Candidate, error) {
	clients := a.newClients(region)

	var candidates []types.Candidate
	listers := a.listers()
	failed := 0
	var lastErr error

	for _, l := range listers {
		found, err := l.list(ctx, clients, region)
		if err != nil {
			classified := classifyError(region, err)
			if provider.IsAuthError(classified) {
				return nil, classified
			}
			failed++
			lastErr = classified
			a.logger.WithContext(ctx).Warn().
				Str("region", region).
				Str("service", l.name).
				Err(err).
				Msg("service enumeration failed, skipping")
			continue
		}
		candidates = append(candidates, found...)
	}

	if failed == len(listers) {
		return nil, fmt.Errorf("all services failed in %s: %w", region, lastErr)
	}
	return candidates, nil
}

func newCandidate(typ, id, name, region string, meta types.CandidateMetadata) types.Candidate {
	return types.Candidate{
		Type:     typ,
		ID:       id,
		Name:     name,
		Region:   region,
		Provider: "aws",
		Meta:     meta,
	}
}

func safeTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func daysSince(t time.Time, now time.Time) int {
	if t.IsZero() {
		return 0
	}
	return int(now.Sub(t).Hours() / 24)
}
