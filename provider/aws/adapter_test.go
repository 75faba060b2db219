package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costhound/costhound/provider"
	"github.com/costhound/costhound/telemetry"
	"github.com/costhound/costhound/types"
)

var testNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

type fakeEC2 struct {
	instances   ec2.DescribeInstancesOutput
	volumes     ec2.DescribeVolumesOutput
	snapshots   ec2.DescribeSnapshotsOutput
	addresses   ec2.DescribeAddressesOutput
	natGateways ec2.DescribeNatGatewaysOutput
	err         error
}

func (f *fakeEC2) DescribeInstances(context.Context, *ec2.DescribeInstancesInput, ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	return &f.instances, f.err
}

func (f *fakeEC2) DescribeVolumes(context.Context, *ec2.DescribeVolumesInput, ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
	return &f.volumes, f.err
}

func (f *fakeEC2) DescribeSnapshots(context.Context, *ec2.DescribeSnapshotsInput, ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error) {
	return &f.snapshots, f.err
}

func (f *fakeEC2) DescribeAddresses(context.Context, *ec2.DescribeAddressesInput, ...func(*ec2.Options)) (*ec2.DescribeAddressesOutput, error) {
	return &f.addresses, f.err
}

func (f *fakeEC2) DescribeNatGateways(context.Context, *ec2.DescribeNatGatewaysInput, ...func(*ec2.Options)) (*ec2.DescribeNatGatewaysOutput, error) {
	return &f.natGateways, f.err
}

type fakeRDS struct {
	instances rds.DescribeDBInstancesOutput
	snapshots rds.DescribeDBSnapshotsOutput
	err       error
}

func (f *fakeRDS) DescribeDBInstances(context.Context, *rds.DescribeDBInstancesInput, ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
	return &f.instances, f.err
}

func (f *fakeRDS) DescribeDBSnapshots(context.Context, *rds.DescribeDBSnapshotsInput, ...func(*rds.Options)) (*rds.DescribeDBSnapshotsOutput, error) {
	return &f.snapshots, f.err
}

type fakeELB struct {
	loadBalancers elasticloadbalancingv2.DescribeLoadBalancersOutput
	targetGroups  elasticloadbalancingv2.DescribeTargetGroupsOutput
	targetHealth  elasticloadbalancingv2.DescribeTargetHealthOutput
	err           error
}

func (f *fakeELB) DescribeLoadBalancers(context.Context, *elasticloadbalancingv2.DescribeLoadBalancersInput, ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeLoadBalancersOutput, error) {
	return &f.loadBalancers, f.err
}

func (f *fakeELB) DescribeTargetGroups(context.Context, *elasticloadbalancingv2.DescribeTargetGroupsInput, ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTargetGroupsOutput, error) {
	return &f.targetGroups, f.err
}

func (f *fakeELB) DescribeTargetHealth(context.Context, *elasticloadbalancingv2.DescribeTargetHealthInput, ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTargetHealthOutput, error) {
	return &f.targetHealth, f.err
}

type fakeLambda struct {
	functions lambda.ListFunctionsOutput
	err       error
}

func (f *fakeLambda) ListFunctions(context.Context, *lambda.ListFunctionsInput, ...func(*lambda.Options)) (*lambda.ListFunctionsOutput, error) {
	return &f.functions, f.err
}

type fakeLogs struct {
	groups cloudwatchlogs.DescribeLogGroupsOutput
	err    error
}

func (f *fakeLogs) DescribeLogGroups(context.Context, *cloudwatchlogs.DescribeLogGroupsInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error) {
	return &f.groups, f.err
}

type fakeECR struct {
	repositories ecr.DescribeRepositoriesOutput
	images       ecr.DescribeImagesOutput
	err          error
}

func (f *fakeECR) DescribeRepositories(context.Context, *ecr.DescribeRepositoriesInput, ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error) {
	return &f.repositories, f.err
}

func (f *fakeECR) DescribeImages(context.Context, *ecr.DescribeImagesInput, ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error) {
	return &f.images, f.err
}

type fakeDynamoDB struct {
	tables dynamodb.ListTablesOutput
	table  dynamodb.DescribeTableOutput
	err    error
}

func (f *fakeDynamoDB) ListTables(context.Context, *dynamodb.ListTablesInput, ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	return &f.tables, f.err
}

func (f *fakeDynamoDB) DescribeTable(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &f.table, f.err
}

type fakeS3 struct {
	buckets  s3.ListBucketsOutput
	location s3.GetBucketLocationOutput
	objects  s3.ListObjectsV2Output
	err      error
}

func (f *fakeS3) ListBuckets(context.Context, *s3.ListBucketsInput, ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	return &f.buckets, f.err
}

func (f *fakeS3) GetBucketLocation(context.Context, *s3.GetBucketLocationInput, ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
	return &f.location, f.err
}

func (f *fakeS3) ListObjectsV2(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	return &f.objects, f.err
}

type fakeRedshift struct {
	clusters redshift.DescribeClustersOutput
	err      error
}

func (f *fakeRedshift) DescribeClusters(context.Context, *redshift.DescribeClustersInput, ...func(*redshift.Options)) (*redshift.DescribeClustersOutput, error) {
	return &f.clusters, f.err
}

// fakeMetrics answers metric reads from a namespace/metric keyed script.
// Unscripted metrics return no datapoints.
type fakeMetrics struct {
	p95  map[string]float64
	sums map[string]float64
}

func (f *fakeMetrics) GetMetricStatistics(_ context.Context, params *cloudwatch.GetMetricStatisticsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error) {
	key := aws.ToString(params.Namespace) + "/" + aws.ToString(params.MetricName)
	out := &cloudwatch.GetMetricStatisticsOutput{}
	if len(params.ExtendedStatistics) > 0 {
		if v, ok := f.p95[key]; ok {
			out.Datapoints = []cwtypes.Datapoint{{ExtendedStatistics: map[string]float64{"p95": v}}}
		}
		return out, nil
	}
	if v, ok := f.sums[key]; ok {
		out.Datapoints = []cwtypes.Datapoint{{Sum: aws.Float64(v)}}
	}
	return out, nil
}

type fakeSTS struct {
	err error
}

func (f *fakeSTS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetCallerIdentityOutput{Account: aws.String("123456789012")}, nil
}

type fakeRegionLister struct {
	regions []string
	err     error
}

func (f *fakeRegionLister) DescribeRegions(context.Context, *ec2.DescribeRegionsInput, ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := &ec2.DescribeRegionsOutput{}
	for _, r := range f.regions {
		out.Regions = append(out.Regions, ec2types.Region{RegionName: aws.String(r)})
	}
	return out, nil
}

func emptyClients() *regionClients {
	return &regionClients{
		ec2:      &fakeEC2{},
		rds:      &fakeRDS{},
		elbv2:    &fakeELB{},
		lambda:   &fakeLambda{},
		logs:     &fakeLogs{},
		ecr:      &fakeECR{},
		dynamodb: &fakeDynamoDB{},
		s3:       &fakeS3{},
		redshift: &fakeRedshift{},
		metrics:  &fakeMetrics{},
	}
}

func testAdapter(clients *regionClients) *Adapter {
	return &Adapter{
		sts:        &fakeSTS{},
		regions:    &fakeRegionLister{regions: []string{"us-east-1"}},
		newClients: func(string) *regionClients { return clients },
		logger:     telemetry.NewLogger("provider.aws.test"),
		now:        func() time.Time { return testNow },
	}
}

func daysAgo(days int) *time.Time {
	t := testNow.Add(-time.Duration(days) * 24 * time.Hour)
	return &t
}

func candidateByID(t *testing.T, candidates []types.Candidate, id string) types.Candidate {
	t.Helper()
	for _, c := range candidates {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("candidate %s not found", id)
	return types.Candidate{}
}

func TestScanRegionCollectsCandidates(t *testing.T) {
	clients := emptyClients()
	clients.ec2 = &fakeEC2{
		instances: ec2.DescribeInstancesOutput{
			Reservations: []ec2types.Reservation{{
				Instances: []ec2types.Instance{
					{
						InstanceId:   aws.String("i-running"),
						InstanceType: ec2types.InstanceTypeT3Large,
						State:        &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
						LaunchTime:   daysAgo(90),
					},
					{
						InstanceId:   aws.String("i-stopped"),
						InstanceType: ec2types.InstanceTypeM5Large,
						State:        &ec2types.InstanceState{Name: ec2types.InstanceStateNameStopped},
						LaunchTime:   daysAgo(200),
					},
					{
						InstanceId: aws.String("i-gone"),
						State:      &ec2types.InstanceState{Name: ec2types.InstanceStateNameTerminated},
					},
				},
			}},
		},
		volumes: ec2.DescribeVolumesOutput{
			Volumes: []ec2types.Volume{
				{
					VolumeId:   aws.String("vol-orphan"),
					Size:       aws.Int32(100),
					VolumeType: ec2types.VolumeTypeGp3,
					State:      ec2types.VolumeStateAvailable,
					CreateTime: daysAgo(45),
				},
				{
					VolumeId:    aws.String("vol-root"),
					Size:        aws.Int32(50),
					VolumeType:  ec2types.VolumeTypeGp2,
					State:       ec2types.VolumeStateInUse,
					CreateTime:  daysAgo(200),
					Attachments: []ec2types.VolumeAttachment{{InstanceId: aws.String("i-stopped")}},
				},
			},
		},
		addresses: ec2.DescribeAddressesOutput{
			Addresses: []ec2types.Address{{
				AllocationId: aws.String("eipalloc-1"),
				PublicIp:     aws.String("203.0.113.9"),
			}},
		},
	}
	clients.metrics = &fakeMetrics{
		p95: map[string]float64{"AWS/EC2/CPUUtilization": 2.5},
	}

	a := testAdapter(clients)
	candidates, err := a.ScanRegion(context.Background(), "us-east-1")
	require.NoError(t, err)
	require.Len(t, candidates, 5)

	running := candidateByID(t, candidates, "i-running")
	assert.Equal(t, types.CandidateEC2Instance, running.Type)
	assert.Equal(t, "running", running.Meta.State)
	assert.True(t, running.Meta.HasMetrics)
	assert.Equal(t, 2.5, running.Meta.CPUUtilizationP95)

	stopped := candidateByID(t, candidates, "i-stopped")
	assert.Equal(t, "stopped", stopped.Meta.State)
	assert.Equal(t, lookbackDays, stopped.Meta.IdleDays)
	assert.Equal(t, int64(50), stopped.Meta.SizeGB, "attached storage rolls up to the instance")

	orphan := candidateByID(t, candidates, "vol-orphan")
	assert.Equal(t, types.CandidateEBSVolume, orphan.Type)
	assert.False(t, orphan.Meta.Attached)
	assert.Equal(t, lookbackDays, orphan.Meta.IdleDays, "no metrics, idle bounded by the window")

	root := candidateByID(t, candidates, "vol-root")
	assert.True(t, root.Meta.Attached)
	assert.Equal(t, "i-stopped", root.Meta.AttachedTo)

	eip := candidateByID(t, candidates, "eipalloc-1")
	assert.Equal(t, types.CandidateElasticIP, eip.Type)
	assert.False(t, eip.Meta.Associated)
}

func TestScanRegionSkipsFailedService(t *testing.T) {
	clients := emptyClients()
	clients.rds = &fakeRDS{err: errors.New("throttled")}
	clients.ec2 = &fakeEC2{
		addresses: ec2.DescribeAddressesOutput{
			Addresses: []ec2types.Address{{AllocationId: aws.String("eipalloc-1")}},
		},
	}

	a := testAdapter(clients)
	candidates, err := a.ScanRegion(context.Background(), "us-east-1")
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestListInstancesSkipsMalformedItems(t *testing.T) {
	clients := emptyClients()
	clients.ec2 = &fakeEC2{
		instances: ec2.DescribeInstancesOutput{
			Reservations: []ec2types.Reservation{{
				Instances: []ec2types.Instance{
					// No state at all; skipped rather than panicking
					{InstanceId: aws.String("i-no-state")},
					{
						InstanceId:   aws.String("i-stopped"),
						InstanceType: ec2types.InstanceTypeM5Large,
						State:        &ec2types.InstanceState{Name: ec2types.InstanceStateNameStopped},
						LaunchTime:   daysAgo(200),
					},
				},
			}},
		},
	}

	a := testAdapter(clients)
	candidates, err := a.listInstances(context.Background(), clients, "us-east-1")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "i-stopped", candidates[0].ID)
}

func TestScanRegionAuthErrorIsFatal(t *testing.T) {
	clients := emptyClients()
	clients.ec2 = &fakeEC2{
		err: &smithy.GenericAPIError{Code: "UnauthorizedOperation", Message: "denied"},
	}

	a := testAdapter(clients)
	candidates, err := a.ScanRegion(context.Background(), "us-east-1")
	require.Error(t, err)
	assert.True(t, provider.IsAuthError(err))
	assert.Nil(t, candidates)
}

func TestScanRegionAllServicesFailed(t *testing.T) {
	boom := errors.New("network down")
	clients := &regionClients{
		ec2:      &fakeEC2{err: boom},
		rds:      &fakeRDS{err: boom},
		elbv2:    &fakeELB{err: boom},
		lambda:   &fakeLambda{err: boom},
		logs:     &fakeLogs{err: boom},
		ecr:      &fakeECR{err: boom},
		dynamodb: &fakeDynamoDB{err: boom},
		s3:       &fakeS3{err: boom},
		redshift: &fakeRedshift{err: boom},
		metrics:  &fakeMetrics{},
	}

	a := testAdapter(clients)
	_, err := a.ScanRegion(context.Background(), "eu-west-1")
	require.Error(t, err)
	assert.False(t, provider.IsAuthError(err))
	assert.Contains(t, err.Error(), "eu-west-1")
}

func TestValidateCredentials(t *testing.T) {
	a := testAdapter(emptyClients())
	require.NoError(t, a.ValidateCredentials(context.Background()))

	a.sts = &fakeSTS{err: errors.New("InvalidClientTokenId")}
	err := a.ValidateCredentials(context.Background())
	require.Error(t, err)
	assert.True(t, provider.IsAuthError(err))
}

func TestListRegions(t *testing.T) {
	a := testAdapter(emptyClients())
	a.regions = &fakeRegionLister{regions: []string{"us-east-1", "eu-west-1"}}

	regions, err := a.ListRegions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"us-east-1", "eu-west-1"}, regions)
}

func TestClassifyError(t *testing.T) {
	auth := classifyError("us-east-1", &smithy.GenericAPIError{Code: "ExpiredToken"})
	assert.True(t, provider.IsAuthError(auth))

	transient := classifyError("us-east-1", &smithy.GenericAPIError{Code: "Throttling"})
	assert.False(t, provider.IsAuthError(transient))
	var adapterErr *provider.AdapterError
	require.ErrorAs(t, transient, &adapterErr)
	assert.Equal(t, "us-east-1", adapterErr.Region)

	plain := classifyError("us-east-1", errors.New("dial tcp: timeout"))
	assert.False(t, provider.IsAuthError(plain))
}

func TestListBucketsFiltersByRegion(t *testing.T) {
	clients := emptyClients()
	clients.s3 = &fakeS3{
		buckets: s3.ListBucketsOutput{
			Buckets: []s3types.Bucket{{
				Name:         aws.String("logs-archive"),
				CreationDate: daysAgo(400),
			}},
		},
		location: s3.GetBucketLocationOutput{},
		objects:  s3.ListObjectsV2Output{KeyCount: aws.Int32(0)},
	}

	a := testAdapter(clients)

	candidates, err := a.listBuckets(context.Background(), clients, "us-east-1")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, types.CandidateS3Bucket, candidates[0].Type)
	assert.Equal(t, int64(0), candidates[0].Meta.ObjectCount)

	// Empty LocationConstraint means us-east-1, so other regions skip it
	candidates, err = a.listBuckets(context.Background(), clients, "eu-west-1")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestListRepositoriesCountsUntagged(t *testing.T) {
	clients := emptyClients()
	clients.ecr = &fakeECR{
		repositories: ecr.DescribeRepositoriesOutput{
			Repositories: []ecrtypes.Repository{{
				RepositoryName: aws.String("api"),
				CreatedAt:      daysAgo(300),
			}},
		},
		images: ecr.DescribeImagesOutput{
			ImageDetails: []ecrtypes.ImageDetail{
				{ImageTags: []string{"v1.2.0"}, ImageSizeInBytes: aws.Int64(100 << 20)},
				{ImageSizeInBytes: aws.Int64(90 << 20)},
				{ImageSizeInBytes: aws.Int64(80 << 20)},
			},
		},
	}

	a := testAdapter(clients)
	candidates, err := a.listRepositories(context.Background(), clients, "us-east-1")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, int32(3), candidates[0].Meta.ImageCount)
	assert.Equal(t, int32(2), candidates[0].Meta.UntaggedImageCount)
	assert.Equal(t, int64(270<<20), candidates[0].Meta.StoredBytes)
}

func TestParseLambdaTime(t *testing.T) {
	parsed := parseLambdaTime("2025-03-15T10:30:00.000+0000")
	assert.Equal(t, time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC), parsed.UTC())
	assert.True(t, parseLambdaTime("garbage").IsZero())
}

func TestBucketRegion(t *testing.T) {
	assert.Equal(t, "us-east-1", bucketRegion(""))
	assert.Equal(t, "eu-central-1", bucketRegion("eu-central-1"))
}
