package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/aws-sdk-go-v2/service/redshift"

	"github.com/costhound/costhound/types"
)

// listDBInstances discovers RDS instances with connection evidence
func (a *Adapter) listDBInstances(ctx context.Context, c *regionClients, region string) ([]types.Candidate, error) {
	var candidates []types.Candidate
	paginator := rds.NewDescribeDBInstancesPaginator(c.rds, &rds.DescribeDBInstancesInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, instance := range output.DBInstances {
			candidates = append(candidates, a.dbInstanceCandidate(ctx, c, region, instance))
		}
	}
	return candidates, nil
}

func (a *Adapter) dbInstanceCandidate(ctx context.Context, c *regionClients, region string, instance rdstypes.DBInstance) types.Candidate {
	id := aws.ToString(instance.DBInstanceIdentifier)
	meta := types.CandidateMetadata{
		State:              aws.ToString(instance.DBInstanceStatus),
		CreatedAt:          safeTime(instance.InstanceCreateTime),
		Engine:             aws.ToString(instance.Engine),
		InstanceClass:      aws.ToString(instance.DBInstanceClass),
		MultiAZ:            aws.ToBool(instance.MultiAZ),
		AllocatedStorageGB: aws.ToInt32(instance.AllocatedStorage),
	}

	dims := []cwtypes.Dimension{dim("DBInstanceIdentifier", id)}
	conns, connsOK := a.metricP95(ctx, c.metrics, "AWS/RDS", "DatabaseConnections", dims)
	cpu, cpuOK := a.metricP95(ctx, c.metrics, "AWS/RDS", "CPUUtilization", dims)
	meta.ConnectionsP95 = conns
	meta.CPUUtilizationP95 = cpu
	meta.HasMetrics = connsOK && cpuOK

	return newCandidate(types.CandidateRDSInstance, id, id, region, meta)
}

// listDBSnapshots discovers manual RDS snapshots. Automated snapshots
// follow the instance's retention policy and are not waste.
func (a *Adapter) listDBSnapshots(ctx context.Context, c *regionClients, region string) ([]types.Candidate, error) {
	var candidates []types.Candidate
	paginator := rds.NewDescribeDBSnapshotsPaginator(c.rds, &rds.DescribeDBSnapshotsInput{
		SnapshotType: aws.String("manual"),
	})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, snapshot := range output.DBSnapshots {
			id := aws.ToString(snapshot.DBSnapshotIdentifier)
			meta := types.CandidateMetadata{
				State:              aws.ToString(snapshot.Status),
				CreatedAt:          safeTime(snapshot.SnapshotCreateTime),
				Engine:             aws.ToString(snapshot.Engine),
				AllocatedStorageGB: aws.ToInt32(snapshot.AllocatedStorage),
			}
			candidates = append(candidates, newCandidate(types.CandidateRDSSnapshot, id, id, region, meta))
		}
	}
	return candidates, nil
}

// listRedshiftClusters discovers Redshift clusters
func (a *Adapter) listRedshiftClusters(ctx context.Context, c *regionClients, region string) ([]types.Candidate, error) {
	var candidates []types.Candidate
	paginator := redshift.NewDescribeClustersPaginator(c.redshift, &redshift.DescribeClustersInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, cluster := range output.Clusters {
			id := aws.ToString(cluster.ClusterIdentifier)
			meta := types.CandidateMetadata{
				State:     aws.ToString(cluster.ClusterStatus),
				CreatedAt: safeTime(cluster.ClusterCreateTime),
				NodeCount: aws.ToInt32(cluster.NumberOfNodes),
			}
			if meta.State == "paused" {
				// Pause time is not exposed; the metric window bounds it
				meta.IdleDays = lookbackDays
			}
			candidates = append(candidates, newCandidate(types.CandidateRedshiftCluster, id, id, region, meta))
		}
	}
	return candidates, nil
}

// listDynamoDBTables discovers provisioned tables with consumption
// evidence.
func (a *Adapter) listDynamoDBTables(ctx context.Context, c *regionClients, region string) ([]types.Candidate, error) {
	var candidates []types.Candidate
	paginator := dynamodb.NewListTablesPaginator(c.dynamodb, &dynamodb.ListTablesInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, name := range output.TableNames {
			cand, ok, err := a.tableCandidate(ctx, c, region, name)
			if err != nil {
				return nil, err
			}
			if ok {
				candidates = append(candidates, cand)
			}
		}
	}
	return candidates, nil
}

func (a *Adapter) tableCandidate(ctx context.Context, c *regionClients, region, name string) (types.Candidate, bool, error) {
	desc, err := c.dynamodb.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err != nil {
		return types.Candidate{}, false, err
	}
	table := desc.Table
	if table == nil || table.ProvisionedThroughput == nil {
		return types.Candidate{}, false, nil
	}

	read := aws.ToInt64(table.ProvisionedThroughput.ReadCapacityUnits)
	write := aws.ToInt64(table.ProvisionedThroughput.WriteCapacityUnits)
	if read+write == 0 {
		// On-demand table, nothing provisioned to reclaim
		return types.Candidate{}, false, nil
	}

	meta := types.CandidateMetadata{
		CreatedAt:     safeTime(table.CreationDateTime),
		ReadCapacity:  read,
		WriteCapacity: write,
		StoredBytes:   aws.ToInt64(table.TableSizeBytes),
	}

	dims := []cwtypes.Dimension{dim("TableName", name)}
	readUsed, readOK := a.metricSum(ctx, c.metrics, "AWS/DynamoDB", "ConsumedReadCapacityUnits", dims)
	writeUsed, writeOK := a.metricSum(ctx, c.metrics, "AWS/DynamoDB", "ConsumedWriteCapacityUnits", dims)
	if readOK || writeOK {
		meta.HasMetrics = true
		provisioned := float64(read+write) * lookbackDays * 24 * 3600
		if provisioned > 0 {
			meta.UtilizationPct = (readUsed + writeUsed) / provisioned * 100
		}
	}

	return newCandidate(types.CandidateDynamoDBTable, name, name, region, meta), true, nil
}
