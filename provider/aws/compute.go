package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/costhound/costhound/types"
)

// listInstances discovers EC2 instances with CPU evidence and attached
// storage totals.
func (a *Adapter) listInstances(ctx context.Context, c *regionClients, region string) ([]types.Candidate, error) {
	storageByInstance, err := a.attachedStorage(ctx, c)
	if err != nil {
		return nil, err
	}

	var candidates []types.Candidate
	paginator := ec2.NewDescribeInstancesPaginator(c.ec2, &ec2.DescribeInstancesInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}

		for _, reservation := range output.Reservations {
			for _, instance := range reservation.Instances {
				cand, ok := a.instanceCandidate(ctx, c, region, instance, storageByInstance)
				if ok {
					candidates = append(candidates, cand)
				}
			}
		}
	}
	return candidates, nil
}

func (a *Adapter) instanceCandidate(ctx context.Context, c *regionClients, region string, instance ec2types.Instance, storage map[string]int64) (types.Candidate, bool) {
	if instance.State == nil {
		return types.Candidate{}, false
	}
	state := string(instance.State.Name)
	if state == string(ec2types.InstanceStateNameTerminated) {
		return types.Candidate{}, false
	}

	id := aws.ToString(instance.InstanceId)
	meta := types.CandidateMetadata{
		State:        state,
		CreatedAt:    safeTime(instance.LaunchTime),
		InstanceType: string(instance.InstanceType),
		SizeGB:       storage[id],
	}

	switch state {
	case string(ec2types.InstanceStateNameStopped):
		// Stopped instances emit no metrics; idle age is the full window
		meta.IdleDays = lookbackDays
	case string(ec2types.InstanceStateNameRunning):
		cpu, ok := a.metricP95(ctx, c.metrics, "AWS/EC2", "CPUUtilization", []cwtypes.Dimension{dim("InstanceId", id)})
		meta.CPUUtilizationP95 = cpu
		meta.HasMetrics = ok
	}

	return newCandidate(types.CandidateEC2Instance, id, nameTag(instance.Tags), region, meta), true
}

// attachedStorage sums EBS gigabytes per instance so stopped-instance
// cost reflects the storage that keeps billing.
func (a *Adapter) attachedStorage(ctx context.Context, c *regionClients) (map[string]int64, error) {
	storage := make(map[string]int64)
	paginator := ec2.NewDescribeVolumesPaginator(c.ec2, &ec2.DescribeVolumesInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, volume := range output.Volumes {
			for _, att := range volume.Attachments {
				storage[aws.ToString(att.InstanceId)] += int64(aws.ToInt32(volume.Size))
			}
		}
	}
	return storage, nil
}

func nameTag(tags []ec2types.Tag) string {
	for _, tag := range tags {
		if aws.ToString(tag.Key) == "Name" {
			return aws.ToString(tag.Value)
		}
	}
	return ""
}
