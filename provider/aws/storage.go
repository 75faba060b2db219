package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/costhound/costhound/types"
)

// listVolumes discovers EBS volumes with I/O evidence
func (a *Adapter) listVolumes(ctx context.Context, c *regionClients, region string) ([]types.Candidate, error) {
	var candidates []types.Candidate
	paginator := ec2.NewDescribeVolumesPaginator(c.ec2, &ec2.DescribeVolumesInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, volume := range output.Volumes {
			candidates = append(candidates, a.volumeCandidate(ctx, c, region, volume))
		}
	}
	return candidates, nil
}

func (a *Adapter) volumeCandidate(ctx context.Context, c *regionClients, region string, volume ec2types.Volume) types.Candidate {
	id := aws.ToString(volume.VolumeId)
	attached := len(volume.Attachments) > 0

	meta := types.CandidateMetadata{
		State:      string(volume.State),
		CreatedAt:  safeTime(volume.CreateTime),
		SizeGB:     int64(aws.ToInt32(volume.Size)),
		VolumeType: string(volume.VolumeType),
		IOPS:       aws.ToInt32(volume.Iops),
		Attached:   attached,
		Encrypted:  aws.ToBool(volume.Encrypted),
	}
	if attached {
		meta.AttachedTo = aws.ToString(volume.Attachments[0].InstanceId)
	}

	// No read or write ops across the window means the volume is idle
	dims := []cwtypes.Dimension{dim("VolumeId", id)}
	reads, readsOK := a.metricSum(ctx, c.metrics, "AWS/EBS", "VolumeReadOps", dims)
	writes, writesOK := a.metricSum(ctx, c.metrics, "AWS/EBS", "VolumeWriteOps", dims)
	if readsOK || writesOK {
		meta.HasMetrics = true
		if reads+writes == 0 {
			meta.IdleDays = lookbackDays
		}
	} else if !attached {
		// Unattached volumes emit no metrics at all; age of the volume
		// bounds how long it has been idle.
		meta.IdleDays = min(daysSince(meta.CreatedAt, a.now()), lookbackDays)
	}

	return newCandidate(types.CandidateEBSVolume, id, nameTag(volume.Tags), region, meta)
}

// listSnapshots discovers this account's EBS snapshots
func (a *Adapter) listSnapshots(ctx context.Context, c *regionClients, region string) ([]types.Candidate, error) {
	var candidates []types.Candidate
	paginator := ec2.NewDescribeSnapshotsPaginator(c.ec2, &ec2.DescribeSnapshotsInput{
		OwnerIds: []string{"self"},
	})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, snapshot := range output.Snapshots {
			id := aws.ToString(snapshot.SnapshotId)
			meta := types.CandidateMetadata{
				State:     string(snapshot.State),
				CreatedAt: safeTime(snapshot.StartTime),
				SizeGB:    int64(aws.ToInt32(snapshot.VolumeSize)),
			}
			candidates = append(candidates, newCandidate(types.CandidateEBSSnapshot, id, nameTag(snapshot.Tags), region, meta))
		}
	}
	return candidates, nil
}
