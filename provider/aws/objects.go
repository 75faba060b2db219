package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/costhound/costhound/types"
)

// listRepositories discovers ECR repositories and counts untagged
// images per repository.
func (a *Adapter) listRepositories(ctx context.Context, c *regionClients, region string) ([]types.Candidate, error) {
	var candidates []types.Candidate
	paginator := ecr.NewDescribeRepositoriesPaginator(c.ecr, &ecr.DescribeRepositoriesInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, repo := range output.Repositories {
			cand, err := a.repositoryCandidate(ctx, c, region, aws.ToString(repo.RepositoryName), safeTime(repo.CreatedAt))
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, cand)
		}
	}
	return candidates, nil
}

func (a *Adapter) repositoryCandidate(ctx context.Context, c *regionClients, region, name string, created time.Time) (types.Candidate, error) {
	var total, untagged int32
	var storedBytes int64

	paginator := ecr.NewDescribeImagesPaginator(c.ecr, &ecr.DescribeImagesInput{
		RepositoryName: aws.String(name),
	})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return types.Candidate{}, err
		}
		for _, image := range output.ImageDetails {
			total++
			storedBytes += aws.ToInt64(image.ImageSizeInBytes)
			if len(image.ImageTags) == 0 {
				untagged++
			}
		}
	}

	meta := types.CandidateMetadata{
		CreatedAt:          created,
		ImageCount:         total,
		UntaggedImageCount: untagged,
		StoredBytes:        storedBytes,
	}
	return newCandidate(types.CandidateECRRepository, name, name, region, meta), nil
}

// listBuckets discovers this region's S3 buckets. ListBuckets is a
// global call, so buckets are filtered to the scanned region to keep
// candidates region-scoped like every other type.
func (a *Adapter) listBuckets(ctx context.Context, c *regionClients, region string) ([]types.Candidate, error) {
	output, err := c.s3.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, err
	}

	var candidates []types.Candidate
	for _, bucket := range output.Buckets {
		name := aws.ToString(bucket.Name)

		loc, err := c.s3.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: bucket.Name})
		if err != nil {
			// A bucket mid-deletion or cross-account edge; skip it
			a.logger.Debug().Str("bucket", name).Err(err).Msg("bucket location lookup failed")
			continue
		}
		if bucketRegion(string(loc.LocationConstraint)) != region {
			continue
		}

		// One key is enough to decide emptiness
		objects, err := c.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  bucket.Name,
			MaxKeys: aws.Int32(1),
		})
		if err != nil {
			return nil, err
		}

		meta := types.CandidateMetadata{
			CreatedAt:   safeTime(bucket.CreationDate),
			ObjectCount: int64(aws.ToInt32(objects.KeyCount)),
		}
		candidates = append(candidates, newCandidate(types.CandidateS3Bucket, name, name, region, meta))
	}
	return candidates, nil
}

// bucketRegion normalizes the LocationConstraint quirk where us-east-1
// comes back empty.
func bucketRegion(constraint string) string {
	if constraint == "" {
		return "us-east-1"
	}
	return constraint
}
