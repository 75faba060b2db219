package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/costhound/costhound/types"
)

// listFunctions discovers Lambda functions with invocation evidence
func (a *Adapter) listFunctions(ctx context.Context, c *regionClients, region string) ([]types.Candidate, error) {
	var candidates []types.Candidate
	paginator := lambda.NewListFunctionsPaginator(c.lambda, &lambda.ListFunctionsInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, fn := range output.Functions {
			name := aws.ToString(fn.FunctionName)
			meta := types.CandidateMetadata{
				LastModified: parseLambdaTime(aws.ToString(fn.LastModified)),
				Runtime:      string(fn.Runtime),
				MemoryMB:     aws.ToInt32(fn.MemorySize),
				CodeSizeB:    fn.CodeSize,
			}

			invocations, ok := a.metricSum(ctx, c.metrics, "AWS/Lambda", "Invocations",
				[]cwtypes.Dimension{dim("FunctionName", name)})
			meta.HasMetrics = ok
			if ok && invocations == 0 {
				// Never invoked inside the window; staleness is bounded
				// below by how long ago the code last changed.
				meta.IdleDays = daysSince(meta.LastModified, a.now())
				if meta.IdleDays > lookbackDays || meta.IdleDays == 0 {
					meta.IdleDays = max(meta.IdleDays, lookbackDays)
				}
			}

			candidates = append(candidates, newCandidate(types.CandidateLambdaFunction, name, name, region, meta))
		}
	}
	return candidates, nil
}

// parseLambdaTime parses Lambda's ISO8601 LastModified format
func parseLambdaTime(s string) time.Time {
	t, err := time.Parse("2006-01-02T15:04:05.000-0700", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// listLogGroups discovers CloudWatch log groups
func (a *Adapter) listLogGroups(ctx context.Context, c *regionClients, region string) ([]types.Candidate, error) {
	var candidates []types.Candidate
	paginator := cloudwatchlogs.NewDescribeLogGroupsPaginator(c.logs, &cloudwatchlogs.DescribeLogGroupsInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, group := range output.LogGroups {
			name := aws.ToString(group.LogGroupName)
			meta := types.CandidateMetadata{
				RetentionDays: aws.ToInt32(group.RetentionInDays),
				StoredBytes:   aws.ToInt64(group.StoredBytes),
			}
			if group.CreationTime != nil {
				meta.CreatedAt = time.UnixMilli(*group.CreationTime)
			}
			candidates = append(candidates, newCandidate(types.CandidateLogGroup, name, name, region, meta))
		}
	}
	return candidates, nil
}
