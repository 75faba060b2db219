package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// metricP95 returns the highest daily p95 of a metric over the
// lookback window. ok is false when the metric has no datapoints,
// which callers treat as "no evidence", never as zero usage.
func (a *Adapter) metricP95(ctx context.Context, m MetricsClient, namespace, metricName string, dims []cwtypes.Dimension) (float64, bool) {
	out, err := m.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:          aws.String(namespace),
		MetricName:         aws.String(metricName),
		Dimensions:         dims,
		StartTime:          aws.Time(a.now().Add(-lookbackDays * 24 * time.Hour)),
		EndTime:            aws.Time(a.now()),
		Period:             aws.Int32(86400),
		ExtendedStatistics: []string{"p95"},
	})
	if err != nil {
		a.logger.Debug().
			Str("namespace", namespace).
			Str("metric", metricName).
			Err(err).
			Msg("metric read failed")
		return 0, false
	}
	if len(out.Datapoints) == 0 {
		return 0, false
	}

	var max float64
	for _, dp := range out.Datapoints {
		if v, ok := dp.ExtendedStatistics["p95"]; ok && v > max {
			max = v
		}
	}
	return max, true
}

// metricSum returns the summed value of a metric over the lookback
// window.
func (a *Adapter) metricSum(ctx context.Context, m MetricsClient, namespace, metricName string, dims []cwtypes.Dimension) (float64, bool) {
	out, err := m.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(namespace),
		MetricName: aws.String(metricName),
		Dimensions: dims,
		StartTime:  aws.Time(a.now().Add(-lookbackDays * 24 * time.Hour)),
		EndTime:    aws.Time(a.now()),
		Period:     aws.Int32(86400),
		Statistics: []cwtypes.Statistic{cwtypes.StatisticSum},
	})
	if err != nil || len(out.Datapoints) == 0 {
		return 0, false
	}

	var sum float64
	for _, dp := range out.Datapoints {
		sum += aws.ToFloat64(dp.Sum)
	}
	return sum, true
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}
