package provider

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/franksops/s3xfer/errs"
)

// S3 storage metrics are published once a day.
const metricPeriod = 24 * time.Hour

// CloudWatchAPI is the subset of the CloudWatch client used here.
type CloudWatchAPI interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

var _ CloudWatchAPI = (*cloudwatch.Client)(nil)

// BucketMetrics holds the daily storage metrics of one bucket. Missing
// datapoints leave the corresponding field at zero.
type BucketMetrics struct {
	Bucket    string
	SizeBytes int64
	Objects   int64
}

// MetricsSource reads bucket storage metrics from CloudWatch.
type MetricsSource struct {
	client CloudWatchAPI
}

// NewMetricsSource wraps a CloudWatch client.
func NewMetricsSource(client CloudWatchAPI) *MetricsSource {
	return &MetricsSource{client: client}
}

// ValidStatistic reports whether name is a CloudWatch statistic.
func ValidStatistic(name string) bool {
	for _, s := range cwtypes.StatisticSampleCount.Values() {
		if string(s) == name {
			return true
		}
	}
	return false
}

// BucketStats fetches size and object count for the day ending at end, using
// the named statistic (e.g. "Maximum"). The latest datapoint wins.
func (m *MetricsSource) BucketStats(ctx context.Context, bucket string, end time.Time, statistic string) (BucketMetrics, error) {
	if !ValidStatistic(statistic) {
		return BucketMetrics{}, errs.Configf("unknown metric statistic %q", statistic)
	}

	result := BucketMetrics{Bucket: bucket}

	queries := []struct {
		metric      string
		storageType string
		dst         *int64
	}{
		{"BucketSizeBytes", "StandardStorage", &result.SizeBytes},
		{"NumberOfObjects", "AllStorageTypes", &result.Objects},
	}

	for _, q := range queries {
		out, err := m.client.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
			Namespace:  aws.String("AWS/S3"),
			MetricName: aws.String(q.metric),
			StartTime:  aws.Time(end.Add(-metricPeriod)),
			EndTime:    aws.Time(end),
			Period:     aws.Int32(int32(metricPeriod / time.Second)),
			Statistics: []cwtypes.Statistic{cwtypes.Statistic(statistic)},
			Dimensions: []cwtypes.Dimension{
				{Name: aws.String("BucketName"), Value: aws.String(bucket)},
				{Name: aws.String("StorageType"), Value: aws.String(q.storageType)},
			},
		})
		if err != nil {
			return BucketMetrics{}, errs.Remote("metrics", bucket, "", fmt.Errorf("%s: %w", q.metric, err))
		}
		if len(out.Datapoints) == 0 {
			continue
		}

		points := out.Datapoints
		sort.Slice(points, func(i, j int) bool {
			return aws.ToTime(points[i].Timestamp).Before(aws.ToTime(points[j].Timestamp))
		})
		*q.dst = int64(statisticValue(points[len(points)-1], statistic))
	}

	return result, nil
}

func statisticValue(dp cwtypes.Datapoint, statistic string) float64 {
	switch cwtypes.Statistic(statistic) {
	case cwtypes.StatisticAverage:
		return aws.ToFloat64(dp.Average)
	case cwtypes.StatisticMinimum:
		return aws.ToFloat64(dp.Minimum)
	case cwtypes.StatisticSum:
		return aws.ToFloat64(dp.Sum)
	case cwtypes.StatisticSampleCount:
		return aws.ToFloat64(dp.SampleCount)
	}
	return aws.ToFloat64(dp.Maximum)
}

// Midnight truncates t to 00:00 UTC of the same day.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
