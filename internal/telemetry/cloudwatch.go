// Package telemetry publishes gateway request metrics to AWS CloudWatch.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"glucogate/internal/core"
)

// Metric and dimension names.
const (
	MetricRequestCount   = "RequestCount"
	MetricRequestLatency = "RequestLatency"

	DimMethod = "Method"
	DimRoute  = "Route"
	DimStatus = "StatusClass"
)

const (
	// maxDatumsPerCall is the PutMetricData batch limit.
	maxDatumsPerCall = 1000
	// maxBuffered bounds memory if the backend is unreachable for long.
	maxBuffered = 10 * maxDatumsPerCall

	defaultFlushInterval = time.Minute
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ core.MetricsCollector = (*CloudWatchCollector)(nil)

// CloudWatchCollector implements core.MetricsCollector. RecordRequest only
// appends to an in-memory buffer; datums reach CloudWatch when Flush runs,
// either from the Run loop or explicitly at shutdown.
type CloudWatchCollector struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
	interval  time.Duration

	mu      sync.Mutex
	pending []cwtypes.MetricDatum
	dropped int
}

// NewCloudWatchCollector creates a collector publishing into namespace.
func NewCloudWatchCollector(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchCollector{
		client:    client,
		namespace: namespace,
		logger:    logger,
		interval:  defaultFlushInterval,
	}
}

// NewCloudWatchClient builds a CloudWatch client from the default AWS
// credential chain. A non-empty endpoint overrides the service URL (LocalStack).
func NewCloudWatchClient(ctx context.Context, region, endpoint string) (*cloudwatch.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// RecordRequest buffers one count datum and one latency datum.
func (c *CloudWatchCollector) RecordRequest(method, route, status string, duration time.Duration) {
	now := time.Now()
	dims := []cwtypes.Dimension{
		{Name: aws.String(DimMethod), Value: aws.String(method)},
		{Name: aws.String(DimRoute), Value: aws.String(route)},
		{Name: aws.String(DimStatus), Value: aws.String(statusClass(status))},
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending)+2 > maxBuffered {
		c.dropped += 2
		return
	}
	c.pending = append(c.pending,
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricRequestCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Timestamp:  aws.Time(now),
			Dimensions: dims,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricRequestLatency),
			Value:      aws.Float64(float64(duration.Microseconds()) / 1000),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Timestamp:  aws.Time(now),
			Dimensions: dims,
		},
	)
}

// Flush publishes everything buffered so far in batches. Batches that fail
// are logged and discarded.
func (c *CloudWatchCollector) Flush(ctx context.Context) error {
	c.mu.Lock()
	data := c.pending
	dropped := c.dropped
	c.pending = nil
	c.dropped = 0
	c.mu.Unlock()

	if dropped > 0 {
		c.logger.Warn("metrics buffer full, datums dropped", "dropped", dropped)
	}

	var firstErr error
	for start := 0; start < len(data); start += maxDatumsPerCall {
		end := min(start+maxDatumsPerCall, len(data))
		_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(c.namespace),
			MetricData: data[start:end],
		})
		if err != nil {
			c.logger.Error("failed to publish request metrics",
				"error", err.Error(),
				"datums", end-start,
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("publishing metrics: %w", err)
			}
		}
	}
	return firstErr
}

// Run flushes on a fixed interval until ctx is cancelled, then performs one
// final flush with a fresh deadline.
func (c *CloudWatchCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.Flush(ctx)
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = c.Flush(final)
			cancel()
			return
		}
	}
}

// Pending returns the number of buffered datums.
func (c *CloudWatchCollector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func statusClass(status string) string {
	if len(status) != 3 {
		return "unknown"
	}
	return status[:1] + "xx"
}
