package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// Metrics publishes application and retrieval metrics to CloudWatch. A nil
// client (e.g. in tests) makes every method a no-op rather than an error,
// since metrics are observability, not a dependency the domain requires.
type Metrics struct {
	namespace string
	client    *cloudwatch.Client
	logger    *zap.Logger
}

// NewMetrics creates a new metrics instance.
func NewMetrics(namespace string, client *cloudwatch.Client) *Metrics {
	return &Metrics{namespace: namespace, client: client, logger: zap.NewNop()}
}

// RecordCommandExecution records metrics for a command bus dispatch.
func (m *Metrics) RecordCommandExecution(ctx context.Context, commandName string, duration time.Duration, err error) {
	if m.client == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.put(ctx,
		types.MetricDatum{
			MetricName: aws.String("CommandExecution"),
			Dimensions: dims("CommandName", commandName, "Status", status),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
			Timestamp:  aws.Time(time.Now()),
		},
		types.MetricDatum{
			MetricName: aws.String("CommandCount"),
			Dimensions: dims("CommandName", commandName, "Status", status),
			Value:      aws.Float64(1),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(time.Now()),
		},
	)
}

// RecordSearchLatency implements ports.TelemetrySink, tracking how long a
// spreading-activation search took and how much of the node budget it used.
func (m *Metrics) RecordSearchLatency(ctx context.Context, userID string, elapsed time.Duration, nodesVisited, hopsRun int) {
	if m.client == nil {
		return
	}
	m.put(ctx,
		types.MetricDatum{
			MetricName: aws.String("SearchLatency"),
			Value:      aws.Float64(float64(elapsed.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
			Timestamp:  aws.Time(time.Now()),
		},
		types.MetricDatum{
			MetricName: aws.String("SearchNodesVisited"),
			Value:      aws.Float64(float64(nodesVisited)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(time.Now()),
		},
		types.MetricDatum{
			MetricName: aws.String("SearchHopsRun"),
			Value:      aws.Float64(float64(hopsRun)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(time.Now()),
		},
	)
}

// RecordSearchQuality implements ports.TelemetrySink, tracking result
// volume and top-result confidence for a completed search.
func (m *Metrics) RecordSearchQuality(ctx context.Context, userID string, resultCount int, topScore float64) {
	if m.client == nil {
		return
	}
	m.put(ctx,
		types.MetricDatum{
			MetricName: aws.String("SearchResultCount"),
			Value:      aws.Float64(float64(resultCount)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(time.Now()),
		},
		types.MetricDatum{
			MetricName: aws.String("SearchTopScore"),
			Value:      aws.Float64(topScore),
			Unit:       types.StandardUnitNone,
			Timestamp:  aws.Time(time.Now()),
		},
	)
}

// RecordBudgetExhaustion implements ports.TelemetrySink, flagging when a
// search stopped because the adaptive node/hop budget ran out rather than
// because the graph was exhausted.
func (m *Metrics) RecordBudgetExhaustion(ctx context.Context, userID string, reason string) {
	if m.client == nil {
		return
	}
	m.put(ctx, types.MetricDatum{
		MetricName: aws.String("SearchBudgetExhausted"),
		Dimensions: dims("Reason", reason),
		Value:      aws.Float64(1),
		Unit:       types.StandardUnitCount,
		Timestamp:  aws.Time(time.Now()),
	})
}

// RecordError records error occurrences by type and code.
func (m *Metrics) RecordError(ctx context.Context, errorType string, errorCode string) {
	if m.client == nil {
		return
	}
	m.put(ctx, types.MetricDatum{
		MetricName: aws.String("Errors"),
		Dimensions: dims("ErrorType", errorType, "ErrorCode", errorCode),
		Value:      aws.Float64(1),
		Unit:       types.StandardUnitCount,
		Timestamp:  aws.Time(time.Now()),
	})
}

func (m *Metrics) put(ctx context.Context, data ...types.MetricDatum) {
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		m.logger.Warn("failed to publish metrics", zap.Error(err))
	}
}

func dims(kv ...string) []types.Dimension {
	out := make([]types.Dimension, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, types.Dimension{Name: aws.String(kv[i]), Value: aws.String(kv[i+1])})
	}
	return out
}
