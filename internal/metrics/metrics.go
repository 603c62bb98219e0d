package metrics

import (
	"context"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/printloom/fulfillment/internal/awsapi"
	"go.uber.org/zap"
)

// Metric names published under the service namespace.
const (
	OrdersPlaced         = "OrdersPlaced"
	RenderDispatchFailed = "RenderDispatchFailed"
	WebhookEvents        = "WebhookEventsProcessed"
	FactoryUpdates       = "FactoryUpdatesApplied"
)

// Publisher pushes counters to CloudWatch. Publishing is best-effort: a
// metrics outage must never fail an order mutation, so errors are logged and
// dropped.
type Publisher struct {
	client    awsapi.CloudWatchAPI
	namespace string
	logger    *zap.Logger
}

func NewPublisher(client awsapi.CloudWatchAPI, namespace string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// Count adds value to the named counter.
func (p *Publisher) Count(ctx context.Context, name string, value float64) {
	if p == nil || p.client == nil {
		return
	}
	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &p.namespace,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: &name,
				Value:      sdkaws.Float64(value),
				Unit:       cwtypes.StandardUnitCount,
			},
		},
	})
	if err != nil {
		p.logger.Warn("failed to publish metric", zap.String("metric", name), zap.Error(err))
	}
}
