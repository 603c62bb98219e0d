package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (c *captureCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.inputs = append(c.inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestCount(t *testing.T) {
	cw := &captureCloudWatch{}
	p := NewPublisher(cw, "Fulfillment", zap.NewNop())

	p.Count(context.Background(), OrdersPlaced, 1)

	require.Len(t, cw.inputs, 1)
	in := cw.inputs[0]
	assert.Equal(t, "Fulfillment", *in.Namespace)
	require.Len(t, in.MetricData, 1)
	assert.Equal(t, OrdersPlaced, *in.MetricData[0].MetricName)
	assert.Equal(t, 1.0, *in.MetricData[0].Value)
}

func TestCount_NilPublisherIsSafe(t *testing.T) {
	var p *Publisher
	p.Count(context.Background(), OrdersPlaced, 1)

	NewPublisher(nil, "Fulfillment", zap.NewNop()).Count(context.Background(), OrdersPlaced, 1)
}

func TestCount_PublishErrorSwallowed(t *testing.T) {
	cw := &captureCloudWatch{err: errors.New("throttled")}
	p := NewPublisher(cw, "Fulfillment", zap.NewNop())

	p.Count(context.Background(), RenderDispatchFailed, 1)
	assert.Empty(t, cw.inputs)
}
