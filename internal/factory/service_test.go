package factory

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/printloom/fulfillment/internal/metrics"
	"github.com/printloom/fulfillment/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureCloudWatch struct {
	names []string
}

func (c *captureCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	for _, d := range params.MetricData {
		c.names = append(c.names, *d.MetricName)
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

type fakeFactoryStore struct {
	applied []orders.FactoryUpdate
	err     error
}

func (f *fakeFactoryStore) ApplyFactoryUpdate(ctx context.Context, upd orders.FactoryUpdate) error {
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, upd)
	return nil
}

func TestMapStatus(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{FactoryPrinting, orders.StatusPrinting, true},
		{FactoryShipped, orders.StatusShipped, true},
		{FactoryDelivered, orders.StatusDelivered, true},
		{"packing", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := MapStatus(tc.in)
		assert.Equal(t, tc.ok, ok, "status %q", tc.in)
		assert.Equal(t, tc.want, got, "status %q", tc.in)
	}
}

func TestAuthorized(t *testing.T) {
	r := NewReconciler(&fakeFactoryStore{}, "secret-token", nil, zap.NewNop())
	assert.True(t, r.Authorized("secret-token"))
	assert.False(t, r.Authorized("wrong"))
	assert.False(t, r.Authorized(""))
}

func TestAuthorized_NoTokenConfigured(t *testing.T) {
	r := NewReconciler(&fakeFactoryStore{}, "", nil, zap.NewNop())
	assert.True(t, r.Authorized("anything"))
	assert.True(t, r.Authorized(""))
}

func TestProcess_AppliesMappedUpdate(t *testing.T) {
	store := &fakeFactoryStore{}
	r := NewReconciler(store, "", nil, zap.NewNop())

	err := r.Process(context.Background(), Callback{
		OrderID:    "order-1",
		LineItemID: "li-1",
		Status:     FactoryShipped,
		Notes:      "carrier picked up",
	})
	require.NoError(t, err)

	require.Len(t, store.applied, 1)
	upd := store.applied[0]
	assert.Equal(t, "order-1", upd.OrderID)
	assert.Equal(t, "li-1", upd.LineItemID)
	assert.Equal(t, orders.StatusShipped, upd.OrderStatus)
	assert.Equal(t, FactoryShipped, upd.ItemStatus)
	assert.Equal(t, "carrier picked up", upd.Note)
}

func TestProcess_CountsAppliedUpdates(t *testing.T) {
	store := &fakeFactoryStore{}
	cw := &captureCloudWatch{}
	r := NewReconciler(store, "", metrics.NewPublisher(cw, "Fulfillment", zap.NewNop()), zap.NewNop())

	err := r.Process(context.Background(), Callback{OrderID: "order-1", Status: FactoryPrinting})
	require.NoError(t, err)
	assert.Equal(t, []string{metrics.FactoryUpdates}, cw.names)

	// a rejected callback publishes nothing
	require.Error(t, r.Process(context.Background(), Callback{OrderID: "order-1", Status: "teleported"}))
	assert.Len(t, cw.names, 1)
}

func TestProcess_UnknownStatusRejected(t *testing.T) {
	store := &fakeFactoryStore{}
	r := NewReconciler(store, "", nil, zap.NewNop())

	err := r.Process(context.Background(), Callback{OrderID: "order-1", Status: "teleported"})
	require.Error(t, err)
	assert.Empty(t, store.applied)
}

func TestProcess_NotFoundPropagates(t *testing.T) {
	store := &fakeFactoryStore{err: orders.ErrNotFound}
	r := NewReconciler(store, "", nil, zap.NewNop())

	err := r.Process(context.Background(), Callback{OrderID: "order-ghost", Status: FactoryPrinting})
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestProcess_StoreFailurePropagates(t *testing.T) {
	store := &fakeFactoryStore{err: errors.New("dynamo unavailable")}
	r := NewReconciler(store, "", nil, zap.NewNop())

	err := r.Process(context.Background(), Callback{OrderID: "order-1", Status: FactoryPrinting})
	require.Error(t, err)
	assert.NotErrorIs(t, err, orders.ErrNotFound)
}
