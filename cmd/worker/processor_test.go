package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeResultStore struct {
	rendered map[string]string
	failed   map[string]string
	err      error
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{rendered: map[string]string{}, failed: map[string]string{}}
}

func (f *fakeResultStore) MarkRendered(ctx context.Context, orderID, lineItemID, assetLocation string) error {
	if f.err != nil {
		return f.err
	}
	f.rendered[orderID+"|"+lineItemID] = assetLocation
	return nil
}

func (f *fakeResultStore) MarkRenderFailed(ctx context.Context, orderID, lineItemID, message string) error {
	if f.err != nil {
		return f.err
	}
	f.failed[orderID+"|"+lineItemID] = message
	return nil
}

func sqsEvent(bodies ...string) events.SQSEvent {
	ev := events.SQSEvent{}
	for _, b := range bodies {
		ev.Records = append(ev.Records, events.SQSMessage{Body: b})
	}
	return ev
}

func TestHandle_RenderedResult(t *testing.T) {
	store := newFakeResultStore()
	p := NewProcessor(store, zap.NewNop())

	err := p.Handle(context.Background(), sqsEvent(
		`{"order_id":"order-1","line_item_id":"li-1","status":"rendered","asset_location":"s3://renders/li-1.pdf"}`,
	))
	require.NoError(t, err)
	assert.Equal(t, "s3://renders/li-1.pdf", store.rendered["order-1|li-1"])
}

func TestHandle_FailedResult(t *testing.T) {
	store := newFakeResultStore()
	p := NewProcessor(store, zap.NewNop())

	err := p.Handle(context.Background(), sqsEvent(
		`{"order_id":"order-1","line_item_id":"li-1","status":"failed","error":"font missing"}`,
	))
	require.NoError(t, err)
	assert.Equal(t, "font missing", store.failed["order-1|li-1"])
}

func TestHandle_FailedResultDefaultsReason(t *testing.T) {
	store := newFakeResultStore()
	p := NewProcessor(store, zap.NewNop())

	err := p.Handle(context.Background(), sqsEvent(
		`{"order_id":"order-1","line_item_id":"li-1","status":"failed"}`,
	))
	require.NoError(t, err)
	assert.Equal(t, "render engine reported failure", store.failed["order-1|li-1"])
}

func TestHandle_BatchProcessesAllRecords(t *testing.T) {
	store := newFakeResultStore()
	p := NewProcessor(store, zap.NewNop())

	err := p.Handle(context.Background(), sqsEvent(
		`{"order_id":"order-1","line_item_id":"li-1","status":"rendered","asset_location":"s3://renders/li-1.pdf"}`,
		`{"order_id":"order-1","line_item_id":"li-2","status":"failed","error":"timeout"}`,
	))
	require.NoError(t, err)
	assert.Len(t, store.rendered, 1)
	assert.Len(t, store.failed, 1)
}

func TestHandle_Rejections(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{not json`},
		{"missing identifiers", `{"status":"rendered","asset_location":"s3://b/k"}`},
		{"rendered without asset", `{"order_id":"order-1","line_item_id":"li-1","status":"rendered"}`},
		{"unknown status", `{"order_id":"order-1","line_item_id":"li-1","status":"exploded"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeResultStore()
			p := NewProcessor(store, zap.NewNop())
			err := p.Handle(context.Background(), sqsEvent(tc.body))
			require.Error(t, err)
			assert.Empty(t, store.rendered)
			assert.Empty(t, store.failed)
		})
	}
}

func TestHandle_StoreFailureRetriesBatch(t *testing.T) {
	store := newFakeResultStore()
	store.err = errors.New("dynamo unavailable")
	p := NewProcessor(store, zap.NewNop())

	err := p.Handle(context.Background(), sqsEvent(
		`{"order_id":"order-1","line_item_id":"li-1","status":"rendered","asset_location":"s3://renders/li-1.pdf"}`,
	))
	require.Error(t, err)
}
