package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/printloom/fulfillment/internal/awsapi"
)

var (
	// ErrNotFound indicates the order or line item a mutation targeted does not exist.
	ErrNotFound = errors.New("order or line item not found")
	// ErrDuplicateIntent indicates an order already exists for the payment intent.
	ErrDuplicateIntent = errors.New("order already placed for payment intent")
	// ErrStaleStatus indicates a conditional status overwrite matched the
	// current value, so nothing was written. Webhook replays land here.
	ErrStaleStatus = errors.New("status unchanged/conditional failed")
)

// Store encapsulates operations on the orders, line items and payment refs tables.
type Store struct {
	client    awsapi.DynamoDBAPI
	ordersTbl string
	itemsTbl  string
	refsTbl   string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store bound to its three tables.
func NewStore(client awsapi.DynamoDBAPI, ordersTable, itemsTable, refsTable string) *Store {
	return &Store{
		client:    client,
		ordersTbl: ordersTable,
		itemsTbl:  itemsTable,
		refsTbl:   refsTable,
		nowFunc:   time.Now,
	}
}

// CreateOrderTransaction atomically creates:
//   - a payment ref in the refs table (ConditionExpression attribute_not_exists(intent_id))
//   - the order document
//   - one line item document per item
//
// Everything commits or nothing does. A second placement carrying the same
// payment intent cancels on the ref condition and returns ErrDuplicateIntent;
// callers resolve the original order via LookupOrderIDByIntent.
func (s *Store) CreateOrderTransaction(ctx context.Context, order Order, items []LineItem, refTTL time.Duration) error {
	now := s.nowFunc()

	ref := PaymentRef{
		IntentID:  order.Payment.IntentID,
		OrderID:   order.OrderID,
		CreatedAt: now,
	}
	if refTTL > 0 {
		ref.ExpiresAt = now.Add(refTTL).Unix()
	}
	refMap, err := attributevalue.MarshalMap(ref)
	if err != nil {
		return fmt.Errorf("marshal payment ref: %w", err)
	}

	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	transactItems := []types.TransactWriteItem{
		{
			Put: &types.Put{
				TableName:           &s.refsTbl,
				Item:                refMap,
				ConditionExpression: awsString("attribute_not_exists(intent_id)"),
			},
		},
		{
			Put: &types.Put{
				TableName: &s.ordersTbl,
				Item:      orderMap,
			},
		},
	}

	for i := range items {
		it := items[i]
		if it.CreatedAt.IsZero() {
			it.CreatedAt = now
		}
		it.UpdatedAt = now
		if it.FulfillmentEvents == nil {
			it.FulfillmentEvents = []FulfillmentEvent{}
		}
		itemMap, err := attributevalue.MarshalMap(it)
		if err != nil {
			return fmt.Errorf("marshal line item %s: %w", it.LineItemID, err)
		}
		transactItems = append(transactItems, types.TransactWriteItem{
			Put: &types.Put{
				TableName: &s.itemsTbl,
				Item:      itemMap,
			},
		})
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: transactItems,
	})
	if err != nil {
		// Only a condition failure means a duplicate intent. Cancellations
		// from conflicts or throttling stay retryable errors.
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			for _, reason := range tce.CancellationReasons {
				if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
					return fmt.Errorf("%w: %s", ErrDuplicateIntent, order.Payment.IntentID)
				}
			}
			return fmt.Errorf("transact write canceled: %w", err)
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// GetOrder fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.ordersTbl,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// GetLineItem fetches one line item. Returns (nil, nil) if not found.
func (s *Store) GetLineItem(ctx context.Context, orderID, lineItemID string) (*LineItem, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.itemsTbl,
		Key:       lineItemKey(orderID, lineItemID),
	})
	if err != nil {
		return nil, fmt.Errorf("get line item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var li LineItem
	if err := attributevalue.UnmarshalMap(out.Item, &li); err != nil {
		return nil, fmt.Errorf("unmarshal line item: %w", err)
	}
	return &li, nil
}

// LookupOrderIDByIntent resolves a provider payment intent id to an order id.
// Returns "" with no error when no ref exists.
func (s *Store) LookupOrderIDByIntent(ctx context.Context, intentID string) (string, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.refsTbl,
		Key: map[string]types.AttributeValue{
			"intent_id": &types.AttributeValueMemberS{Value: intentID},
		},
	})
	if err != nil {
		return "", fmt.Errorf("get payment ref: %w", err)
	}
	if len(out.Item) == 0 {
		return "", nil
	}
	var ref PaymentRef
	if err := attributevalue.UnmarshalMap(out.Item, &ref); err != nil {
		return "", fmt.Errorf("unmarshal payment ref: %w", err)
	}
	return ref.OrderID, nil
}

// SetPaymentStatus overwrites the order status from the payment provider's
// event stream and appends the matching history entry. The write is
// conditional on the status actually changing, so replaying the same event
// is a no-op surfaced as ErrStaleStatus, with no duplicate history entry.
func (s *Store) SetPaymentStatus(ctx context.Context, orderID, newStatus string, paidAt *time.Time, note string) error {
	now := s.nowFunc()

	entry, err := marshalStatusEntry(StatusEntry{
		Status:     newStatus,
		OccurredAt: now,
		Source:     StatusSourcePayment,
		Note:       note,
	})
	if err != nil {
		return err
	}

	updateExpr := "SET #s = :new, updated_at = :ua, status_history = list_append(status_history, :h)"
	values := map[string]types.AttributeValue{
		":new": &types.AttributeValueMemberS{Value: newStatus},
		":ua":  &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		":h":   entry,
	}
	if paidAt != nil {
		updateExpr += ", payment.paid_at = :pa"
		values[":pa"] = &types.AttributeValueMemberS{Value: paidAt.Format(time.RFC3339Nano)}
	}

	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.ordersTbl,
		Key:                       map[string]types.AttributeValue{"order_id": &types.AttributeValueMemberS{Value: orderID}},
		UpdateExpression:          &updateExpr,
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
		ConditionExpression:       awsString("attribute_exists(order_id) AND #s <> :new"),
	})
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) || hasAPIErrorCode(err, "ConditionalCheckFailedException") {
			return ErrStaleStatus
		}
		return fmt.Errorf("set payment status: %w", err)
	}
	return nil
}

// RenderPrep carries the render metadata merged into a line item when its
// render task is accepted for dispatch.
type RenderPrep struct {
	Spec        string
	SafeArea    string
	Source      string
	DesignOwner string
	Checksum    string
}

// MarkRenderQueued merges render metadata and render_status=queued into one line item.
func (s *Store) MarkRenderQueued(ctx context.Context, orderID, lineItemID string, prep RenderPrep) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName:        &s.itemsTbl,
		Key:              lineItemKey(orderID, lineItemID),
		UpdateExpression: awsString("SET render_status = :rs, render_spec = :spec, render_safe_area = :sa, render_source = :src, design_owner = :do, design_checksum = :cs, updated_at = :ua"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rs":   &types.AttributeValueMemberS{Value: RenderQueued},
			":spec": &types.AttributeValueMemberS{Value: prep.Spec},
			":sa":   &types.AttributeValueMemberS{Value: prep.SafeArea},
			":src":  &types.AttributeValueMemberS{Value: prep.Source},
			":do":   &types.AttributeValueMemberS{Value: prep.DesignOwner},
			":cs":   &types.AttributeValueMemberS{Value: prep.Checksum},
			":ua":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		ConditionExpression: awsString("attribute_exists(order_id)"),
	}
	return s.updateLineItem(ctx, input, "mark render queued")
}

// MarkRenderFailed records a render dispatch or render execution failure on
// one line item. The parent order is never touched.
func (s *Store) MarkRenderFailed(ctx context.Context, orderID, lineItemID, message string) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName:        &s.itemsTbl,
		Key:              lineItemKey(orderID, lineItemID),
		UpdateExpression: awsString("SET render_status = :rs, render_error = :err, updated_at = :ua"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rs":  &types.AttributeValueMemberS{Value: RenderFailed},
			":err": &types.AttributeValueMemberS{Value: message},
			":ua":  &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		ConditionExpression: awsString("attribute_exists(order_id)"),
	}
	return s.updateLineItem(ctx, input, "mark render failed")
}

// MarkRendered records a finished render asset on one line item. The write is
// a pure overwrite, so at-least-once result delivery converges.
func (s *Store) MarkRendered(ctx context.Context, orderID, lineItemID, assetLocation string) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName:        &s.itemsTbl,
		Key:              lineItemKey(orderID, lineItemID),
		UpdateExpression: awsString("SET render_status = :rs, asset_location = :loc, updated_at = :ua"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rs":  &types.AttributeValueMemberS{Value: RenderFinished},
			":loc": &types.AttributeValueMemberS{Value: assetLocation},
			":ua":  &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		ConditionExpression: awsString("attribute_exists(order_id)"),
	}
	return s.updateLineItem(ctx, input, "mark rendered")
}

// FactoryUpdate is one production-partner callback applied to the store.
// OrderStatus is the mapped internal status; ItemStatus keeps the factory's
// raw vocabulary on the line item. LineItemID may be empty.
type FactoryUpdate struct {
	OrderID     string
	LineItemID  string
	OrderStatus string
	ItemStatus  string
	Note        string
}

// ApplyFactoryUpdate advances the order status and, when a line item is
// named, its fulfillment status in a single transaction: both change or
// neither does. Replays are not deduplicated and append duplicate history
// entries. A missing order or line item cancels the transaction and is
// surfaced as ErrNotFound.
func (s *Store) ApplyFactoryUpdate(ctx context.Context, upd FactoryUpdate) error {
	now := s.nowFunc()

	entry, err := marshalStatusEntry(StatusEntry{
		Status:     upd.OrderStatus,
		OccurredAt: now,
		Source:     StatusSourceFactory,
		Note:       upd.Note,
	})
	if err != nil {
		return err
	}

	transactItems := []types.TransactWriteItem{
		{
			Update: &types.Update{
				TableName:        &s.ordersTbl,
				Key:              map[string]types.AttributeValue{"order_id": &types.AttributeValueMemberS{Value: upd.OrderID}},
				UpdateExpression: awsString("SET #s = :s, updated_at = :ua, status_history = list_append(status_history, :h)"),
				ExpressionAttributeNames: map[string]string{
					"#s": "status",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":s":  &types.AttributeValueMemberS{Value: upd.OrderStatus},
					":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
					":h":  entry,
				},
				ConditionExpression: awsString("attribute_exists(order_id)"),
			},
		},
	}

	if upd.LineItemID != "" {
		ev, err := marshalFulfillmentEvent(FulfillmentEvent{
			Status:     upd.ItemStatus,
			OccurredAt: now,
			Note:       upd.Note,
		})
		if err != nil {
			return err
		}
		transactItems = append(transactItems, types.TransactWriteItem{
			Update: &types.Update{
				TableName:        &s.itemsTbl,
				Key:              lineItemKey(upd.OrderID, upd.LineItemID),
				UpdateExpression: awsString("SET fulfillment_status = :fs, updated_at = :ua, fulfillment_events = list_append(if_not_exists(fulfillment_events, :empty), :ev)"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":fs":    &types.AttributeValueMemberS{Value: upd.ItemStatus},
					":ua":    &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
					":ev":    ev,
					":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
				},
				ConditionExpression: awsString("attribute_exists(order_id)"),
			},
		})
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: transactItems,
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			for _, reason := range tce.CancellationReasons {
				if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
					return ErrNotFound
				}
			}
			return fmt.Errorf("factory update canceled: %w", err)
		}
		return fmt.Errorf("factory update transact write: %w", err)
	}
	return nil
}

func (s *Store) updateLineItem(ctx context.Context, input *dyn.UpdateItemInput, op string) error {
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) || hasAPIErrorCode(err, "ConditionalCheckFailedException") {
			return ErrNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// hasAPIErrorCode matches AWS errors that arrive as generic API errors
// instead of the modeled exception types.
func hasAPIErrorCode(err error, code string) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == code
}

func lineItemKey(orderID, lineItemID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id":     &types.AttributeValueMemberS{Value: orderID},
		"line_item_id": &types.AttributeValueMemberS{Value: lineItemID},
	}
}

// marshalStatusEntry wraps one history entry as a single-element list for list_append.
func marshalStatusEntry(e StatusEntry) (types.AttributeValue, error) {
	m, err := attributevalue.MarshalMap(e)
	if err != nil {
		return nil, fmt.Errorf("marshal status entry: %w", err)
	}
	return &types.AttributeValueMemberL{Value: []types.AttributeValue{&types.AttributeValueMemberM{Value: m}}}, nil
}

func marshalFulfillmentEvent(e FulfillmentEvent) (types.AttributeValue, error) {
	m, err := attributevalue.MarshalMap(e)
	if err != nil {
		return nil, fmt.Errorf("marshal fulfillment event: %w", err)
	}
	return &types.AttributeValueMemberL{Value: []types.AttributeValue{&types.AttributeValueMemberM{Value: m}}}, nil
}

func awsString(s string) *string { return &s }
