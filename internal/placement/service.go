package placement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/printloom/fulfillment/internal/metrics"
	"github.com/printloom/fulfillment/internal/orders"
	"github.com/printloom/fulfillment/internal/render"
	"github.com/printloom/fulfillment/internal/validation"
	"go.uber.org/zap"
)

// paymentRefTTL bounds how long a payment intent blocks re-placement.
const paymentRefTTL = 48 * time.Hour

// OrderCreator is the slice of the orders store the orchestrator needs.
type OrderCreator interface {
	CreateOrderTransaction(ctx context.Context, order orders.Order, items []orders.LineItem, refTTL time.Duration) error
	LookupOrderIDByIntent(ctx context.Context, intentID string) (string, error)
	MarkRenderQueued(ctx context.Context, orderID, lineItemID string, prep orders.RenderPrep) error
	MarkRenderFailed(ctx context.Context, orderID, lineItemID, message string) error
}

// Orchestrator turns a confirmed checkout payload into an order plus line
// items and dispatches one render task per item with per-item failure
// isolation.
type Orchestrator struct {
	store      OrderCreator
	dispatcher render.Dispatcher
	metrics    *metrics.Publisher
	logger     *zap.Logger
	nowFunc    func() time.Time
	newID      func() string
}

func NewOrchestrator(store OrderCreator, dispatcher render.Dispatcher, m *metrics.Publisher, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:      store,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger,
		nowFunc:    time.Now,
		newID:      uuid.NewString,
	}
}

// Result reports the placed order and whether this call created it, or a
// retry resolved to an order placed earlier for the same payment intent.
type Result struct {
	OrderID string
	Created bool
}

// PlaceOrder creates the order aggregate and dispatches render tasks.
//
// The order, all line items and the payment ref commit in one transaction:
// the whole write succeeds or the whole request fails. Render dispatch runs
// afterwards, sequentially per item; any dispatch failure is captured on that
// line item alone and never fails the request or touches the order status.
func (o *Orchestrator) PlaceOrder(ctx context.Context, req *validation.PlaceOrderRequest) (*Result, error) {
	now := o.nowFunc()
	orderID := o.newID()

	owner := req.UserID
	if owner == "" {
		owner = orders.OwnerGuest
	}

	method := req.PaymentMethod
	if method == "" {
		method = "card"
	}

	order := orders.Order{
		OrderID:  orderID,
		OwnerUID: owner,
		// The checkout payload carries a provider payment reference obtained
		// after client-side confirmation, so the order starts out paid. The
		// provider's webhook stream remains authoritative and may later
		// overwrite this.
		Status: orders.StatusPaid,
		Payment: orders.Payment{
			Method:   method,
			Amount:   req.Amount,
			Currency: req.Currency,
			IntentID: req.PaymentIntentID,
		},
		Shipping: orders.Shipping{
			Method:  req.Shipping.Method,
			Cost:    req.Shipping.Cost,
			Name:    req.Shipping.Name,
			Phone:   req.Shipping.Phone,
			Email:   req.Shipping.Email,
			Address: req.Shipping.Address,
		},
		StatusHistory: []orders.StatusEntry{
			{Status: orders.StatusPaid, OccurredAt: now, Source: orders.StatusSourceSystem},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	items := make([]orders.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		lineItemID := o.newID()
		order.Items = append(order.Items, orders.ItemSummary{
			LineItemID: lineItemID,
			SKU:        it.SKU,
			DesignID:   it.DesignID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			Price:      it.Price,
		})
		items = append(items, orders.LineItem{
			OrderID:           orderID,
			LineItemID:        lineItemID,
			SKU:               it.SKU,
			DesignID:          it.DesignID,
			Name:              it.Name,
			Variants:          it.Variants,
			Quantity:          it.Quantity,
			Price:             it.Price,
			OwnerUID:          owner,
			RenderStatus:      orders.RenderPending,
			FulfillmentEvents: []orders.FulfillmentEvent{},
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}

	err := o.store.CreateOrderTransaction(ctx, order, items, paymentRefTTL)
	if errors.Is(err, orders.ErrDuplicateIntent) {
		existingID, lookupErr := o.store.LookupOrderIDByIntent(ctx, req.PaymentIntentID)
		if lookupErr != nil || existingID == "" {
			return nil, fmt.Errorf("placement retry for intent %s could not resolve original order: %w", req.PaymentIntentID, err)
		}
		o.logger.Info("duplicate placement resolved to existing order",
			zap.String("intent_id", req.PaymentIntentID),
			zap.String("order_id", existingID))
		return &Result{OrderID: existingID, Created: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	o.metrics.Count(ctx, metrics.OrdersPlaced, 1)

	// Sequential, not concurrent: a failing dispatch call stays scoped to a
	// single item and retries cannot double-dispatch siblings.
	for _, item := range items {
		o.dispatchItem(ctx, item)
	}

	o.logger.Info("order placed",
		zap.String("order_id", orderID),
		zap.Int("items", len(items)))
	return &Result{OrderID: orderID, Created: true}, nil
}

// dispatchItem prepares and enqueues one render task. Failures are recorded
// on the line item and swallowed.
func (o *Orchestrator) dispatchItem(ctx context.Context, item orders.LineItem) {
	prep, err := o.dispatcher.PrepareRenderTask(ctx, render.TaskInput{
		DesignID:   item.DesignID,
		SKU:        item.SKU,
		OrderID:    item.OrderID,
		LineItemID: item.LineItemID,
	})
	if err != nil {
		o.failItem(ctx, item, "prepare render task", err)
		return
	}

	if err := o.store.MarkRenderQueued(ctx, item.OrderID, item.LineItemID, orders.RenderPrep{
		Spec:        prep.PrintSpec,
		SafeArea:    prep.SafeArea,
		Source:      prep.Source,
		DesignOwner: prep.DesignOwner,
		Checksum:    prep.DesignChecksum,
	}); err != nil {
		o.failItem(ctx, item, "record queued render", err)
		return
	}

	if err := o.dispatcher.EnqueueRenderTask(ctx, prep.Payload); err != nil {
		o.failItem(ctx, item, "enqueue render task", err)
	}
}

func (o *Orchestrator) failItem(ctx context.Context, item orders.LineItem, op string, cause error) {
	o.metrics.Count(ctx, metrics.RenderDispatchFailed, 1)
	o.logger.Warn("render dispatch failed for line item",
		zap.String("order_id", item.OrderID),
		zap.String("line_item_id", item.LineItemID),
		zap.String("operation", op),
		zap.Error(cause))

	msg := fmt.Sprintf("%s: %v", op, cause)
	if err := o.store.MarkRenderFailed(ctx, item.OrderID, item.LineItemID, msg); err != nil {
		o.logger.Error("failed to record render failure",
			zap.String("order_id", item.OrderID),
			zap.String("line_item_id", item.LineItemID),
			zap.Error(err))
	}
}
