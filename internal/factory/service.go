package factory

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/printloom/fulfillment/internal/metrics"
	"github.com/printloom/fulfillment/internal/orders"
	"go.uber.org/zap"
)

// Factory status vocabulary as delivered on the callback.
const (
	FactoryPrinting  = "printing"
	FactoryShipped   = "shipped"
	FactoryDelivered = "delivered"
)

// Callback is the authenticated push notification from the production partner.
type Callback struct {
	OrderID    string `json:"orderId" validate:"required"`
	LineItemID string `json:"lineItemId"`
	Status     string `json:"status" validate:"required,oneof=printing shipped delivered"`
	Notes      string `json:"notes"`
}

// statusMap translates the factory's vocabulary into order statuses.
var statusMap = map[string]string{
	FactoryPrinting:  orders.StatusPrinting,
	FactoryShipped:   orders.StatusShipped,
	FactoryDelivered: orders.StatusDelivered,
}

// MapStatus returns the internal order status for a factory status, or
// ok=false for anything outside the vocabulary.
func MapStatus(factoryStatus string) (string, bool) {
	mapped, ok := statusMap[factoryStatus]
	return mapped, ok
}

// FactoryStore is the slice of the orders store the reconciler needs.
type FactoryStore interface {
	ApplyFactoryUpdate(ctx context.Context, upd orders.FactoryUpdate) error
}

// Reconciler applies production-partner callbacks to order and line-item
// fulfillment state. Order and line item advance in one transaction or not
// at all. Repeated deliveries are not deduplicated; replays append duplicate
// audit entries while the status fields converge.
type Reconciler struct {
	store   FactoryStore
	token   string
	metrics *metrics.Publisher
	logger  *zap.Logger
}

// NewReconciler builds a Reconciler. An empty token disables the shared
// secret check.
func NewReconciler(store FactoryStore, token string, m *metrics.Publisher, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:   store,
		token:   token,
		metrics: m,
		logger:  logger,
	}
}

// Authorized verifies the shared-secret header token. Bypassed when no token
// is configured.
func (r *Reconciler) Authorized(headerToken string) bool {
	if r.token == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(headerToken), []byte(r.token)) == 1
}

// Process validates the callback vocabulary and applies it transactionally.
// Returns orders.ErrNotFound when the order (or a named line item) does not
// exist.
func (r *Reconciler) Process(ctx context.Context, cb Callback) error {
	mapped, ok := MapStatus(cb.Status)
	if !ok {
		return fmt.Errorf("unknown factory status: %q", cb.Status)
	}

	err := r.store.ApplyFactoryUpdate(ctx, orders.FactoryUpdate{
		OrderID:     cb.OrderID,
		LineItemID:  cb.LineItemID,
		OrderStatus: mapped,
		ItemStatus:  cb.Status,
		Note:        cb.Notes,
	})
	if err != nil {
		return err
	}

	r.metrics.Count(ctx, metrics.FactoryUpdates, 1)
	r.logger.Info("factory status applied",
		zap.String("order_id", cb.OrderID),
		zap.String("line_item_id", cb.LineItemID),
		zap.String("status", mapped))
	return nil
}
