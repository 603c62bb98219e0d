package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/printloom/fulfillment/internal/metrics"
	"github.com/printloom/fulfillment/internal/orders"
	"go.uber.org/zap"
)

// EventKind is the closed set of webhook event variants. Anything the
// provider sends outside this set parses as EventUnknown and is ignored,
// never rejected.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventPaymentSucceeded
	EventPaymentFailed
)

// Event is one decoded provider webhook event.
type Event struct {
	ID       string
	Kind     EventKind
	IntentID string
}

// ErrBadSignature rejects webhook deliveries whose signature does not match
// the raw body.
var ErrBadSignature = errors.New("webhook signature mismatch")

// rawEvent mirrors the provider's wire shape.
type rawEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes the raw webhook body into the closed event union.
// Unrecognized event types are not an error; they map to EventUnknown.
func ParseEvent(body []byte) (Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return Event{}, fmt.Errorf("decode webhook event: %w", err)
	}

	ev := Event{ID: raw.ID, IntentID: raw.Data.Object.ID}
	switch raw.Type {
	case "payment_intent.succeeded":
		ev.Kind = EventPaymentSucceeded
	case "payment_intent.payment_failed":
		ev.Kind = EventPaymentFailed
	default:
		ev.Kind = EventUnknown
	}
	return ev, nil
}

// VerifySignature checks the provider signature header
// ("t=<unix>,v1=<hex hmac>") against the raw request body. The MAC covers
// "<timestamp>.<body>" so the timestamp cannot be swapped.
func VerifySignature(body []byte, header, secret string) error {
	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sig = v
		}
	}
	if ts == "" || sig == "" {
		return ErrBadSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrBadSignature
	}
	return nil
}

// PaymentStatusStore is the slice of the orders store the reconciler needs.
type PaymentStatusStore interface {
	LookupOrderIDByIntent(ctx context.Context, intentID string) (string, error)
	SetPaymentStatus(ctx context.Context, orderID, newStatus string, paidAt *time.Time, note string) error
}

// Reconciler applies provider webhook events to order payment status. Every
// mutation is a conditional field overwrite keyed by the stored payment
// intent id, so at-least-once and out-of-order delivery both converge.
type Reconciler struct {
	store   PaymentStatusStore
	metrics *metrics.Publisher
	logger  *zap.Logger
	nowFunc func() time.Time
}

func NewReconciler(store PaymentStatusStore, m *metrics.Publisher, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:   store,
		metrics: m,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// Process applies one decoded event. An event referencing an unknown intent
// is a silent no-op: the webhook may outrun order placement, and the next
// provider retry reconciles it.
func (r *Reconciler) Process(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventPaymentSucceeded:
		now := r.nowFunc()
		return r.apply(ctx, ev, orders.StatusPaid, &now, "payment confirmed by provider")
	case EventPaymentFailed:
		return r.apply(ctx, ev, orders.StatusCancelled, nil, "payment failed at provider")
	default:
		r.logger.Info("ignoring webhook event of unhandled kind", zap.String("event_id", ev.ID))
		return nil
	}
}

func (r *Reconciler) apply(ctx context.Context, ev Event, status string, paidAt *time.Time, note string) error {
	orderID, err := r.store.LookupOrderIDByIntent(ctx, ev.IntentID)
	if err != nil {
		return fmt.Errorf("lookup order for intent %s: %w", ev.IntentID, err)
	}
	if orderID == "" {
		r.logger.Info("webhook event references no known order",
			zap.String("event_id", ev.ID),
			zap.String("intent_id", ev.IntentID))
		return nil
	}

	err = r.store.SetPaymentStatus(ctx, orderID, status, paidAt, note)
	if errors.Is(err, orders.ErrStaleStatus) {
		// replayed or late delivery; state already converged
		r.logger.Info("webhook event already applied",
			zap.String("event_id", ev.ID),
			zap.String("order_id", orderID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("set payment status for order %s: %w", orderID, err)
	}

	r.metrics.Count(ctx, metrics.WebhookEvents, 1)
	r.logger.Info("payment status reconciled",
		zap.String("order_id", orderID),
		zap.String("status", status))
	return nil
}
