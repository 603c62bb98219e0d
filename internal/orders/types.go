package orders

import "time"

// Order statuses. The common path is monotonic
// (created -> paid -> printing -> shipped -> delivered);
// cancelled and failed are absorbing.
const (
	StatusCreated   = "created"
	StatusPaid      = "paid"
	StatusPrinting  = "printing"
	StatusShipped   = "shipped"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Line-item render statuses.
const (
	RenderPending  = "pending"
	RenderQueued   = "queued"
	RenderFailed   = "failed"
	RenderFinished = "rendered"
)

// OwnerGuest marks orders placed without an authenticated user. Such orders
// can never pass the asset download ownership gate.
const OwnerGuest = "guest"

// Sources for status history entries.
const (
	StatusSourceSystem  = "system"
	StatusSourceFactory = "factory"
	StatusSourcePayment = "payment"
)

// StatusEntry is one append-only audit trail record on an order.
type StatusEntry struct {
	Status     string    `dynamodbav:"status"`
	OccurredAt time.Time `dynamodbav:"occurred_at"`
	Source     string    `dynamodbav:"source"`
	Note       string    `dynamodbav:"note,omitempty"`
}

// Payment is the payment block embedded in an order.
type Payment struct {
	Method   string     `dynamodbav:"method"`
	Amount   float64    `dynamodbav:"amount"`
	Currency string     `dynamodbav:"currency"`
	IntentID string     `dynamodbav:"intent_id"`
	PaidAt   *time.Time `dynamodbav:"paid_at,omitempty"`
}

// Shipping is the shipping block embedded in an order.
type Shipping struct {
	Method  string  `dynamodbav:"method"`
	Cost    float64 `dynamodbav:"cost"`
	Name    string  `dynamodbav:"name"`
	Phone   string  `dynamodbav:"phone"`
	Email   string  `dynamodbav:"email"`
	Address string  `dynamodbav:"address"`
}

// ItemSummary is the denormalized per-item snapshot kept on the order
// document. The line items table holds the mutable source of truth.
type ItemSummary struct {
	LineItemID string  `dynamodbav:"line_item_id"`
	SKU        string  `dynamodbav:"sku"`
	DesignID   string  `dynamodbav:"design_id"`
	Name       string  `dynamodbav:"name,omitempty"`
	Quantity   int     `dynamodbav:"quantity"`
	Price      float64 `dynamodbav:"price"`
}

// Order is the aggregate root stored in the orders table.
type Order struct {
	OrderID       string        `dynamodbav:"order_id"` // PK
	OwnerUID      string        `dynamodbav:"owner_uid"`
	Status        string        `dynamodbav:"status"`
	Payment       Payment       `dynamodbav:"payment"`
	Shipping      Shipping      `dynamodbav:"shipping"`
	Items         []ItemSummary `dynamodbav:"items"`
	StatusHistory []StatusEntry `dynamodbav:"status_history"`
	CreatedAt     time.Time     `dynamodbav:"created_at"`
	UpdatedAt     time.Time     `dynamodbav:"updated_at"`
}

// FulfillmentEvent mirrors StatusEntry, scoped to one line item.
type FulfillmentEvent struct {
	Status     string    `dynamodbav:"status"`
	OccurredAt time.Time `dynamodbav:"occurred_at"`
	Note       string    `dynamodbav:"note,omitempty"`
}

// LineItem is one purchased unit within an order, stored in the line items
// table under (order_id, line_item_id). Render and fulfillment status are
// independent of each other and of the parent order's status.
type LineItem struct {
	OrderID           string             `dynamodbav:"order_id"`     // PK
	LineItemID        string             `dynamodbav:"line_item_id"` // SK
	SKU               string             `dynamodbav:"sku"`
	DesignID          string             `dynamodbav:"design_id"`
	Name              string             `dynamodbav:"name,omitempty"`
	Variants          map[string]string  `dynamodbav:"variants,omitempty"`
	Quantity          int                `dynamodbav:"quantity"`
	Price             float64            `dynamodbav:"price"`
	OwnerUID          string             `dynamodbav:"owner_uid"`
	RenderStatus      string             `dynamodbav:"render_status"`
	RenderSpec        string             `dynamodbav:"render_spec,omitempty"`
	RenderSafeArea    string             `dynamodbav:"render_safe_area,omitempty"`
	RenderSource      string             `dynamodbav:"render_source,omitempty"`
	DesignOwner       string             `dynamodbav:"design_owner,omitempty"`
	DesignChecksum    string             `dynamodbav:"design_checksum,omitempty"`
	RenderError       string             `dynamodbav:"render_error,omitempty"`
	AssetLocation     string             `dynamodbav:"asset_location,omitempty"`
	FulfillmentStatus string             `dynamodbav:"fulfillment_status,omitempty"`
	FulfillmentEvents []FulfillmentEvent `dynamodbav:"fulfillment_events"`
	CreatedAt         time.Time          `dynamodbav:"created_at"`
	UpdatedAt         time.Time          `dynamodbav:"updated_at"`
}

// PaymentRef maps a provider payment intent id to an order id. Written in the
// same transaction as the order, it deduplicates placement retries and serves
// as the webhook's lookup index (the webhook never carries the order id).
type PaymentRef struct {
	IntentID  string    `dynamodbav:"intent_id"` // PK
	OrderID   string    `dynamodbav:"order_id"`
	CreatedAt time.Time `dynamodbav:"created_at"`
	ExpiresAt int64     `dynamodbav:"expires_at,omitempty"` // TTL epoch seconds
}
