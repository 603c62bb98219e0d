package validation

// CheckoutItem is a single purchased unit in a checkout payload.
type CheckoutItem struct {
	SKU      string            `json:"sku" validate:"required"`
	DesignID string            `json:"designId" validate:"required"`
	Name     string            `json:"name,omitempty"`
	Variants map[string]string `json:"variants,omitempty"` // e.g. size/color/material
	Quantity int               `json:"quantity" validate:"required,min=1"`
	Price    float64           `json:"price" validate:"gte=0"` // per unit
}

// ShippingBlock carries method, cost and contact details.
type ShippingBlock struct {
	Method  string  `json:"method" validate:"required"`
	Cost    float64 `json:"cost" validate:"gte=0"`
	Name    string  `json:"name" validate:"required"`
	Phone   string  `json:"phone" validate:"required"`
	Email   string  `json:"email" validate:"required,email"`
	Address string  `json:"address" validate:"required"`
}

// PlaceOrderRequest is the payload for POST /orders. The payment intent id
// arrives already confirmed client-side.
type PlaceOrderRequest struct {
	PaymentIntentID string         `json:"paymentIntentId" validate:"required"`
	PaymentMethod   string         `json:"paymentMethod,omitempty"`
	Amount          float64        `json:"amount" validate:"required,gt=0"`
	Currency        string         `json:"currency" validate:"required,len=3"`
	Shipping        ShippingBlock  `json:"shipping" validate:"required"`
	Items           []CheckoutItem `json:"items" validate:"required,min=1,dive"`
	UserID          string         `json:"userId,omitempty"`
}

// CreateIntentRequest is the payload for POST /payments/intent.
type CreateIntentRequest struct {
	Amount   float64        `json:"amount" validate:"required,gt=0"`
	Currency string         `json:"currency" validate:"required,len=3"`
	Shipping ShippingBlock  `json:"shipping" validate:"required"`
	Items    []CheckoutItem `json:"items" validate:"required,min=1,dive"`
	UserID   string         `json:"userId,omitempty"`
}
