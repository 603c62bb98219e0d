package main

// Render result statuses reported by the execution engine.
const (
	ResultRendered = "rendered"
	ResultFailed   = "failed"
)

// ResultMessage is the payload the render execution engine publishes to the
// result queue once a render task finishes.
type ResultMessage struct {
	OrderID       string `json:"order_id"`
	LineItemID    string `json:"line_item_id"`
	Status        string `json:"status"` // rendered | failed
	AssetLocation string `json:"asset_location,omitempty"`
	Error         string `json:"error,omitempty"`
}
