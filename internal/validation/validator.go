package validation

import (
	"fmt"
	"math"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with struct-level rules registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// the claimed amount must equal the items total plus the shipping quote
	v.RegisterStructValidation(placeOrderStructValidation, PlaceOrderRequest{})
	v.RegisterStructValidation(createIntentStructValidation, CreateIntentRequest{})

	return v
}

func placeOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(PlaceOrderRequest)
	checkAmount(sl, req.Amount, req.Shipping.Cost, req.Items)
}

func createIntentStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateIntentRequest)
	checkAmount(sl, req.Amount, req.Shipping.Cost, req.Items)
}

// checkAmount compares in cents to avoid float rounding issues.
func checkAmount(sl validatorv10.StructLevel, amount, shippingCost float64, items []CheckoutItem) {
	var sum float64
	for _, it := range items {
		sum += float64(it.Quantity) * it.Price
	}
	sum += shippingCost

	sumCents := int(math.Round(sum * 100))
	amountCents := int(math.Round(amount * 100))
	if sumCents != amountCents {
		sl.ReportError(amount, "amount", "Amount", "amount_match_items",
			fmt.Sprintf("items+shipping sum %.2f != amount %.2f", sum, amount))
	}
}
