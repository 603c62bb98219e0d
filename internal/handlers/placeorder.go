package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/printloom/fulfillment/internal/validation"
	"go.uber.org/zap"
)

// placeOrderHandler turns a confirmed checkout payload into an order. Render
// dispatch failures never fail the request; they live on the affected line
// item only.
func placeOrderHandler(cfg HandlerConfig, v *validatorv10.Validate) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req validation.PlaceOrderRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		res, err := cfg.Placement.PlaceOrder(c.Request.Context(), &req)
		if err != nil {
			cfg.Logger.Error("order placement failed",
				zap.String("intent_id", req.PaymentIntentID),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "order_creation_failed"})
			return
		}

		status := http.StatusCreated
		if !res.Created {
			// placement retry resolved to the order placed earlier
			status = http.StatusOK
		}
		c.JSON(status, gin.H{"orderId": res.OrderID})
	}
}
