package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/printloom/fulfillment/internal/factory"
	"github.com/printloom/fulfillment/internal/orders"
	"github.com/printloom/fulfillment/internal/validation"
	"go.uber.org/zap"
)

// factoryTokenHeader carries the production partner's shared secret.
const factoryTokenHeader = "X-Factory-Token"

// factoryStatusHandler consumes authenticated production-partner callbacks.
func factoryStatusHandler(cfg HandlerConfig, v *validatorv10.Validate) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Factory.Authorized(c.GetHeader(factoryTokenHeader)) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var cb factory.Callback
		if err := validation.BindAndValidate(c, &cb, v); err != nil {
			return
		}

		err := cfg.Factory.Process(c.Request.Context(), cb)
		if errors.Is(err, orders.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
			return
		}
		if err != nil {
			cfg.Logger.Error("factory callback failed",
				zap.String("order_id", cb.OrderID),
				zap.String("line_item_id", cb.LineItemID),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
