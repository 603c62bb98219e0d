package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/printloom/fulfillment/internal/payments"
	"github.com/printloom/fulfillment/internal/validation"
	"go.uber.org/zap"
)

// createIntentHandler turns a cart total plus shipping quote into a provider
// payment intent whose client secret the storefront uses to confirm payment.
func createIntentHandler(cfg HandlerConfig, v *validatorv10.Validate) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req validation.CreateIntentRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		intent, err := cfg.Payments.CreateIntent(c.Request.Context(), payments.CreateIntentInput{
			Amount:   req.Amount,
			Currency: req.Currency,
			UserID:   req.UserID,
		})
		if err != nil {
			cfg.Logger.Error("payment intent creation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "provider_error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"id":           intent.ID,
			"clientSecret": intent.ClientSecret,
		})
	}
}
