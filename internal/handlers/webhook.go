package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/printloom/fulfillment/internal/payments"
	"go.uber.org/zap"
)

// signatureHeader carries the provider's webhook signature.
const signatureHeader = "Pay-Signature"

// webhookHandler consumes the payment provider's at-least-once event stream.
// It returns 200 for every recognized-but-irrelevant event to stop provider
// retry storms; 400 covers signature and parse failures only.
func webhookHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_body"})
			return
		}

		if cfg.WebhookSecret != "" {
			if err := payments.VerifySignature(body, c.GetHeader(signatureHeader), cfg.WebhookSecret); err != nil {
				cfg.Logger.Warn("webhook signature rejected", zap.Error(err))
				c.JSON(http.StatusBadRequest, gin.H{"error": "bad_signature"})
				return
			}
		}

		ev, err := payments.ParseEvent(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed_event"})
			return
		}

		if err := cfg.Webhook.Process(c.Request.Context(), ev); err != nil {
			cfg.Logger.Error("webhook processing failed",
				zap.String("event_id", ev.ID),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "processing_failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
