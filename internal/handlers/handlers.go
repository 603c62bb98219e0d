package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/printloom/fulfillment/internal/assets"
	"github.com/printloom/fulfillment/internal/factory"
	"github.com/printloom/fulfillment/internal/payments"
	"github.com/printloom/fulfillment/internal/placement"
	"github.com/printloom/fulfillment/internal/validation"
	"go.uber.org/zap"
)

// HandlerConfig groups dependencies for the fulfillment HTTP surface. All
// clients are constructed once at process start and injected here.
type HandlerConfig struct {
	Placement     *placement.Orchestrator
	Payments      *payments.Client
	Webhook       *payments.Reconciler
	WebhookSecret string
	Factory       *factory.Reconciler
	Assets        *assets.Authorizer
	Logger        *zap.Logger
}

// RegisterRoutes registers the fulfillment routes.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()

	r.Use(corsMiddleware())

	r.POST("/payments/intent", createIntentHandler(cfg, v))
	r.POST("/payments/webhook", webhookHandler(cfg))
	r.POST("/orders", placeOrderHandler(cfg, v))
	r.POST("/factory/status", factoryStatusHandler(cfg, v))
	r.GET("/assets/download", assetDownloadHandler(cfg))
}

// corsMiddleware answers preflight with permissive headers; every endpoint is
// called either from the storefront or by external partners.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Pay-Signature, X-Factory-Token")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
