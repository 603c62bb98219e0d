package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/printloom/fulfillment/internal/assets"
	"github.com/printloom/fulfillment/internal/orders"
	"go.uber.org/zap"
)

// assetDownloadHandler issues a short-lived signed URL for a finished print
// asset to the order's recorded owner.
func assetDownloadHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID := c.Query("orderId")
		lineItemID := c.Query("lineItemId")
		if orderID == "" || lineItemID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_identifiers"})
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing_bearer_token"})
			return
		}

		grant, err := cfg.Assets.Authorize(c.Request.Context(), token, orderID, lineItemID)
		switch {
		case errors.Is(err, assets.ErrUnauthenticated):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
		case errors.Is(err, assets.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		case errors.Is(err, orders.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		case errors.Is(err, assets.ErrAssetNotReady):
			c.JSON(http.StatusConflict, gin.H{"error": "asset_not_ready"})
		case err != nil:
			cfg.Logger.Error("asset download failed",
				zap.String("order_id", orderID),
				zap.String("line_item_id", lineItemID),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		default:
			c.JSON(http.StatusOK, gin.H{
				"url":       grant.URL,
				"expiresAt": grant.ExpiresAt.UTC().Format(time.RFC3339),
			})
		}
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}
