package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/printloom/fulfillment/internal/payments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newIntentRouter(providerURL string) *gin.Engine {
	logger := zap.NewNop()
	cfg := HandlerConfig{
		Payments: payments.NewClient(providerURL, "sk_test", logger),
		Logger:   logger,
	}
	r := gin.New()
	RegisterRoutes(r, cfg)
	return r
}

func validIntentBody() map[string]any {
	return map[string]any{
		"amount":   24.0,
		"currency": "USD",
		"shipping": map[string]any{
			"method": "standard", "cost": 5.0,
			"name": "Ada", "phone": "555", "email": "ada@example.com", "address": "1 Main St",
		},
		"items": []map[string]any{
			{"sku": "TEE-M", "designId": "design-1", "quantity": 1, "price": 19.0},
		},
	}
}

func TestIntentRoute(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"pi_abc","client_secret":"pi_abc_secret"}`))
	}))
	defer provider.Close()

	r := newIntentRouter(provider.URL)
	w := doJSON(r, http.MethodPost, "/payments/intent", validIntentBody(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pi_abc", resp["id"])
	assert.Equal(t, "pi_abc_secret", resp["clientSecret"])
}

func TestIntentRoute_ProviderFailure(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer provider.Close()

	r := newIntentRouter(provider.URL)
	w := doJSON(r, http.MethodPost, "/payments/intent", validIntentBody(), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "provider_error")
}

func TestIntentRoute_AmountMismatchRejected(t *testing.T) {
	r := newIntentRouter("http://unused.invalid")

	body := validIntentBody()
	body["amount"] = 3.5
	w := doJSON(r, http.MethodPost, "/payments/intent", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
