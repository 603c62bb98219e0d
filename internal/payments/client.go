package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client calls the payment provider's intent API with a server-side secret
// key. It is constructed once at process start and injected into handlers.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	logger     *zap.Logger
}

func NewClient(baseURL, secretKey string, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		logger:     logger,
	}
}

// CreateIntentInput carries the cart total plus shipping quote for intent creation.
type CreateIntentInput struct {
	Amount   float64
	Currency string
	UserID   string
}

// Intent is the provider-side payment intent; ClientSecret goes back to the
// browser for client-side confirmation.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// CreateIntent creates a provider payment intent for the given amount.
// The provider expects amounts in minor units.
func (c *Client) CreateIntent(ctx context.Context, in CreateIntentInput) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(int64(math.Round(in.Amount*100)), 10))
	form.Set("currency", strings.ToLower(in.Currency))
	if in.UserID != "" {
		form.Set("metadata[user_id]", in.UserID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build intent request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read intent response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("payment provider rejected intent creation",
			zap.Int("status", resp.StatusCode),
			zap.String("currency", in.Currency))
		return nil, fmt.Errorf("payment provider returned %d", resp.StatusCode)
	}

	var intent Intent
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, fmt.Errorf("decode intent response: %w", err)
	}
	if intent.ID == "" || intent.ClientSecret == "" {
		return nil, fmt.Errorf("intent response missing id or client secret")
	}
	return &intent, nil
}
