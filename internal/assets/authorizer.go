package assets

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/printloom/fulfillment/internal/awsapi"
	"github.com/printloom/fulfillment/internal/orders"
	"go.uber.org/zap"
)

// downloadTTL is the fixed lifetime of every issued download URL.
const downloadTTL = time.Hour

var (
	// ErrUnauthenticated rejects absent, malformed or unverifiable bearer tokens.
	ErrUnauthenticated = errors.New("caller identity could not be verified")
	// ErrForbidden rejects callers who are not the order's recorded owner.
	ErrForbidden = errors.New("caller is not the order owner")
	// ErrAssetNotReady signals a line item whose render has not produced an asset yet.
	ErrAssetNotReady = errors.New("print asset not available yet")
)

// OrderReader is the slice of the orders store the authorizer needs.
type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
	GetLineItem(ctx context.Context, orderID, lineItemID string) (*orders.LineItem, error)
}

// TokenVerifier resolves a bearer token to a caller id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Grant is a time-limited read link to one finished print asset.
type Grant struct {
	URL       string
	ExpiresAt time.Time
}

// Authorizer gates print-asset downloads: only the order's recorded owner
// ever receives a signed URL, and only once the render produced an asset.
type Authorizer struct {
	store     OrderReader
	verifier  TokenVerifier
	presigner awsapi.S3PresignAPI
	logger    *zap.Logger
	nowFunc   func() time.Time
}

func NewAuthorizer(store OrderReader, verifier TokenVerifier, presigner awsapi.S3PresignAPI, logger *zap.Logger) *Authorizer {
	return &Authorizer{
		store:     store,
		verifier:  verifier,
		presigner: presigner,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// Authorize verifies the caller, checks ownership and issues a one-hour
// signed URL for the line item's finished asset.
func (a *Authorizer) Authorize(ctx context.Context, bearerToken, orderID, lineItemID string) (*Grant, error) {
	callerUID, err := a.verifier.Verify(bearerToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	order, err := a.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}
	if order == nil {
		return nil, orders.ErrNotFound
	}

	// Exact match only. Guest orders carry a sentinel owner that can never
	// equal a verified caller id.
	if order.OwnerUID != callerUID || order.OwnerUID == orders.OwnerGuest {
		a.logger.Warn("asset download denied",
			zap.String("order_id", orderID),
			zap.String("caller_uid", callerUID))
		return nil, ErrForbidden
	}

	item, err := a.store.GetLineItem(ctx, orderID, lineItemID)
	if err != nil {
		return nil, fmt.Errorf("load line item %s: %w", lineItemID, err)
	}
	if item == nil {
		return nil, orders.ErrNotFound
	}
	if item.AssetLocation == "" {
		return nil, ErrAssetNotReady
	}

	bucket, key, err := parseLocator(item.AssetLocation)
	if err != nil {
		return nil, fmt.Errorf("asset locator for line item %s: %w", lineItemID, err)
	}

	issueTime := a.nowFunc()
	signed, err := a.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(downloadTTL))
	if err != nil {
		return nil, fmt.Errorf("presign asset url: %w", err)
	}

	return &Grant{
		URL:       signed.URL,
		ExpiresAt: issueTime.Add(downloadTTL),
	}, nil
}

// parseLocator resolves a stored asset locator to bucket and key. Accepts
// both "s3://bucket/path" and "https://storage-host/bucket/path".
func parseLocator(locator string) (bucket, key string, err error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", "", fmt.Errorf("malformed locator: %w", err)
	}

	switch u.Scheme {
	case "s3":
		bucket = u.Host
		key = strings.TrimPrefix(u.Path, "/")
	case "http", "https":
		parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
		if len(parts) != 2 {
			return "", "", fmt.Errorf("locator %q has no bucket/path segments", locator)
		}
		bucket, key = parts[0], parts[1]
	default:
		return "", "", fmt.Errorf("unsupported locator scheme %q", u.Scheme)
	}

	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("locator %q missing bucket or key", locator)
	}
	return bucket, key, nil
}
