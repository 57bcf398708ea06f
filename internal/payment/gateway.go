// Package payment adapts external payment providers to the two-phase
// intent/capture flow checkout relies on.
package payment

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
)

// StatusCompleted is the only capture status that may produce an order.
const StatusCompleted = "completed"

var (
	ErrInvalidSignature = errors.New("payment: invalid webhook signature")
	ErrUnknownIntent    = errors.New("payment: unknown intent")
)

type Intent struct {
	ID           string          `json:"id"`
	ClientSecret string          `json:"client_secret,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Demo         bool            `json:"demo"`
}

type Capture struct {
	IntentID     string
	Status       string
	ProviderData map[string]any
}

// WebhookEvent is the verified, provider-neutral view of a webhook.
type WebhookEvent struct {
	ID       string
	Type     string
	IntentID string
	Status   string
}

// Gateway is the provider contract. Implementations must not return a
// WebhookEvent for a body whose signature did not verify.
type Gateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (Intent, error)
	CaptureIntent(ctx context.Context, intentID string) (Capture, error)
	VerifyWebhook(headers http.Header, body []byte) (WebhookEvent, error)
}

// MinorUnits converts 12.34 to 1234.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
