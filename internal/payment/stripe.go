package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Capture(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error)
}

type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	Backends      *stripe.Backends
	// Intents overrides the API client; used by tests.
	Intents stripePaymentIntentAPI
}

// StripeGateway uses manual-capture PaymentIntents: the client confirms the
// intent and the server captures it when the order is created.
type StripeGateway struct {
	intents       stripePaymentIntentAPI
	webhookSecret string
}

func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Intents == nil {
		return nil, errors.New("stripe: api key is required")
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, errors.New("stripe: webhook secret is required")
	}

	intents := cfg.Intents
	if intents == nil {
		intents = client.New(apiKey, cfg.Backends).PaymentIntents
	}
	return &StripeGateway{intents: intents, webhookSecret: cfg.WebhookSecret}, nil
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(MinorUnits(amount)),
		Currency:      stripe.String(strings.ToLower(currency)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if len(metadata) > 0 {
		params.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			params.Metadata[k] = v
		}
	}

	pi, err := g.intents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       amount,
		Currency:     strings.ToUpper(currency),
	}, nil
}

func (g *StripeGateway) CaptureIntent(ctx context.Context, intentID string) (Capture, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	params.SetIdempotencyKey("capture-" + intentID)

	pi, err := g.intents.Capture(intentID, params)
	if err != nil {
		return Capture{}, fmt.Errorf("stripe: capture payment intent: %w", err)
	}
	return Capture{
		IntentID: pi.ID,
		Status:   stripeCaptureStatus(pi.Status),
		ProviderData: map[string]any{
			"amount_received": pi.AmountReceived,
			"stripe_status":   string(pi.Status),
		},
	}, nil
}

func stripeCaptureStatus(s stripe.PaymentIntentStatus) string {
	if s == stripe.PaymentIntentStatusSucceeded {
		return StatusCompleted
	}
	return string(s)
}

func (g *StripeGateway) VerifyWebhook(headers http.Header, body []byte) (WebhookEvent, error) {
	ev, err := webhook.ConstructEventWithOptions(body, headers.Get("Stripe-Signature"), g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := WebhookEvent{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data != nil && strings.HasPrefix(out.Type, "payment_intent.") {
		if id, ok := ev.Data.Object["id"].(string); ok {
			out.IntentID = id
		}
		if st, ok := ev.Data.Object["status"].(string); ok {
			out.Status = stripeCaptureStatus(stripe.PaymentIntentStatus(st))
		}
	}
	return out, nil
}
