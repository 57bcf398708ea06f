package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

const DemoSignatureHeader = "X-Demo-Signature"

type demoIntent struct {
	amount   decimal.Decimal
	currency string
	status   string
}

// DemoGateway settles payments in process. Orders paid through it are
// flagged as demo orders.
type DemoGateway struct {
	secret []byte

	mu      sync.Mutex
	intents map[string]*demoIntent
}

func NewDemoGateway(secret string) *DemoGateway {
	return &DemoGateway{secret: []byte(secret), intents: make(map[string]*demoIntent)}
}

func (g *DemoGateway) CreateIntent(_ context.Context, amount decimal.Decimal, currency string, _ map[string]string) (Intent, error) {
	id := "demo_pi_" + strings.ToLower(ulid.Make().String())

	g.mu.Lock()
	g.intents[id] = &demoIntent{amount: amount, currency: currency, status: "requires_capture"}
	g.mu.Unlock()

	return Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Amount:       amount,
		Currency:     strings.ToUpper(currency),
		Demo:         true,
	}, nil
}

// Decline makes the next capture of intentID fail.
func (g *DemoGateway) Decline(intentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if in, ok := g.intents[intentID]; ok {
		in.status = "declined"
	}
}

func (g *DemoGateway) CaptureIntent(_ context.Context, intentID string) (Capture, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	in, ok := g.intents[intentID]
	if !ok {
		return Capture{}, fmt.Errorf("%w: %s", ErrUnknownIntent, intentID)
	}
	if in.status == "requires_capture" {
		in.status = StatusCompleted
	}
	return Capture{
		IntentID: intentID,
		Status:   in.status,
		ProviderData: map[string]any{
			"amount":   in.amount.String(),
			"currency": in.currency,
			"demo":     true,
		},
	}, nil
}

type demoWebhookBody struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	IntentID string `json:"intent_id"`
	Status   string `json:"status"`
}

func (g *DemoGateway) Sign(body []byte) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *DemoGateway) VerifyWebhook(headers http.Header, body []byte) (WebhookEvent, error) {
	got, err := hex.DecodeString(headers.Get(DemoSignatureHeader))
	if err != nil || len(got) == 0 {
		return WebhookEvent{}, ErrInvalidSignature
	}
	want, _ := hex.DecodeString(g.Sign(body))
	if !hmac.Equal(got, want) {
		return WebhookEvent{}, ErrInvalidSignature
	}

	var b demoWebhookBody
	if err := json.Unmarshal(body, &b); err != nil {
		return WebhookEvent{}, fmt.Errorf("demo webhook: %w", err)
	}
	return WebhookEvent{ID: b.ID, Type: b.Type, IntentID: b.IntentID, Status: b.Status}, nil
}
