package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/assignly/internal/domain"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// DefaultWebhookTolerance bounds how old a signed delivery may be.
const DefaultWebhookTolerance = webhook.DefaultTolerance

// StripeConfig configures the Stripe gateway.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string

	// Timeout bounds each API call. Zero means 10s.
	Timeout time.Duration

	// WebhookTolerance bounds signature age. Zero means DefaultWebhookTolerance.
	WebhookTolerance time.Duration

	// APIURL overrides the Stripe API base URL. Tests point it at httptest.
	APIURL string
}

// Stripe implements IntentCreator and EventVerifier against the Stripe API.
type Stripe struct {
	api           *client.API
	webhookSecret string
	tolerance     time.Duration
}

var (
	_ IntentCreator = (*Stripe)(nil)
	_ EventVerifier = (*Stripe)(nil)
)

// NewStripe builds a Stripe gateway from cfg.
func NewStripe(cfg StripeConfig) *Stripe {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	tolerance := cfg.WebhookTolerance
	if tolerance == 0 {
		tolerance = DefaultWebhookTolerance
	}

	httpClient := &http.Client{Timeout: timeout}
	backends := stripe.NewBackends(httpClient)
	if cfg.APIURL != "" {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			HTTPClient:        httpClient,
			URL:               stripe.String(cfg.APIURL),
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		})
		backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}

	return &Stripe{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		tolerance:     tolerance,
	}
}

// CreateIntent mints a PaymentIntent for req. The amount is sent in minor
// units. Assignment and user ids travel as metadata so that the Stripe
// dashboard can be cross-referenced.
func (s *Stripe) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	minor := req.Amount.Shift(2)
	if !minor.IsInteger() {
		return Intent{}, fmt.Errorf("amount %s has more than two decimal places", req.Amount)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minor.IntPart()),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.AddMetadata("assignment_id", req.AssignmentID)
	params.AddMetadata("user_id", req.UserID)
	params.AddMetadata("platform_fee", req.PlatformFee.StringFixed(2))

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("create payment intent: %w", err)
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// GetIntent retrieves a PaymentIntent by id.
func (s *Stripe) GetIntent(ctx context.Context, id string) (Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := s.api.PaymentIntents.Get(id, params)
	if err != nil {
		return Intent{}, fmt.Errorf("get payment intent %s: %w", id, err)
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// VerifyEvent checks the Stripe-Signature header against the webhook secret
// and extracts the payment intent id. API version differences are ignored
// since only the event type and object id are read.
func (s *Stripe) VerifyEvent(payload []byte, signatureHeader string) (Event, error) {
	if s.webhookSecret == "" {
		return Event{}, domain.NewSignatureError(errors.New("webhook secret is not configured"))
	}

	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, s.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                s.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, domain.NewSignatureError(err)
	}

	out := Event{ID: ev.ID, Type: string(ev.Type)}
	if !strings.HasPrefix(out.Type, "payment_intent.") {
		return out, nil
	}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return Event{}, domain.NewSignatureError(errors.New("event has no data object"))
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(ev.Data.Raw, &obj); err != nil {
		return Event{}, domain.NewSignatureError(fmt.Errorf("decode payment intent: %w", err))
	}
	if obj.ID == "" {
		return Event{}, domain.NewSignatureError(errors.New("payment intent has no id"))
	}
	out.IntentID = obj.ID
	return out, nil
}
