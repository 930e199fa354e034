// Package gateway is the boundary to the external payment provider. It mints
// payment intents and verifies signed webhook deliveries. The only shipped
// implementation talks to Stripe.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// EventPaymentIntentSucceeded is the only event type that changes local state.
const EventPaymentIntentSucceeded = "payment_intent.succeeded"

// IntentRequest describes a payment intent to mint.
type IntentRequest struct {
	AssignmentID string
	UserID       string

	// Amount is in major units (e.g. rupees); implementations convert.
	Amount      decimal.Decimal
	PlatformFee decimal.Decimal
	Currency    string

	// IdempotencyKey makes a retried request return the original intent.
	IdempotencyKey string
}

// Intent is a minted payment intent.
type Intent struct {
	ID           string
	ClientSecret string
}

// IntentCreator mints payment intents and looks up ones it minted earlier.
type IntentCreator interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)

	// GetIntent fetches an existing intent by id. Used to hand a pending
	// intent back to a retrying client after the idempotency key has expired.
	GetIntent(ctx context.Context, id string) (Intent, error)
}

// Event is the part of a verified webhook delivery the system consumes.
type Event struct {
	ID       string
	Type     string
	IntentID string
}

// EventVerifier authenticates a raw webhook payload against its signature
// header. Failures are SIGNATURE domain errors.
type EventVerifier interface {
	VerifyEvent(payload []byte, signatureHeader string) (Event, error)
}
