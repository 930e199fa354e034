package testutil

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

// WebhookSecret is the signing secret used across tests.
const WebhookSecret = "whsec_test_secret"

// EventPayload builds a minimal Stripe event envelope for a payment intent.
func EventPayload(eventID, eventType, intentID string) []byte {
	payload, err := json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"type":        eventType,
		"api_version": "2023-10-16",
		"data": map[string]any{
			"object": map[string]any{
				"id":     intentID,
				"object": "payment_intent",
			},
		},
	})
	if err != nil {
		panic(err)
	}
	return payload
}

// SignPayload returns a Stripe-Signature header value for payload signed
// with secret at ts.
func SignPayload(payload []byte, secret string, ts time.Time) string {
	sig := webhook.ComputeSignature(ts, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(sig))
}
