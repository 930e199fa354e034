package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/roach88/assignly/internal/domain"
	"github.com/roach88/assignly/internal/gateway"
	"github.com/roach88/assignly/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripe_CreateIntent(t *testing.T) {
	var got http.Header
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		got = r.Header.Clone()
		form = map[string]string{
			"amount":                    r.PostForm.Get("amount"),
			"currency":                  r.PostForm.Get("currency"),
			"metadata[assignment_id]":   r.PostForm.Get("metadata[assignment_id]"),
			"metadata[user_id]":         r.PostForm.Get("metadata[user_id]"),
			"metadata[platform_fee]":    r.PostForm.Get("metadata[platform_fee]"),
			"automatic_payment_methods": r.PostForm.Get("automatic_payment_methods[enabled]"),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":            "pi_123",
			"object":        "payment_intent",
			"client_secret": "pi_123_secret_abc",
		})
	}))
	defer srv.Close()

	g := gateway.NewStripe(gateway.StripeConfig{SecretKey: "sk_test_x", APIURL: srv.URL})
	in, err := g.CreateIntent(context.Background(), gateway.IntentRequest{
		AssignmentID:   "a1",
		UserID:         "stu",
		Amount:         decimal.RequireFromString("80.5"),
		PlatformFee:    decimal.RequireFromString("8.05"),
		Currency:       "INR",
		IdempotencyKey: "intent-a1",
	})
	require.NoError(t, err)

	assert.Equal(t, "pi_123", in.ID)
	assert.Equal(t, "pi_123_secret_abc", in.ClientSecret)
	assert.Equal(t, "intent-a1", got.Get("Idempotency-Key"))
	assert.Equal(t, "8050", form["amount"])
	assert.Equal(t, "inr", form["currency"])
	assert.Equal(t, "a1", form["metadata[assignment_id]"])
	assert.Equal(t, "stu", form["metadata[user_id]"])
	assert.Equal(t, "8.05", form["metadata[platform_fee]"])
	assert.Equal(t, "true", form["automatic_payment_methods"])
}

func TestStripe_GetIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payment_intents/pi_123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":            "pi_123",
			"object":        "payment_intent",
			"client_secret": "pi_123_secret_abc",
		})
	}))
	defer srv.Close()

	g := gateway.NewStripe(gateway.StripeConfig{SecretKey: "sk_test_x", APIURL: srv.URL})
	in, err := g.GetIntent(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, gateway.Intent{ID: "pi_123", ClientSecret: "pi_123_secret_abc"}, in)
}

func TestStripe_CreateIntent_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"type":"card_error","message":"declined"}}`))
	}))
	defer srv.Close()

	g := gateway.NewStripe(gateway.StripeConfig{SecretKey: "sk_test_x", APIURL: srv.URL})
	_, err := g.CreateIntent(context.Background(), gateway.IntentRequest{
		Amount:   decimal.RequireFromString("10"),
		Currency: "inr",
	})
	assert.Error(t, err)
}

func TestStripe_CreateIntent_RejectsSubMinorAmount(t *testing.T) {
	g := gateway.NewStripe(gateway.StripeConfig{SecretKey: "sk_test_x", APIURL: "http://127.0.0.1:0"})
	_, err := g.CreateIntent(context.Background(), gateway.IntentRequest{
		Amount:   decimal.RequireFromString("1.005"),
		Currency: "inr",
	})
	assert.Error(t, err)
}

func TestStripe_VerifyEvent(t *testing.T) {
	g := gateway.NewStripe(gateway.StripeConfig{WebhookSecret: testutil.WebhookSecret})
	payload := testutil.EventPayload("evt_1", gateway.EventPaymentIntentSucceeded, "pi_123")
	header := testutil.SignPayload(payload, testutil.WebhookSecret, time.Now())

	ev, err := g.VerifyEvent(payload, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, gateway.EventPaymentIntentSucceeded, ev.Type)
	assert.Equal(t, "pi_123", ev.IntentID)
}

func TestStripe_VerifyEvent_Failures(t *testing.T) {
	g := gateway.NewStripe(gateway.StripeConfig{WebhookSecret: testutil.WebhookSecret})
	payload := testutil.EventPayload("evt_1", gateway.EventPaymentIntentSucceeded, "pi_123")

	tests := []struct {
		name    string
		payload []byte
		header  string
	}{
		{"missing header", payload, ""},
		{"garbage header", payload, "not-a-signature"},
		{"wrong secret", payload, testutil.SignPayload(payload, "whsec_other", time.Now())},
		{"tampered body", append([]byte(" "), payload...), testutil.SignPayload(payload, testutil.WebhookSecret, time.Now())},
		{"too old", payload, testutil.SignPayload(payload, testutil.WebhookSecret, time.Now().Add(-time.Hour))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.VerifyEvent(tt.payload, tt.header)
			assert.True(t, domain.IsSignature(err), "got %v", err)
		})
	}
}

func TestStripe_VerifyEvent_NoSecretConfigured(t *testing.T) {
	g := gateway.NewStripe(gateway.StripeConfig{})
	payload := testutil.EventPayload("evt_1", gateway.EventPaymentIntentSucceeded, "pi_123")

	_, err := g.VerifyEvent(payload, testutil.SignPayload(payload, "", time.Now()))
	assert.True(t, domain.IsSignature(err))
}

func TestStripe_VerifyEvent_OtherTypeCarriesNoIntent(t *testing.T) {
	g := gateway.NewStripe(gateway.StripeConfig{WebhookSecret: testutil.WebhookSecret})
	payload := testutil.EventPayload("evt_2", "charge.refunded", "ch_1")

	ev, err := g.VerifyEvent(payload, testutil.SignPayload(payload, testutil.WebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "charge.refunded", ev.Type)
	assert.Empty(t, ev.IntentID)
}
