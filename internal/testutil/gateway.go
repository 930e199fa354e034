package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/assignly/internal/gateway"
)

// FakeGateway is an in-memory gateway.IntentCreator.
//
// Intents are numbered pi_test_0001, pi_test_0002, ... Requests carrying an
// idempotency key seen before return the original intent, as Stripe does,
// until ExpireKeys forgets them.
type FakeGateway struct {
	mu       sync.Mutex
	byKey    map[string]gateway.Intent
	byID     map[string]gateway.Intent
	requests []gateway.IntentRequest
	lookups  []string
	n        int

	// Err, when set, is returned by CreateIntent and GetIntent and no intent
	// is minted.
	Err error
}

var _ gateway.IntentCreator = (*FakeGateway)(nil)

// NewFakeGateway creates an empty fake.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		byKey: make(map[string]gateway.Intent),
		byID:  make(map[string]gateway.Intent),
	}
}

// CreateIntent implements gateway.IntentCreator.
func (f *FakeGateway) CreateIntent(ctx context.Context, req gateway.IntentRequest) (gateway.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if err := ctx.Err(); err != nil {
		return gateway.Intent{}, err
	}
	if f.Err != nil {
		return gateway.Intent{}, f.Err
	}
	if in, ok := f.byKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return in, nil
	}

	f.n++
	id := fmt.Sprintf("pi_test_%04d", f.n)
	in := gateway.Intent{ID: id, ClientSecret: id + "_secret"}
	f.byID[id] = in
	if req.IdempotencyKey != "" {
		f.byKey[req.IdempotencyKey] = in
	}
	return in, nil
}

// GetIntent implements gateway.IntentCreator.
func (f *FakeGateway) GetIntent(ctx context.Context, id string) (gateway.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lookups = append(f.lookups, id)
	if err := ctx.Err(); err != nil {
		return gateway.Intent{}, err
	}
	if f.Err != nil {
		return gateway.Intent{}, f.Err
	}
	in, ok := f.byID[id]
	if !ok {
		return gateway.Intent{}, fmt.Errorf("no such payment_intent: %s", id)
	}
	return in, nil
}

// ExpireKeys forgets every idempotency key, the way Stripe prunes keys after
// 24 hours. Minted intents stay retrievable.
func (f *FakeGateway) ExpireKeys() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byKey = make(map[string]gateway.Intent)
}

// Lookups returns the ids passed to GetIntent, in order.
func (f *FakeGateway) Lookups() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.lookups))
	copy(out, f.lookups)
	return out
}

// Requests returns a copy of every request received, including failed ones.
func (f *FakeGateway) Requests() []gateway.IntentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]gateway.IntentRequest, len(f.requests))
	copy(out, f.requests)
	return out
}
