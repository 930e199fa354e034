package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/assignly/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeGateway_IdempotencyKey(t *testing.T) {
	g := NewFakeGateway()
	ctx := context.Background()

	first, err := g.CreateIntent(ctx, gateway.IntentRequest{IdempotencyKey: "k1"})
	require.NoError(t, err)
	again, err := g.CreateIntent(ctx, gateway.IntentRequest{IdempotencyKey: "k1"})
	require.NoError(t, err)
	other, err := g.CreateIntent(ctx, gateway.IntentRequest{IdempotencyKey: "k2"})
	require.NoError(t, err)

	assert.Equal(t, "pi_test_0001", first.ID)
	assert.Equal(t, first, again)
	assert.Equal(t, "pi_test_0002", other.ID)
	assert.Len(t, g.Requests(), 3)
}

func TestFakeGateway_Error(t *testing.T) {
	g := NewFakeGateway()
	g.Err = errors.New("card network down")

	_, err := g.CreateIntent(context.Background(), gateway.IntentRequest{})
	assert.EqualError(t, err, "card network down")
}

func TestFakeGateway_ExpireKeysKeepsIntents(t *testing.T) {
	g := NewFakeGateway()
	ctx := context.Background()

	first, err := g.CreateIntent(ctx, gateway.IntentRequest{IdempotencyKey: "k1"})
	require.NoError(t, err)

	g.ExpireKeys()
	fresh, err := g.CreateIntent(ctx, gateway.IntentRequest{IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, fresh.ID)

	got, err := g.GetIntent(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first, got)
	assert.Equal(t, []string{first.ID}, g.Lookups())

	_, err = g.GetIntent(ctx, "pi_missing")
	assert.Error(t, err)
}
