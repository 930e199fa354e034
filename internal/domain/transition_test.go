package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupTransition_Table(t *testing.T) {
	tests := []struct {
		kind TransitionKind
		from Status
		to   Status
	}{
		{KindSubmitQuote, StatusPendingReview, StatusQuoted},
		{KindProviderReject, StatusQuoted, StatusPendingReview},
		{KindAcceptQuote, StatusQuoted, StatusConfirmed},
		{KindRejectQuote, StatusQuoted, StatusPendingReview},
		{KindComplete, StatusInProgress, StatusCompleted},
		{KindDispute, StatusCompleted, StatusDisputed},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			tr, ok := LookupTransition(tt.kind)
			require.True(t, ok)
			assert.True(t, tr.Allows(tt.from))
			assert.Equal(t, tt.to, tr.To)
		})
	}
}

func TestLookupTransition_Create(t *testing.T) {
	_, ok := LookupTransition(KindCreate)
	assert.False(t, ok)
}

func TestTransition_DeleteOnlyEarly(t *testing.T) {
	tr, ok := LookupTransition(KindDelete)
	require.True(t, ok)
	for _, s := range Statuses {
		assert.Equal(t, s.Deletable(), tr.Allows(s), "status %s", s)
	}
}

func TestAdvancesOnPayment(t *testing.T) {
	for _, s := range Statuses {
		assert.Equal(t, s == StatusConfirmed, AdvancesOnPayment(s), "status %s", s)
	}
}
