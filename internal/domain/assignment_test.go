package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func validPending() Assignment {
	return Assignment{
		ID:            "a-1",
		Student:       "s-1",
		Budget:        decimal.RequireFromString("100"),
		Status:        StatusPendingReview,
		PaymentStatus: PaymentUnpaid,
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range Statuses {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStatus("OPEN")
	assert.Error(t, err)
}

func TestParsePaymentStatus(t *testing.T) {
	got, err := ParsePaymentStatus("PAID")
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, got)

	_, err = ParsePaymentStatus("paid")
	assert.Error(t, err, "payment status is case-sensitive")
}

func TestStatus_Deletable(t *testing.T) {
	assert.True(t, StatusPendingReview.Deletable())
	assert.True(t, StatusQuoted.Deletable())
	assert.False(t, StatusConfirmed.Deletable())
	assert.False(t, StatusInProgress.Deletable())
	assert.False(t, StatusCompleted.Deletable())
	assert.False(t, StatusDisputed.Deletable())
}

func TestAssignment_Validate_Pending(t *testing.T) {
	a := validPending()
	assert.NoError(t, a.Validate())

	a.Provider = strPtr("p-1")
	assert.Error(t, a.Validate(), "pending assignment must not carry a provider")
}

func TestAssignment_Validate_Quoted(t *testing.T) {
	a := validPending()
	a.Status = StatusQuoted
	a.Provider = strPtr("p-1")
	assert.Error(t, a.Validate(), "quoted assignment needs quote fields")

	a.QuotedAmount = decPtr("80")
	a.WriterComment = strPtr("")
	assert.NoError(t, a.Validate())

	a.QuotedAmount = decPtr("0")
	assert.Error(t, a.Validate())
}

func TestAssignment_Validate_ConfirmedDropsQuote(t *testing.T) {
	a := validPending()
	a.Status = StatusConfirmed
	a.Provider = strPtr("p-1")
	assert.NoError(t, a.Validate())

	a.QuotedAmount = decPtr("80")
	assert.Error(t, a.Validate(), "quote fields only exist while QUOTED")
}

func TestAssignment_Validate_Budget(t *testing.T) {
	a := validPending()
	a.Budget = decimal.Zero
	assert.Error(t, a.Validate())
}

func TestAssignment_CloneDoesNotAlias(t *testing.T) {
	a := validPending()
	a.Status = StatusQuoted
	a.Provider = strPtr("p-1")
	a.QuotedAmount = decPtr("80")
	a.WriterComment = strPtr("ok")

	c := a.Clone()
	*c.Provider = "p-2"
	*c.WriterComment = "changed"

	assert.Equal(t, "p-1", *a.Provider)
	assert.Equal(t, "ok", *a.WriterComment)
}

func TestAssignment_ClearQuote(t *testing.T) {
	a := validPending()
	a.Provider = strPtr("p-1")
	a.QuotedAmount = decPtr("80")
	a.WriterComment = strPtr("ok")

	a.ClearQuote()
	assert.Nil(t, a.Provider)
	assert.Nil(t, a.QuotedAmount)
	assert.Nil(t, a.WriterComment)
}

func TestNormalizeText(t *testing.T) {
	// "é" as e + combining acute accent normalizes to the precomposed form.
	assert.Equal(t, "caf\u00e9", NormalizeText("  cafe\u0301 \n"))
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	g := UUIDv7Generator{}
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := g.Generate()
		assert.Len(t, id, 36)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
