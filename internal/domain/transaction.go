package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the local view of one gateway payment attempt.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "PENDING"
	TxSucceeded TransactionStatus = "SUCCEEDED"
	TxFailed    TransactionStatus = "FAILED"
)

// ParseTransactionStatus converts a stored string into a TransactionStatus.
func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch TransactionStatus(s) {
	case TxPending, TxSucceeded, TxFailed:
		return TransactionStatus(s), nil
	}
	return "", fmt.Errorf("unknown transaction status %q", s)
}

// Terminal reports whether the status can no longer return to PENDING.
func (s TransactionStatus) Terminal() bool {
	return s == TxSucceeded || s == TxFailed
}

// Transaction records one payment attempt, bound 1:1 to a gateway intent.
type Transaction struct {
	ID              string            `json:"id"`
	AssignmentID    string            `json:"assignment_id"`
	User            string            `json:"user"`
	Amount          decimal.Decimal   `json:"amount"`
	PlatformFee     decimal.Decimal   `json:"platform_fee"`
	Currency        string            `json:"currency"`
	GatewayIntentID string            `json:"gateway_intent_id"`
	Status          TransactionStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}
