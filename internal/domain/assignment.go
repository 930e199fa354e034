package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the negotiation lifecycle state of an Assignment.
type Status string

const (
	StatusPendingReview Status = "PENDING_REVIEW"
	StatusQuoted        Status = "QUOTED"
	StatusConfirmed     Status = "CONFIRMED"
	StatusInProgress    Status = "IN_PROGRESS"
	StatusCompleted     Status = "COMPLETED"
	StatusDisputed      Status = "DISPUTED"
)

// Statuses lists every Status in lifecycle order.
var Statuses = []Status{
	StatusPendingReview,
	StatusQuoted,
	StatusConfirmed,
	StatusInProgress,
	StatusCompleted,
	StatusDisputed,
}

// ParseStatus converts a stored or user-supplied string into a Status.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown assignment status %q", s)
}

// HasProvider reports whether an assignment in this status carries a provider.
func (s Status) HasProvider() bool {
	return s != StatusPendingReview
}

// Deletable reports whether the owning student may still delete the assignment.
func (s Status) Deletable() bool {
	return s == StatusPendingReview || s == StatusQuoted
}

// PaymentStatus tracks whether the agreed budget has been paid.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "UNPAID"
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
)

// ParsePaymentStatus converts a stored string into a PaymentStatus.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentUnpaid, PaymentPending, PaymentPaid:
		return PaymentStatus(s), nil
	}
	return "", fmt.Errorf("unknown payment status %q", s)
}

// Assignment is a task-for-hire posted by a student.
//
// Optional fields are pointers so that JSON renders them as null and the
// store writes SQL NULL.
type Assignment struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Subject       string           `json:"subject"`
	Budget        decimal.Decimal  `json:"budget"`
	Deadline      time.Time        `json:"deadline"`
	Status        Status           `json:"status"`
	PaymentStatus PaymentStatus    `json:"payment_status"`
	QuotedAmount  *decimal.Decimal `json:"quoted_amount"`
	WriterComment *string          `json:"writer_comment"`
	Student       string           `json:"student"`
	Provider      *string          `json:"provider"`

	// RequestedProvider is the provider the student asked for at creation.
	// It is a hint only; Provider is set by quoting.
	RequestedProvider *string `json:"requested_provider"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the structural invariants of an assignment:
//   - provider is set iff status is not PENDING_REVIEW
//   - quoted_amount and writer_comment are set iff status is QUOTED
//   - budget is positive
func (a *Assignment) Validate() error {
	if a.Student == "" {
		return fmt.Errorf("assignment %s: student is required", a.ID)
	}
	if !a.Budget.IsPositive() {
		return fmt.Errorf("assignment %s: budget must be positive", a.ID)
	}
	if (a.Provider != nil) != a.Status.HasProvider() {
		return fmt.Errorf("assignment %s: provider presence does not match status %s", a.ID, a.Status)
	}
	quoted := a.Status == StatusQuoted
	if (a.QuotedAmount != nil) != quoted || (a.WriterComment != nil) != quoted {
		return fmt.Errorf("assignment %s: quote fields do not match status %s", a.ID, a.Status)
	}
	if a.QuotedAmount != nil && !a.QuotedAmount.IsPositive() {
		return fmt.Errorf("assignment %s: quoted amount must be positive", a.ID)
	}
	return nil
}

// ClearQuote drops the provider and quote fields, returning the assignment to
// the open pool shape.
func (a *Assignment) ClearQuote() {
	a.Provider = nil
	a.QuotedAmount = nil
	a.WriterComment = nil
}

// IsProvider reports whether actorID currently holds the assignment.
func (a *Assignment) IsProvider(actorID string) bool {
	return a.Provider != nil && *a.Provider == actorID
}

// Clone returns a deep copy so mutators cannot alias the caller's pointers.
func (a Assignment) Clone() Assignment {
	c := a
	if a.QuotedAmount != nil {
		v := *a.QuotedAmount
		c.QuotedAmount = &v
	}
	if a.WriterComment != nil {
		v := *a.WriterComment
		c.WriterComment = &v
	}
	if a.Provider != nil {
		v := *a.Provider
		c.Provider = &v
	}
	if a.RequestedProvider != nil {
		v := *a.RequestedProvider
		c.RequestedProvider = &v
	}
	return c
}
