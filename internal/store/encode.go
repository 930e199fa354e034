package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/assignly/internal/domain"
	"github.com/shopspring/decimal"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const assignmentColumns = `id, title, description, subject, budget, deadline,
	status, payment_status, quoted_amount, writer_comment,
	student_id, provider_id, requested_provider_id, created_at, updated_at`

const transactionColumns = `id, assignment_id, user_id, amount, platform_fee, currency,
	gateway_intent_id, status, created_at, updated_at`

// timeLayout is RFC 3339 with a fixed-width fraction so that stored
// timestamps sort lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// assignmentArgs returns the column values in assignmentColumns order.
func assignmentArgs(a domain.Assignment) []any {
	return []any{
		a.ID,
		a.Title,
		a.Description,
		a.Subject,
		a.Budget.String(),
		formatTime(a.Deadline),
		string(a.Status),
		string(a.PaymentStatus),
		nullDecimal(a.QuotedAmount),
		nullString(a.WriterComment),
		a.Student,
		nullString(a.Provider),
		nullString(a.RequestedProvider),
		formatTime(a.CreatedAt),
		formatTime(a.UpdatedAt),
	}
}

func scanAssignment(row scanner) (domain.Assignment, error) {
	var (
		a                                   domain.Assignment
		budget, deadline, status, payStatus string
		createdAt, updatedAt                string
		quoted, comment                     sql.NullString
		provider, requested                 sql.NullString
	)
	err := row.Scan(
		&a.ID, &a.Title, &a.Description, &a.Subject, &budget, &deadline,
		&status, &payStatus, &quoted, &comment,
		&a.Student, &provider, &requested, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Assignment{}, err
	}

	if a.Budget, err = decimal.NewFromString(budget); err != nil {
		return domain.Assignment{}, fmt.Errorf("assignment %s: budget: %w", a.ID, err)
	}
	if a.Deadline, err = parseTime(deadline); err != nil {
		return domain.Assignment{}, fmt.Errorf("assignment %s: %w", a.ID, err)
	}
	if a.Status, err = domain.ParseStatus(status); err != nil {
		return domain.Assignment{}, fmt.Errorf("assignment %s: %w", a.ID, err)
	}
	if a.PaymentStatus, err = domain.ParsePaymentStatus(payStatus); err != nil {
		return domain.Assignment{}, fmt.Errorf("assignment %s: %w", a.ID, err)
	}
	if quoted.Valid {
		q, err := decimal.NewFromString(quoted.String)
		if err != nil {
			return domain.Assignment{}, fmt.Errorf("assignment %s: quoted_amount: %w", a.ID, err)
		}
		a.QuotedAmount = &q
	}
	a.WriterComment = fromNullString(comment)
	a.Provider = fromNullString(provider)
	a.RequestedProvider = fromNullString(requested)
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Assignment{}, fmt.Errorf("assignment %s: %w", a.ID, err)
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.Assignment{}, fmt.Errorf("assignment %s: %w", a.ID, err)
	}
	return a, nil
}

// transactionArgs returns the column values in transactionColumns order.
func transactionArgs(t domain.Transaction) []any {
	return []any{
		t.ID,
		t.AssignmentID,
		t.User,
		t.Amount.String(),
		t.PlatformFee.String(),
		t.Currency,
		t.GatewayIntentID,
		string(t.Status),
		formatTime(t.CreatedAt),
		formatTime(t.UpdatedAt),
	}
}

func scanTransaction(row scanner) (domain.Transaction, error) {
	var (
		t                    domain.Transaction
		amount, fee, status  string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&t.ID, &t.AssignmentID, &t.User, &amount, &fee, &t.Currency,
		&t.GatewayIntentID, &status, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Transaction{}, err
	}

	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: amount: %w", t.ID, err)
	}
	if t.PlatformFee, err = decimal.NewFromString(fee); err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: platform_fee: %w", t.ID, err)
	}
	if t.Status, err = domain.ParseTransactionStatus(status); err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	return t, nil
}
