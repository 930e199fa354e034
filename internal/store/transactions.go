package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/roach88/assignly/internal/domain"
)

// Outcome describes what ApplyPaymentSucceeded did.
type Outcome string

const (
	// OutcomeUnknownIntent means no transaction carries the intent id.
	OutcomeUnknownIntent Outcome = "unknown_intent"

	// OutcomeDuplicate means the transaction and assignment already reflect
	// the payment; nothing was written.
	OutcomeDuplicate Outcome = "duplicate"

	// OutcomeApplied means the transaction moved to SUCCEEDED.
	OutcomeApplied Outcome = "applied"

	// OutcomeRepaired means the transaction was already SUCCEEDED but its
	// assignment was not yet PAID, and the assignment side was completed.
	OutcomeRepaired Outcome = "repaired"
)

// Settlement is the result of ApplyPaymentSucceeded.
type Settlement struct {
	Outcome     Outcome
	Transaction domain.Transaction
	Assignment  domain.Assignment

	// From is the assignment status before the payment was applied.
	From domain.Status
}

// CreateTransaction records a new PENDING payment attempt and marks its
// assignment payment_status=PENDING, in one SQL transaction.
//
// The assignment must still be CONFIRMED and not yet PAID; otherwise a raced
// CONFLICT is returned. If a transaction with the same gateway intent id
// already exists, that row is returned with inserted=false and nothing is
// written. A second PENDING transaction for the same assignment under a
// different intent id is rejected as a CONFLICT.
func (s *Store) CreateTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Transaction{}, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, found, err := getTransactionByIntent(ctx, tx, t.GatewayIntentID)
	if err != nil {
		return domain.Transaction{}, false, err
	}
	if found {
		if existing.AssignmentID != t.AssignmentID {
			return domain.Transaction{}, false, fmt.Errorf(
				"gateway intent %s already bound to assignment %s", t.GatewayIntentID, existing.AssignmentID)
		}
		return existing, false, nil
	}

	a, err := getAssignment(ctx, tx, t.AssignmentID)
	if err != nil {
		return domain.Transaction{}, false, err
	}
	if a.Status != domain.StatusConfirmed || a.PaymentStatus == domain.PaymentPaid {
		return domain.Transaction{}, false, domain.NewConflictError(a.ID, domain.KindPay, a.Status)
	}

	query := fmt.Sprintf(`INSERT INTO transactions (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(gateway_intent_id) DO NOTHING`, transactionColumns)
	res, err := tx.ExecContext(ctx, query, transactionArgs(t)...)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return domain.Transaction{}, false, &domain.Error{
				Code:         domain.ErrCodeConflict,
				Message:      "a payment is already pending for this assignment",
				AssignmentID: t.AssignmentID,
				Current:      a.Status,
			}
		}
		return domain.Transaction{}, false, fmt.Errorf("insert transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Transaction{}, false, fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return domain.Transaction{}, false, fmt.Errorf("insert transaction %s: intent %s appeared concurrently", t.ID, t.GatewayIntentID)
	}

	if a.PaymentStatus != domain.PaymentPending {
		next := a.Clone()
		next.PaymentStatus = domain.PaymentPending
		next.UpdatedAt = t.CreatedAt
		if err := updateAssignment(ctx, tx, next, a); err != nil {
			return domain.Transaction{}, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Transaction{}, false, fmt.Errorf("commit transaction: %w", err)
	}
	return t, true, nil
}

// GetTransactionByIntent looks up a transaction by its gateway intent id.
// found is false when no row matches; that is not an error.
func (s *Store) GetTransactionByIntent(ctx context.Context, intentID string) (domain.Transaction, bool, error) {
	return getTransactionByIntent(ctx, s.db, intentID)
}

func getTransactionByIntent(ctx context.Context, q querier, intentID string) (domain.Transaction, bool, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE gateway_intent_id = ?`, transactionColumns)
	t, err := scanTransaction(q.QueryRowContext(ctx, query, intentID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transaction{}, false, nil
	}
	if err != nil {
		return domain.Transaction{}, false, fmt.Errorf("get transaction by intent %s: %w", intentID, err)
	}
	return t, true, nil
}

// GetPendingTransaction returns the assignment's PENDING transaction, if any.
// There is at most one.
func (s *Store) GetPendingTransaction(ctx context.Context, assignmentID string) (domain.Transaction, bool, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE assignment_id = ? AND status = ?`, transactionColumns)
	t, err := scanTransaction(s.db.QueryRowContext(ctx, query, assignmentID, string(domain.TxPending)))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transaction{}, false, nil
	}
	if err != nil {
		return domain.Transaction{}, false, fmt.Errorf("get pending transaction for %s: %w", assignmentID, err)
	}
	return t, true, nil
}

// ListTransactions returns every transaction recorded for an assignment,
// ordered by created_at ASC, id ASC.
func (s *Store) ListTransactions(ctx context.Context, assignmentID string) ([]domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions
		WHERE assignment_id = ?
		ORDER BY created_at ASC, id ASC COLLATE BINARY`, transactionColumns)
	return s.queryTransactions(ctx, query, assignmentID)
}

// ListUnreconciled returns SUCCEEDED transactions whose assignment is not
// yet PAID. These are the rows a recovery sweep must finish applying.
func (s *Store) ListUnreconciled(ctx context.Context) ([]domain.Transaction, error) {
	query := `SELECT t.id, t.assignment_id, t.user_id, t.amount, t.platform_fee, t.currency,
			t.gateway_intent_id, t.status, t.created_at, t.updated_at
		FROM transactions t
		JOIN assignments a ON a.id = t.assignment_id
		WHERE t.status = ? AND a.payment_status <> ?
		ORDER BY t.created_at ASC, t.id ASC COLLATE BINARY`
	return s.queryTransactions(ctx, query, string(domain.TxSucceeded), string(domain.PaymentPaid))
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// ApplyPaymentSucceeded records a successful payment for intentID.
//
// In a single SQL transaction it sets the Transaction to SUCCEEDED, the
// Assignment payment_status to PAID and, if the assignment is still
// CONFIRMED, its status to IN_PROGRESS. Later statuses are never regressed.
//
// The call is idempotent: an unknown intent and an already-applied payment
// are reported through Outcome, not as errors. A transaction that is
// SUCCEEDED while its assignment is not PAID is completed (OutcomeRepaired).
func (s *Store) ApplyPaymentSucceeded(ctx context.Context, intentID string, now time.Time) (Settlement, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Settlement{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	t, found, err := getTransactionByIntent(ctx, tx, intentID)
	if err != nil {
		return Settlement{}, err
	}
	if !found {
		return Settlement{Outcome: OutcomeUnknownIntent}, nil
	}

	a, err := getAssignment(ctx, tx, t.AssignmentID)
	if err != nil {
		return Settlement{}, err
	}

	settlement := Settlement{Transaction: t, Assignment: a, From: a.Status}
	if t.Status == domain.TxSucceeded && a.PaymentStatus == domain.PaymentPaid {
		settlement.Outcome = OutcomeDuplicate
		return settlement, nil
	}

	settlement.Outcome = OutcomeRepaired
	if t.Status != domain.TxSucceeded {
		res, err := tx.ExecContext(ctx,
			`UPDATE transactions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(domain.TxSucceeded), formatTime(now), t.ID, string(t.Status))
		if err != nil {
			return Settlement{}, fmt.Errorf("update transaction %s: %w", t.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return Settlement{}, fmt.Errorf("get rows affected: %w", err)
		}
		if n != 1 {
			return Settlement{}, fmt.Errorf("update transaction %s: status changed concurrently", t.ID)
		}
		t.Status = domain.TxSucceeded
		t.UpdatedAt = now
		settlement.Outcome = OutcomeApplied
	}

	if a.PaymentStatus != domain.PaymentPaid {
		next := a.Clone()
		next.PaymentStatus = domain.PaymentPaid
		if domain.AdvancesOnPayment(a.Status) {
			next.Status = domain.StatusInProgress
		}
		next.UpdatedAt = now
		if err := updateAssignment(ctx, tx, next, a); err != nil {
			return Settlement{}, err
		}
		a = next
	}

	if err := tx.Commit(); err != nil {
		return Settlement{}, fmt.Errorf("commit transaction: %w", err)
	}

	settlement.Transaction = t
	settlement.Assignment = a
	return settlement, nil
}
