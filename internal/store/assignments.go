package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/assignly/internal/domain"
)

// Expect is the pre-state a CompareAndSet caller believes the record is in.
// An empty PaymentStatus matches any payment status.
type Expect struct {
	Status        domain.Status
	PaymentStatus domain.PaymentStatus
}

func (e Expect) matches(a domain.Assignment) bool {
	if a.Status != e.Status {
		return false
	}
	return e.PaymentStatus == "" || a.PaymentStatus == e.PaymentStatus
}

// Mutator edits a copy of the current assignment. Returning an error aborts
// the write and the error is returned unchanged to the caller.
type Mutator func(a *domain.Assignment) error

// AssignmentFilter narrows ListAssignments. Zero value lists everything.
type AssignmentFilter struct {
	// Student restricts to assignments owned by this student.
	Student string

	// Provider restricts to assignments held by this provider.
	Provider string

	// IncludePool additionally includes every PENDING_REVIEW assignment
	// when Provider is set.
	IncludePool bool

	// Status restricts to one lifecycle status.
	Status domain.Status
}

// CreateAssignment inserts a new assignment after checking its invariants.
func (s *Store) CreateAssignment(ctx context.Context, a domain.Assignment) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO assignments (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, assignmentColumns)
	if _, err := s.db.ExecContext(ctx, query, assignmentArgs(a)...); err != nil {
		return fmt.Errorf("insert assignment %s: %w", a.ID, err)
	}
	return nil
}

// GetAssignment loads an assignment by id.
// Returns a NOT_FOUND domain error if the id is unknown.
func (s *Store) GetAssignment(ctx context.Context, id string) (domain.Assignment, error) {
	return getAssignment(ctx, s.db, id)
}

func getAssignment(ctx context.Context, q querier, id string) (domain.Assignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM assignments WHERE id = ?`, assignmentColumns)
	a, err := scanAssignment(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Assignment{}, domain.NewNotFoundError("assignment", id)
	}
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("get assignment %s: %w", id, err)
	}
	return a, nil
}

// ListAssignments returns assignments matching filter.
//
// Results are ordered by created_at ASC, id ASC for deterministic output.
func (s *Store) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]domain.Assignment, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Student != "" {
		conds = append(conds, "student_id = ?")
		args = append(args, filter.Student)
	}
	if filter.Provider != "" {
		if filter.IncludePool {
			conds = append(conds, "(provider_id = ? OR status = ?)")
			args = append(args, filter.Provider, string(domain.StatusPendingReview))
		} else {
			conds = append(conds, "provider_id = ?")
			args = append(args, filter.Provider)
		}
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := fmt.Sprintf(`SELECT %s FROM assignments`, assignmentColumns)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC COLLATE BINARY"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return out, nil
}

// CompareAndSet applies mutate to assignment id only if its current state
// still matches expect, and returns the committed record.
//
// The check and the write run in one IMMEDIATE transaction and the UPDATE is
// itself conditional on the expected state, so of two concurrent callers
// expecting the same pre-state exactly one commits. The loser receives a
// CONFLICT domain error with Raced set and Current holding the status it lost to.
//
// The mutator cannot change id, student or created_at.
func (s *Store) CompareAndSet(ctx context.Context, id string, expect Expect, mutate Mutator) (domain.Assignment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getAssignment(ctx, tx, id)
	if err != nil {
		return domain.Assignment{}, err
	}
	if !expect.matches(current) {
		return domain.Assignment{}, domain.NewRaceError(id, expect.Status, current.Status)
	}

	next := current.Clone()
	if err := mutate(&next); err != nil {
		return domain.Assignment{}, err
	}
	next.ID = current.ID
	next.Student = current.Student
	next.CreatedAt = current.CreatedAt

	if err := updateAssignment(ctx, tx, next, current); err != nil {
		return domain.Assignment{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Assignment{}, fmt.Errorf("commit transaction: %w", err)
	}
	return next, nil
}

// updateAssignment writes next over the row only if the row still holds
// prev's status and payment status.
func updateAssignment(ctx context.Context, q querier, next, prev domain.Assignment) error {
	if err := next.Validate(); err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}

	res, err := q.ExecContext(ctx, `
		UPDATE assignments SET
			title = ?, description = ?, subject = ?, budget = ?, deadline = ?,
			status = ?, payment_status = ?, quoted_amount = ?, writer_comment = ?,
			provider_id = ?, requested_provider_id = ?, updated_at = ?
		WHERE id = ? AND status = ? AND payment_status = ?`,
		next.Title, next.Description, next.Subject, next.Budget.String(), formatTime(next.Deadline),
		string(next.Status), string(next.PaymentStatus), nullDecimal(next.QuotedAmount), nullString(next.WriterComment),
		nullString(next.Provider), nullString(next.RequestedProvider), formatTime(next.UpdatedAt),
		prev.ID, string(prev.Status), string(prev.PaymentStatus),
	)
	if err != nil {
		return fmt.Errorf("update assignment %s: %w", prev.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n != 1 {
		current, err := getAssignment(ctx, q, prev.ID)
		if err != nil {
			return err
		}
		return domain.NewRaceError(prev.ID, prev.Status, current.Status)
	}
	return nil
}

// DeleteAssignment removes assignment id only if it is still in expected.
// Returns NOT_FOUND if the id is unknown and a raced CONFLICT if the status moved.
func (s *Store) DeleteAssignment(ctx context.Context, id string, expected domain.Status) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM assignments WHERE id = ? AND status = ?`, id, string(expected))
	if err != nil {
		return fmt.Errorf("delete assignment %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		current, err := getAssignment(ctx, tx, id)
		if err != nil {
			return err
		}
		return domain.NewRaceError(id, expected, current.Status)
	}

	return tx.Commit()
}
