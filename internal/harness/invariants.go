package harness

import (
	"context"
	"fmt"

	"github.com/roach88/assignly/internal/domain"
	"github.com/roach88/assignly/internal/store"
)

// CheckInvariants inspects every stored assignment and transaction and
// reports violations of the lifecycle rules that must hold after any
// sequence of operations:
//
//   - each assignment passes domain validation (provider and quote fields
//     agree with status, budget positive)
//   - an assignment is PAID iff it has a SUCCEEDED transaction
//   - a PAID assignment is never in PENDING_REVIEW, QUOTED or CONFIRMED
//   - at most one PENDING transaction exists per assignment
//
// A storage failure is reported as a violation.
func CheckInvariants(ctx context.Context, st *store.Store) []string {
	as, err := st.ListAssignments(ctx, store.AssignmentFilter{})
	if err != nil {
		return []string{fmt.Sprintf("invariants: %v", err)}
	}

	var violations []string
	for _, a := range as {
		if err := a.Validate(); err != nil {
			violations = append(violations, fmt.Sprintf("invariant: %v", err))
		}

		txs, err := st.ListTransactions(ctx, a.ID)
		if err != nil {
			return append(violations, fmt.Sprintf("invariants: %v", err))
		}
		succeeded, pending := 0, 0
		for _, tx := range txs {
			switch tx.Status {
			case domain.TxSucceeded:
				succeeded++
			case domain.TxPending:
				pending++
			}
		}

		paid := a.PaymentStatus == domain.PaymentPaid
		if paid != (succeeded > 0) {
			violations = append(violations, fmt.Sprintf(
				"invariant: assignment %s payment_status=%s with %d succeeded transactions",
				a.ID, a.PaymentStatus, succeeded))
		}
		if paid {
			switch a.Status {
			case domain.StatusPendingReview, domain.StatusQuoted, domain.StatusConfirmed:
				violations = append(violations, fmt.Sprintf(
					"invariant: assignment %s is PAID but still %s", a.ID, a.Status))
			}
		}
		if pending > 1 {
			violations = append(violations, fmt.Sprintf(
				"invariant: assignment %s has %d pending transactions", a.ID, pending))
		}
	}
	return violations
}
