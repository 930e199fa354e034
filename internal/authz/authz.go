// Package authz decides whether an actor may attempt a transition on an
// assignment. It is pure: no I/O, no clock.
package authz

import (
	"github.com/roach88/assignly/internal/domain"
)

// Check reports whether actor holds the role and relationship that kind
// requires on a. It does not look at the assignment's status; that is the
// transition table's job. Violations are AUTHORIZATION errors naming the
// missing relationship.
//
// For CREATE, a may be nil.
func Check(actor domain.Actor, a *domain.Assignment, kind domain.TransitionKind) error {
	id := ""
	if a != nil {
		id = a.ID
	}

	switch kind {
	case domain.KindCreate:
		if actor.Role != domain.RoleStudent {
			return domain.NewAuthorizationError(id, "a student")
		}
		return nil

	case domain.KindSubmitQuote:
		if actor.Role != domain.RoleProvider {
			return domain.NewAuthorizationError(id, "a provider")
		}
		return nil

	case domain.KindProviderReject, domain.KindComplete:
		if actor.Role != domain.RoleProvider || a == nil || !a.IsProvider(actor.ID) {
			return domain.NewAuthorizationError(id, "the assigned provider")
		}
		return nil

	case domain.KindAcceptQuote, domain.KindRejectQuote, domain.KindDelete, domain.KindPay:
		if actor.Role != domain.RoleStudent || a == nil || a.Student != actor.ID {
			return domain.NewAuthorizationError(id, "the owning student")
		}
		return nil

	case domain.KindDispute:
		if a != nil && actor.Role == domain.RoleStudent && a.Student == actor.ID {
			return nil
		}
		if a != nil && actor.Role == domain.RoleProvider && a.IsProvider(actor.ID) {
			return nil
		}
		return domain.NewAuthorizationError(id, "the owning student or the assigned provider")
	}

	return domain.NewAuthorizationError(id, "permitted to perform "+string(kind))
}

// CanTransition reports whether actor may perform kind on a in its current
// status: the relationship check above combined with the transition table.
func CanTransition(actor domain.Actor, a *domain.Assignment, kind domain.TransitionKind) bool {
	if err := Check(actor, a, kind); err != nil {
		return false
	}
	if kind == domain.KindCreate {
		return true
	}
	if a == nil {
		return false
	}
	t, ok := domain.LookupTransition(kind)
	return ok && t.Allows(a.Status)
}

// CanView reports whether actor may see a. Students see their own
// assignments; providers see what they hold plus the open pool.
// Callers treat an invisible assignment as NOT_FOUND so that existence is
// not leaked to unrelated actors.
func CanView(actor domain.Actor, a *domain.Assignment) bool {
	switch actor.Role {
	case domain.RoleStudent:
		return a.Student == actor.ID
	case domain.RoleProvider:
		return a.Status == domain.StatusPendingReview || a.IsProvider(actor.ID)
	}
	return false
}
