package negotiation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/assignly/internal/authz"
	"github.com/roach88/assignly/internal/domain"
	"github.com/roach88/assignly/internal/store"
	"github.com/shopspring/decimal"
)

// Engine runs negotiation transitions against the store.
//
// Thread-safety: Engine holds no mutable state and is safe for concurrent use.
type Engine struct {
	store     *store.Store
	clock     domain.Clock
	ids       domain.IDGenerator
	providers ProviderDirectory
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock (tests use a deterministic one).
func WithClock(c domain.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator overrides assignment id generation.
func WithIDGenerator(g domain.IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithProviderDirectory sets the directory used to vet requested providers.
func WithProviderDirectory(d ProviderDirectory) Option {
	return func(e *Engine) { e.providers = d }
}

// WithLogger sets the logger for committed transitions.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine over s.
//
// Defaults: SystemClock, UUIDv7 ids, a directory that accepts any provider
// id, and a logger that discards output.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:     s,
		clock:     domain.SystemClock{},
		ids:       domain.UUIDv7Generator{},
		providers: NewStaticDirectory(nil),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateInput carries the fields of a new assignment.
type CreateInput struct {
	Title       string
	Description string
	Subject     string
	Budget      decimal.Decimal
	Deadline    time.Time

	// ProviderID optionally names a preferred provider. Unknown ids are ignored.
	ProviderID string
}

// Create posts a new assignment in PENDING_REVIEW owned by actor.
func (e *Engine) Create(ctx context.Context, actor domain.Actor, in CreateInput) (domain.Assignment, error) {
	if err := authz.Check(actor, nil, domain.KindCreate); err != nil {
		return domain.Assignment{}, err
	}

	title := domain.NormalizeText(in.Title)
	subject := domain.NormalizeText(in.Subject)
	switch {
	case title == "":
		return domain.Assignment{}, domain.NewValidationError("title is required")
	case subject == "":
		return domain.Assignment{}, domain.NewValidationError("subject is required")
	case in.Deadline.IsZero():
		return domain.Assignment{}, domain.NewValidationError("deadline is required")
	}
	if err := validateAmount("budget", in.Budget); err != nil {
		return domain.Assignment{}, err
	}

	now := e.clock.Now()
	a := domain.Assignment{
		ID:            e.ids.Generate(),
		Title:         title,
		Description:   domain.NormalizeText(in.Description),
		Subject:       subject,
		Budget:        in.Budget,
		Deadline:      in.Deadline.UTC(),
		Status:        domain.StatusPendingReview,
		PaymentStatus: domain.PaymentUnpaid,
		Student:       actor.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.ProviderID != "" {
		if e.providers.IsProvider(ctx, in.ProviderID) {
			requested := in.ProviderID
			a.RequestedProvider = &requested
		} else {
			e.logger.Debug("ignoring unknown requested provider",
				"provider_id", in.ProviderID,
				"actor", actor.String())
		}
	}

	if err := e.store.CreateAssignment(ctx, a); err != nil {
		return domain.Assignment{}, err
	}

	e.logger.Info("assignment created",
		"assignment_id", a.ID,
		"to", a.Status,
		"actor", actor.String())
	return a, nil
}

// Get returns an assignment visible to actor. An assignment the actor may
// not view is reported as NOT_FOUND.
func (e *Engine) Get(ctx context.Context, actor domain.Actor, id string) (domain.Assignment, error) {
	a, err := e.store.GetAssignment(ctx, id)
	if err != nil {
		return domain.Assignment{}, err
	}
	if !authz.CanView(actor, &a) {
		return domain.Assignment{}, domain.NewNotFoundError("assignment", id)
	}
	return a, nil
}

// List returns the assignments visible to actor, optionally restricted to
// one status. Students see their own; providers see the open pool plus
// those they hold.
func (e *Engine) List(ctx context.Context, actor domain.Actor, status domain.Status) ([]domain.Assignment, error) {
	filter := store.AssignmentFilter{Status: status}
	switch actor.Role {
	case domain.RoleStudent:
		filter.Student = actor.ID
	case domain.RoleProvider:
		filter.Provider = actor.ID
		filter.IncludePool = true
	default:
		return nil, domain.NewAuthorizationError("", "a student or a provider")
	}
	return e.store.ListAssignments(ctx, filter)
}

// SubmitQuote attaches actor as provider with a proposed price.
// PENDING_REVIEW -> QUOTED.
func (e *Engine) SubmitQuote(ctx context.Context, actor domain.Actor, id string, amount decimal.Decimal, comment string) (domain.Assignment, error) {
	if err := validateAmount("amount", amount); err != nil {
		return domain.Assignment{}, err
	}
	comment = domain.NormalizeText(comment)
	provider := actor.ID

	return e.apply(ctx, actor, id, domain.KindSubmitQuote, func(_ domain.Assignment, a *domain.Assignment) error {
		q := amount
		c := comment
		a.Provider = &provider
		a.QuotedAmount = &q
		a.WriterComment = &c
		return nil
	})
}

// RejectByProvider lets the quoting provider withdraw.
// QUOTED -> PENDING_REVIEW with provider and quote cleared.
func (e *Engine) RejectByProvider(ctx context.Context, actor domain.Actor, id string) (domain.Assignment, error) {
	return e.apply(ctx, actor, id, domain.KindProviderReject, func(_ domain.Assignment, a *domain.Assignment) error {
		a.ClearQuote()
		return nil
	})
}

// Quote identifies the offer a student is answering. An empty Provider or a
// zero Amount is not checked.
type Quote struct {
	Provider string
	Amount   decimal.Decimal
}

func (q Quote) matches(a domain.Assignment) bool {
	if q.Provider != "" && (a.Provider == nil || *a.Provider != q.Provider) {
		return false
	}
	if !q.Amount.IsZero() && (a.QuotedAmount == nil || !a.QuotedAmount.Equal(q.Amount)) {
		return false
	}
	return true
}

// quoteOf returns the full quote held by a.
func quoteOf(a domain.Assignment) Quote {
	var q Quote
	if a.Provider != nil {
		q.Provider = *a.Provider
	}
	if a.QuotedAmount != nil {
		q.Amount = *a.QuotedAmount
	}
	return q
}

// RespondQuote applies the student's decision on whatever quote the
// assignment holds when it is read. See RespondToQuote.
func (e *Engine) RespondQuote(ctx context.Context, actor domain.Actor, id string, resp Response) (domain.Assignment, error) {
	return e.RespondToQuote(ctx, actor, id, resp, Quote{})
}

// RespondToQuote applies the student's decision on the quote described by
// seen.
//
// ACCEPT: QUOTED -> CONFIRMED, budget replaced by the quoted amount.
// REJECT: QUOTED -> PENDING_REVIEW, provider and quote cleared.
//
// The status alone does not pin the quote: a withdrawal followed by a new
// quote returns the assignment to QUOTED with different terms. The commit
// is therefore refused with a raced CONFLICT if the stored quote no longer
// matches seen, or no longer matches the quote read at the start of the call.
func (e *Engine) RespondToQuote(ctx context.Context, actor domain.Actor, id string, resp Response, seen Quote) (domain.Assignment, error) {
	var kind domain.TransitionKind
	switch resp {
	case Accept:
		kind = domain.KindAcceptQuote
	case Reject:
		kind = domain.KindRejectQuote
	default:
		return domain.Assignment{}, domain.NewValidationError("action must be ACCEPT or REJECT, got %q", resp)
	}

	return e.apply(ctx, actor, id, kind, func(loaded domain.Assignment, a *domain.Assignment) error {
		if !seen.matches(*a) || !quoteOf(loaded).matches(*a) {
			return domain.NewStaleQuoteError(a.ID, a.Status)
		}
		if resp == Accept {
			a.Budget = *a.QuotedAmount
			a.QuotedAmount = nil
			a.WriterComment = nil
			return nil
		}
		a.ClearQuote()
		return nil
	})
}

// Complete records delivery by the assigned provider. IN_PROGRESS -> COMPLETED.
func (e *Engine) Complete(ctx context.Context, actor domain.Actor, id string) (domain.Assignment, error) {
	return e.apply(ctx, actor, id, domain.KindComplete, nil)
}

// Dispute records a dispute raised by either party.
// IN_PROGRESS or COMPLETED -> DISPUTED. No resolution logic exists.
func (e *Engine) Dispute(ctx context.Context, actor domain.Actor, id string) (domain.Assignment, error) {
	return e.apply(ctx, actor, id, domain.KindDispute, nil)
}

// Delete removes an assignment that has not been confirmed.
func (e *Engine) Delete(ctx context.Context, actor domain.Actor, id string) error {
	a, err := e.load(ctx, actor, id, domain.KindDelete)
	if err != nil {
		return err
	}
	if err := e.store.DeleteAssignment(ctx, id, a.Status); err != nil {
		return err
	}

	e.logger.Info("assignment deleted",
		"assignment_id", id,
		"from", a.Status,
		"actor", actor.String())
	return nil
}

// load fetches id and runs the authorization and transition-table checks
// for kind.
func (e *Engine) load(ctx context.Context, actor domain.Actor, id string, kind domain.TransitionKind) (domain.Assignment, error) {
	a, err := e.store.GetAssignment(ctx, id)
	if err != nil {
		return domain.Assignment{}, err
	}
	if err := authz.Check(actor, &a, kind); err != nil {
		return domain.Assignment{}, err
	}
	t, ok := domain.LookupTransition(kind)
	if !ok {
		return domain.Assignment{}, fmt.Errorf("no transition declared for %s", kind)
	}
	if !t.Allows(a.Status) {
		return domain.Assignment{}, domain.NewConflictError(id, kind, a.Status)
	}
	return a, nil
}

// editFunc sets the kind-specific fields on next, the record current at
// commit time. loaded is the record the checks ran against. Returning an
// error aborts the commit.
type editFunc func(loaded domain.Assignment, next *domain.Assignment) error

// apply commits kind on id. edit sets the kind-specific fields; the status
// change and updated_at are applied here from the transition table.
func (e *Engine) apply(ctx context.Context, actor domain.Actor, id string, kind domain.TransitionKind, edit editFunc) (domain.Assignment, error) {
	loaded, err := e.load(ctx, actor, id, kind)
	if err != nil {
		return domain.Assignment{}, err
	}
	t, _ := domain.LookupTransition(kind)

	now := e.clock.Now()
	updated, err := e.store.CompareAndSet(ctx, id, store.Expect{Status: loaded.Status}, func(a *domain.Assignment) error {
		if edit != nil {
			if err := edit(loaded, a); err != nil {
				return err
			}
		}
		a.Status = t.To
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		if domain.IsConflict(err) {
			e.logger.Debug("transition lost race",
				"assignment_id", id,
				"kind", kind,
				"actor", actor.String(),
				"error", err)
		}
		return domain.Assignment{}, err
	}

	e.logger.Info("assignment transition",
		"assignment_id", id,
		"kind", kind,
		"from", loaded.Status,
		"to", updated.Status,
		"actor", actor.String())
	return updated, nil
}

// validateAmount requires a positive value with at most two decimal places.
func validateAmount(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return domain.NewValidationError("%s must be greater than zero", field)
	}
	if !d.Equal(d.Round(2)) {
		return domain.NewValidationError("%s must have at most two decimal places", field)
	}
	return nil
}
