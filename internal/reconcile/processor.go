// Package reconcile turns payment gateway activity into durable
// Transaction and Assignment state.
//
// Gateway deliveries are at-least-once and may arrive out of order or
// concurrently. Every path here is therefore idempotent: an unknown intent is
// acknowledged, a repeated success is a no-op, and an assignment already past
// CONFIRMED is marked PAID without its status moving backwards.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/assignly/internal/authz"
	"github.com/roach88/assignly/internal/domain"
	"github.com/roach88/assignly/internal/gateway"
	"github.com/roach88/assignly/internal/store"
	"github.com/shopspring/decimal"
)

// OutcomeIgnored reports a verified event whose type changes nothing.
const OutcomeIgnored store.Outcome = "ignored"

// Settings are the payment parameters injected from configuration.
type Settings struct {
	Currency           string
	PlatformFeePercent decimal.Decimal

	// GatewayTimeout bounds intent creation. Zero means 10s.
	GatewayTimeout time.Duration
}

// Processor creates payment intents and applies webhook events.
//
// Thread-safety: Processor holds no mutable state and is safe for concurrent use.
type Processor struct {
	store    *store.Store
	intents  gateway.IntentCreator
	verifier gateway.EventVerifier
	settings Settings
	clock    domain.Clock
	ids      domain.IDGenerator
	logger   *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock overrides the wall clock.
func WithClock(c domain.Clock) Option {
	return func(p *Processor) { p.clock = c }
}

// WithIDGenerator overrides transaction id generation.
func WithIDGenerator(g domain.IDGenerator) Option {
	return func(p *Processor) { p.ids = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// New creates a Processor.
func New(s *store.Store, intents gateway.IntentCreator, verifier gateway.EventVerifier, settings Settings, opts ...Option) *Processor {
	if settings.GatewayTimeout == 0 {
		settings.GatewayTimeout = 10 * time.Second
	}
	p := &Processor{
		store:    s,
		intents:  intents,
		verifier: verifier,
		settings: settings,
		clock:    domain.SystemClock{},
		ids:      domain.UUIDv7Generator{},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PaymentIntent is the result of CreateIntent.
type PaymentIntent struct {
	ClientSecret string
	Transaction  domain.Transaction

	// Created is false when the gateway returned an intent already on record.
	Created bool
}

// PlatformFee returns the fee snapshot for amount, rounded to two places.
func (p *Processor) PlatformFee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(p.settings.PlatformFeePercent).Div(decimal.NewFromInt(100)).Round(2)
}

// CreateIntent mints a gateway intent for a CONFIRMED assignment owned by
// actor and records a PENDING Transaction for it.
//
// If the assignment already has a PENDING transaction, its intent is fetched
// from the gateway and returned, so a retry gets the same intent and the same
// Transaction no matter how long ago the first call was. Otherwise the
// gateway mints a new intent; if that fails or times out, a GATEWAY error is
// returned and nothing is stored. The idempotency key, derived from the
// assignment id, covers a retry that races the first call's commit.
func (p *Processor) CreateIntent(ctx context.Context, actor domain.Actor, assignmentID string) (PaymentIntent, error) {
	a, err := p.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return PaymentIntent{}, err
	}
	if err := authz.Check(actor, &a, domain.KindPay); err != nil {
		return PaymentIntent{}, err
	}
	if t, _ := domain.LookupTransition(domain.KindPay); !t.Allows(a.Status) || a.PaymentStatus == domain.PaymentPaid {
		return PaymentIntent{}, domain.NewConflictError(a.ID, domain.KindPay, a.Status)
	}

	gctx, cancel := context.WithTimeout(ctx, p.settings.GatewayTimeout)
	defer cancel()

	pending, found, err := p.store.GetPendingTransaction(ctx, a.ID)
	if err != nil {
		return PaymentIntent{}, err
	}
	if found {
		return p.resumeIntent(gctx, pending)
	}

	amount := a.Budget
	fee := p.PlatformFee(amount)

	intent, err := p.intents.CreateIntent(gctx, gateway.IntentRequest{
		AssignmentID:   a.ID,
		UserID:         actor.ID,
		Amount:         amount,
		PlatformFee:    fee,
		Currency:       p.settings.Currency,
		IdempotencyKey: "assignment-" + a.ID,
	})
	if err != nil {
		p.logger.Warn("payment intent creation failed",
			"assignment_id", a.ID,
			"error", err)
		return PaymentIntent{}, domain.NewGatewayError(err)
	}

	now := p.clock.Now()
	tx, created, err := p.store.CreateTransaction(ctx, domain.Transaction{
		ID:              p.ids.Generate(),
		AssignmentID:    a.ID,
		User:            actor.ID,
		Amount:          amount,
		PlatformFee:     fee,
		Currency:        p.settings.Currency,
		GatewayIntentID: intent.ID,
		Status:          domain.TxPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return PaymentIntent{}, err
	}

	if created {
		p.logger.Info("payment intent created",
			"assignment_id", a.ID,
			"intent_id", intent.ID,
			"amount", amount.String(),
			"actor", actor.String())
	} else {
		p.logger.Debug("payment intent reused",
			"assignment_id", a.ID,
			"intent_id", intent.ID)
	}
	return PaymentIntent{ClientSecret: intent.ClientSecret, Transaction: tx, Created: created}, nil
}

// resumeIntent hands back the intent behind an existing PENDING transaction.
// It does not depend on the gateway still remembering the idempotency key.
func (p *Processor) resumeIntent(ctx context.Context, tx domain.Transaction) (PaymentIntent, error) {
	intent, err := p.intents.GetIntent(ctx, tx.GatewayIntentID)
	if err != nil {
		p.logger.Warn("payment intent lookup failed",
			"assignment_id", tx.AssignmentID,
			"intent_id", tx.GatewayIntentID,
			"error", err)
		return PaymentIntent{}, domain.NewGatewayError(err)
	}
	p.logger.Debug("payment intent reused",
		"assignment_id", tx.AssignmentID,
		"intent_id", tx.GatewayIntentID)
	return PaymentIntent{ClientSecret: intent.ClientSecret, Transaction: tx}, nil
}

// Transactions lists the payment attempts on an assignment. Only the owning
// student may see them.
func (p *Processor) Transactions(ctx context.Context, actor domain.Actor, assignmentID string) ([]domain.Transaction, error) {
	a, err := p.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(actor, &a, domain.KindPay); err != nil {
		return nil, err
	}
	return p.store.ListTransactions(ctx, assignmentID)
}

// Result describes how a webhook delivery was handled.
type Result struct {
	EventID   string
	EventType string
	IntentID  string
	Outcome   store.Outcome
}

// HandleEvent verifies a raw webhook delivery and applies it.
//
// A SIGNATURE error means the delivery was rejected with no side effects.
// Any other error is a storage failure and the delivery should be retried.
// Duplicates, unknown intents and uninteresting event types are successes.
func (p *Processor) HandleEvent(ctx context.Context, payload []byte, signatureHeader string) (Result, error) {
	ev, err := p.verifier.VerifyEvent(payload, signatureHeader)
	if err != nil {
		return Result{}, err
	}

	res := Result{EventID: ev.ID, EventType: ev.Type, IntentID: ev.IntentID}
	if ev.Type != gateway.EventPaymentIntentSucceeded {
		p.logger.Debug("ignoring webhook event",
			"event_id", ev.ID,
			"type", ev.Type)
		res.Outcome = OutcomeIgnored
		return res, nil
	}

	settlement, err := p.ApplySucceeded(ctx, ev.IntentID)
	if err != nil {
		return Result{}, err
	}
	res.Outcome = settlement.Outcome
	return res, nil
}

// ApplySucceeded records a successful payment for intentID. It is the
// idempotent core shared by webhook handling and the recovery sweep.
func (p *Processor) ApplySucceeded(ctx context.Context, intentID string) (store.Settlement, error) {
	s, err := p.store.ApplyPaymentSucceeded(ctx, intentID, p.clock.Now())
	if err != nil {
		return store.Settlement{}, err
	}

	switch s.Outcome {
	case store.OutcomeUnknownIntent:
		p.logger.Info("payment for unknown intent acknowledged", "intent_id", intentID)
	case store.OutcomeDuplicate:
		p.logger.Debug("duplicate payment event",
			"intent_id", intentID,
			"assignment_id", s.Assignment.ID)
	default:
		p.logger.Info("payment applied",
			"intent_id", intentID,
			"assignment_id", s.Assignment.ID,
			"outcome", s.Outcome,
			"from", s.From,
			"to", s.Assignment.Status,
			"actor", "gateway")
	}
	return s, nil
}

// Report summarizes a recovery sweep.
type Report struct {
	Scanned  int
	Repaired int
}

// Reconcile finishes every SUCCEEDED transaction whose assignment is not yet
// PAID by re-running ApplySucceeded. Safe to run at any time, including
// concurrently with live webhook traffic.
func (p *Processor) Reconcile(ctx context.Context) (Report, error) {
	pending, err := p.store.ListUnreconciled(ctx)
	if err != nil {
		return Report{}, err
	}

	var report Report
	for _, tx := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++
		s, err := p.ApplySucceeded(ctx, tx.GatewayIntentID)
		if err != nil {
			return report, err
		}
		if s.Outcome == store.OutcomeRepaired || s.Outcome == store.OutcomeApplied {
			report.Repaired++
		}
	}
	return report, nil
}
