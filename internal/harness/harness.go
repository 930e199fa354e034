package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/assignly/internal/domain"
	"github.com/roach88/assignly/internal/gateway"
	"github.com/roach88/assignly/internal/negotiation"
	"github.com/roach88/assignly/internal/reconcile"
	"github.com/roach88/assignly/internal/store"
	"github.com/roach88/assignly/internal/testutil"
	"github.com/shopspring/decimal"
)

// badSecret signs webhook steps that set bad_signature.
const badSecret = "whsec_not_the_configured_secret"

// Harness executes one scenario against real components wired to a fresh
// store and deterministic collaborators.
type Harness struct {
	store    *store.Store
	engine   *negotiation.Engine
	payments *reconcile.Processor
	actors   map[string]domain.Actor
	refs     map[string]string // ref -> assignment id
	intents  map[string]string // ref -> gateway intent id
	events   int
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Expectation and assertion failures are reported in the Result. An error is
// returned only when the scenario cannot be executed at all: an undefined
// ref, malformed args, or a storage failure.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.DiscardHandler))
}

// RunWithLogger is Run with component logging sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewDeterministicClock()
	h := &Harness{
		store: st,
		engine: negotiation.New(st,
			negotiation.WithClock(clock),
			negotiation.WithIDGenerator(testutil.NewSequentialIDs("asg")),
			negotiation.WithLogger(logger)),
		payments: reconcile.New(st,
			testutil.NewFakeGateway(),
			gateway.NewStripe(gateway.StripeConfig{WebhookSecret: testutil.WebhookSecret}),
			reconcile.Settings{Currency: "inr", PlatformFeePercent: decimal.NewFromInt(10)},
			reconcile.WithClock(clock),
			reconcile.WithIDGenerator(testutil.NewSequentialIDs("txn")),
			reconcile.WithLogger(logger)),
		actors:  make(map[string]domain.Actor, len(scenario.Actors)),
		refs:    make(map[string]string),
		intents: make(map[string]string),
		logger:  logger,
	}
	for id, raw := range scenario.Actors {
		role, err := domain.ParseRole(raw)
		if err != nil {
			return nil, fmt.Errorf("actor %s: %w", id, err)
		}
		h.actors[id] = domain.Actor{ID: id, Role: role}
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		ev, opErr := h.execute(ctx, step)
		if opErr != nil && domain.CodeOf(opErr) == "" {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, opErr)
		}
		ev.Op = step.Op
		ev.Actor = step.As
		ev.Ref = step.Ref
		ev.Error = string(domain.CodeOf(opErr))
		if err := h.readBack(ctx, &ev); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		result.AddEvent(ev)

		for _, msg := range checkExpect(step, ev, opErr) {
			result.AddError(fmt.Sprintf("step %d (%s %s): %s", i, step.Op, step.Ref, msg))
		}
	}

	actx := &AssertionContext{Store: st, Ctx: ctx, Refs: h.refs}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	for _, msg := range CheckInvariants(ctx, st) {
		result.AddError(msg)
	}

	return result, nil
}

// execute performs one step. Domain errors are returned for comparison with
// the expect clause; any other error aborts the run.
func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, error) {
	var ev TraceEvent
	actor := h.actors[step.As]

	if step.Op == OpCreate {
		in, err := createInput(step.Args)
		if err != nil {
			return ev, err
		}
		a, err := h.engine.Create(ctx, actor, in)
		if err == nil {
			h.refs[step.Ref] = a.ID
		}
		return ev, err
	}

	if step.Op == OpReconcile {
		report, err := h.payments.Reconcile(ctx)
		if err == nil {
			ev.Repaired = &report.Repaired
		}
		return ev, err
	}

	id, err := h.resolve(step.Ref)
	if err != nil {
		return ev, err
	}
	ev.AssignmentID = id

	switch step.Op {
	case OpGet:
		_, err = h.engine.Get(ctx, actor, id)
	case OpDelete:
		err = h.engine.Delete(ctx, actor, id)
	case OpQuote:
		amount, perr := argDecimal(step.Args, "amount")
		if perr != nil {
			return ev, perr
		}
		_, err = h.engine.SubmitQuote(ctx, actor, id, amount, argString(step.Args, "comment"))
	case OpProviderReject:
		_, err = h.engine.RejectByProvider(ctx, actor, id)
	case OpRespond:
		resp, perr := negotiation.ParseResponse(argString(step.Args, "action"))
		if perr != nil {
			return ev, perr
		}
		seen, perr := argDecimal(step.Args, "quoted_amount")
		if perr != nil {
			return ev, perr
		}
		_, err = h.engine.RespondToQuote(ctx, actor, id, resp, negotiation.Quote{
			Provider: argString(step.Args, "provider_id"),
			Amount:   seen,
		})
	case OpComplete:
		_, err = h.engine.Complete(ctx, actor, id)
	case OpDispute:
		_, err = h.engine.Dispute(ctx, actor, id)
	case OpIntent:
		var pi reconcile.PaymentIntent
		pi, err = h.payments.CreateIntent(ctx, actor, id)
		if err == nil {
			h.intents[step.Ref] = pi.Transaction.GatewayIntentID
		}
	case OpWebhook:
		var res reconcile.Result
		res, err = h.deliver(ctx, step)
		ev.Outcome = string(res.Outcome)
	default:
		return ev, fmt.Errorf("unknown op %q", step.Op)
	}
	return ev, err
}

// deliver signs and submits a gateway event for the step's ref.
func (h *Harness) deliver(ctx context.Context, step Step) (reconcile.Result, error) {
	h.events++
	eventID := argString(step.Args, "event_id")
	if eventID == "" {
		eventID = fmt.Sprintf("evt_%04d", h.events)
	}
	eventType := argString(step.Args, "type")
	if eventType == "" {
		eventType = gateway.EventPaymentIntentSucceeded
	}
	intentID := argString(step.Args, "intent")
	if intentID == "" {
		intentID = h.intents[step.Ref]
	}
	if intentID == "" {
		return reconcile.Result{}, fmt.Errorf("ref %q has no payment intent", step.Ref)
	}

	secret := testutil.WebhookSecret
	if b, _ := step.Args["bad_signature"].(bool); b {
		secret = badSecret
	}
	payload := testutil.EventPayload(eventID, eventType, intentID)
	return h.payments.HandleEvent(ctx, payload, testutil.SignPayload(payload, secret, time.Now()))
}

func (h *Harness) resolve(ref string) (string, error) {
	id, ok := h.refs[ref]
	if !ok {
		return "", fmt.Errorf("ref %q is not bound by an earlier create step", ref)
	}
	return id, nil
}

// readBack fills the event's status fields from the stored assignment. A
// deleted or never-created assignment leaves them empty.
func (h *Harness) readBack(ctx context.Context, ev *TraceEvent) error {
	id, ok := h.refs[ev.Ref]
	if !ok {
		return nil
	}
	ev.AssignmentID = id
	a, err := h.store.GetAssignment(ctx, id)
	if domain.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	ev.Status = string(a.Status)
	ev.PaymentStatus = string(a.PaymentStatus)
	return nil
}

// checkExpect compares a step's outcome with its expect clause.
func checkExpect(step Step, ev TraceEvent, opErr error) []string {
	var msgs []string
	exp := step.Expect
	if exp == nil {
		exp = &ExpectClause{}
	}

	switch {
	case exp.Error != "" && opErr == nil:
		msgs = append(msgs, fmt.Sprintf("expected error %s, step succeeded", exp.Error))
	case exp.Error != "" && ev.Error != exp.Error:
		msgs = append(msgs, fmt.Sprintf("expected error %s, got %v", exp.Error, opErr))
	case exp.Error == "" && opErr != nil:
		msgs = append(msgs, fmt.Sprintf("unexpected error: %v", opErr))
	}

	if exp.Status != "" && ev.Status != exp.Status {
		msgs = append(msgs, fmt.Sprintf("expected status %s, got %q", exp.Status, ev.Status))
	}
	if exp.PaymentStatus != "" && ev.PaymentStatus != exp.PaymentStatus {
		msgs = append(msgs, fmt.Sprintf("expected payment_status %s, got %q", exp.PaymentStatus, ev.PaymentStatus))
	}
	if exp.Outcome != "" && ev.Outcome != exp.Outcome {
		msgs = append(msgs, fmt.Sprintf("expected outcome %s, got %q", exp.Outcome, ev.Outcome))
	}
	if exp.Repaired != nil && (ev.Repaired == nil || *ev.Repaired != *exp.Repaired) {
		msgs = append(msgs, fmt.Sprintf("expected %d repaired, got %v", *exp.Repaired, derefInt(ev.Repaired)))
	}
	return msgs
}

func derefInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

// defaultDeadline is used by create steps that omit a deadline.
var defaultDeadline = testutil.Epoch.Add(30 * 24 * time.Hour)

func createInput(args map[string]interface{}) (negotiation.CreateInput, error) {
	budget, err := argDecimal(args, "budget")
	if err != nil {
		return negotiation.CreateInput{}, err
	}
	deadline, err := argTime(args, "deadline")
	if err != nil {
		return negotiation.CreateInput{}, err
	}
	if deadline.IsZero() {
		deadline = defaultDeadline
	}
	return negotiation.CreateInput{
		Title:       argString(args, "title"),
		Description: argString(args, "description"),
		Subject:     argString(args, "subject"),
		Budget:      budget,
		Deadline:    deadline,
		ProviderID:  argString(args, "provider_id"),
	}, nil
}

// argString renders a scalar arg as a string; YAML may decode numbers and
// booleans as non-strings.
func argString(args map[string]interface{}, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func argDecimal(args map[string]interface{}, key string) (decimal.Decimal, error) {
	raw := argString(args, key)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("arg %s: %w", key, err)
	}
	return d, nil
}

func argTime(args map[string]interface{}, key string) (time.Time, error) {
	switch v := args[key].(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("arg %s: %w", key, err)
		}
		return t, nil
	}
	return time.Time{}, errors.New("arg " + key + " must be an RFC3339 timestamp")
}
