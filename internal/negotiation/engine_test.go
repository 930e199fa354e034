package negotiation

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/roach88/assignly/internal/domain"
	"github.com/roach88/assignly/internal/store"
	"github.com/roach88/assignly/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	student  = domain.Actor{ID: "stu", Role: domain.RoleStudent}
	stranger = domain.Actor{ID: "other", Role: domain.RoleStudent}
	provider = domain.Actor{ID: "prov", Role: domain.RoleProvider}
	rival    = domain.Actor{ID: "rival", Role: domain.RoleProvider}
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "negotiation.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	base := []Option{
		WithClock(testutil.NewDeterministicClock()),
		WithIDGenerator(testutil.NewSequentialIDs("asg")),
	}
	return New(s, append(base, opts...)...), s
}

func input() CreateInput {
	return CreateInput{
		Title:       "Essay on the Mughal empire",
		Description: "2000 words",
		Subject:     "History",
		Budget:      decimal.NewFromInt(100),
		Deadline:    testutil.Epoch.Add(72 * time.Hour),
	}
}

func createQuoted(t *testing.T, e *Engine) domain.Assignment {
	t.Helper()
	ctx := context.Background()
	a, err := e.Create(ctx, student, input())
	require.NoError(t, err)
	a, err = e.SubmitQuote(ctx, provider, a.ID, decimal.NewFromInt(80), "ok")
	require.NoError(t, err)
	return a
}

func stored(t *testing.T, s *store.Store, id string) domain.Assignment {
	t.Helper()
	a, err := s.GetAssignment(context.Background(), id)
	require.NoError(t, err)
	return a
}

func TestCreate(t *testing.T) {
	e, s := newTestEngine(t)
	a, err := e.Create(context.Background(), student, input())
	require.NoError(t, err)

	assert.Equal(t, "asg-0001", a.ID)
	assert.Equal(t, domain.StatusPendingReview, a.Status)
	assert.Equal(t, domain.PaymentUnpaid, a.PaymentStatus)
	assert.Equal(t, "stu", a.Student)
	assert.Nil(t, a.Provider)
	assert.Equal(t, testutil.Epoch.Add(time.Second), a.CreatedAt)
	assert.Equal(t, a, stored(t, s, a.ID))
}

func TestCreate_Validation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(in *CreateInput)
	}{
		{"blank title", func(in *CreateInput) { in.Title = "   " }},
		{"missing subject", func(in *CreateInput) { in.Subject = "" }},
		{"missing deadline", func(in *CreateInput) { in.Deadline = time.Time{} }},
		{"zero budget", func(in *CreateInput) { in.Budget = decimal.Zero }},
		{"negative budget", func(in *CreateInput) { in.Budget = decimal.NewFromInt(-1) }},
		{"sub-cent budget", func(in *CreateInput) { in.Budget = decimal.RequireFromString("10.005") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := input()
			tt.mutate(&in)
			_, err := e.Create(ctx, student, in)
			assert.True(t, domain.IsValidation(err), "got %v", err)
		})
	}
}

func TestCreate_ProviderCannotCreate(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Create(context.Background(), provider, input())
	assert.True(t, domain.IsAuthorization(err))
}

func TestCreate_RequestedProvider(t *testing.T) {
	e, _ := newTestEngine(t, WithProviderDirectory(NewStaticDirectory([]string{"prov"})))
	ctx := context.Background()

	in := input()
	in.ProviderID = "prov"
	a, err := e.Create(ctx, student, in)
	require.NoError(t, err)
	require.NotNil(t, a.RequestedProvider)
	assert.Equal(t, "prov", *a.RequestedProvider)
	assert.Nil(t, a.Provider, "a requested provider is not an assigned provider")

	in.ProviderID = "ghost"
	a, err = e.Create(ctx, student, in)
	require.NoError(t, err)
	assert.Nil(t, a.RequestedProvider)
}

func TestSubmitQuote(t *testing.T) {
	e, s := newTestEngine(t)
	a := createQuoted(t, e)

	assert.Equal(t, domain.StatusQuoted, a.Status)
	require.NotNil(t, a.Provider)
	assert.Equal(t, "prov", *a.Provider)
	assert.Equal(t, "80", a.QuotedAmount.String())
	assert.Equal(t, "ok", *a.WriterComment)
	assert.Equal(t, "100", a.Budget.String(), "budget is unchanged until the quote is accepted")
	assert.Equal(t, a, stored(t, s, a.ID))
}

func TestSubmitQuote_Failures(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	a, err := e.Create(ctx, student, input())
	require.NoError(t, err)

	_, err = e.SubmitQuote(ctx, provider, a.ID, decimal.Zero, "")
	assert.True(t, domain.IsValidation(err))

	_, err = e.SubmitQuote(ctx, student, a.ID, decimal.NewFromInt(80), "")
	assert.True(t, domain.IsAuthorization(err))

	_, err = e.SubmitQuote(ctx, provider, "missing", decimal.NewFromInt(80), "")
	assert.True(t, domain.IsNotFound(err))

	assert.Equal(t, domain.StatusPendingReview, stored(t, s, a.ID).Status)

	_, err = e.SubmitQuote(ctx, provider, a.ID, decimal.NewFromInt(80), "")
	require.NoError(t, err)
	_, err = e.SubmitQuote(ctx, rival, a.ID, decimal.NewFromInt(70), "")
	require.True(t, domain.IsConflict(err))
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.StatusQuoted, de.Current)
	assert.False(t, de.Raced)
}

func TestRejectByProvider(t *testing.T) {
	e, s := newTestEngine(t)
	a := createQuoted(t, e)
	ctx := context.Background()

	_, err := e.RejectByProvider(ctx, rival, a.ID)
	assert.True(t, domain.IsAuthorization(err))
	assert.Equal(t, a, stored(t, s, a.ID), "a failed reject leaves no trace")

	got, err := e.RejectByProvider(ctx, provider, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingReview, got.Status)
	assert.Nil(t, got.Provider)
	assert.Nil(t, got.QuotedAmount)
	assert.Nil(t, got.WriterComment)

	_, err = e.RejectByProvider(ctx, provider, a.ID)
	assert.True(t, domain.IsAuthorization(err), "no assigned provider after withdrawal")
}

func TestRespondQuote_Accept(t *testing.T) {
	e, s := newTestEngine(t)
	a := createQuoted(t, e)

	got, err := e.RespondQuote(context.Background(), student, a.ID, Accept)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)
	assert.Equal(t, "80", got.Budget.String())
	assert.Nil(t, got.QuotedAmount)
	assert.Nil(t, got.WriterComment)
	require.NotNil(t, got.Provider)
	assert.Equal(t, "prov", *got.Provider)
	assert.Equal(t, domain.PaymentUnpaid, got.PaymentStatus)
	assert.Equal(t, got, stored(t, s, a.ID))
}

func TestRespondQuote_Reject(t *testing.T) {
	e, _ := newTestEngine(t)
	a := createQuoted(t, e)

	got, err := e.RespondQuote(context.Background(), student, a.ID, Reject)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingReview, got.Status)
	assert.Nil(t, got.Provider)
	assert.Nil(t, got.QuotedAmount)
	assert.Equal(t, "100", got.Budget.String())
}

func TestRespondQuote_Failures(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	a := createQuoted(t, e)

	_, err := e.RespondQuote(ctx, stranger, a.ID, Accept)
	assert.True(t, domain.IsAuthorization(err))

	_, err = e.RespondQuote(ctx, student, a.ID, Response("MAYBE"))
	assert.True(t, domain.IsValidation(err))

	_, err = e.RespondQuote(ctx, student, a.ID, Accept)
	require.NoError(t, err)
	_, err = e.RespondQuote(ctx, student, a.ID, Reject)
	assert.True(t, domain.IsConflict(err))
}

func TestRespondQuote_ConcurrentExactlyOneWins(t *testing.T) {
	e, s := newTestEngine(t)
	a := createQuoted(t, e)

	responses := []Response{Accept, Reject, Accept, Reject, Accept}
	errs := make([]error, len(responses))
	var wg sync.WaitGroup
	for i, r := range responses {
		wg.Add(1)
		go func(i int, r Response) {
			defer wg.Done()
			_, errs[i] = e.RespondQuote(context.Background(), student, a.ID, r)
		}(i, r)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, domain.IsConflict(err), "loser got %v", err)
	}
	assert.Equal(t, 1, wins)

	final := stored(t, s, a.ID)
	assert.Contains(t, []domain.Status{domain.StatusConfirmed, domain.StatusPendingReview}, final.Status)
	assert.NoError(t, final.Validate())
}

func TestRespondToQuote_StaleQuoteRefused(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	a := createQuoted(t, e)
	seen := Quote{Provider: "prov", Amount: decimal.NewFromInt(80)}

	_, err := e.RejectByProvider(ctx, provider, a.ID)
	require.NoError(t, err)
	requoted, err := e.SubmitQuote(ctx, rival, a.ID, decimal.NewFromInt(500), "rush fee")
	require.NoError(t, err)

	_, err = e.RespondToQuote(ctx, student, a.ID, Accept, seen)
	require.True(t, domain.IsConflict(err))
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.True(t, de.Raced)
	assert.Equal(t, requoted, stored(t, s, a.ID), "stale accept leaves the new quote in place")

	got, err := e.RespondToQuote(ctx, student, a.ID, Accept, Quote{Provider: "rival", Amount: decimal.RequireFromString("500.00")})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)
	assert.Equal(t, "500", got.Budget.String())
}

func TestRespondToQuote_PartialQuoteMatch(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	a := createQuoted(t, e)

	_, err := e.RespondToQuote(ctx, student, a.ID, Reject, Quote{Amount: decimal.NewFromInt(81)})
	assert.True(t, domain.IsConflict(err))

	got, err := e.RespondToQuote(ctx, student, a.ID, Reject, Quote{Provider: "prov"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingReview, got.Status)
}

func TestRespondQuote_ConcurrentWithProviderReject(t *testing.T) {
	for i := 0; i < 20; i++ {
		e, s := newTestEngine(t)
		a := createQuoted(t, e)

		var wg sync.WaitGroup
		var rejectErr, acceptErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, rejectErr = e.RejectByProvider(context.Background(), provider, a.ID)
		}()
		go func() {
			defer wg.Done()
			_, acceptErr = e.RespondQuote(context.Background(), student, a.ID, Accept)
		}()
		wg.Wait()

		require.True(t, (rejectErr == nil) != (acceptErr == nil),
			"exactly one must win: reject=%v accept=%v", rejectErr, acceptErr)
		final := stored(t, s, a.ID)
		require.NoError(t, final.Validate())
		if acceptErr == nil {
			assert.True(t, domain.IsConflict(rejectErr))
			assert.Equal(t, domain.StatusConfirmed, final.Status)
			assert.Equal(t, "80", final.Budget.String())
		} else {
			assert.True(t, domain.IsConflict(acceptErr) || domain.IsValidation(acceptErr) || domain.IsAuthorization(acceptErr),
				"accept lost with %v", acceptErr)
			assert.Equal(t, domain.StatusPendingReview, final.Status)
			assert.Nil(t, final.Provider)
		}
	}
}

func TestRespondToQuote_ConcurrentWithRequote(t *testing.T) {
	for i := 0; i < 20; i++ {
		e, s := newTestEngine(t)
		a := createQuoted(t, e)
		seen := Quote{Provider: "prov", Amount: decimal.NewFromInt(80)}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := e.RejectByProvider(context.Background(), provider, a.ID); err == nil {
				_, _ = e.SubmitQuote(context.Background(), rival, a.ID, decimal.NewFromInt(500), "")
			}
		}()
		go func() {
			defer wg.Done()
			_, _ = e.RespondToQuote(context.Background(), student, a.ID, Accept, seen)
		}()
		wg.Wait()

		final := stored(t, s, a.ID)
		require.NoError(t, final.Validate())
		if final.Status == domain.StatusConfirmed {
			assert.Equal(t, "80", final.Budget.String(), "only the quote the student saw can be accepted")
			require.NotNil(t, final.Provider)
			assert.Equal(t, "prov", *final.Provider)
		}
	}
}

func TestDelete(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	a := createQuoted(t, e)

	err := e.Delete(ctx, stranger, a.ID)
	assert.True(t, domain.IsAuthorization(err))

	require.NoError(t, e.Delete(ctx, student, a.ID))
	_, err = s.GetAssignment(ctx, a.ID)
	assert.True(t, domain.IsNotFound(err))
}

func TestDelete_ConfirmedRefused(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	a := createQuoted(t, e)
	a, err := e.RespondQuote(ctx, student, a.ID, Accept)
	require.NoError(t, err)

	err = e.Delete(ctx, student, a.ID)
	require.True(t, domain.IsConflict(err))
	assert.Equal(t, a, stored(t, s, a.ID))
}

func TestCompleteAndDispute(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	a := createQuoted(t, e)
	_, err := e.RespondQuote(ctx, student, a.ID, Accept)
	require.NoError(t, err)

	_, err = e.Complete(ctx, provider, a.ID)
	assert.True(t, domain.IsConflict(err), "cannot complete before payment")

	_, err = s.CompareAndSet(ctx, a.ID, store.Expect{Status: domain.StatusConfirmed}, func(a *domain.Assignment) error {
		a.Status = domain.StatusInProgress
		a.PaymentStatus = domain.PaymentPaid
		return nil
	})
	require.NoError(t, err)

	_, err = e.Complete(ctx, student, a.ID)
	assert.True(t, domain.IsAuthorization(err))

	got, err := e.Complete(ctx, provider, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)

	_, err = e.Dispute(ctx, stranger, a.ID)
	assert.True(t, domain.IsAuthorization(err))

	got, err = e.Dispute(ctx, provider, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDisputed, got.Status)
	assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)

	_, err = e.Dispute(ctx, student, a.ID)
	assert.True(t, domain.IsConflict(err))
}

func TestGetAndList(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	open, err := e.Create(ctx, student, input())
	require.NoError(t, err)
	held := createQuoted(t, e)

	_, err = e.Get(ctx, stranger, open.ID)
	assert.True(t, domain.IsNotFound(err))
	_, err = e.Get(ctx, rival, held.ID)
	assert.True(t, domain.IsNotFound(err))
	got, err := e.Get(ctx, provider, held.ID)
	require.NoError(t, err)
	assert.Equal(t, held.ID, got.ID)

	mine, err := e.List(ctx, student, "")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	quoted, err := e.List(ctx, student, domain.StatusQuoted)
	require.NoError(t, err)
	require.Len(t, quoted, 1)
	assert.Equal(t, held.ID, quoted[0].ID)

	pool, err := e.List(ctx, rival, "")
	require.NoError(t, err)
	require.Len(t, pool, 1)
	assert.Equal(t, open.ID, pool[0].ID)

	both, err := e.List(ctx, provider, "")
	require.NoError(t, err)
	assert.Len(t, both, 2)

	none, err := e.List(ctx, stranger, "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTransitionsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	e, _ := newTestEngine(t, WithLogger(logger))

	createQuoted(t, e)
	out := buf.String()
	assert.Contains(t, out, "assignment created")
	assert.Contains(t, out, "kind=SUBMIT_QUOTE")
	assert.Contains(t, out, "from=PENDING_REVIEW")
	assert.Contains(t, out, "to=QUOTED")
}

func TestParseResponse(t *testing.T) {
	r, err := ParseResponse("ACCEPT")
	require.NoError(t, err)
	assert.Equal(t, Accept, r)

	r, err = ParseResponse("REJECT")
	require.NoError(t, err)
	assert.Equal(t, Reject, r)

	for _, in := range []string{"accept", " ACCEPT ", "Reject", "later", ""} {
		_, err = ParseResponse(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestStaticDirectory(t *testing.T) {
	ctx := context.Background()
	open := NewStaticDirectory(nil)
	assert.True(t, open.IsProvider(ctx, "anyone"))
	assert.False(t, open.IsProvider(ctx, ""))

	fixed := NewStaticDirectory([]string{"p-1", " "})
	assert.True(t, fixed.IsProvider(ctx, "p-1"))
	assert.False(t, fixed.IsProvider(ctx, "p-2"))
}
