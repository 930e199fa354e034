package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trace(ops ...string) []TraceEvent {
	events := make([]TraceEvent, len(ops))
	for i, op := range ops {
		events[i] = TraceEvent{Seq: i + 1, Op: op}
	}
	return events
}

func TestAssertTraceOrder(t *testing.T) {
	tr := trace(OpCreate, OpQuote, OpGet, OpRespond, OpIntent)

	assert.NoError(t, assertTraceOrder(tr, Assertion{Ops: []string{OpCreate, OpRespond, OpIntent}}))

	err := assertTraceOrder(tr, Assertion{Ops: []string{OpRespond, OpQuote}})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceOrder, ae.Type)

	assert.Error(t, assertTraceOrder(tr, Assertion{Ops: []string{OpWebhook}}))
}

func TestAssertTraceOrder_RepeatedOps(t *testing.T) {
	tr := trace(OpWebhook, OpCreate, OpWebhook)
	assert.NoError(t, assertTraceOrder(tr, Assertion{Ops: []string{OpWebhook, OpCreate, OpWebhook}}))
	assert.Error(t, assertTraceOrder(tr, Assertion{Ops: []string{OpCreate, OpWebhook, OpWebhook}}))
}

func TestAssertTraceCount(t *testing.T) {
	tr := trace(OpWebhook, OpWebhook, OpCreate)
	assert.NoError(t, assertTraceCount(tr, Assertion{Op: OpWebhook, Count: 2}))
	assert.NoError(t, assertTraceCount(tr, Assertion{Op: OpDispute, Count: 0}))

	err := assertTraceCount(tr, Assertion{Op: OpWebhook, Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences")
}

func TestStateValuesEqual(t *testing.T) {
	assert.True(t, stateValuesEqual(80, "80"))
	assert.True(t, stateValuesEqual("QUOTED", "QUOTED"))
	assert.True(t, stateValuesEqual(nil, nil))
	assert.False(t, stateValuesEqual(nil, "prov"))
	assert.False(t, stateValuesEqual("80", nil))
	assert.False(t, stateValuesEqual("80.5", "80.50"))
}

func TestAssertionError_Message(t *testing.T) {
	err := &AssertionError{
		Type:     AssertFinalState,
		Expected: "essay.status = PAID",
		Actual:   "essay.status = QUOTED",
		Trace:    []TraceEvent{{Seq: 1, Op: OpCreate, Ref: "essay", Status: "PENDING_REVIEW"}},
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: final_state")
	assert.Contains(t, msg, "Expected: essay.status = PAID")
	assert.Contains(t, msg, "[1] create essay status=PENDING_REVIEW")
}

func TestEvaluateAssertions_StoreRequired(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: AssertFinalState, Ref: "a"}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "requires store context")
}

func TestRun_FinalStateMismatchReported(t *testing.T) {
	sc := minimal(createStep())
	sc.Assertions = []Assertion{
		{Type: AssertFinalState, Ref: "a", Expect: map[string]interface{}{"status": "QUOTED"}},
		{Type: AssertFinalState, Ref: "a", Expect: map[string]interface{}{"colour": "red"}},
		{Type: AssertTransactions, Ref: "a", Count: 1},
	}

	result, err := Run(sc)
	require.NoError(t, err)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "a.status = QUOTED")
	assert.Contains(t, result.Errors[1], `field "colour"`)
	assert.Contains(t, result.Errors[2], "1 transactions for a")
}
