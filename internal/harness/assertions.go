package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/assignly/internal/domain"
	"github.com/roach88/assignly/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", ev.Seq, ev.Op, ev.Ref)
			if ev.Error != "" {
				fmt.Fprintf(&buf, " error=%s", ev.Error)
			}
			fmt.Fprintf(&buf, " status=%s\n", ev.Status)
		}
	}

	return buf.String()
}

// assertTraceOrder checks that ops appear in the specified order.
// Ops don't need to be consecutive (intervening steps are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for _, op := range assertion.Ops {
		found := false
		for pos < len(trace) {
			pos++
			if trace[pos-1].Op == op {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", assertion.Ops),
				Actual:   fmt.Sprintf("%s not found after position %d", op, pos),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the op appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Op == assertion.Op {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState compares stored assignment fields, addressed by their
// JSON names, with the expected values (subset semantics).
func assertFinalState(ctx context.Context, actx *AssertionContext, assertion Assertion) error {
	id, ok := actx.Refs[assertion.Ref]
	if !ok {
		return fmt.Errorf("final_state: ref %q was never created", assertion.Ref)
	}

	a, err := actx.Store.GetAssignment(ctx, id)
	if domain.IsNotFound(err) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("assignment %s (%s) to exist", assertion.Ref, id),
			Actual:   "not found",
		}
	}
	if err != nil {
		return fmt.Errorf("final_state: %w", err)
	}

	actual, err := fieldMap(a)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expected := assertion.Expect[key]
		got, exists := actual[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q is not an assignment field", key),
			}
		}
		if !stateValuesEqual(expected, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %v", assertion.Ref, key, expected),
				Actual:   fmt.Sprintf("%s.%s = %v", assertion.Ref, key, got),
			}
		}
	}
	return nil
}

// assertTransactions counts the transactions recorded for a ref.
func assertTransactions(ctx context.Context, actx *AssertionContext, assertion Assertion) error {
	id, ok := actx.Refs[assertion.Ref]
	if !ok {
		return fmt.Errorf("transactions: ref %q was never created", assertion.Ref)
	}

	txs, err := actx.Store.ListTransactions(ctx, id)
	if err != nil {
		return fmt.Errorf("transactions: %w", err)
	}
	count := 0
	for _, tx := range txs {
		if assertion.Status == "" || string(tx.Status) == assertion.Status {
			count++
		}
	}

	if count != assertion.Count {
		desc := "transactions"
		if assertion.Status != "" {
			desc = assertion.Status + " transactions"
		}
		return &AssertionError{
			Type:     AssertTransactions,
			Expected: fmt.Sprintf("%d %s for %s", assertion.Count, desc, assertion.Ref),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}

// fieldMap renders an assignment through its JSON encoding so that
// assertions address fields exactly as API clients see them.
func fieldMap(a domain.Assignment) (map[string]interface{}, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode assignment: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode assignment: %w", err)
	}
	return m, nil
}

// stateValuesEqual compares a YAML-decoded expected value with a
// JSON-decoded actual one. Scalars compare by their printed form, so
// budget: 80 matches the JSON string "80".
func stateValuesEqual(expected, actual interface{}) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	return fmt.Sprint(expected) == fmt.Sprint(actual)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context

	// Refs maps scenario refs to assignment ids.
	Refs map[string]string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides store access for final_state and
// transactions assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState, AssertTransactions:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires store context", i, assertion.Type)
			} else if assertion.Type == AssertFinalState {
				err = assertFinalState(actx.Ctx, actx, assertion)
			} else {
				err = assertTransactions(actx.Ctx, actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
