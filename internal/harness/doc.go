// Package harness runs YAML scenarios against the negotiation engine and the
// reconciliation processor, and compares the resulting traces with golden
// files.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	actors:
//	  stu: STUDENT
//	  prov: PROVIDER
//	steps:
//	  - op: create
//	    as: stu
//	    ref: essay
//	    args: { title: Essay, subject: History, budget: "100", deadline: "2026-02-01T00:00:00Z" }
//	    expect: { status: PENDING_REVIEW }
//	  - op: quote
//	    as: prov
//	    ref: essay
//	    args: { amount: "80", comment: "can do" }
//	  - op: respond
//	    as: stu
//	    ref: essay
//	    args: { action: ACCEPT }
//	  - op: intent
//	    as: stu
//	    ref: essay
//	  - op: webhook
//	    ref: essay
//	    args: { event_id: evt_1 }
//	    expect: { outcome: applied }
//	assertions:
//	  - type: final_state
//	    ref: essay
//	    expect: { status: IN_PROGRESS, payment_status: PAID }
//
// A ref names an assignment created earlier in the scenario. Steps that
// expect a failure name the error code:
//
//	expect: { error: CONFLICT }
//
// # Operations
//
//   - create, get, delete
//   - quote, provider_reject, respond, complete, dispute
//   - intent: mints a payment intent and remembers its id under the ref
//   - webhook: signs and delivers a gateway event for the ref's intent
//   - reconcile: runs the recovery sweep
//
// # Assertion Types
//
//   - final_state: compares stored assignment fields (subset match)
//   - transactions: counts transactions for a ref, optionally by status
//   - trace_order: ops appear in the given order
//   - trace_count: an op appears exactly N times
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory store, testutil.DeterministicClock,
// sequential ids and testutil.FakeGateway, so identical scenarios produce
// identical traces. After the steps, the store-wide invariants in
// CheckInvariants are evaluated as well.
package harness
