package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq          int    `json:"seq"`
	Op           string `json:"op"`
	Actor        string `json:"actor,omitempty"`
	Ref          string `json:"ref,omitempty"`
	AssignmentID string `json:"assignment_id,omitempty"`

	// Error is the domain error code, empty on success.
	Error string `json:"error,omitempty"`

	// Status and PaymentStatus are read back from the store after the step.
	Status        string `json:"status,omitempty"`
	PaymentStatus string `json:"payment_status,omitempty"`

	// Outcome is the settlement outcome of webhook steps.
	Outcome string `json:"outcome,omitempty"`

	// Repaired is the count reported by reconcile steps.
	Repaired *int `json:"repaired,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause, assertion and invariant held.
	Pass bool `json:"pass"`

	// Trace holds one event per executed step.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends ev to the trace, numbering it.
func (r *Result) AddEvent(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
