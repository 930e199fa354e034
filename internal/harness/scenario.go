package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/assignly/internal/domain"
	"gopkg.in/yaml.v3"
)

// Scenario is a scripted negotiation and payment flow with expected results.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Actors maps actor ids to roles (STUDENT or PROVIDER).
	Actors map[string]string `yaml:"actors"`

	// Steps run in order. A failing expect clause is recorded and the
	// remaining steps still run.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and store contents.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation performed by an actor.
type Step struct {
	// Op is the operation name, see the package documentation.
	Op string `yaml:"op"`

	// As is the acting actor id. Not used by webhook and reconcile.
	As string `yaml:"as,omitempty"`

	// Ref names the assignment the step operates on. A create step binds it.
	Ref string `yaml:"ref,omitempty"`

	// Args are operation arguments.
	Args map[string]interface{} `yaml:"args,omitempty"`

	// Expect, if set, is checked against the step's outcome. Without it a
	// step is expected to succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step. Empty fields are
// not checked.
type ExpectClause struct {
	// Error is the expected domain error code, e.g. CONFLICT.
	Error string `yaml:"error,omitempty"`

	// Status and PaymentStatus are compared with the stored assignment
	// after the step.
	Status        string `yaml:"status,omitempty"`
	PaymentStatus string `yaml:"payment_status,omitempty"`

	// Outcome is the expected webhook settlement outcome.
	Outcome string `yaml:"outcome,omitempty"`

	// Repaired is the expected reconcile count.
	Repaired *int `yaml:"repaired,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of final_state, transactions, trace_order, trace_count.
	Type string `yaml:"type"`

	// Ref names the assignment (final_state, transactions).
	Ref string `yaml:"ref,omitempty"`

	// Expect holds expected assignment fields by JSON name (final_state).
	// A null value expects the field to be null.
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// Status optionally restricts which transactions are counted.
	Status string `yaml:"status,omitempty"`

	// Op is the operation counted by trace_count.
	Op string `yaml:"op,omitempty"`

	// Ops is the expected order for trace_order.
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected number of occurrences (trace_count, transactions).
	Count int `yaml:"count,omitempty"`
}

// Operation names.
const (
	OpCreate         = "create"
	OpGet            = "get"
	OpDelete         = "delete"
	OpQuote          = "quote"
	OpProviderReject = "provider_reject"
	OpRespond        = "respond"
	OpComplete       = "complete"
	OpDispute        = "dispute"
	OpIntent         = "intent"
	OpWebhook        = "webhook"
	OpReconcile      = "reconcile"
)

// knownOps records whether each op needs an actor and a ref. webhook and
// reconcile are driven by the gateway or an operator.
var knownOps = map[string]struct{ actor, ref bool }{
	OpCreate:         {actor: true, ref: true},
	OpGet:            {actor: true, ref: true},
	OpDelete:         {actor: true, ref: true},
	OpQuote:          {actor: true, ref: true},
	OpProviderReject: {actor: true, ref: true},
	OpRespond:        {actor: true, ref: true},
	OpComplete:       {actor: true, ref: true},
	OpDispute:        {actor: true, ref: true},
	OpIntent:         {actor: true, ref: true},
	OpWebhook:        {ref: true},
	OpReconcile:      {},
}

// Assertion type constants.
const (
	AssertFinalState   = "final_state"
	AssertTransactions = "transactions"
	AssertTraceOrder   = "trace_order"
	AssertTraceCount   = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for id, role := range s.Actors {
		if _, err := domain.ParseRole(role); err != nil {
			return fmt.Errorf("actors[%s]: %w", id, err)
		}
	}

	for i, step := range s.Steps {
		op, ok := knownOps[step.Op]
		if !ok {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if op.actor {
			if step.As == "" {
				return fmt.Errorf("steps[%d]: as is required for %s", i, step.Op)
			}
			if _, ok := s.Actors[step.As]; !ok {
				return fmt.Errorf("steps[%d]: actor %q is not declared", i, step.As)
			}
		}
		if op.ref && step.Ref == "" {
			return fmt.Errorf("steps[%d]: ref is required for %s", i, step.Op)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertFinalState:
		if a.Ref == "" {
			return fmt.Errorf("assertions[%d]: ref is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertTransactions:
		if a.Ref == "" {
			return fmt.Errorf("assertions[%d]: ref is required for transactions", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
