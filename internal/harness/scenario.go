package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rwamarket/internal/ledger"
)

// Scenario defines a marketplace test scenario: setup commands that must
// succeed, flow commands with expectations, and assertions over the trace
// and final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Setup contains commands run before the flow. Each must be accepted.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the commands under test.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one command.
type Step struct {
	// Op is the operation kind ("buy", "rent_rwa", ...).
	Op string `yaml:"op"`

	// Caller is the identity issuing the command.
	Caller string `yaml:"caller"`

	// Funds are attached coins in compact form ("1000earth").
	Funds []string `yaml:"funds,omitempty"`

	// Now is the block time in seconds.
	Now uint64 `yaml:"now,omitempty"`

	// Args are the operation fields other than kind.
	Args map[string]interface{} `yaml:"args,omitempty"`

	// Expect validates the outcome. Nil means the step must be accepted.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a flow step.
type ExpectClause struct {
	// Error is the expected error code. Empty means accepted.
	Error string `yaml:"error,omitempty"`

	// Events is a subset of the expected event attributes.
	Events map[string]string `yaml:"events,omitempty"`

	// Transfers, when present, must equal the decided transfers exactly.
	// Each entry uses the canonical transfer fields.
	Transfers []map[string]string `yaml:"transfers,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op is the operation kind (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Events is a subset of event attributes (trace_contains).
	Events map[string]string `yaml:"events,omitempty"`

	// Ops is the expected order of accepted ops (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected number of occurrences (trace_count, transfer_count).
	Count int `yaml:"count,omitempty"`

	// Table is registry, offerings or rentals (final_state).
	Table string `yaml:"table,omitempty"`

	// Where selects a record by id (final_state on offerings or rentals).
	Where map[string]string `yaml:"where,omitempty"`

	// Absent asserts that no record matches (final_state).
	Absent bool `yaml:"absent,omitempty"`

	// Query is count, fee, owner, offers, rentals or rental (query).
	Query string `yaml:"query,omitempty"`

	// Args are query arguments: start_after, limit, id (query).
	Args map[string]interface{} `yaml:"args,omitempty"`

	// IDs are the expected ids returned by offers or rentals (query).
	IDs []string `yaml:"ids,omitempty"`

	// Error is the expected error code of a query (query).
	Error string `yaml:"error,omitempty"`

	// Expect contains expected field values, subset match (final_state, query).
	Expect map[string]string `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertTransferCount = "transfer_count"
	AssertFinalState    = "final_state"
	AssertQuery         = "query"
)

var (
	tables  = []string{"registry", "offerings", "rentals"}
	queries = []string{"count", "fee", "owner", "offers", "rentals", "rental"}
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
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

// Command converts the step into an engine command. The op envelope goes
// through ledger.DecodeOperation, so args follow the operation wire format.
func (s Step) Command() (ledger.Command, error) {
	op := map[string]interface{}{}
	for k, v := range s.Args {
		op[k] = v
	}
	op["kind"] = s.Op

	line, err := json.Marshal(map[string]interface{}{
		"caller": s.Caller,
		"funds":  s.Funds,
		"now":    s.Now,
		"op":     op,
	})
	if err != nil {
		return ledger.Command{}, fmt.Errorf("encode step: %w", err)
	}
	return ledger.DecodeCommand(line, ledger.DefaultValidator{})
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step) error {
	if step.Op == "" {
		return fmt.Errorf("op is required")
	}
	if !slices.Contains(ledger.Kinds, ledger.OperationKind(step.Op)) {
		return fmt.Errorf("unknown op %q", step.Op)
	}
	if step.Caller == "" {
		return fmt.Errorf("caller is required")
	}
	if step.Expect != nil && step.Expect.Error != "" && (len(step.Expect.Events) > 0 || len(step.Expect.Transfers) > 0) {
		return fmt.Errorf("expect: error excludes events and transfers")
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
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
	case AssertTransferCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for transfer_count", index)
		}
	case AssertFinalState:
		if !slices.Contains(tables, a.Table) {
			return fmt.Errorf("assertions[%d]: table must be one of %v for final_state", index, tables)
		}
		if a.Table != "registry" && a.Where["id"] == "" {
			return fmt.Errorf("assertions[%d]: where.id is required for final_state on %s", index, a.Table)
		}
		if !a.Absent && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect or absent is required for final_state", index)
		}
	case AssertQuery:
		if !slices.Contains(queries, a.Query) {
			return fmt.Errorf("assertions[%d]: query must be one of %v", index, queries)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
