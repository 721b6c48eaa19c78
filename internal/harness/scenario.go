package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a business network conformance scenario.
// A scenario deploys a network into an empty store, seeds it with
// resources, submits a flow of transactions and asserts on the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Network is the business network directory.
	// Relative paths are resolved against the scenario file location.
	Network string `yaml:"network"`

	// Setup lists resources added by the system before the flow runs.
	// Setup bypasses access control and is assumed to succeed.
	Setup []map[string]any `yaml:"setup,omitempty"`

	// Flow contains the transactions to submit, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate emitted events and final state.
	// Supported types: event_emitted, event_count, resource_state, query_result
	Assertions []Assertion `yaml:"assertions"`
}

// FlowStep submits one transaction.
type FlowStep struct {
	// Submit is the transaction document, including its $class.
	Submit map[string]any `yaml:"submit"`

	// As names the submitting participant, e.g.
	// "org.acme.sample.SampleParticipant#alice". Empty submits as the
	// system, which bypasses access control.
	As string `yaml:"as,omitempty"`

	// Expect specifies the expected outcome.
	// If nil, the transaction is expected to commit.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a submission.
type ExpectClause struct {
	// Outcome is "committed" or "rolled_back".
	Outcome string `yaml:"outcome"`

	// Error is the expected runtime error code of a rolled back
	// transaction (e.g. "ACCESS_DENIED"). Failures that are not runtime
	// errors report TRANSACTION_FAILED.
	Error string `yaml:"error,omitempty"`

	// ReturnValues are the values returned by the transaction processor
	// functions, in execution order. If nil, they are not checked.
	ReturnValues []any `yaml:"return_values,omitempty"`
}

// Assertion validates emitted events or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "event_emitted": an event of Class with matching Fields was emitted
	// - "event_count": exactly Count events of Class were emitted
	// - "resource_state": Resource exists with the Expect fields, or is gone if Absent
	// - "query_result": Query run as As with Params returns Count results, or IDs
	Type string `yaml:"type"`

	// Class is the event type (event_emitted, event_count).
	Class string `yaml:"class,omitempty"`

	// Fields are the expected event fields (event_emitted).
	// Subset match - only specified fields are validated.
	Fields map[string]any `yaml:"fields,omitempty"`

	// Count is the expected number of events or query results.
	Count int `yaml:"count,omitempty"`

	// Resource names a stored resource, e.g.
	// "org.acme.sample.SampleAsset#A1" (resource_state).
	Resource string `yaml:"resource,omitempty"`

	// Expect contains expected resource field values (resource_state).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Absent asserts the resource does not exist (resource_state).
	Absent bool `yaml:"absent,omitempty"`

	// Query is a named query or a SELECT statement (query_result).
	Query string `yaml:"query,omitempty"`

	// Params are the query parameters (query_result).
	Params map[string]any `yaml:"params,omitempty"`

	// As names the participant running the query (query_result).
	As string `yaml:"as,omitempty"`

	// IDs are the expected identifiers of the results, in order
	// (query_result). Overrides Count when present.
	IDs []string `yaml:"ids,omitempty"`
}

// Assertion type constants.
const (
	AssertEventEmitted  = "event_emitted"
	AssertEventCount    = "event_count"
	AssertResourceState = "resource_state"
	AssertQueryResult   = "query_result"
)

// Outcome constants.
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
)

// LoadScenario reads and parses a scenario YAML file, resolving the
// network directory relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the network directory relative to the provided base path.
// This is useful when scenarios live apart from the networks they test.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve the network path BEFORE validation
	if scenario.Network != "" && !filepath.IsAbs(scenario.Network) && basePath != "" {
		scenario.Network = filepath.Join(basePath, scenario.Network)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if info, err := os.Stat(scenario.Network); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("invalid scenario: network directory not found: %s", scenario.Network)
	}

	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Network == "" {
		return fmt.Errorf("network is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, doc := range s.Setup {
		if _, ok := doc["$class"].(string); !ok {
			return fmt.Errorf("setup[%d]: $class is required", i)
		}
	}

	for i, step := range s.Flow {
		if _, ok := step.Submit["$class"].(string); !ok {
			return fmt.Errorf("flow[%d]: submit with a $class is required", i)
		}
		if step.Expect == nil {
			continue
		}
		switch step.Expect.Outcome {
		case OutcomeCommitted:
			if step.Expect.Error != "" {
				return fmt.Errorf("flow[%d].expect: error requires outcome %s", i, OutcomeRolledBack)
			}
		case OutcomeRolledBack:
			if step.Expect.ReturnValues != nil {
				return fmt.Errorf("flow[%d].expect: return_values requires outcome %s", i, OutcomeCommitted)
			}
		default:
			return fmt.Errorf("flow[%d].expect: outcome must be %s or %s", i, OutcomeCommitted, OutcomeRolledBack)
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
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEventEmitted:
		if a.Class == "" {
			return fmt.Errorf("assertions[%d]: class is required for event_emitted", index)
		}
	case AssertEventCount:
		if a.Class == "" {
			return fmt.Errorf("assertions[%d]: class is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertResourceState:
		if a.Resource == "" {
			return fmt.Errorf("assertions[%d]: resource is required for resource_state", index)
		}
		if !a.Absent && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect or absent is required for resource_state", index)
		}
		if a.Absent && len(a.Expect) > 0 {
			return fmt.Errorf("assertions[%d]: expect and absent are exclusive", index)
		}
	case AssertQueryResult:
		if a.Query == "" {
			return fmt.Errorf("assertions[%d]: query is required for query_result", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for query_result", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
