package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperledger-archives/composer-sub008/internal/engine"
	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/network"
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
		for i, event := range e.Trace {
			switch event.Type {
			case TraceEmitted:
				fmt.Fprintf(&buf, "  [%d] step %d emitted %s\n", i+1, event.Step, event.Class)
			case TraceRolledBack:
				fmt.Fprintf(&buf, "  [%d] step %d %s rolled back: %s\n", i+1, event.Step, event.Class, event.Error)
			default:
				fmt.Fprintf(&buf, "  [%d] step %d %s committed as %s\n", i+1, event.Step, event.Class, event.TransactionID)
			}
		}
	}

	return buf.String()
}

// assertEventEmitted checks if the trace contains an event of the
// specified class whose fields match (subset match).
func assertEventEmitted(trace []TraceEvent, assertion Assertion) error {
	expected, err := toObject(assertion.Fields)
	if err != nil {
		return fmt.Errorf("event_emitted fields: %w", err)
	}
	for _, event := range trace {
		if event.Type == TraceEmitted && event.Class == assertion.Class && matchFields(event.Event, expected) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertEventEmitted,
		Expected: fmt.Sprintf("event %s with fields %s", assertion.Class, formatValue(expected)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertEventCount checks that exactly Count events of the class were emitted.
func assertEventCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == TraceEmitted && event.Class == assertion.Class {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Class),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertResourceState reads a resource as the system and checks its
// fields (subset match), or that it does not exist.
func assertResourceState(actx *AssertionContext, assertion Assertion) error {
	rel, err := parseResourceRef(assertion.Resource)
	if err != nil {
		return fmt.Errorf("resource_state: %w", err)
	}
	decl, err := actx.Net.Definition().Models.GetType(rel.Type)
	if err != nil {
		return fmt.Errorf("resource_state: %w", err)
	}
	registry, err := actx.Engine.Registry(actx.Ctx, actx.Net, nil, decl.Kind.RegistryType(), rel.Type)
	if err != nil {
		return fmt.Errorf("resource_state: %w", err)
	}

	if assertion.Absent {
		exists, err := registry.Exists(actx.Ctx, rel.ID)
		if err != nil {
			return fmt.Errorf("resource_state: %w", err)
		}
		if exists {
			return &AssertionError{
				Type:     AssertResourceState,
				Expected: fmt.Sprintf("%s to be absent", assertion.Resource),
				Actual:   "resource exists",
			}
		}
		return nil
	}

	actual, err := registry.Get(actx.Ctx, rel.ID)
	if engine.IsNotFoundError(err) {
		return &AssertionError{
			Type:     AssertResourceState,
			Expected: fmt.Sprintf("%s to exist", assertion.Resource),
			Actual:   "resource not found",
		}
	}
	if err != nil {
		return fmt.Errorf("resource_state: %w", err)
	}

	expected, err := toObject(assertion.Expect)
	if err != nil {
		return fmt.Errorf("resource_state expect: %w", err)
	}
	// Check each expected field in a stable order
	for _, key := range expected.SortedKeys() {
		actualValue, exists := actual[key]
		if !exists {
			return &AssertionError{
				Type:     AssertResourceState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in %s", key, formatValue(actual)),
			}
		}
		if !ir.Equal(expected[key], actualValue) {
			return &AssertionError{
				Type:     AssertResourceState,
				Expected: fmt.Sprintf("field %q = %s", key, formatValue(expected[key])),
				Actual:   fmt.Sprintf("field %q = %s", key, formatValue(actualValue)),
			}
		}
	}

	return nil
}

// assertQueryResult runs a query as the named participant and checks the
// number of results, or their identifiers in order.
func assertQueryResult(actx *AssertionContext, assertion Assertion) error {
	var participant ir.Object
	if assertion.As != "" {
		p, err := actx.Engine.LookupParticipant(actx.Ctx, actx.Net, assertion.As)
		if err != nil {
			return fmt.Errorf("query_result: %w", err)
		}
		participant = p
	}

	nameOrID := assertion.Query
	if strings.HasPrefix(strings.TrimSpace(assertion.Query), "SELECT") {
		id, err := actx.Net.QueryBundle().BuildQuery(assertion.Query)
		if err != nil {
			return fmt.Errorf("query_result: %w", err)
		}
		nameOrID = id
	}

	results, err := actx.Engine.Query(actx.Ctx, actx.Net, participant, nameOrID, assertion.Params)
	if err != nil {
		return &AssertionError{
			Type:     AssertQueryResult,
			Expected: fmt.Sprintf("query %s to run", assertion.Query),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	if assertion.IDs != nil {
		actual, err := identifiers(actx.Net, results)
		if err != nil {
			return fmt.Errorf("query_result: %w", err)
		}
		if strings.Join(actual, ",") != strings.Join(assertion.IDs, ",") {
			return &AssertionError{
				Type:     AssertQueryResult,
				Expected: fmt.Sprintf("results %v", assertion.IDs),
				Actual:   fmt.Sprintf("results %v", actual),
			}
		}
		return nil
	}

	if len(results) != assertion.Count {
		return &AssertionError{
			Type:     AssertQueryResult,
			Expected: fmt.Sprintf("%d results from %s", assertion.Count, assertion.Query),
			Actual:   fmt.Sprintf("%d results", len(results)),
		}
	}
	return nil
}

// identifiers returns the identifying field of every result.
func identifiers(net *network.InstalledBusinessNetwork, results []ir.Object) ([]string, error) {
	models := net.Definition().Models
	ids := make([]string, len(results))
	for i, doc := range results {
		id, err := models.Identifier(doc)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// parseResourceRef accepts "resource:org.acme.Asset#A1" or "org.acme.Asset#A1".
func parseResourceRef(ref string) (ir.Relationship, error) {
	if !strings.HasPrefix(ref, ir.RelationshipPrefix) {
		ref = ir.RelationshipPrefix + ref
	}
	return ir.ParseRelationship(ref)
}

// matchFields checks if actual contains all expected fields (subset match).
// Extra keys in actual are ignored.
func matchFields(actual, expected ir.Object) bool {
	for key, expectedVal := range expected {
		actualVal, exists := actual[key]
		if !exists || !ir.Equal(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx    context.Context
	Engine *engine.Engine
	Net    *network.InstalledBusinessNetwork
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides engine access for state and query assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertEventEmitted:
			err = assertEventEmitted(result.Trace, assertion)
		case AssertEventCount:
			err = assertEventCount(result.Trace, assertion)
		case AssertResourceState, AssertQueryResult:
			if actx == nil || actx.Engine == nil || actx.Net == nil {
				err = fmt.Errorf("assertion[%d]: %s requires an engine", i, assertion.Type)
			} else if assertion.Type == AssertResourceState {
				err = assertResourceState(actx, assertion)
			} else {
				err = assertQueryResult(actx, assertion)
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
