package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

// GoldenDir is where golden traces are stored, relative to the test's
// package directory.
const GoldenDir = "testdata/golden"

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
}

// toObject converts a TraceSnapshot to an ir.Object so it serializes with
// sorted keys. Fields that do not apply to an event are omitted.
func (s *TraceSnapshot) toObject() ir.Object {
	trace := make(ir.Array, len(s.Trace))
	for i, event := range s.Trace {
		obj := ir.Object{
			"type": ir.String(event.Type),
			"step": ir.Int(event.Step),
		}
		if event.Class != "" {
			obj["class"] = ir.String(event.Class)
		}
		if event.Participant != "" {
			obj["participant"] = ir.String(event.Participant)
		}
		if event.TransactionID != "" {
			obj["transaction_id"] = ir.String(event.TransactionID)
		}
		if event.Error != "" {
			obj["error"] = ir.String(event.Error)
		}
		switch event.Type {
		case TraceCommitted:
			obj["seq"] = ir.Int(event.Seq)
			values := ir.Array(event.ReturnValues)
			if values == nil {
				values = ir.Array{}
			}
			obj["return_values"] = values
		case TraceEmitted:
			obj["event"] = event.Event
		}
		trace[i] = obj
	}

	return ir.Object{
		"scenario_name": ir.String(s.ScenarioName),
		"trace":         trace,
	}
}

// Marshal renders the snapshot as indented JSON with sorted keys and a
// trailing newline.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	compact, err := ir.MarshalValue(s.toObject())
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	}
	traceJSON, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
