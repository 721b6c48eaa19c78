package harness

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-archives/composer-sub008/internal/engine"
	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/testutil"
)

// networkBase writes the sample network to <tmp>/sample and returns <tmp>,
// the base path scenarios under testdata/scenarios resolve against.
func networkBase(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	testutil.WriteNetwork(t, filepath.Join(base, "sample"), testutil.SampleNetworkFiles())
	return base
}

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenarioWithBasePath(filepath.Join("testdata", "scenarios", name+".yaml"), networkBase(t))
	require.NoError(t, err)
	return scenario
}

// inlineScenario parses YAML and points it at a fresh sample network.
func inlineScenario(t *testing.T, content string) *Scenario {
	t.Helper()
	scenario, err := ParseScenario([]byte(content))
	require.NoError(t, err)
	scenario.Network = filepath.Join(networkBase(t), "sample")
	require.NoError(t, validateScenario(scenario))
	return scenario
}

const peopleSetup = `
setup:
  - $class: org.acme.sample.SampleParticipant
    participantId: alice
    firstName: Alice
    lastName: Sample
  - $class: org.acme.sample.SampleAsset
    assetId: A1
    owner: resource:org.acme.sample.SampleParticipant#alice
    value: "10"
`

func TestScenarios_Golden(t *testing.T) {
	for _, name := range []string{"owner_updates_asset", "access_control"} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestScenario(t, name))
			require.NoError(t, err)
			assert.Empty(t, result.Errors)
			assert.True(t, result.Pass)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario := loadTestScenario(t, "owner_updates_asset")

	first, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	second, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace, "every run starts from a fresh store and clock")
}

func TestRun_Trace(t *testing.T) {
	result, err := Run(context.Background(), loadTestScenario(t, "owner_updates_asset"))
	require.NoError(t, err)

	require.Len(t, result.Trace, 4)
	assert.Equal(t, TraceCommitted, result.Trace[0].Type)
	assert.Equal(t, "tx-0001", result.Trace[0].TransactionID)
	assert.Equal(t, []ir.Value{ir.String("A1=42")}, result.Trace[0].ReturnValues)
	assert.Equal(t, TraceEmitted, result.Trace[1].Type)
	assert.Equal(t, 1, result.Trace[1].Step)

	events := result.Events()
	require.Len(t, events, 2)
	assert.Equal(t, ir.String("tx-0002#0"), events[1]["eventId"])
}

func TestRun_FailedExpectations(t *testing.T) {
	scenario := inlineScenario(t, `
name: wrong_expectations
description: "Every expectation is wrong"
network: sample
`+peopleSetup+`
flow:
  - submit:
      $class: org.acme.sample.SampleTransaction
      asset: resource:org.acme.sample.SampleAsset#A1
      newValue: "42"
    as: org.acme.sample.SampleParticipant#alice
    expect:
      outcome: rolled_back
  - submit:
      $class: org.acme.sample.SampleTransaction
      asset: resource:org.acme.sample.SampleAsset#A1
      newValue: "43"
    as: org.acme.sample.SampleParticipant#alice
    expect:
      outcome: committed
      return_values: ["A1=0"]
  - submit:
      $class: org.acme.sample.ResetValues
      value: "43"
    as: org.acme.sample.SampleParticipant#alice
assertions:
  - type: event_count
    class: org.acme.sample.SampleEvent
    count: 5
  - type: resource_state
    resource: org.acme.sample.SampleAsset#A1
    expect:
      value: "10"
`)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err, "failed expectations are reported, not returned")

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Equal(t, "flow[0]: expected rolled_back, got committed", result.Errors[0])
	assert.Equal(t, `flow[1]: expected return values ["A1=0"], got ["A1=43"]`, result.Errors[1])
	assert.Equal(t, "flow[2]: expected committed, got rolled_back (ACCESS_DENIED)", result.Errors[2])
	assert.Contains(t, result.Errors[3], "5 occurrences of org.acme.sample.SampleEvent")
	assert.Contains(t, result.Errors[4], `field "value" = "10"`)
}

func TestRun_SystemSubmission(t *testing.T) {
	scenario := inlineScenario(t, `
name: system_reset
description: "The system bypasses access control"
network: sample
`+peopleSetup+`
flow:
  - submit:
      $class: org.acme.sample.ResetValues
      value: "10"
    expect:
      outcome: committed
      return_values: [1]
assertions:
  - type: resource_state
    resource: resource:org.acme.sample.SampleAsset#A1
    expect:
      value: reset
`)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Trace[0].Participant)
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing network", func(t *testing.T) {
		scenario := inlineScenario(t, `
name: missing
description: "Network directory is gone"
network: sample
flow:
  - submit: {$class: org.acme.sample.ResetValues, value: "1"}
assertions:
  - type: event_count
    class: org.acme.sample.SampleEvent
`)
		scenario.Network = filepath.Join(t.TempDir(), "nowhere")
		_, err := Run(ctx, scenario)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load network")
	})

	t.Run("invalid setup", func(t *testing.T) {
		scenario := inlineScenario(t, `
name: bad_setup
description: "Setup resource misses its fields"
network: sample
setup:
  - $class: org.acme.sample.SampleParticipant
    participantId: alice
flow:
  - submit: {$class: org.acme.sample.ResetValues, value: "1"}
assertions:
  - type: event_count
    class: org.acme.sample.SampleEvent
`)
		_, err := Run(ctx, scenario)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to execute setup")
		assert.True(t, engine.IsInvalidResourceError(err))
	})

	t.Run("unknown participant", func(t *testing.T) {
		scenario := inlineScenario(t, `
name: ghost
description: "Submitting participant does not exist"
network: sample
flow:
  - submit: {$class: org.acme.sample.ResetValues, value: "1"}
    as: org.acme.sample.SampleParticipant#ghost
assertions:
  - type: event_count
    class: org.acme.sample.SampleEvent
`)
		_, err := Run(ctx, scenario)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "flow[0]")
		assert.True(t, engine.IsNotFoundError(err))
	})
}

func TestCheckExpect(t *testing.T) {
	committed := TraceEvent{Type: TraceCommitted, ReturnValues: []ir.Value{ir.Int(2)}}
	denied := TraceEvent{Type: TraceRolledBack, Error: "ACCESS_DENIED"}

	tests := []struct {
		name    string
		expect  *ExpectClause
		outcome TraceEvent
		want    string
	}{
		{"default commits", nil, committed, ""},
		{"default fails on rollback", nil, denied, "flow[3]: expected committed, got rolled_back (ACCESS_DENIED)"},
		{"rollback with code", &ExpectClause{Outcome: OutcomeRolledBack, Error: "ACCESS_DENIED"}, denied, ""},
		{"rollback with any code", &ExpectClause{Outcome: OutcomeRolledBack}, denied, ""},
		{"wrong code", &ExpectClause{Outcome: OutcomeRolledBack, Error: "RESOURCE_NOT_FOUND"}, denied, "flow[3]: expected error RESOURCE_NOT_FOUND, got ACCESS_DENIED"},
		{"return values", &ExpectClause{Outcome: OutcomeCommitted, ReturnValues: []any{2}}, committed, ""},
		{"wrong return values", &ExpectClause{Outcome: OutcomeCommitted, ReturnValues: []any{"2"}}, committed, `flow[3]: expected return values ["2"], got [2]`},
		{"no return values", &ExpectClause{Outcome: OutcomeCommitted, ReturnValues: []any{}}, TraceEvent{Type: TraceCommitted}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkExpect(3, tt.expect, tt.outcome))
		})
	}
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "ACCESS_DENIED", errorCode(engine.NewAccessError("p", "CREATE", "r", "")))
	wrapped := fmt.Errorf("transaction tx-1: %w", engine.NewNoNetworkError())
	assert.Equal(t, "NO_NETWORK", errorCode(wrapped))
	assert.Equal(t, ErrorCodeTransactionFailed, errorCode(errors.New("boom")))
}

func TestResult_AddError(t *testing.T) {
	result := NewResult()
	assert.True(t, result.Pass)

	result.AddError("first")
	result.AddError("second")
	assert.False(t, result.Pass)
	assert.Equal(t, []string{"first", "second"}, result.Errors)
	assert.Empty(t, result.Events())
}
