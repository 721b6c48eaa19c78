package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-archives/composer-sub008/internal/engine"
	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/network"
	"github.com/hyperledger-archives/composer-sub008/internal/store"
	"github.com/hyperledger-archives/composer-sub008/internal/testutil"
)

const eventClass = "org.acme.sample.SampleEvent"

func sampleTrace() []TraceEvent {
	event := func(step int, id, newValue string) TraceEvent {
		return TraceEvent{
			Type:  TraceEmitted,
			Step:  step,
			Class: eventClass,
			Event: ir.Object{
				ir.ClassKey: ir.String(eventClass),
				"eventId":   ir.String(id),
				"newValue":  ir.String(newValue),
			},
		}
	}
	return []TraceEvent{
		{Type: TraceCommitted, Step: 1, Class: "org.acme.sample.SampleTransaction", TransactionID: "tx-0001"},
		event(1, "tx-0001#0", "42"),
		{Type: TraceRolledBack, Step: 2, Class: "org.acme.sample.ResetValues", Error: "ACCESS_DENIED"},
		{Type: TraceCommitted, Step: 3, Class: "org.acme.sample.SampleTransaction", TransactionID: "tx-0003"},
		event(3, "tx-0003#0", "43"),
	}
}

func TestAssertEventEmitted(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name   string
		fields map[string]any
		found  bool
	}{
		{"any fields", nil, true},
		{"matching field", map[string]any{"newValue": "43"}, true},
		{"subset match", map[string]any{"eventId": "tx-0001#0", "newValue": "42"}, true},
		{"mismatched fields", map[string]any{"eventId": "tx-0001#0", "newValue": "43"}, false},
		{"missing field", map[string]any{"oldValue": "10"}, false},
		{"wrong type", map[string]any{"newValue": 42}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertEventEmitted(trace, Assertion{Type: AssertEventEmitted, Class: eventClass, Fields: tt.fields})
			if tt.found {
				assert.NoError(t, err)
				return
			}
			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, AssertEventEmitted, ae.Type)
			assert.Equal(t, "not found in trace", ae.Actual)
		})
	}

	err := assertEventEmitted(trace, Assertion{Type: AssertEventEmitted, Class: "org.acme.sample.Other"})
	assert.Error(t, err, "class must match")
}

func TestAssertEventCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertEventCount(trace, Assertion{Class: eventClass, Count: 2}))
	assert.NoError(t, assertEventCount(trace, Assertion{Class: "org.acme.sample.Other", Count: 0}))

	err := assertEventCount(trace, Assertion{Class: eventClass, Count: 1})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "1 occurrences of "+eventClass, ae.Expected)
	assert.Equal(t, "2 occurrences", ae.Actual)
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertEventCount,
		Expected: "3 occurrences of " + eventClass,
		Actual:   "2 occurrences",
		Trace:    sampleTrace()[:3],
	}

	want := "Assertion failed: event_count\n" +
		"  Expected: 3 occurrences of org.acme.sample.SampleEvent\n" +
		"  Actual: 2 occurrences\n" +
		"\nFull trace:\n" +
		"  [1] step 1 org.acme.sample.SampleTransaction committed as tx-0001\n" +
		"  [2] step 1 emitted org.acme.sample.SampleEvent\n" +
		"  [3] step 2 org.acme.sample.ResetValues rolled back: ACCESS_DENIED\n"
	assert.Equal(t, want, err.Error())

	noTrace := &AssertionError{Type: AssertResourceState, Expected: "a", Actual: "b"}
	assert.NotContains(t, noTrace.Error(), "Full trace")
}

func TestMatchFields(t *testing.T) {
	actual := ir.Object{"a": ir.String("1"), "b": ir.Array{ir.Int(1), ir.Int(2)}}

	assert.True(t, matchFields(actual, ir.Object{}))
	assert.True(t, matchFields(actual, ir.Object{"b": ir.Array{ir.Int(1), ir.Int(2)}}))
	assert.False(t, matchFields(actual, ir.Object{"b": ir.Array{ir.Int(2), ir.Int(1)}}))
	assert.False(t, matchFields(actual, ir.Object{"c": ir.Null{}}))
}

func TestParseResourceRef(t *testing.T) {
	for _, ref := range []string{"org.acme.sample.SampleAsset#A1", "resource:org.acme.sample.SampleAsset#A1"} {
		rel, err := parseResourceRef(ref)
		require.NoError(t, err)
		assert.Equal(t, ir.Relationship{Type: "org.acme.sample.SampleAsset", ID: "A1"}, rel)
	}

	_, err := parseResourceRef("org.acme.sample.SampleAsset")
	assert.Error(t, err)
}

// assertionContext deploys the sample network with alice owning A1.
func assertionContext(t *testing.T) *AssertionContext {
	t.Helper()
	ctx := context.Background()

	def, err := network.Parse(testutil.SampleNetworkFiles())
	require.NoError(t, err)
	net, err := network.Install(def)
	require.NoError(t, err)

	st, err := store.Open(t.TempDir() + "/harness.db")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	eng := engine.New(st)
	require.NoError(t, eng.Deploy(ctx, net))
	require.NoError(t, eng.AddResources(ctx, net,
		ir.Object{
			ir.ClassKey:     ir.String(testutil.SampleNamespace + ".SampleParticipant"),
			"participantId": ir.String("alice"),
			"firstName":     ir.String("Alice"),
			"lastName":      ir.String("Sample"),
		},
		ir.Object{
			ir.ClassKey: ir.String(testutil.SampleNamespace + ".SampleAsset"),
			"assetId":   ir.String("A1"),
			"owner":     ir.String("resource:org.acme.sample.SampleParticipant#alice"),
			"value":     ir.String("10"),
		},
	))
	return &AssertionContext{Ctx: ctx, Engine: eng, Net: net}
}

func TestAssertResourceState(t *testing.T) {
	actx := assertionContext(t)

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"fields match", Assertion{Resource: "org.acme.sample.SampleAsset#A1", Expect: map[string]any{"value": "10"}}, ""},
		{"field differs", Assertion{Resource: "org.acme.sample.SampleAsset#A1", Expect: map[string]any{"value": "11"}}, `field "value" = "11"`},
		{"field missing", Assertion{Resource: "org.acme.sample.SampleAsset#A1", Expect: map[string]any{"colour": "red"}}, `field "colour" to exist`},
		{"resource missing", Assertion{Resource: "org.acme.sample.SampleAsset#A9", Expect: map[string]any{"value": "10"}}, "resource not found"},
		{"absent", Assertion{Resource: "org.acme.sample.SampleAsset#A9", Absent: true}, ""},
		{"not absent", Assertion{Resource: "org.acme.sample.SampleAsset#A1", Absent: true}, "resource exists"},
		{"participant", Assertion{Resource: "org.acme.sample.SampleParticipant#alice", Expect: map[string]any{"firstName": "Alice"}}, ""},
		{"unknown type", Assertion{Resource: "org.acme.sample.Unknown#1", Absent: true}, "resource_state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertResourceState(actx, tt.assertion)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertQueryResult(t *testing.T) {
	actx := assertionContext(t)
	owner := map[string]any{"owner": "resource:org.acme.sample.SampleParticipant#alice"}

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"named query ids", Assertion{Query: "AssetsByOwner", Params: owner, IDs: []string{"A1"}}, ""},
		{"named query count", Assertion{Query: "AssetsByValue", Params: map[string]any{"value": "10"}, Count: 1}, ""},
		{"wrong count", Assertion{Query: "AssetsByValue", Params: map[string]any{"value": "10"}, Count: 2}, "2 results from AssetsByValue"},
		{"wrong ids", Assertion{Query: "AssetsByOwner", Params: owner, IDs: []string{"A2"}}, "results [A1]"},
		{"as participant", Assertion{Query: "AssetsByOwner", Params: owner, As: "org.acme.sample.SampleParticipant#alice", Count: 1}, ""},
		{"built query", Assertion{Query: "SELECT org.acme.sample.SampleAsset WHERE (value == _$value)", Params: map[string]any{"value": "10"}, IDs: []string{"A1"}}, ""},
		{"unknown query", Assertion{Query: "Missing"}, "query error"},
		{"missing parameter", Assertion{Query: "AssetsByValue"}, "query error"},
		{"unknown participant", Assertion{Query: "AssetsByValue", As: "org.acme.sample.SampleParticipant#ghost"}, "query_result"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertQueryResult(actx, tt.assertion)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEvaluateAssertions(t *testing.T) {
	result := &Result{Trace: sampleTrace()}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertEventCount, Class: eventClass, Count: 2},
		{Type: AssertEventEmitted, Class: eventClass, Fields: map[string]any{"newValue": "44"}},
		{Type: AssertResourceState, Resource: "org.acme.sample.SampleAsset#A1", Absent: true},
		{Type: "trace_order"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "Assertion failed: event_emitted")
	assert.Equal(t, "assertion[2]: resource_state requires an engine", errs[1])
	assert.Equal(t, `assertion[3]: unknown assertion type "trace_order"`, errs[2])
}
