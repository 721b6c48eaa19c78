package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hyperledger-archives/composer-sub008/internal/engine"
	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/network"
	"github.com/hyperledger-archives/composer-sub008/internal/store"
	"github.com/hyperledger-archives/composer-sub008/internal/testutil"
)

// ErrorCodeTransactionFailed reports a rolled back transaction whose
// failure is not a runtime error, such as a script failure.
const ErrorCodeTransactionFailed = "TRANSACTION_FAILED"

// Harness is the test execution engine.
// It runs scenarios against a real engine with a deterministic clock and
// transaction IDs.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	net    *network.InstalledBusinessNetwork
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Transaction IDs are tx-0001, tx-0002, ... and the clock starts at
// testutil.Epoch, so identical scenarios produce identical traces.
// opts are applied after the deterministic defaults.
//
// Execution flow:
// 1. Load and install the business network
// 2. Create fresh in-memory database and deploy the network
// 3. Add setup resources as the system
// 4. Submit flow steps and check expect clauses
// 5. Evaluate assertions against the trace and final state
//
// Run returns an error only when the scenario cannot run; failed
// expectations are reported in the Result.
func Run(ctx context.Context, scenario *Scenario, opts ...engine.EngineOption) (*Result, error) {
	return run(ctx, scenario, nil, opts)
}

// run is Run with installs served from cache when it is non-nil.
func run(ctx context.Context, scenario *Scenario, cache *network.Cache, opts []engine.EngineOption) (*Result, error) {
	def, err := network.Load(scenario.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to load network: %w", err)
	}
	var net *network.InstalledBusinessNetwork
	if cache != nil {
		net, err = cache.Install(def)
	} else {
		net, err = network.Install(def)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to install network: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	opts = append([]engine.EngineOption{
		engine.WithIDGenerator(testutil.NewSequenceIDGenerator("tx")),
		engine.WithClock(testutil.NewDeterministicClock()),
	}, opts...)
	eng := engine.New(st, opts...)
	if err := eng.Deploy(ctx, net); err != nil {
		return nil, fmt.Errorf("failed to deploy network: %w", err)
	}

	h := &Harness{
		store:  st,
		engine: eng,
		net:    net,
		logger: slog.Default().With("scenario", scenario.Name),
	}

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Ctx:    ctx,
		Engine: eng,
		Net:    net,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeSetup adds all setup resources in one store transaction.
func (h *Harness) executeSetup(ctx context.Context, setup []map[string]any) error {
	if len(setup) == 0 {
		return nil
	}
	docs := make([]ir.Object, len(setup))
	for i, raw := range setup {
		doc, err := toObject(raw)
		if err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		docs[i] = doc
	}
	if err := h.engine.AddResources(ctx, h.net, docs...); err != nil {
		return err
	}
	h.logger.Debug("setup completed", "resources", len(docs))
	return nil
}

// executeFlow submits every flow step and validates expect clauses.
//
// Each step:
// 1. Looks up the submitting participant
// 2. Submits the transaction to the engine
// 3. Records the outcome, then any emitted events, in the trace
// 4. Compares the outcome with the expect clause
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		tx, err := toObject(step.Submit)
		if err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}

		var participant ir.Object
		if step.As != "" {
			participant, err = h.engine.LookupParticipant(ctx, h.net, step.As)
			if err != nil {
				return fmt.Errorf("flow[%d]: %w", i, err)
			}
		}

		outcome := TraceEvent{
			Step:        i + 1,
			Class:       ir.ClassOf(tx),
			Participant: step.As,
		}
		submitted, err := h.engine.Submit(ctx, h.net, tx, participant)
		if err != nil {
			outcome.Type = TraceRolledBack
			outcome.Error = errorCode(err)
			var re *engine.RuntimeError
			if errors.As(err, &re) {
				outcome.TransactionID = re.TransactionID
			}
			result.Trace = append(result.Trace, outcome)
			h.logger.Debug("flow step rolled back", "step", i, "class", outcome.Class, "error", err)
		} else {
			outcome.Type = TraceCommitted
			outcome.TransactionID = submitted.TransactionID
			outcome.Seq = submitted.Seq
			outcome.ReturnValues = submitted.ReturnValues
			result.Trace = append(result.Trace, outcome)
			for _, event := range submitted.Events {
				result.Trace = append(result.Trace, TraceEvent{
					Type:  TraceEmitted,
					Step:  i + 1,
					Class: ir.ClassOf(event),
					Event: event,
				})
			}
			h.logger.Debug("flow step committed",
				"step", i,
				"class", outcome.Class,
				"transaction", submitted.TransactionID,
				"events", len(submitted.Events),
			)
		}

		if msg := checkExpect(i, step.Expect, outcome); msg != "" {
			result.AddError(msg)
		}
	}

	return nil
}

// checkExpect compares a submission outcome with its expect clause and
// returns a failure message, or "" if they agree.
func checkExpect(index int, expect *ExpectClause, outcome TraceEvent) string {
	want := ExpectClause{Outcome: OutcomeCommitted}
	if expect != nil {
		want = *expect
	}

	if want.Outcome != outcome.Type {
		msg := fmt.Sprintf("flow[%d]: expected %s, got %s", index, want.Outcome, outcome.Type)
		if outcome.Error != "" {
			msg += " (" + outcome.Error + ")"
		}
		return msg
	}
	if want.Error != "" && want.Error != outcome.Error {
		return fmt.Sprintf("flow[%d]: expected error %s, got %s", index, want.Error, outcome.Error)
	}
	if want.ReturnValues != nil {
		expected, err := ir.FromGo(want.ReturnValues)
		if err != nil {
			return fmt.Sprintf("flow[%d]: return_values: %v", index, err)
		}
		actual := ir.Array(outcome.ReturnValues)
		if actual == nil {
			actual = ir.Array{}
		}
		if !ir.Equal(expected, actual) {
			return fmt.Sprintf("flow[%d]: expected return values %s, got %s",
				index, formatValue(expected), formatValue(actual))
		}
	}
	return ""
}

// errorCode classifies a submission failure.
func errorCode(err error) string {
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return ErrorCodeTransactionFailed
}

// toObject converts a YAML-parsed document to an ir.Object.
func toObject(raw map[string]any) (ir.Object, error) {
	v, err := ir.FromGo(raw)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %T", v)
	}
	return obj, nil
}

// formatValue renders a value as JSON for failure messages.
func formatValue(v ir.Value) string {
	data, err := ir.MarshalValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
