package harness

import (
	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

// Trace event types.
const (
	TraceCommitted  = "committed"
	TraceRolledBack = "rolled_back"
	TraceEmitted    = "event"
)

// TraceEvent records one submission outcome or one emitted event.
// Step is the 1-based index of the flow step that produced it.
type TraceEvent struct {
	Type          string     `json:"type"`
	Step          int        `json:"step"`
	Class         string     `json:"class,omitempty"`
	Participant   string     `json:"participant,omitempty"`
	TransactionID string     `json:"transaction_id,omitempty"`
	Seq           int64      `json:"seq,omitempty"`
	ReturnValues  []ir.Value `json:"return_values,omitempty"`
	Error         string     `json:"error,omitempty"`
	Event         ir.Object  `json:"event,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion holds.
	Pass bool `json:"pass"`

	// Trace contains submission outcomes and events in order.
	// Used for assertions and golden comparison.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Events returns the emitted events in order.
func (r *Result) Events() []ir.Object {
	var events []ir.Object
	for _, e := range r.Trace {
		if e.Type == TraceEmitted {
			events = append(events, e.Event)
		}
	}
	return events
}
