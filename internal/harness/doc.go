// Package harness provides conformance testing for business networks.
//
// The harness deploys a business network into a fresh in-memory store,
// seeds it with resources, submits transactions through the engine and
// validates the outcome as an executable contract test.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	network: ../networks/sample
//	setup:
//	  - $class: org.acme.sample.SampleParticipant
//	    participantId: alice
//	    firstName: Alice
//	    lastName: Sample
//	flow:
//	  - submit:
//	      $class: org.acme.sample.SampleTransaction
//	      asset: resource:org.acme.sample.SampleAsset#A1
//	      newValue: "42"
//	    as: org.acme.sample.SampleParticipant#alice
//	    expect:
//	      outcome: committed
//	      return_values: ["A1=42"]
//	assertions:
//	  - type: event_emitted
//	    class: org.acme.sample.SampleEvent
//	    fields: { newValue: "42" }
//	  - type: resource_state
//	    resource: org.acme.sample.SampleAsset#A1
//	    expect: { value: "42" }
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - event_emitted: Verifies an event of a class was emitted with matching fields
//   - event_count: Verifies exactly N events of a class were emitted
//   - resource_state: Reads a resource as the system and verifies fields, or absence
//   - query_result: Runs a named query or SELECT statement as a participant
//     and verifies the number of results or their identifiers
//
// # Deterministic Testing
//
// All scenarios execute with deterministic clock and transaction IDs to
// ensure reproducible traces and golden snapshot comparison.
//
// The harness uses:
//   - Sequential transaction IDs (testutil.SequenceIDGenerator: tx-0001, tx-0002, ...)
//   - Deterministic clock (testutil.DeterministicClock)
//   - In-memory SQLite database (isolated per scenario)
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/owner_updates.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := harness.Run(ctx, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
