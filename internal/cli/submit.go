package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperledger-archives/composer-sub008/internal/engine"
	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

// ErrCodeTransactionFailed reports a rolled back transaction whose error
// carries no runtime code, such as a script failure.
const ErrCodeTransactionFailed = "TRANSACTION_FAILED"

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	RuntimeOptions
	Seed string // resources added by the system before the transaction
}

// SubmitResult is the JSON payload of a committed transaction.
type SubmitResult struct {
	TransactionID string      `json:"transaction_id"`
	Seq           int64       `json:"seq"`
	Timestamp     string      `json:"timestamp"`
	Executed      int         `json:"executed"`
	ReturnValues  []ir.Value  `json:"return_values"`
	Events        []ir.Object `json:"events"`
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RuntimeOptions: RuntimeOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "submit <network-dir> <transaction>",
		Short: "Submit a transaction to the world state",
		Long: `Submit a transaction and run its transaction processor functions.

The transaction is a JSON object with a $class field, given inline, as
@file or as - for stdin. The transaction ID and timestamp are assigned
by the runtime. Without --participant the system submits the transaction
and access control does not apply.

Exit codes:
  0 - The transaction committed
  1 - The transaction rolled back
  2 - Command error (invalid network, unreadable input, database errors)

Examples:
  composer submit ./network '{"$class":"org.acme.sample.SampleTransaction","asset":"resource:org.acme.sample.SampleAsset#A1","newValue":"42"}' \
    --participant org.acme.sample.SampleParticipant#alice
  composer submit ./network @reset.json --seed resources.json --db state.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(opts, args[0], args[1], cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "JSON file of assets and participants to add before submitting")

	return cmd
}

func runSubmit(opts *SubmitOptions, dir, txArg string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)

	tx, err := readDocument(txArg, cmd.InOrStdin())
	if err != nil {
		return commandFailure(formatter, []CLIError{{Code: ErrCodeInvalidJSON, Message: fmt.Sprintf("reading transaction: %v", err)}})
	}

	var seed []ir.Object
	if opts.Seed != "" {
		if seed, err = readDocuments(opts.Seed); err != nil {
			return commandFailure(formatter, []CLIError{{Code: ErrCodeInvalidJSON, Message: fmt.Sprintf("reading seed: %v", err)}})
		}
	}

	s, errs := openSession(ctx, &opts.RuntimeOptions, dir)
	if errs != nil {
		return commandFailure(formatter, errs)
	}
	defer s.Close()

	if len(seed) > 0 {
		if err := s.engine.AddResources(ctx, s.net, seed...); err != nil {
			return commandFailure(formatter, []CLIError{describeRuntimeError(ErrCodeDatabase, err)})
		}
		formatter.VerboseLog("Added %d seed resource(s)", len(seed))
	}

	result, err := s.engine.Submit(ctx, s.net, tx, s.participant)
	if err != nil {
		return outputRolledBack(formatter, ir.ClassOf(tx), err)
	}
	return outputCommitted(formatter, ir.ClassOf(tx), result)
}

func outputCommitted(f *OutputFormatter, class string, result *engine.TransactionResult) error {
	payload := SubmitResult{
		TransactionID: result.TransactionID,
		Seq:           result.Seq,
		Timestamp:     result.Timestamp,
		Executed:      result.Executed,
		ReturnValues:  result.ReturnValues,
		Events:        result.Events,
	}
	if payload.ReturnValues == nil {
		payload.ReturnValues = []ir.Value{}
	}
	if payload.Events == nil {
		payload.Events = []ir.Object{}
	}

	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: payload, TransactionID: result.TransactionID})
	}

	fmt.Fprintf(f.Writer, "✓ %s committed as %s (seq %d)\n", class, result.TransactionID, result.Seq)
	fmt.Fprintf(f.Writer, "  %d function(s) executed\n", result.Executed)
	if len(payload.ReturnValues) > 0 {
		data, err := ir.MarshalValue(ir.Array(payload.ReturnValues))
		if err != nil {
			return err
		}
		fmt.Fprintf(f.Writer, "  returned %s\n", data)
	}
	for _, event := range payload.Events {
		data, err := ir.MarshalValue(event)
		if err != nil {
			return err
		}
		fmt.Fprintf(f.Writer, "  emitted %s\n", data)
	}
	return nil
}

func outputRolledBack(f *OutputFormatter, class string, err error) error {
	cliErr := describeRuntimeError(ErrCodeTransactionFailed, err)
	txID := ""
	if re, ok := runtimeError(err); ok {
		txID = re.TransactionID
	}

	if f.Format == "json" {
		if encErr := f.encode(CLIResponse{Status: "error", Error: &cliErr, TransactionID: txID}); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintf(f.Writer, "✗ %s rolled back [%s]\n  %s\n", class, cliErr.Code, cliErr.Message)
	}
	return WrapExitError(ExitFailure, "transaction rolled back", err)
}
