package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/querycompiler"
)

// Error codes of the query command.
const (
	ErrCodeQuery          = "E013" // Query could not be built or executed
	ErrCodeQueryParameter = "E014" // A parameter the query needs is missing
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	RuntimeOptions
	Params     string   // JSON object of parameters
	ParamPairs []string // key=value string parameters
}

// QueryResult is the JSON payload of the query command.
type QueryResult struct {
	Query   string      `json:"query"`
	Count   int         `json:"count"`
	Results []ir.Object `json:"results"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RuntimeOptions: RuntimeOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "query <network-dir> <name|select>",
		Short: "Run a named query or a select statement",
		Long: `Run a query against the world state.

The query is either the name of a query in queries.qry or a select
statement such as "SELECT org.acme.sample.SampleAsset WHERE (value == _$v)".
Parameters are given with --param key=value (string values) or
--params '{"key": 1}'. Results the participant may not read are dropped.

Examples:
  composer query ./network AssetsByValue --param value=10
  composer query ./network AssetsByOwner \
    --param owner=resource:org.acme.sample.SampleParticipant#alice \
    --participant org.acme.sample.SampleParticipant#alice`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], args[1], cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringArrayVar(&opts.ParamPairs, "param", nil, "query parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.Params, "params", "", "query parameters as a JSON object")

	return cmd
}

func runQuery(opts *QueryOptions, dir, query string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)

	params, err := parseParams(opts.Params, opts.ParamPairs)
	if err != nil {
		return commandFailure(formatter, []CLIError{{Code: ErrCodeInvalidJSON, Message: err.Error()}})
	}

	s, errs := openSession(ctx, &opts.RuntimeOptions, dir)
	if errs != nil {
		return commandFailure(formatter, errs)
	}
	defer s.Close()

	id := query
	if isSelect(query) {
		if id, err = s.net.QueryBundle().BuildQuery(query); err != nil {
			return queryFailure(formatter, err)
		}
		formatter.VerboseLog("Built query %s", id)
	}

	results, err := s.engine.Query(ctx, s.net, s.participant, id, params)
	if err != nil {
		return queryFailure(formatter, err)
	}
	if results == nil {
		results = []ir.Object{}
	}

	if formatter.Format == "json" {
		return formatter.Success(QueryResult{Query: query, Count: len(results), Results: results})
	}
	for _, doc := range results {
		data, err := ir.MarshalValue(doc)
		if err != nil {
			return err
		}
		fmt.Fprintln(formatter.Writer, string(data))
	}
	formatter.VerboseLog("%d result(s)", len(results))
	return nil
}

func isSelect(query string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT")
}

// queryFailure reports a query that could not run.
func queryFailure(f *OutputFormatter, err error) error {
	code := ErrCodeQuery
	if querycompiler.IsParameterError(err) {
		code = ErrCodeQueryParameter
	}
	cliErr := describeRuntimeError(code, err)
	_ = f.Error(cliErr.Code, cliErr.Message, cliErr.Details)
	return WrapExitError(ExitFailure, "query failed", err)
}
