package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperledger-archives/composer-sub008/internal/engine"
	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/network"
	"github.com/hyperledger-archives/composer-sub008/internal/store"
)

// Error codes of the runtime commands.
const (
	ErrCodeDatabase    = "E010" // World state could not be opened or deployed
	ErrCodeInvalidJSON = "E011" // Input document is not a JSON object
	ErrCodeParticipant = "E012" // Submitting participant could not be resolved
)

// RuntimeOptions holds the flags of commands that run against a world
// state.
type RuntimeOptions struct {
	*RootOptions
	NetworkOptions
	DB          string // SQLite world state path
	Participant string // submitting participant, empty for the system
	Metrics     string // Prometheus text output path
}

func (o *RuntimeOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.DB, "db", "composer.db", "path to the world state database")
	cmd.Flags().StringVar(&o.Participant, "participant", "", "act as this participant (org.acme.Person#alice); the system when empty")
	cmd.Flags().BoolVar(&o.AllowHTTP, "allow-http", false, "let scripts call out over HTTP")
	cmd.Flags().StringVar(&o.Metrics, "metrics", "", "write runtime metrics in Prometheus text format to this file")
}

// session is an installed network deployed to an open world state.
type session struct {
	net         *network.InstalledBusinessNetwork
	store       *store.Store
	engine      *engine.Engine
	participant ir.Object
	metrics     *runtimeMetrics
	metricsPath string
}

// openSession installs the network at dir, deploys it to the world state
// and resolves the submitting participant.
func openSession(ctx context.Context, opts *RuntimeOptions, dir string) (*session, []CLIError) {
	m := newRuntimeMetrics()
	net, errs := installNetwork(dir, &opts.NetworkOptions, m.Metrics)
	if errs != nil {
		return nil, errs
	}

	st, err := store.Open(opts.DB)
	if err != nil {
		return nil, []CLIError{{Code: ErrCodeDatabase, Message: fmt.Sprintf("opening %s: %v", opts.DB, err)}}
	}

	engineOpts := []engine.EngineOption{engine.WithMetrics(m.Metrics)}
	if r := opts.requester(); r != nil {
		engineOpts = append(engineOpts, engine.WithRequester(r))
	}
	s := &session{
		net:         net,
		store:       st,
		engine:      engine.New(st, engineOpts...),
		metrics:     m,
		metricsPath: opts.Metrics,
	}

	if err := s.engine.Deploy(ctx, net); err != nil {
		s.Close()
		return nil, []CLIError{{Code: ErrCodeDatabase, Message: err.Error()}}
	}

	if opts.Participant != "" {
		p, err := s.engine.LookupParticipant(ctx, net, opts.Participant)
		if err != nil {
			s.Close()
			return nil, []CLIError{describeRuntimeError(ErrCodeParticipant, err)}
		}
		s.participant = p
	}
	return s, nil
}

// Close writes the metrics file, if any, and closes the world state.
func (s *session) Close() error {
	var errs []error
	if s.metricsPath != "" {
		errs = append(errs, s.metrics.WriteFile(s.metricsPath))
	}
	errs = append(errs, s.store.Close())
	return errors.Join(errs...)
}

// describeRuntimeError reports a runtime error under its own code and
// anything else under fallback.
func describeRuntimeError(fallback string, err error) CLIError {
	if re, ok := runtimeError(err); ok {
		details := map[string]any{}
		if re.TransactionID != "" {
			details["transaction_id"] = re.TransactionID
		}
		if re.Rule != "" {
			details["rule"] = re.Rule
		}
		if len(details) == 0 {
			return CLIError{Code: string(re.Code), Message: err.Error()}
		}
		return CLIError{Code: string(re.Code), Message: err.Error(), Details: details}
	}
	return CLIError{Code: fallback, Message: err.Error()}
}

func runtimeError(err error) (*engine.RuntimeError, bool) {
	var re *engine.RuntimeError
	ok := errors.As(err, &re)
	return re, ok
}

// readDocument reads a JSON object from arg: inline JSON, "@path" for a
// file or "-" for stdin.
func readDocument(arg string, stdin io.Reader) (ir.Object, error) {
	var data []byte
	var err error
	switch {
	case arg == "-":
		data, err = io.ReadAll(stdin)
	case strings.HasPrefix(arg, "@"):
		data, err = os.ReadFile(arg[1:])
	default:
		data = []byte(arg)
	}
	if err != nil {
		return nil, err
	}

	v, err := ir.UnmarshalValue(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object")
	}
	return obj, nil
}

// readDocuments reads a JSON array of objects, or a single object, from
// path.
func readDocuments(path string) ([]ir.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	v, err := ir.UnmarshalValue(data)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid JSON: %w", path, err)
	}
	switch val := v.(type) {
	case ir.Object:
		return []ir.Object{val}, nil
	case ir.Array:
		docs := make([]ir.Object, len(val))
		for i, item := range val {
			obj, ok := item.(ir.Object)
			if !ok {
				return nil, fmt.Errorf("%s: item %d is not an object", path, i)
			}
			docs[i] = obj
		}
		return docs, nil
	}
	return nil, fmt.Errorf("%s: expected an object or an array of objects", path)
}

// parseParams merges --params JSON with --param key=value pairs. Values
// given with --param are strings.
func parseParams(raw string, pairs []string) (map[string]any, error) {
	params := map[string]any{}
	if raw != "" {
		v, err := ir.UnmarshalValue([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("--params: %w", err)
		}
		obj, ok := v.(ir.Object)
		if !ok {
			return nil, fmt.Errorf("--params: expected a JSON object")
		}
		for k, value := range obj {
			params[k] = ir.ToGo(value)
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--param %q: expected key=value", pair)
		}
		params[key] = value
	}
	return params, nil
}
