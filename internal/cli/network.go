package cli

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hyperledger-archives/composer-sub008/internal/compiler"
	"github.com/hyperledger-archives/composer-sub008/internal/engine"
	"github.com/hyperledger-archives/composer-sub008/internal/metrics"
	"github.com/hyperledger-archives/composer-sub008/internal/network"
	"github.com/hyperledger-archives/composer-sub008/internal/queryparse"
	"github.com/hyperledger-archives/composer-sub008/internal/script"
)

// requestTimeout bounds every outbound call of a script's request global.
const requestTimeout = 30 * time.Second

// NetworkOptions holds the flags of commands that install a network.
type NetworkOptions struct {
	AllowHTTP bool // enable the request global of scripts
}

func (o *NetworkOptions) requester() *engine.HTTPRequester {
	if !o.AllowHTTP {
		return nil
	}
	return engine.NewHTTPRequester(&http.Client{Timeout: requestTimeout})
}

// installNetwork loads and installs the network at dir. Errors are
// returned as CLI errors ready for output.
func installNetwork(dir string, opts *NetworkOptions, m *metrics.Metrics) (*network.InstalledBusinessNetwork, []CLIError) {
	def, err := network.Load(dir)
	if err != nil {
		return nil, describeLoadError(err)
	}

	installOpts := []network.InstallOption{network.WithMetrics(m)}
	if r := opts.requester(); r != nil {
		installOpts = append(installOpts, network.WithRequester(r))
	}
	net, err := network.Install(def, installOpts...)
	if err != nil {
		return nil, []CLIError{{Code: network.ErrCodeInstallation, Message: err.Error()}}
	}
	return net, nil
}

// describeLoadError converts an error of network.Load into CLI errors.
// Validation failures yield one entry per ValidationError.
func describeLoadError(err error) []CLIError {
	if verrs := validationErrors(err); len(verrs) > 0 {
		out := make([]CLIError, len(verrs))
		for i, ve := range verrs {
			out[i] = CLIError{Code: ve.Code, Message: fmt.Sprintf("%s: %s", ve.Field, ve.Message), Details: ve}
		}
		return out
	}

	var le *network.LoadError
	if errors.As(err, &le) {
		details := map[string]any{}
		if le.File != "" {
			details["file"] = le.File
		}
		if le.Pos.IsValid() {
			details["file"] = le.Pos.Filename()
			details["line"] = le.Pos.Line()
		}
		if len(details) == 0 {
			return []CLIError{{Code: le.Code, Message: le.Message}}
		}
		return []CLIError{{Code: le.Code, Message: le.Message, Details: details}}
	}

	var se *script.CompileError
	if errors.As(err, &se) {
		return []CLIError{{Code: network.ErrCodeLoadFailed, Message: se.Error(), Details: map[string]any{"file": se.File, "line": se.Line}}}
	}
	var qe *queryparse.SyntaxError
	if errors.As(err, &qe) {
		return []CLIError{{Code: network.ErrCodeLoadFailed, Message: qe.Error(), Details: map[string]any{"file": qe.File, "line": qe.Line}}}
	}
	return []CLIError{{Code: network.ErrCodeGeneric, Message: err.Error()}}
}

// validationErrors collects the ValidationErrors joined into err.
func validationErrors(err error) []compiler.ValidationError {
	var out []compiler.ValidationError
	var walk func(error)
	walk = func(err error) {
		switch e := err.(type) {
		case compiler.ValidationError:
			out = append(out, e)
		case interface{ Unwrap() []error }:
			for _, inner := range e.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			if inner := e.Unwrap(); inner != nil {
				walk(inner)
			}
		}
	}
	walk(err)
	return out
}

// commandFailure reports errs and returns the exit error of a command
// that could not run.
func commandFailure(f *OutputFormatter, errs []CLIError) error {
	if len(errs) == 1 {
		_ = f.Error(errs[0].Code, errs[0].Message, errs[0].Details)
	} else {
		_ = f.Errors(errs)
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", errs[0].Code, errs[0].Message))
}
