package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperledger-archives/composer-sub008/internal/network"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool       `json:"valid"`
	Network string     `json:"network,omitempty"`
	Errors  []CLIError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <network-dir>",
		Short: "Validate a business network without installing it",
		Long: `Parse and validate a business network without compiling its scripts
and queries for execution.

Checks network.yaml, model schemas and inheritance, access control rule
bindings, script syntax and query syntax. Faster than compile for
development feedback.

Exit codes:
  0 - The network is valid
  1 - The network has errors
  2 - The network directory cannot be read`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	def, err := network.Load(dir)
	if err != nil {
		errs := describeLoadError(err)
		if isUnreadable(err) {
			return commandFailure(formatter, errs)
		}
		return outputValidationErrors(formatter, errs)
	}

	formatter.VerboseLog("Parsed %s: %d class(es), %d rule(s), %d script(s), %d query(ies)",
		def.Identifier(),
		len(def.Models.Declarations()),
		len(def.ACL.Rules()),
		len(def.Scripts.Scripts()),
		len(def.Queries.Queries()),
	)

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Network: def.Identifier()})
	}
	fmt.Fprintf(formatter.Writer, "✓ %s is valid\n", def.Identifier())
	return nil
}

// isUnreadable reports whether err means the network files could not be
// read at all, as opposed to being read and rejected.
func isUnreadable(err error) bool {
	var le *network.LoadError
	if !errors.As(err, &le) {
		return false
	}
	switch le.Code {
	case network.ErrCodeScanError, network.ErrCodeNoFiles:
		return true
	case network.ErrCodeNotFound:
		return le.File == ""
	}
	return false
}

func outputValidationErrors(f *OutputFormatter, errs []CLIError) error {
	if f.Format == "json" {
		if err := f.encode(CLIResponse{
			Status: "error",
			Error:  &errs[0],
			Data:   ValidationResult{Valid: false, Errors: errs},
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(f.Writer, "✗ Validation failed with %d error(s)\n\n", len(errs))
		for _, e := range errs {
			fmt.Fprintf(f.Writer, "  [%s] %s\n", e.Code, e.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
