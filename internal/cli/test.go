package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperledger-archives/composer-sub008/internal/harness"
	"github.com/hyperledger-archives/composer-sub008/internal/network"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Networks string // base directory scenario networks resolve against
	Update   bool   // regenerate golden files
	Filter   string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario-path>",
		Short: "Run scenario files against their business networks",
		Long: `Run YAML scenarios against a fresh in-memory world state.

Each scenario names its network directory, adds setup resources,
submits its flow of transactions and checks its assertions. A scenario
with a golden file (golden/<name>.golden next to the scenario file) must
also reproduce the recorded trace exactly.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  composer test ./scenarios
  composer test ./scenarios --filter "access-*"
  composer test ./scenarios --networks ./networks --update
  composer test ./scenarios/transfer.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Networks, "networks", "", "resolve scenario networks against this directory instead of the scenario's")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	paths, err := harness.FindScenarios(path)
	if err != nil {
		var notFound *harness.ScenarioNotFoundError
		if errors.As(err, &notFound) {
			return commandFailure(formatter, []CLIError{{Code: network.ErrCodeNotFound, Message: fmt.Sprintf("scenario path not found: %s", notFound.Path)}})
		}
		return commandFailure(formatter, []CLIError{{Code: network.ErrCodeScanError, Message: fmt.Sprintf("failed to find scenarios: %v", err)}})
	}
	if paths, err = filterScenarios(paths, opts.Filter); err != nil {
		return commandFailure(formatter, []CLIError{{Code: network.ErrCodeGeneric, Message: fmt.Sprintf("invalid filter: %v", err)}})
	}

	if len(paths) == 0 {
		if formatter.Format == "json" {
			return formatter.Success(TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(formatter.Writer, "No scenarios found.")
		return nil
	}

	suite, err := harness.RunSuite(cmd.Context(), paths, opts.Networks)
	if err != nil {
		return commandFailure(formatter, []CLIError{{Code: network.ErrCodeGeneric, Message: fmt.Sprintf("failed to run scenarios: %v", err)}})
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(suite.Scenarios)), Total: suite.TotalScenarios}
	for _, outcome := range suite.Scenarios {
		scenario := ScenarioResult{
			Name:   outcome.Name,
			Path:   outcome.Path,
			Pass:   outcome.Pass,
			Errors: outcome.Errors,
		}
		if scenario.Name == "" {
			scenario.Name = filepath.Base(outcome.Path)
		}
		if outcome.Result != nil {
			if err := checkGolden(outcome, opts.Update); err != nil {
				scenario.Pass = false
				scenario.Errors = append(scenario.Errors, err.Error())
			}
		}

		if scenario.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, scenario)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputTestText(formatter, result, opts.Update)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.Total))
	}
	return nil
}

// filterScenarios keeps the paths whose base name without extension
// matches pattern.
func filterScenarios(paths []string, pattern string) ([]string, error) {
	if pattern == "" {
		return paths, nil
	}
	var out []string
	for _, p := range paths {
		base := filepath.Base(p)
		matched, err := filepath.Match(pattern, strings.TrimSuffix(base, filepath.Ext(base)))
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, p)
		}
	}
	return out, nil
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// checkGolden compares the trace of a scenario with its golden file, or
// rewrites the file when update is set. A scenario without a golden file
// is checked by its assertions only.
func checkGolden(outcome harness.ScenarioOutcome, update bool) error {
	snapshot := harness.TraceSnapshot{ScenarioName: outcome.Name, Trace: outcome.Result.Trace}
	data, err := snapshot.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}

	goldenPath := goldenFilePath(outcome.Path)
	if update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
			return fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(goldenPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to update golden file: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(goldenPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(want, data) {
		return fmt.Errorf("trace does not match %s (run with --update to regenerate)", goldenPath)
	}
	return nil
}

func outputTestText(f *OutputFormatter, result TestResult, updated bool) {
	w := f.Writer
	for _, s := range result.Scenarios {
		if s.Pass {
			if updated {
				fmt.Fprintf(w, "✓ %s (golden updated)\n", s.Name)
			} else {
				fmt.Fprintf(w, "✓ %s\n", s.Name)
			}
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(e, "\n", "\n  "))
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}
