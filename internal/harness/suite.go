package harness

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperledger-archives/composer-sub008/internal/engine"
	"github.com/hyperledger-archives/composer-sub008/internal/network"
)

// ScenarioNotFoundError is returned when a scenario path doesn't exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// FindScenarios returns the scenario files named by path: the file itself,
// or every .yaml and .yml file below a directory, sorted.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: path}
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var paths []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Golden traces live next to scenarios.
			if d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".yaml", ".yml":
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find scenarios: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// SuiteResult summarizes a run over several scenario files.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Scenarios      []ScenarioOutcome `json:"scenarios"`
}

// ScenarioOutcome is the result of one scenario file.
type ScenarioOutcome struct {
	Path   string   `json:"path"`
	Name   string   `json:"name,omitempty"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`

	// Result is nil when the scenario could not be loaded or run.
	Result *Result `json:"-"`
}

// RunSuite loads and runs every scenario file. Network paths are resolved
// against basePath, or against each scenario's directory if basePath is
// empty. A scenario that fails to load or run counts as failed; RunSuite
// itself only fails if ctx is canceled.
//
// For each scenario file:
// 1. Load and validate the scenario
// 2. Run it against a fresh world state
// 3. Collect and report results
//
// Scenarios that share a network share its installed form.
func RunSuite(ctx context.Context, paths []string, basePath string, opts ...engine.EngineOption) (*SuiteResult, error) {
	return runSuite(ctx, paths, basePath, network.NewCache(), opts)
}

func runSuite(ctx context.Context, paths []string, basePath string, cache *network.Cache, opts []engine.EngineOption) (*SuiteResult, error) {
	result := &SuiteResult{Scenarios: []ScenarioOutcome{}}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.TotalScenarios++
		outcome := ScenarioOutcome{Path: path}

		base := basePath
		if base == "" {
			base = filepath.Dir(path)
		}
		scenario, err := LoadScenarioWithBasePath(path, base)
		if err != nil {
			outcome.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
			result.Failed++
			result.Scenarios = append(result.Scenarios, outcome)
			continue
		}
		outcome.Name = scenario.Name

		runResult, err := run(ctx, scenario, cache, opts)
		if err != nil {
			outcome.Errors = []string{fmt.Sprintf("scenario execution failed: %v", err)}
			result.Failed++
			result.Scenarios = append(result.Scenarios, outcome)
			continue
		}
		outcome.Result = runResult
		outcome.Pass = runResult.Pass
		outcome.Errors = runResult.Errors

		if runResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, outcome)
	}

	return result, nil
}
