package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/network"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // archive output path
}

// CompilationResult summarizes an installed network.
type CompilationResult struct {
	Name      string          `json:"name"`
	Version   string          `json:"version"`
	Hash      string          `json:"hash"`
	Classes   []string        `json:"classes"`
	Rules     []string        `json:"rules"`
	Functions []string        `json:"functions"`
	Queries   []QuerySummary  `json:"queries"`
	Indexes   []network.Index `json:"indexes"`
}

// QuerySummary describes one compiled named query.
type QuerySummary struct {
	Name       string   `json:"name"`
	Hash       string   `json:"hash"`
	Parameters []string `json:"parameters,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <network-dir>",
		Short: "Install a business network and summarize it",
		Long: `Compile every part of a business network: models, access control
rules, transaction processor scripts and queries.

The archive written by --output holds every source file keyed by path.
Its hash identifies the network in the world state.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the network archive to this file")

	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	net, errs := installNetwork(dir, &NetworkOptions{}, nil)
	if errs != nil {
		return commandFailure(formatter, errs)
	}

	result := summarize(net)
	for _, class := range result.Classes {
		formatter.VerboseLog("Compiled class: %s", class)
	}
	for _, q := range result.Queries {
		formatter.VerboseLog("Compiled query: %s (%s)", q.Name, q.Hash)
	}

	if opts.Output != "" {
		if err := writeArchive(net, opts.Output); err != nil {
			return commandFailure(formatter, []CLIError{{Code: network.ErrCodeWriteFailed, Message: fmt.Sprintf("writing output file: %v", err)}})
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputCompileText(formatter, result, opts.Output)
}

// summarize lists the compiled parts of net in a stable order.
func summarize(net *network.InstalledBusinessNetwork) CompilationResult {
	def := net.Definition()
	result := CompilationResult{
		Name:      def.Metadata.Name,
		Version:   def.Metadata.Version,
		Hash:      net.Hash(),
		Classes:   []string{},
		Rules:     []string{},
		Functions: []string{},
		Queries:   []QuerySummary{},
		Indexes:   net.Indexes(),
	}
	if result.Indexes == nil {
		result.Indexes = []network.Index{}
	}

	for _, decl := range def.Models.Declarations() {
		result.Classes = append(result.Classes, decl.FullyQualifiedName())
	}
	slices.Sort(result.Classes)

	for _, rule := range net.AclBundle().Rules() {
		result.Rules = append(result.Rules, rule.Name)
	}
	for _, fn := range net.ScriptBundle().FunctionDeclarations() {
		result.Functions = append(result.Functions, fn.Name)
	}
	for _, q := range net.QueryBundle().Queries() {
		if q.Name == "" {
			continue
		}
		result.Queries = append(result.Queries, QuerySummary{Name: q.Name, Hash: q.Hash, Parameters: q.Parameters})
	}
	return result
}

func writeArchive(net *network.InstalledBusinessNetwork, path string) error {
	data, err := ir.MarshalValue(net.Archive())
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func outputCompileText(f *OutputFormatter, result CompilationResult, outputFile string) error {
	w := f.Writer
	fmt.Fprintf(w, "✓ Compiled %s@%s\n", result.Name, result.Version)
	fmt.Fprintf(w, "  hash: %s\n\n", result.Hash)
	fmt.Fprintf(w, "%d class(es), %d rule(s), %d function(s), %d query(ies)\n",
		len(result.Classes), len(result.Rules), len(result.Functions), len(result.Queries))

	if len(result.Classes) > 0 {
		fmt.Fprintln(w, "\nClasses:")
		for _, c := range result.Classes {
			fmt.Fprintf(w, "  %s\n", c)
		}
	}
	if len(result.Rules) > 0 {
		fmt.Fprintln(w, "\nRules:")
		for _, r := range result.Rules {
			fmt.Fprintf(w, "  %s\n", r)
		}
	}
	if len(result.Functions) > 0 {
		fmt.Fprintln(w, "\nFunctions:")
		for _, fn := range result.Functions {
			fmt.Fprintf(w, "  %s\n", fn)
		}
	}
	if len(result.Queries) > 0 {
		fmt.Fprintln(w, "\nQueries:")
		for _, q := range result.Queries {
			fmt.Fprintf(w, "  %s %v\n", q.Name, q.Parameters)
		}
	}

	if outputFile != "" {
		fmt.Fprintf(w, "\nWrote archive to %s\n", outputFile)
	}
	return nil
}
