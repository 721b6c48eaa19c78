package network

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperledger-archives/composer-sub008/internal/acl"
	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/metrics"
	"github.com/hyperledger-archives/composer-sub008/internal/querycompiler"
	"github.com/hyperledger-archives/composer-sub008/internal/queryir"
	"github.com/hyperledger-archives/composer-sub008/internal/script"
)

// Index is the store index definition derived from one named query.
type Index struct {
	Query      string
	Definition string // CouchDB index JSON
}

// InstalledBusinessNetwork is a definition with its scripts, queries and
// ACL rules compiled. It never changes after Install returns and does not
// reference mutable state, so one instance serves every transaction of
// the network.
type InstalledBusinessNetwork struct {
	definition *Definition
	hash       string
	archive    ir.Object

	scripts *script.CompiledScriptBundle
	queries *querycompiler.CompiledQueryBundle
	acls    *acl.CompiledAclBundle
	indexes []Index
}

type installConfig struct {
	metrics   *metrics.Metrics
	requester script.Requester
}

// InstallOption configures Install.
type InstallOption func(*installConfig)

// WithMetrics records compilation and execution metrics of the installed
// network in m.
func WithMetrics(m *metrics.Metrics) InstallOption {
	return func(c *installConfig) {
		c.metrics = m
	}
}

// WithRequester enables the request global of scripts.
func WithRequester(r script.Requester) InstallOption {
	return func(c *installConfig) {
		c.requester = r
	}
}

// Install compiles def. Any compiler error aborts the installation.
func Install(def *Definition, opts ...InstallOption) (*InstalledBusinessNetwork, error) {
	cfg := &installConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	start := time.Now()

	archive := def.Archive()
	hash, err := ir.NetworkHash(archive)
	if err != nil {
		return nil, fmt.Errorf("install %s: %w", def.Identifier(), err)
	}

	scripts, err := script.NewCompiler(
		script.WithRequester(cfg.requester),
		script.WithMetrics(cfg.metrics),
	).Compile(def.Scripts)
	if err != nil {
		return nil, fmt.Errorf("install %s: compiling scripts: %w", def.Identifier(), err)
	}

	queries, err := querycompiler.NewCompiler(querycompiler.WithMetrics(cfg.metrics)).Compile(def.Queries, def.Models)
	if err != nil {
		return nil, fmt.Errorf("install %s: compiling queries: %w", def.Identifier(), err)
	}

	acls, err := acl.NewCompiler(acl.WithMetrics(cfg.metrics)).Compile(def.ACL, def.Scripts)
	if err != nil {
		return nil, fmt.Errorf("install %s: compiling ACL rules: %w", def.Identifier(), err)
	}

	indexes, err := compileIndexes(def.Queries)
	if err != nil {
		return nil, fmt.Errorf("install %s: compiling indexes: %w", def.Identifier(), err)
	}

	cfg.metrics.NetworkInstalled(time.Since(start))
	slog.Info("installed business network",
		"network", def.Identifier(),
		"hash", hash,
		"functions", len(scripts.FunctionDeclarations()),
		"queries", len(queries.Queries()),
		"rules", len(acls.Rules()),
	)

	return &InstalledBusinessNetwork{
		definition: def,
		hash:       hash,
		archive:    archive,
		scripts:    scripts,
		queries:    queries,
		acls:       acls,
		indexes:    indexes,
	}, nil
}

func compileIndexes(manager *queryir.QueryManager) ([]Index, error) {
	var indexes []Index
	for _, q := range manager.Queries() {
		if result := queryir.Validate(q); !result.IsIndexable {
			slog.Debug("query cannot be fully served by an index", "query", q.Name, "warnings", result.Warnings)
		}
		def, err := querycompiler.CompileIndex(q)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Name, err)
		}
		indexes = append(indexes, Index{Query: q.Name, Definition: def})
	}
	return indexes, nil
}

// Definition returns the installed definition.
func (n *InstalledBusinessNetwork) Definition() *Definition { return n.definition }

// Hash returns the content hash of the archive.
func (n *InstalledBusinessNetwork) Hash() string { return n.hash }

// Archive returns the archive the network was installed from.
func (n *InstalledBusinessNetwork) Archive() ir.Object { return n.archive.Clone() }

// ScriptBundle returns the compiled scripts.
func (n *InstalledBusinessNetwork) ScriptBundle() *script.CompiledScriptBundle { return n.scripts }

// QueryBundle returns the compiled queries.
func (n *InstalledBusinessNetwork) QueryBundle() *querycompiler.CompiledQueryBundle { return n.queries }

// AclBundle returns the compiled ACL rules.
func (n *InstalledBusinessNetwork) AclBundle() *acl.CompiledAclBundle { return n.acls }

// Indexes returns one index definition per named query.
func (n *InstalledBusinessNetwork) Indexes() []Index { return n.indexes }
