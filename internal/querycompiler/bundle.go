package querycompiler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/model"
	"github.com/hyperledger-archives/composer-sub008/internal/queryir"
	"github.com/hyperledger-archives/composer-sub008/internal/queryparse"
)

// DynamicPrefix starts the name of queries registered by BuildQuery.
const DynamicPrefix = "dynamic:"

// QueryService executes serialized Mango queries.
type QueryService interface {
	ExecuteQuery(ctx context.Context, query string) ([]ir.Object, error)
}

// CompiledQueryBundle holds the compiled queries of one network.
//
// It is safe for concurrent use. Queries registered by BuildQuery are
// compiled at most once per bundle.
type CompiledQueryBundle struct {
	compiler *Compiler
	models   *model.Manager

	mu      sync.RWMutex
	queries []*CompiledQuery
	byName  map[string]*CompiledQuery
	byHash  map[string]*CompiledQuery

	compilations int // Guarded by mu
}

func newBundle(c *Compiler, models *model.Manager, compiled []*CompiledQuery) *CompiledQueryBundle {
	b := &CompiledQueryBundle{
		compiler: c,
		models:   models,
		byName:   make(map[string]*CompiledQuery, len(compiled)),
		byHash:   make(map[string]*CompiledQuery, len(compiled)),
	}
	for _, q := range compiled {
		b.register(q)
	}
	b.compilations = len(compiled)
	return b
}

// register indexes q. Caller must hold mu or own b exclusively.
func (b *CompiledQueryBundle) register(q *CompiledQuery) {
	b.queries = append(b.queries, q)
	b.byName[q.Name] = q
	if _, exists := b.byHash[q.Hash]; !exists {
		b.byHash[q.Hash] = q
	}
}

// Queries returns the compiled queries in registration order.
func (b *CompiledQueryBundle) Queries() []*CompiledQuery {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*CompiledQuery, len(b.queries))
	copy(out, b.queries)
	return out
}

// Compilations returns how many queries this bundle has compiled,
// including those compiled at construction.
func (b *CompiledQueryBundle) Compilations() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.compilations
}

// Lookup resolves a query by name or by hash identifier.
func (b *CompiledQueryBundle) Lookup(nameOrID string) (*CompiledQuery, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if q, ok := b.byName[nameOrID]; ok {
		return q, nil
	}
	if q, ok := b.byHash[nameOrID]; ok {
		return q, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrQueryNotFound, nameOrID)
}

// BuildQuery returns an identifier for a query. If text names a
// predefined query, that query's hash is returned. Otherwise text is a
// select statement: it is hashed, and compiled and registered only if no
// query with the same hash exists.
func (b *CompiledQueryBundle) BuildQuery(text string) (string, error) {
	hash := ir.QueryHash(text)

	b.mu.RLock()
	if q, ok := b.byName[text]; ok && !isDynamic(q) {
		b.mu.RUnlock()
		return q.Hash, nil
	}
	if _, ok := b.byHash[hash]; ok {
		b.mu.RUnlock()
		return hash, nil
	}
	b.mu.RUnlock()

	sel, err := queryparse.ParseSelect(text)
	if err != nil {
		return "", fmt.Errorf("build query: %w", err)
	}
	// Hash the caller's text, not the trimmed statement.
	sel.Text = text

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.byHash[hash]; ok {
		return hash, nil
	}
	compiled, err := b.compiler.CompileQuery(&queryir.Query{
		Name:        DynamicPrefix + hash,
		Description: "Dynamic query",
		Select:      sel,
	}, b.models)
	if err != nil {
		return "", fmt.Errorf("build query: %w", err)
	}
	b.register(compiled)
	b.compilations++
	slog.Debug("registered dynamic query", "hash", hash)
	return hash, nil
}

func isDynamic(q *CompiledQuery) bool {
	return strings.HasPrefix(q.Name, DynamicPrefix)
}

// Execute resolves a query by name or identifier, generates it with
// params and runs it against service.
func (b *CompiledQueryBundle) Execute(ctx context.Context, service QueryService, nameOrID string, params map[string]any) ([]ir.Object, error) {
	q, err := b.Lookup(nameOrID)
	if err != nil {
		return nil, err
	}
	return b.ExecuteInternal(ctx, service, q, params)
}

// ExecuteInternal generates and runs an already resolved query.
func (b *CompiledQueryBundle) ExecuteInternal(ctx context.Context, service QueryService, q *CompiledQuery, params map[string]any) ([]ir.Object, error) {
	query, err := q.Generator(params)
	if err != nil {
		return nil, err
	}
	slog.Debug("executing query", "name", q.Name, "query", query)
	results, err := service.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query %s: %w", q.Name, err)
	}
	b.compiler.metrics.QueryExecuted()
	return results, nil
}
