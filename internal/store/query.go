package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/mango"
	"github.com/hyperledger-archives/composer-sub008/internal/querysql"
)

// ExecuteQuery runs a Mango query document against every registry.
//
// The discriminator and string-equality conditions of the selector are
// compiled to a SQL prefilter; the full selector, sort, skip and limit are
// then applied by the Mango matcher. Documents are matched with their
// $registryType and $registryId, which are removed from the results.
func (o ops) ExecuteQuery(ctx context.Context, query string) ([]ir.Object, error) {
	q, err := mango.Parse([]byte(query))
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}

	sqlText, params, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}

	rows, err := o.q.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	var candidates []ir.Object
	for rows.Next() {
		row, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		row.doc[ir.RegistryTypeKey] = ir.String(row.registryType)
		row.doc[ir.RegistryIDKey] = ir.String(row.registryID)
		candidates = append(candidates, row.doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate query results: %w", err)
	}

	results, err := mango.NewMatcher().Apply(q, candidates)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	for _, doc := range results {
		delete(doc, ir.RegistryTypeKey)
		delete(doc, ir.RegistryIDKey)
	}

	slog.Debug("executed query", "candidates", len(candidates), "results", len(results))
	return results, nil
}

// ApplyIndex creates the SQLite expression index for a CouchDB index
// definition. Applying an index twice is a no-op.
func (o ops) ApplyIndex(ctx context.Context, definition string) error {
	stmt, err := querysql.NewSQLCompiler().CompileIndex(definition)
	if err != nil {
		return fmt.Errorf("apply index: %w", err)
	}
	if _, err := o.q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("apply index: %w", err)
	}
	slog.Debug("applied index", "statement", stmt)
	return nil
}
