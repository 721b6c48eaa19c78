package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

// Registry returns one registry.
// Returns ErrRegistryNotFound if it does not exist.
func (o ops) Registry(ctx context.Context, registryType, registryID string) (Registry, error) {
	r := Registry{Type: registryType, ID: registryID}
	err := o.q.QueryRowContext(ctx, `
		SELECT name, system FROM registries
		WHERE type = ? AND id = ?
	`, registryType, registryID).Scan(&r.Name, &r.System)
	if errors.Is(err, sql.ErrNoRows) {
		return Registry{}, fmt.Errorf("%w: %s:%s", ErrRegistryNotFound, registryType, registryID)
	}
	if err != nil {
		return Registry{}, fmt.Errorf("read registry %s:%s: %w", registryType, registryID, err)
	}
	return r, nil
}

// Registries returns the registries of a type ordered by ID.
// System registries are included only when includeSystem is set.
//
// Returns an empty slice (not nil) if there are none.
func (o ops) Registries(ctx context.Context, registryType string, includeSystem bool) ([]Registry, error) {
	rows, err := o.q.QueryContext(ctx, `
		SELECT id, name, system FROM registries
		WHERE type = ? AND (system = 0 OR ?)
		ORDER BY id COLLATE BINARY ASC
	`, registryType, includeSystem)
	if err != nil {
		return nil, fmt.Errorf("query registries: %w", err)
	}
	defer rows.Close()

	registries := []Registry{}
	for rows.Next() {
		r := Registry{Type: registryType}
		if err := rows.Scan(&r.ID, &r.Name, &r.System); err != nil {
			return nil, fmt.Errorf("scan registry: %w", err)
		}
		registries = append(registries, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registries: %w", err)
	}
	return registries, nil
}

// Resource returns the stored document for id.
// Returns ErrResourceNotFound if the registry does not hold id.
func (o ops) Resource(ctx context.Context, registryType, registryID, id string) (ir.Object, error) {
	var data string
	err := o.q.QueryRowContext(ctx, `
		SELECT data FROM resources
		WHERE registry_type = ? AND registry_id = ? AND id = ?
	`, registryType, registryID, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s in %s:%s", ErrResourceNotFound, id, registryType, registryID)
	}
	if err != nil {
		return nil, fmt.Errorf("read resource %s: %w", id, err)
	}
	return unmarshalDocument(data)
}

// ResourceExists reports whether the registry holds id.
func (o ops) ResourceExists(ctx context.Context, registryType, registryID, id string) (bool, error) {
	var n int
	err := o.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM resources
		WHERE registry_type = ? AND registry_id = ? AND id = ?
	`, registryType, registryID, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("read resource %s: %w", id, err)
	}
	return n > 0, nil
}

// Resources returns every document of a registry.
// Results are ordered deterministically: ORDER BY id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if the registry is empty.
func (o ops) Resources(ctx context.Context, registryType, registryID string) ([]ir.Object, error) {
	rows, err := o.q.QueryContext(ctx, `
		SELECT registry_type, registry_id, id, data FROM resources
		WHERE registry_type = ? AND registry_id = ?
		ORDER BY id COLLATE BINARY ASC
	`, registryType, registryID)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer rows.Close()

	docs := []ir.Object{}
	for rows.Next() {
		row, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, row.doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return docs, nil
}

// resourceRow is one scanned row of the resources table.
type resourceRow struct {
	registryType string
	registryID   string
	id           string
	doc          ir.Object
}

// scanResource scans registry_type, registry_id, id and data.
func scanResource(rows *sql.Rows) (resourceRow, error) {
	var r resourceRow
	var data string
	if err := rows.Scan(&r.registryType, &r.registryID, &r.id, &data); err != nil {
		return resourceRow{}, fmt.Errorf("scan resource: %w", err)
	}
	doc, err := unmarshalDocument(data)
	if err != nil {
		return resourceRow{}, fmt.Errorf("resource %s: %w", r.id, err)
	}
	r.doc = doc
	return r, nil
}
