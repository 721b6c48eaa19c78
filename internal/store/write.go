package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

// ops implements the registry, resource and query methods shared by Store
// and Tx.
type ops struct {
	q querier
}

// Registry describes one registry.
type Registry struct {
	Type   string // Asset, Participant or Transaction
	ID     string
	Name   string
	System bool // created by the runtime rather than by a network
}

// AddRegistry creates a registry.
// Uses ON CONFLICT DO NOTHING for idempotency - adding an existing registry
// is silently ignored and keeps the existing name and system flag.
func (o ops) AddRegistry(ctx context.Context, r Registry) error {
	if r.Type == "" || r.ID == "" {
		return fmt.Errorf("add registry: type and id are required")
	}
	_, err := o.q.ExecContext(ctx, `
		INSERT INTO registries (type, id, name, system)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(type, id) DO NOTHING
	`, r.Type, r.ID, r.Name, r.System)
	if err != nil {
		return fmt.Errorf("add registry %s:%s: %w", r.Type, r.ID, err)
	}
	return nil
}

// RemoveRegistry deletes a registry and, through the foreign key, its
// resources. Returns ErrRegistryNotFound if it does not exist.
func (o ops) RemoveRegistry(ctx context.Context, registryType, registryID string) error {
	result, err := o.q.ExecContext(ctx, `
		DELETE FROM registries WHERE type = ? AND id = ?
	`, registryType, registryID)
	if err != nil {
		return fmt.Errorf("remove registry %s:%s: %w", registryType, registryID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove registry %s:%s: %w", registryType, registryID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s:%s", ErrRegistryNotFound, registryType, registryID)
	}
	return nil
}

// AddResource inserts a document into a registry under id.
//
// Returns ErrRegistryNotFound if the registry does not exist and
// ErrResourceExists if the registry already holds id.
func (o ops) AddResource(ctx context.Context, registryType, registryID, id string, doc ir.Object) error {
	data, err := marshalDocument(doc)
	if err != nil {
		return fmt.Errorf("add resource %s: %w", id, err)
	}
	if err := o.requireRegistry(ctx, registryType, registryID); err != nil {
		return fmt.Errorf("add resource %s: %w", id, err)
	}

	result, err := o.q.ExecContext(ctx, `
		INSERT INTO resources (registry_type, registry_id, id, class, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(registry_type, registry_id, id) DO NOTHING
	`, registryType, registryID, id, ir.ClassOf(doc), data)
	if err != nil {
		return fmt.Errorf("add resource %s: %w", id, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("add resource %s: %w", id, err)
	} else if n == 0 {
		return fmt.Errorf("%w: %s in %s:%s", ErrResourceExists, id, registryType, registryID)
	}
	return nil
}

// UpdateResource replaces the stored document for id.
// Returns ErrResourceNotFound if the registry does not hold id.
func (o ops) UpdateResource(ctx context.Context, registryType, registryID, id string, doc ir.Object) error {
	data, err := marshalDocument(doc)
	if err != nil {
		return fmt.Errorf("update resource %s: %w", id, err)
	}

	result, err := o.q.ExecContext(ctx, `
		UPDATE resources SET class = ?, data = ?
		WHERE registry_type = ? AND registry_id = ? AND id = ?
	`, ir.ClassOf(doc), data, registryType, registryID, id)
	if err != nil {
		return fmt.Errorf("update resource %s: %w", id, err)
	}
	return requireAffected(result, registryType, registryID, id)
}

// RemoveResource deletes id from a registry.
// Returns ErrResourceNotFound if the registry does not hold id.
func (o ops) RemoveResource(ctx context.Context, registryType, registryID, id string) error {
	result, err := o.q.ExecContext(ctx, `
		DELETE FROM resources
		WHERE registry_type = ? AND registry_id = ? AND id = ?
	`, registryType, registryID, id)
	if err != nil {
		return fmt.Errorf("remove resource %s: %w", id, err)
	}
	return requireAffected(result, registryType, registryID, id)
}

func requireAffected(result sql.Result, registryType, registryID, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("resource %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s in %s:%s", ErrResourceNotFound, id, registryType, registryID)
	}
	return nil
}

func (o ops) requireRegistry(ctx context.Context, registryType, registryID string) error {
	_, err := o.Registry(ctx, registryType, registryID)
	return err
}
