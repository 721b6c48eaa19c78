package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/model"
	"github.com/hyperledger-archives/composer-sub008/internal/script"
	"github.com/hyperledger-archives/composer-sub008/internal/store"
)

// storage is the part of the store a transaction works against.
// Implemented by *store.Store and *store.Tx.
type storage interface {
	Registry(ctx context.Context, registryType, registryID string) (store.Registry, error)
	Resource(ctx context.Context, registryType, registryID, id string) (ir.Object, error)
	ResourceExists(ctx context.Context, registryType, registryID, id string) (bool, error)
	Resources(ctx context.Context, registryType, registryID string) ([]ir.Object, error)
	AddResource(ctx context.Context, registryType, registryID, id string, doc ir.Object) error
	UpdateResource(ctx context.Context, registryType, registryID, id string, doc ir.Object) error
	RemoveResource(ctx context.Context, registryType, registryID, id string) error
	ExecuteQuery(ctx context.Context, query string) ([]ir.Object, error)
}

var (
	_ storage = (*store.Store)(nil)
	_ storage = (*store.Tx)(nil)
)

// Registry is a registry as seen by one participant. Reads hide resources
// the participant may not READ; writes require CREATE, UPDATE or DELETE
// access.
type Registry struct {
	registryType string
	id           string
	db           storage
	models       *model.Manager
	serializer   *model.Serializer
	access       *AccessController
}

var _ script.Registry = (*Registry)(nil)

// openRegistry returns the registry, failing with a not found error if
// the store does not hold it.
func openRegistry(ctx context.Context, db storage, registryType, id string, models *model.Manager, access *AccessController) (*Registry, error) {
	if _, err := db.Registry(ctx, registryType, id); err != nil {
		if errors.Is(err, store.ErrRegistryNotFound) {
			return nil, NewRegistryNotFoundError(registryType, id, err)
		}
		return nil, err
	}
	return &Registry{
		registryType: registryType,
		id:           id,
		db:           db,
		models:       models,
		serializer:   model.NewSerializer(models),
		access:       access,
	}, nil
}

// ID returns the registry ID.
func (r *Registry) ID() string { return r.id }

// Type returns the registry type: Asset, Participant or Transaction.
func (r *Registry) Type() string { return r.registryType }

// GetAll returns every resource the participant may read, ordered by
// identifier.
func (r *Registry) GetAll(ctx context.Context) ([]ir.Object, error) {
	all, err := r.db.Resources(ctx, r.registryType, r.id)
	if err != nil {
		return nil, err
	}
	visible := make([]ir.Object, 0, len(all))
	for _, doc := range all {
		if err := r.access.Check(doc, ir.OpRead); err != nil {
			if IsAccessError(err) {
				continue
			}
			return nil, err
		}
		visible = append(visible, doc)
	}
	return visible, nil
}

// Get returns one resource. A resource the participant may not read is
// reported as not found.
func (r *Registry) Get(ctx context.Context, id string) (ir.Object, error) {
	doc, err := r.db.Resource(ctx, r.registryType, r.id, id)
	if errors.Is(err, store.ErrResourceNotFound) {
		return nil, NewNotFoundError(id, r.registryType, r.id, err)
	}
	if err != nil {
		return nil, err
	}
	if err := r.access.Check(doc, ir.OpRead); err != nil {
		if IsAccessError(err) {
			return nil, NewNotFoundError(id, r.registryType, r.id, err)
		}
		return nil, err
	}
	return doc, nil
}

// Exists reports whether the registry holds id and the participant may
// read it.
func (r *Registry) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := r.db.ResourceExists(ctx, r.registryType, r.id, id)
	if err != nil || !ok {
		return false, err
	}
	_, err = r.Get(ctx, id)
	if IsNotFoundError(err) {
		return false, nil
	}
	return err == nil, err
}

// Add stores new resources. Each must be of the registry's kind, valid
// against its model and creatable by the participant.
func (r *Registry) Add(ctx context.Context, resources ...ir.Object) error {
	for _, res := range resources {
		doc, id, err := r.prepare(res)
		if err != nil {
			return err
		}
		if err := r.access.Check(doc, ir.OpCreate); err != nil {
			return err
		}
		err = r.db.AddResource(ctx, r.registryType, r.id, id, doc)
		if errors.Is(err, store.ErrResourceExists) {
			return NewExistsError(id, r.registryType, r.id, err)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Update replaces stored resources. UPDATE access is checked against the
// stored version.
func (r *Registry) Update(ctx context.Context, resources ...ir.Object) error {
	for _, res := range resources {
		doc, id, err := r.prepare(res)
		if err != nil {
			return err
		}
		old, err := r.stored(ctx, id)
		if err != nil {
			return err
		}
		if err := r.access.Check(old, ir.OpUpdate); err != nil {
			return err
		}
		if err := r.db.UpdateResource(ctx, r.registryType, r.id, id, doc); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes resources by identifier.
func (r *Registry) Remove(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		old, err := r.stored(ctx, id)
		if err != nil {
			return err
		}
		if err := r.access.Check(old, ir.OpDelete); err != nil {
			return err
		}
		if err := r.db.RemoveResource(ctx, r.registryType, r.id, id); err != nil {
			return err
		}
	}
	return nil
}

// prepare checks the kind of res and serializes it, turning resolved
// relationships back into relationship strings.
func (r *Registry) prepare(res ir.Object) (ir.Object, string, error) {
	fqn := ir.ClassOf(res)
	decl, err := r.models.GetType(fqn)
	if err != nil {
		return nil, "", NewInvalidResourceError(err)
	}
	if decl.Kind.RegistryType() != r.registryType {
		return nil, "", NewInvalidResourceError(fmt.Errorf("cannot add type: %s to %s", fqn, r.registryType))
	}
	doc, err := r.serializer.ToJSON(res)
	if err != nil {
		return nil, "", NewInvalidResourceError(err)
	}
	id, err := r.models.Identifier(doc)
	if err != nil {
		return nil, "", NewInvalidResourceError(err)
	}
	return doc, id, nil
}

// stored reads a resource without access checks.
func (r *Registry) stored(ctx context.Context, id string) (ir.Object, error) {
	doc, err := r.db.Resource(ctx, r.registryType, r.id, id)
	if errors.Is(err, store.ErrResourceNotFound) {
		return nil, NewNotFoundError(id, r.registryType, r.id, err)
	}
	return doc, err
}
