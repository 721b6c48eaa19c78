package engine

import (
	"context"
	"log/slog"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/model"
)

// loadFunc reads the resource a relationship points at, subject to the
// participant's READ access.
type loadFunc func(ctx context.Context, rel ir.Relationship) (ir.Object, error)

// resolver replaces relationship strings with the resources they point at.
//
// Resolved resources are cached per transaction by relationship so every
// reference to one resource yields the same document. A relationship that
// cannot be resolved (missing target, no READ access, malformed string)
// stays a relationship string. A relationship back to a resource whose
// resolution is still in progress also stays a string.
type resolver struct {
	txID   string
	models *model.Manager
	load   loadFunc
	cycles *CycleDetector
	cache  map[string]ir.Object
}

func newResolver(txID string, models *model.Manager, load loadFunc) *resolver {
	return &resolver{
		txID:   txID,
		models: models,
		load:   load,
		cycles: NewCycleDetector(),
		cache:  make(map[string]ir.Object),
	}
}

// Resolve returns a copy of doc with its relationship fields, and those
// of nested concepts and resolved resources, replaced by documents.
func (r *resolver) Resolve(ctx context.Context, doc ir.Object) ir.Object {
	return r.resolveObject(ctx, doc.Clone())
}

// resolveObject resolves doc in place.
func (r *resolver) resolveObject(ctx context.Context, doc ir.Object) ir.Object {
	fields, err := r.models.Fields(ir.ClassOf(doc))
	if err != nil {
		return doc
	}
	for _, f := range fields {
		v, ok := doc[f.Name]
		if !ok {
			continue
		}
		if f.Relationship {
			doc[f.Name] = r.resolveRelationships(ctx, v)
			continue
		}
		doc[f.Name] = r.resolveNested(ctx, v)
	}
	return doc
}

func (r *resolver) resolveRelationships(ctx context.Context, v ir.Value) ir.Value {
	switch val := v.(type) {
	case ir.String:
		return r.resolveRef(ctx, string(val))
	case ir.Array:
		out := make(ir.Array, len(val))
		for i, elem := range val {
			out[i] = r.resolveRelationships(ctx, elem)
		}
		return out
	default:
		return v
	}
}

// resolveNested descends into concepts so their relationships resolve too.
func (r *resolver) resolveNested(ctx context.Context, v ir.Value) ir.Value {
	switch val := v.(type) {
	case ir.Object:
		if ir.ClassOf(val) == "" {
			return val
		}
		return r.resolveObject(ctx, val)
	case ir.Array:
		for i, elem := range val {
			val[i] = r.resolveNested(ctx, elem)
		}
		return val
	default:
		return v
	}
}

func (r *resolver) resolveRef(ctx context.Context, ref string) ir.Value {
	if cached, ok := r.cache[ref]; ok {
		return cached
	}
	if r.cycles.WouldCycle(r.txID, ref) {
		slog.Debug("relationship cycle left unresolved", "relationship", ref, "transaction", r.txID)
		return ir.String(ref)
	}

	rel, err := ir.ParseRelationship(ref)
	if err != nil {
		slog.Debug("malformed relationship left unresolved", "relationship", ref, "error", err)
		return ir.String(ref)
	}

	r.cycles.Enter(r.txID, ref)
	defer r.cycles.Leave(r.txID, ref)

	target, err := r.load(ctx, rel)
	if err != nil {
		slog.Debug("relationship left unresolved", "relationship", ref, "error", err)
		return ir.String(ref)
	}
	resolved := r.resolveObject(ctx, target.Clone())
	r.cache[ref] = resolved
	return resolved
}
