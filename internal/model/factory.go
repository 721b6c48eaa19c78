package model

import (
	"fmt"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

// Factory creates documents of declared types.
type Factory struct {
	models *Manager
}

// NewFactory creates a factory backed by models.
func NewFactory(models *Manager) *Factory {
	return &Factory{models: models}
}

// NewResource creates an asset or participant document with its
// identifying field set.
func (f *Factory) NewResource(ns, typ, id string) (ir.Object, error) {
	decl, err := f.concrete(ns, typ)
	if err != nil {
		return nil, err
	}
	if decl.Kind != ir.KindAsset && decl.Kind != ir.KindParticipant {
		return nil, fmt.Errorf("%s is a %s, not an asset or participant", decl.FullyQualifiedName(), decl.Kind)
	}
	if id == "" {
		return nil, fmt.Errorf("%s: identifier is required", decl.FullyQualifiedName())
	}
	field, err := f.models.IdentifierField(decl.FullyQualifiedName())
	if err != nil {
		return nil, err
	}
	return ir.Object{
		ir.ClassKey: ir.String(decl.FullyQualifiedName()),
		field:       ir.String(id),
	}, nil
}

// NewRelationship creates a relationship to an instance of a declared type.
func (f *Factory) NewRelationship(ns, typ, id string) (ir.Relationship, error) {
	fqn := ns + "." + typ
	if _, err := f.models.GetType(fqn); err != nil {
		return ir.Relationship{}, err
	}
	if id == "" {
		return ir.Relationship{}, fmt.Errorf("%s: identifier is required", fqn)
	}
	return ir.Relationship{Type: fqn, ID: id}, nil
}

// NewConcept creates an empty concept document.
func (f *Factory) NewConcept(ns, typ string) (ir.Object, error) {
	return f.newOfKind(ns, typ, ir.KindConcept)
}

// NewTransaction creates a transaction document. The runtime assigns the
// transaction identifier and timestamp on submission.
func (f *Factory) NewTransaction(ns, typ string) (ir.Object, error) {
	return f.newOfKind(ns, typ, ir.KindTransaction)
}

// NewEvent creates an event document. The runtime assigns the event
// identifier and timestamp on emission.
func (f *Factory) NewEvent(ns, typ string) (ir.Object, error) {
	return f.newOfKind(ns, typ, ir.KindEvent)
}

func (f *Factory) newOfKind(ns, typ string, kind ir.ClassKind) (ir.Object, error) {
	decl, err := f.concrete(ns, typ)
	if err != nil {
		return nil, err
	}
	if decl.Kind != kind {
		return nil, fmt.Errorf("%s is a %s, not a %s", decl.FullyQualifiedName(), decl.Kind, kind)
	}
	return ir.Object{ir.ClassKey: ir.String(decl.FullyQualifiedName())}, nil
}

func (f *Factory) concrete(ns, typ string) (*ir.ClassDeclaration, error) {
	decl, err := f.models.GetType(ns + "." + typ)
	if err != nil {
		return nil, err
	}
	if decl.Abstract {
		return nil, fmt.Errorf("cannot instantiate abstract type %s", decl.FullyQualifiedName())
	}
	return decl, nil
}
