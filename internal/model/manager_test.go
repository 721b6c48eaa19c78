package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

func sampleManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager()
	require.NoError(t, m.AddDeclarations(
		ir.ClassDeclaration{
			Namespace: "org.acme", Name: "Person", Kind: ir.KindParticipant,
			IdentifiedBy: "personId", Abstract: true,
			Fields: []ir.FieldDeclaration{
				{Name: "personId", Type: "String"},
				{Name: "name", Type: "String", Optional: true},
			},
		},
		ir.ClassDeclaration{
			Namespace: "org.acme", Name: "Driver", Kind: ir.KindParticipant,
			SuperType: "org.acme.Person",
			Fields: []ir.FieldDeclaration{
				{Name: "licence", Type: "String"},
			},
		},
		ir.ClassDeclaration{
			Namespace: "org.acme", Name: "Colour", Kind: ir.KindEnum,
			EnumValues: []string{"RED", "BLUE"},
		},
		ir.ClassDeclaration{
			Namespace: "org.acme", Name: "Engine", Kind: ir.KindConcept,
			Fields: []ir.FieldDeclaration{
				{Name: "cylinders", Type: "Integer"},
			},
		},
		ir.ClassDeclaration{
			Namespace: "org.acme", Name: "Car", Kind: ir.KindAsset, IdentifiedBy: "vin",
			Fields: []ir.FieldDeclaration{
				{Name: "vin", Type: "String"},
				{Name: "colour", Type: "org.acme.Colour"},
				{Name: "mileage", Type: "Double", Optional: true},
				{Name: "engine", Type: "org.acme.Engine", Optional: true},
				{Name: "owner", Type: "org.acme.Person", Relationship: true, Optional: true},
				{Name: "tags", Type: "String", Array: true, Optional: true},
			},
		},
		ir.ClassDeclaration{
			Namespace: "org.acme", Name: "Sell", Kind: ir.KindTransaction,
			Fields: []ir.FieldDeclaration{
				{Name: "car", Type: "org.acme.Car", Relationship: true},
			},
		},
	))
	return m
}

func TestManagerGetType(t *testing.T) {
	m := sampleManager(t)

	decl, err := m.GetType("org.acme.Car")
	require.NoError(t, err)
	assert.Equal(t, ir.KindAsset, decl.Kind)

	_, err = m.GetType("org.acme.Boat")
	require.ErrorIs(t, err, ErrTypeNotFound)
}

func TestManagerRejectsDuplicates(t *testing.T) {
	m := sampleManager(t)
	err := m.AddDeclarations(ir.ClassDeclaration{Namespace: "org.acme", Name: "Car", Kind: ir.KindAsset})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate declaration")
}

func TestManagerInheritance(t *testing.T) {
	m := sampleManager(t)

	assert.True(t, m.IsInstanceOf("org.acme.Driver", "org.acme.Person"))
	assert.True(t, m.IsInstanceOf("org.acme.Driver", "org.acme.Driver"))
	assert.False(t, m.IsInstanceOf("org.acme.Person", "org.acme.Driver"))

	fields, err := m.Fields("org.acme.Driver")
	require.NoError(t, err)
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"personId", "name", "licence"}, names)

	id, err := m.IdentifierField("org.acme.Driver")
	require.NoError(t, err)
	assert.Equal(t, "personId", id)

	id, err = m.IdentifierField("org.acme.Sell")
	require.NoError(t, err)
	assert.Equal(t, TransactionIDField, id)
}

func TestManagerNamespaces(t *testing.T) {
	m := sampleManager(t)
	assert.Equal(t, []string{"org.acme"}, m.Namespaces())
	assert.True(t, m.HasNamespace("org"))
	assert.False(t, m.HasNamespace("com"))
	assert.Len(t, m.Declarations(), 6)
}
