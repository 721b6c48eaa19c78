package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/model"
)

const personType = "org.acme.people.Person"

func peopleModels(t *testing.T) *model.Manager {
	t.Helper()
	m := model.NewManager()
	require.NoError(t, m.AddDeclarations(
		ir.ClassDeclaration{
			Namespace:    "org.acme.people",
			Name:         "Person",
			Kind:         ir.KindParticipant,
			IdentifiedBy: "personId",
			Fields: []ir.FieldDeclaration{
				{Name: "personId", Type: "String"},
				{Name: "spouse", Type: personType, Optional: true, Relationship: true},
				{Name: "friends", Type: personType, Optional: true, Array: true, Relationship: true},
				{Name: "address", Type: "org.acme.people.Address", Optional: true},
			},
		},
		ir.ClassDeclaration{
			Namespace: "org.acme.people",
			Name:      "Address",
			Kind:      ir.KindConcept,
			Fields: []ir.FieldDeclaration{
				{Name: "landlord", Type: personType, Relationship: true},
			},
		},
	))
	return m
}

func personRef(id string) ir.String {
	return ir.String(ir.Relationship{Type: personType, ID: id}.String())
}

func person(id string, fields ir.Object) ir.Object {
	doc := ir.Object{ir.ClassKey: ir.String(personType), "personId": ir.String(id)}
	for k, v := range fields {
		doc[k] = v
	}
	return doc
}

// mapLoader loads people from a map and counts loads per identifier.
type mapLoader struct {
	people map[string]ir.Object
	loads  map[string]int
}

func newMapLoader(people ...ir.Object) *mapLoader {
	l := &mapLoader{people: map[string]ir.Object{}, loads: map[string]int{}}
	for _, p := range people {
		id, _ := p.GetString("personId")
		l.people[id] = p
	}
	return l
}

func (l *mapLoader) load(_ context.Context, rel ir.Relationship) (ir.Object, error) {
	l.loads[rel.ID]++
	p, ok := l.people[rel.ID]
	if !ok {
		return nil, errors.New("not found")
	}
	return p, nil
}

func TestResolver_ResolvesRelationships(t *testing.T) {
	loader := newMapLoader(person("bob", nil), person("carol", nil))
	r := newResolver("tx-1", peopleModels(t), loader.load)

	alice := person("alice", ir.Object{
		"spouse":  personRef("bob"),
		"friends": ir.Array{personRef("carol"), personRef("bob")},
		"address": ir.Object{
			ir.ClassKey: ir.String("org.acme.people.Address"),
			"landlord":  personRef("carol"),
		},
	})
	resolved := r.Resolve(context.Background(), alice)

	assert.Equal(t, person("bob", nil), resolved["spouse"])
	assert.Equal(t, ir.Array{person("carol", nil), person("bob", nil)}, resolved["friends"])
	address := resolved["address"].(ir.Object)
	assert.Equal(t, person("carol", nil), address["landlord"], "concept relationships resolve too")

	assert.Equal(t, personRef("bob"), alice["spouse"], "input is not modified")
	assert.Equal(t, map[string]int{"bob": 1, "carol": 1}, loader.loads, "each resource is loaded once")
}

func TestResolver_UnresolvableStaysString(t *testing.T) {
	loader := newMapLoader()
	r := newResolver("tx-1", peopleModels(t), loader.load)

	alice := person("alice", ir.Object{
		"spouse":  personRef("ghost"),
		"friends": ir.Array{ir.String("not a relationship")},
	})
	resolved := r.Resolve(context.Background(), alice)

	assert.Equal(t, personRef("ghost"), resolved["spouse"])
	assert.Equal(t, ir.Array{ir.String("not a relationship")}, resolved["friends"])
}

func TestResolver_Cycle(t *testing.T) {
	loader := newMapLoader(
		person("alice", ir.Object{"spouse": personRef("bob")}),
		person("bob", ir.Object{"spouse": personRef("alice")}),
	)
	r := newResolver("tx-1", peopleModels(t), loader.load)

	resolved := r.Resolve(context.Background(), loader.people["alice"])

	bob := resolved["spouse"].(ir.Object)
	alice := bob["spouse"].(ir.Object)
	assert.Equal(t, personRef("bob"), alice["spouse"], "back reference to a resource in progress stays a string")
	assert.Equal(t, 0, r.cycles.HistorySize(), "nothing left in progress")
}

func TestResolver_SelfReference(t *testing.T) {
	loader := newMapLoader(person("narcissus", ir.Object{"spouse": personRef("narcissus")}))
	r := newResolver("tx-1", peopleModels(t), loader.load)

	resolved := r.Resolve(context.Background(), ir.Object{
		ir.ClassKey: ir.String(personType),
		"personId":  ir.String("echo"),
		"spouse":    personRef("narcissus"),
	})

	narcissus := resolved["spouse"].(ir.Object)
	assert.Equal(t, personRef("narcissus"), narcissus["spouse"])
}

func TestResolver_UnknownClass(t *testing.T) {
	r := newResolver("tx-1", peopleModels(t), newMapLoader().load)

	doc := ir.Object{ir.ClassKey: ir.String("org.acme.Unknown"), "spouse": personRef("bob")}
	assert.Equal(t, doc, r.Resolve(context.Background(), doc))
}
