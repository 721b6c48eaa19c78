package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

// =============================================================================
// ClassDeclaration Validation Tests
// =============================================================================

func sampleClasses() []ir.ClassDeclaration {
	return []ir.ClassDeclaration{
		{
			Namespace: "org.acme", Name: "Trader", Kind: ir.KindParticipant, IdentifiedBy: "traderId",
			Fields: []ir.FieldDeclaration{{Name: "traderId", Type: "String"}},
		},
		{
			Namespace: "org.acme", Name: "Commodity", Kind: ir.KindAsset, IdentifiedBy: "symbol",
			Fields: []ir.FieldDeclaration{
				{Name: "symbol", Type: "String"},
				{Name: "owner", Type: "org.acme.Trader", Relationship: true},
			},
		},
		{
			Namespace: "org.acme", Name: "Trade", Kind: ir.KindTransaction,
			Fields: []ir.FieldDeclaration{{Name: "commodity", Type: "org.acme.Commodity", Relationship: true}},
		},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateClassValid(t *testing.T) {
	for _, c := range sampleClasses() {
		assert.Empty(t, Validate(c), "valid class %s should have no errors", c.Name)
	}
	assert.Empty(t, ValidateNetwork(sampleClasses(), nil))
}

func TestValidateClassErrors(t *testing.T) {
	tests := []struct {
		name string
		decl ir.ClassDeclaration
		code string
	}{
		{"invalid kind", ir.ClassDeclaration{Namespace: "n", Name: "X", Kind: "widget"}, ErrInvalidClassKind},
		{"enum without values", ir.ClassDeclaration{Namespace: "n", Name: "E", Kind: ir.KindEnum}, ErrEnumNoValues},
		{"duplicate field", ir.ClassDeclaration{Namespace: "n", Name: "C", Kind: ir.KindConcept,
			Fields: []ir.FieldDeclaration{{Name: "a", Type: "String"}, {Name: "a", Type: "String"}}}, ErrDuplicateName},
		{"identifier not string", ir.ClassDeclaration{Namespace: "n", Name: "A", Kind: ir.KindAsset, IdentifiedBy: "id",
			Fields: []ir.FieldDeclaration{{Name: "id", Type: "Integer"}}}, ErrIdentifierUndefined},
		{"reserved field", ir.ClassDeclaration{Namespace: "n", Name: "C", Kind: ir.KindConcept,
			Fields: []ir.FieldDeclaration{{Name: "$class", Type: "String"}}}, ErrInvalidFieldType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.decl)
			require.NotEmpty(t, errs)
			assert.Contains(t, codes(errs), tt.code)
		})
	}
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("nope")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
}

func TestValidateNetworkReferences(t *testing.T) {
	classes := append(sampleClasses(),
		ir.ClassDeclaration{Namespace: "org.acme", Name: "Ghost", Kind: ir.KindAsset, IdentifiedBy: "id",
			SuperType: "org.acme.Missing", Fields: []ir.FieldDeclaration{{Name: "id", Type: "String"}}},
		ir.ClassDeclaration{Namespace: "org.acme", Name: "Anon", Kind: ir.KindAsset},
		ir.ClassDeclaration{Namespace: "org.acme", Name: "Bad", Kind: ir.KindConcept,
			Fields: []ir.FieldDeclaration{{Name: "x", Type: "org.acme.Nowhere"}}},
		ir.ClassDeclaration{Namespace: "org.acme", Name: "Sub", Kind: ir.KindConcept, SuperType: "org.acme.Trader"},
	)

	errs := ValidateNetwork(classes, nil)
	got := codes(errs)
	assert.Contains(t, got, ErrUnknownSuperType)
	assert.Contains(t, got, ErrMissingIdentifier)
	assert.Contains(t, got, ErrInvalidFieldType)
	assert.Contains(t, got, ErrSuperTypeKind)
}

func TestValidateNetworkCycle(t *testing.T) {
	classes := []ir.ClassDeclaration{
		{Namespace: "n", Name: "A", Kind: ir.KindConcept, SuperType: "n.B"},
		{Namespace: "n", Name: "B", Kind: ir.KindConcept, SuperType: "n.A"},
	}
	assert.Contains(t, codes(ValidateNetwork(classes, nil)), ErrInheritanceCycle)
}

// =============================================================================
// AclRule Validation Tests
// =============================================================================

func TestValidateAclRule(t *testing.T) {
	valid := ir.AclRule{
		Name:        "R1",
		Participant: ir.AclBinding{Type: "org.acme.Trader", Variable: "p"},
		Resource:    ir.AclBinding{Type: "org.acme.Commodity", Variable: "r"},
		Operations:  []ir.AclOperation{ir.OpRead, ir.OpUpdate},
		Condition:   "r.owner == p.traderId",
		Action:      ir.ActionAllow,
	}
	assert.Empty(t, Validate(valid))
	assert.Empty(t, ValidateNetwork(sampleClasses(), []ir.AclRule{valid}))

	tests := []struct {
		name   string
		mutate func(*ir.AclRule)
		code   string
	}{
		{"no operations", func(r *ir.AclRule) { r.Operations = nil }, ErrInvalidOperation},
		{"bad operation", func(r *ir.AclRule) { r.Operations = []ir.AclOperation{"EXECUTE"} }, ErrInvalidOperation},
		{"bad action", func(r *ir.AclRule) { r.Action = "MAYBE" }, ErrInvalidAction},
		{"bad variable", func(r *ir.AclRule) { r.Resource.Variable = "1x" }, ErrInvalidVariable},
		{"variable reused", func(r *ir.AclRule) { r.Resource.Variable = "p" }, ErrInvalidVariable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := valid
			tt.mutate(&rule)
			assert.Contains(t, codes(Validate(rule)), tt.code)
		})
	}
}

func TestValidateAclRuleReferences(t *testing.T) {
	base := ir.AclRule{
		Name:        "R",
		Participant: ir.AclBinding{Type: ir.AnyParticipant},
		Resource:    ir.AclBinding{Type: "org.acme"},
		Operations:  []ir.AclOperation{ir.OpAll},
		Action:      ir.ActionAllow,
	}

	tests := []struct {
		name   string
		mutate func(*ir.AclRule)
		code   string
	}{
		{"namespace ok", func(r *ir.AclRule) {}, ""},
		{"wildcard ok", func(r *ir.AclRule) { r.Resource.Type = "org.acme.*" }, ""},
		{"recursive ok", func(r *ir.AclRule) { r.Resource.Type = "org.**" }, ""},
		{"unknown type", func(r *ir.AclRule) { r.Resource.Type = "org.acme.Nope" }, ErrUnknownBinding},
		{"participant kind", func(r *ir.AclRule) { r.Participant.Type = "org.acme.Commodity" }, ErrBindingKind},
		{"transaction kind", func(r *ir.AclRule) { r.Transaction = &ir.AclBinding{Type: "org.acme.Trader"} }, ErrBindingKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := base
			tt.mutate(&rule)
			errs := ValidateNetwork(sampleClasses(), []ir.AclRule{rule})
			if tt.code == "" {
				assert.Empty(t, errs)
				return
			}
			assert.Contains(t, codes(errs), tt.code)
		})
	}
}

func TestValidateNetworkDuplicateRule(t *testing.T) {
	rule := ir.AclRule{
		Name: "R", Participant: ir.AclBinding{Type: ir.AnyParticipant}, Resource: ir.AclBinding{Type: "org.acme"},
		Operations: []ir.AclOperation{ir.OpAll}, Action: ir.ActionDeny,
	}
	assert.Contains(t, codes(ValidateNetwork(sampleClasses(), []ir.AclRule{rule, rule})), ErrDuplicateName)
}
