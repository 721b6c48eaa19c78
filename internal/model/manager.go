package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

// ErrTypeNotFound is returned when a fully qualified name is not declared.
var ErrTypeNotFound = errors.New("type not found")

// System fields assigned by the runtime.
const (
	TransactionIDField = "transactionId"
	EventIDField       = "eventId"
	TimestampField     = "timestamp"
)

// Manager indexes class declarations. The zero value is not usable; call
// NewManager. A Manager is not safe for concurrent mutation but may be read
// concurrently once populated.
type Manager struct {
	classes map[string]*ir.ClassDeclaration
	order   []string
}

// NewManager creates an empty model manager.
func NewManager() *Manager {
	return &Manager{classes: make(map[string]*ir.ClassDeclaration)}
}

// AddDeclarations registers declarations. Duplicate names are rejected and
// nothing is added when any declaration is invalid.
func (m *Manager) AddDeclarations(decls ...ir.ClassDeclaration) error {
	seen := make(map[string]bool, len(decls))
	for _, d := range decls {
		fqn := d.FullyQualifiedName()
		if d.Namespace == "" || d.Name == "" {
			return fmt.Errorf("declaration %q: namespace and name are required", fqn)
		}
		if _, exists := m.classes[fqn]; exists || seen[fqn] {
			return fmt.Errorf("duplicate declaration %q", fqn)
		}
		seen[fqn] = true
	}
	for _, d := range decls {
		decl := d
		fqn := decl.FullyQualifiedName()
		m.classes[fqn] = &decl
		m.order = append(m.order, fqn)
	}
	return nil
}

// GetType returns the declaration of a fully qualified type.
func (m *Manager) GetType(fqn string) (*ir.ClassDeclaration, error) {
	decl, ok := m.classes[fqn]
	if !ok {
		return nil, fmt.Errorf("%q: %w", fqn, ErrTypeNotFound)
	}
	return decl, nil
}

// Declarations returns all declarations in registration order.
func (m *Manager) Declarations() []ir.ClassDeclaration {
	out := make([]ir.ClassDeclaration, 0, len(m.order))
	for _, fqn := range m.order {
		out = append(out, *m.classes[fqn])
	}
	return out
}

// Namespaces returns the sorted set of declared namespaces.
func (m *Manager) Namespaces() []string {
	set := make(map[string]bool)
	for _, decl := range m.classes {
		set[decl.Namespace] = true
	}
	out := make([]string, 0, len(set))
	for ns := range set {
		out = append(out, ns)
	}
	slices.Sort(out)
	return out
}

// HasNamespace reports whether any declaration lives in ns.
func (m *Manager) HasNamespace(ns string) bool {
	for _, decl := range m.classes {
		if decl.Namespace == ns || strings.HasPrefix(decl.Namespace, ns+".") {
			return true
		}
	}
	return false
}

// SuperTypes returns the supertype chain of fqn, nearest first.
// The chain stops at the first undeclared supertype or on a cycle.
func (m *Manager) SuperTypes(fqn string) []string {
	var chain []string
	seen := map[string]bool{fqn: true}
	decl, ok := m.classes[fqn]
	for ok && decl.SuperType != "" && !seen[decl.SuperType] {
		chain = append(chain, decl.SuperType)
		seen[decl.SuperType] = true
		decl, ok = m.classes[decl.SuperType]
	}
	return chain
}

// IsInstanceOf reports whether type fqn is super or inherits from it.
func (m *Manager) IsInstanceOf(fqn, super string) bool {
	if fqn == super {
		return true
	}
	return slices.Contains(m.SuperTypes(fqn), super)
}

// Fields returns all fields of fqn including inherited ones, supertype
// fields first.
func (m *Manager) Fields(fqn string) ([]ir.FieldDeclaration, error) {
	decl, err := m.GetType(fqn)
	if err != nil {
		return nil, err
	}
	chain := m.SuperTypes(fqn)
	var fields []ir.FieldDeclaration
	for i := len(chain) - 1; i >= 0; i-- {
		if super, ok := m.classes[chain[i]]; ok {
			fields = append(fields, super.Fields...)
		}
	}
	return append(fields, decl.Fields...), nil
}

// IdentifierField returns the identifying field of fqn, searching the
// supertype chain when fqn itself declares none.
func (m *Manager) IdentifierField(fqn string) (string, error) {
	decl, err := m.GetType(fqn)
	if err != nil {
		return "", err
	}
	if decl.IdentifiedBy != "" {
		return decl.IdentifiedBy, nil
	}
	for _, super := range m.SuperTypes(fqn) {
		if s, ok := m.classes[super]; ok && s.IdentifiedBy != "" {
			return s.IdentifiedBy, nil
		}
	}
	switch decl.Kind {
	case ir.KindTransaction:
		return TransactionIDField, nil
	case ir.KindEvent:
		return EventIDField, nil
	}
	return "", nil
}

// Identifier returns the identifying value of doc.
func (m *Manager) Identifier(doc ir.Object) (string, error) {
	fqn := ir.ClassOf(doc)
	field, err := m.IdentifierField(fqn)
	if err != nil {
		return "", err
	}
	if field == "" {
		return "", fmt.Errorf("type %q is not identifiable", fqn)
	}
	id, ok := doc.GetString(field)
	if !ok || id == "" {
		return "", fmt.Errorf("%s: identifier field %q is missing", fqn, field)
	}
	return id, nil
}
