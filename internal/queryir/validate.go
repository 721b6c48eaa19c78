package queryir

import (
	"fmt"
)

// ValidationResult contains indexability analysis of a query.
//
// An indexable query can be answered by the document store from a JSON
// index built from its property paths. Non-indexable queries still run;
// they scan the registry instead.
type ValidationResult struct {
	// IsIndexable indicates if every predicate can be served from an index.
	IsIndexable bool

	// Warnings lists the constructs that prevent index use.
	// Empty when IsIndexable is true.
	Warnings []string
}

// Validate walks a query tree and reports constructs that cannot be
// served from an index:
//  1. OR combinations
//  2. != comparisons
//  3. CONTAINS membership tests
//  4. unknown node kinds
//
// Validate is a pure function with no side effects.
func Validate(node Node) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.visit(node)

	return ValidationResult{
		IsIndexable: len(v.warnings) == 0,
		Warnings:    v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

// addWarning appends a warning message.
func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) visit(node Node) {
	switch n := node.(type) {
	case nil:
		v.addWarning("nil node - indexability cannot be verified")
	case *QueryManager:
		for _, q := range n.Queries() {
			v.visit(q)
		}
	case *QueryFile:
		for _, q := range n.Queries {
			v.visit(q)
		}
	case *Query:
		if n.Select != nil {
			v.visit(n.Select)
		}
	case *Select:
		if n.Where != nil {
			v.visit(n.Where)
		}
	case *Where:
		v.visit(n.AST)
	case *OrderBy, *Limit, *Skip, *Identifier, *Literal, *ArrayExpression, *MemberExpression:
		// Leaves and clauses that never disable an index
	case *BinaryExpression:
		switch n.Operator {
		case OpOr:
			v.addWarning("OR combination - each branch needs its own index")
		case OpNE:
			v.addWarning("comparison %s on %s cannot use an index", n.Operator, describe(n))
		case OpContains:
			v.addWarning("CONTAINS on %s cannot use an index", describe(n))
		}
		v.visit(n.Left)
		v.visit(n.Right)
	default:
		v.addWarning("Unknown node type: %T - indexability cannot be verified", node)
	}
}

// describe names the property side of a binary expression, if any.
func describe(n *BinaryExpression) string {
	for _, side := range []Node{n.Left, n.Right} {
		if path, ok := PropertyPath(side); ok {
			return path
		}
	}
	return "expression"
}

// PropertyPath returns the dotted property path of an identifier or
// member expression. Parameter references are not property paths.
func PropertyPath(node Node) (string, bool) {
	switch n := node.(type) {
	case *Identifier:
		if _, isParam := n.ParameterName(); isParam {
			return "", false
		}
		return n.Name, true
	case *MemberExpression:
		obj, ok := PropertyPath(n.Object)
		if !ok {
			return "", false
		}
		prop, ok := PropertyPath(n.Property)
		if !ok {
			return "", false
		}
		return obj + "." + prop, true
	default:
		return "", false
	}
}

// Parameters returns the parameter names referenced by a select
// statement in visit order. Names may repeat.
func Parameters(sel *Select) []string {
	var out []string
	var walk func(Node)
	walk = func(node Node) {
		switch n := node.(type) {
		case *Identifier:
			if name, ok := n.ParameterName(); ok {
				out = append(out, name)
			}
		case *BinaryExpression:
			walk(n.Left)
			walk(n.Right)
		case *ArrayExpression:
			for _, e := range n.Elements {
				walk(e)
			}
		case *MemberExpression:
			walk(n.Property)
			walk(n.Object)
		}
	}
	if sel.Where != nil {
		walk(sel.Where.AST)
	}
	if sel.Limit != nil {
		walk(sel.Limit.AST)
	}
	if sel.Skip != nil {
		walk(sel.Skip.AST)
	}
	return out
}
