package querycompiler

import (
	"strings"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/mango"
	"github.com/hyperledger-archives/composer-sub008/internal/queryir"
)

// Mango operators for the comparison operators, and their mirrors for
// when the literal is written on the left.
var (
	conditionOperators = map[string]string{
		queryir.OpLT:  "$lt",
		queryir.OpLTE: "$lte",
		queryir.OpGT:  "$gt",
		queryir.OpGTE: "$gte",
		queryir.OpEQ:  "$eq",
		queryir.OpNE:  "$ne",
	}
	mirroredOperators = map[string]string{
		queryir.OpLT:  "$gt",
		queryir.OpLTE: "$gte",
		queryir.OpGT:  "$lt",
		queryir.OpGTE: "$lte",
		queryir.OpEQ:  "$eq",
		queryir.OpNE:  "$ne",
	}
)

const (
	opAnd       = "$and"
	opOr        = "$or"
	opAll       = "$all"
	opElemMatch = "$elemMatch"
)

// isVariable reports whether an operand is a property reference.
func isVariable(node queryir.Node, visited any) bool {
	switch node.(type) {
	case *queryir.Identifier:
		_, isParam := visited.(mango.Param)
		return !isParam
	case *queryir.MemberExpression:
		return true
	default:
		return false
	}
}

// isLiteral reports whether an operand is a literal, an array of
// literals or a parameter.
func isLiteral(node queryir.Node, visited any) bool {
	switch node.(type) {
	case *queryir.Literal, *queryir.ArrayExpression:
		return true
	}
	_, isParam := visited.(mango.Param)
	return isParam
}

// visitCombination handles AND and OR.
func (c *Compiler) visitCombination(b *queryir.BinaryExpression, ctx *visitContext) (any, error) {
	left, err := c.visit(b.Left, ctx)
	if err != nil {
		return nil, err
	}
	right, err := c.visit(b.Right, ctx)
	if err != nil {
		return nil, err
	}
	l, r := documentValue(left), documentValue(right)

	if b.Operator == queryir.OpOr {
		return mango.NewObject(mango.F(opOr, mango.Array{l, r})), nil
	}
	if merged, ok := mergeAnd(l, r); ok {
		return merged, nil
	}
	return mango.NewObject(mango.F(opAnd, mango.Array{l, r})), nil
}

// mergeAnd flattens two AND operands into one selector object.
//
// Keys of rhs are added after the keys of lhs. A key present on both
// sides is merged recursively and moves to the end. Merging fails, and
// the caller must fall back to an explicit $and, when either side is not
// an object, either side holds an $or, or both sides carry the same
// operator (such as two $lt bounds on one field). Two $and arrays are
// concatenated.
func mergeAnd(lhs, rhs any) (*mango.Object, bool) {
	l, ok1 := lhs.(*mango.Object)
	r, ok2 := rhs.(*mango.Object)
	if !ok1 || !ok2 || l.Has(opOr) || r.Has(opOr) {
		return nil, false
	}

	combined := l.Clone()
	for _, f := range r.Fields() {
		existing, collides := combined.Get(f.Key)
		if !collides {
			combined.Set(f.Key, f.Value)
			continue
		}

		var merged any
		switch {
		case f.Key == opAnd:
			la, okL := existing.(mango.Array)
			ra, okR := f.Value.(mango.Array)
			if !okL || !okR {
				return nil, false
			}
			merged = append(append(mango.Array{}, la...), ra...)
		case strings.HasPrefix(f.Key, "$"):
			return nil, false
		default:
			m, ok := mergeAnd(existing, f.Value)
			if !ok {
				return nil, false
			}
			merged = m
		}
		combined.Delete(f.Key)
		combined.Set(f.Key, merged)
	}
	return combined, true
}

// visitContains handles CONTAINS: {field: {"$all": [...]}} for values and
// {field: {"$elemMatch": {...}}} for nested conditions.
func (c *Compiler) visitContains(b *queryir.BinaryExpression, ctx *visitContext) (any, error) {
	left, err := c.visit(b.Left, ctx)
	if err != nil {
		return nil, err
	}
	right, err := c.visit(b.Right, ctx)
	if err != nil {
		return nil, err
	}

	switch {
	case isVariable(b.Left, left):
	case isVariable(b.Right, right):
		left, right = right, left
	default:
		return nil, ctx.errorf("the operator %s requires a property name", b.Operator)
	}
	field := left.(fieldPath)
	value := documentValue(right)

	operator := opAll
	if mango.IsObject(value) {
		operator = opElemMatch
	}
	if operator == opAll && !mango.IsArray(value) {
		if p, ok := value.(mango.Param); ok {
			p.AsArray = true
			value = p
		} else {
			value = mango.Array{value}
		}
	}

	return mango.NewObject(mango.F(string(field), mango.NewObject(mango.F(operator, value)))), nil
}

// visitCondition handles the comparison operators. Exactly one operand
// must be a property reference and the other a literal or parameter.
func (c *Compiler) visitCondition(b *queryir.BinaryExpression, ctx *visitContext) (any, error) {
	operator := conditionOperators[b.Operator]

	left, err := c.visit(b.Left, ctx)
	if err != nil {
		return nil, err
	}
	right, err := c.visit(b.Right, ctx)
	if err != nil {
		return nil, err
	}

	leftIsVariable, leftIsLiteral := isVariable(b.Left, left), isLiteral(b.Left, left)
	rightIsVariable, rightIsLiteral := isVariable(b.Right, right), isLiteral(b.Right, right)
	if leftIsLiteral == rightIsLiteral || leftIsVariable == rightIsVariable {
		return nil, ctx.errorf("the query compiler cannot compile condition operators that do not have an identifier and a literal")
	}

	if leftIsLiteral {
		operator = mirroredOperators[b.Operator]
		left, right = right, left
	}

	switch right.(type) {
	case ir.Array, ir.Object, mango.Array, *mango.Object:
		return nil, ctx.errorf("the query compiler cannot compile a condition with a complex value literal")
	}

	field := left.(fieldPath)
	return mango.NewObject(mango.F(string(field), mango.NewObject(mango.F(operator, right)))), nil
}
