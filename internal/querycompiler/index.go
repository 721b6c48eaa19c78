package querycompiler

import (
	"strings"

	"github.com/hyperledger-archives/composer-sub008/internal/mango"
	"github.com/hyperledger-archives/composer-sub008/internal/queryir"
)

// IndexCompiler derives a CouchDB index definition from a query: the
// discriminator fields followed by every property the query filters or
// sorts on.
type IndexCompiler struct{}

// NewIndexCompiler creates an IndexCompiler.
func NewIndexCompiler() *IndexCompiler {
	return &IndexCompiler{}
}

// indexAccumulator collects de-duplicated index fields in first-use
// order. A later sort entry replaces a plain field in place.
type indexAccumulator struct {
	fields    *mango.Object // field -> plain name or {field: direction}
	direction string
}

// Compile returns the index definition of q as JSON:
//
//	{"index":{"fields":[...]},"name":"Q","ddoc":"QDoc","type":"json"}
func (ic *IndexCompiler) Compile(q *queryir.Query) (string, error) {
	doc, err := ic.visitQuery(q)
	if err != nil {
		return "", err
	}
	data, err := mango.Encode(doc, nil)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (ic *IndexCompiler) visitQuery(q *queryir.Query) (*mango.Object, error) {
	if q.Select == nil {
		return nil, &CompileError{Query: q.Name, Message: "query has no select statement"}
	}
	acc := &indexAccumulator{fields: &mango.Object{}}
	if err := ic.visit(q.Select, acc); err != nil {
		return nil, &CompileError{Query: q.Name, Message: err.Error()}
	}

	fields := mango.Array{classField, registryTypeField, registryIDField}
	for _, f := range acc.fields.Fields() {
		fields = append(fields, f.Value)
	}
	if acc.direction == mango.Desc {
		for i, f := range fields {
			if name, ok := f.(string); ok {
				fields[i] = mango.NewObject(mango.F(name, mango.Desc))
			}
		}
	}

	return mango.NewObject(
		mango.F("index", mango.NewObject(mango.F("fields", fields))),
		mango.F("name", q.Name),
		mango.F("ddoc", q.Name+"Doc"),
		mango.F("type", "json"),
	), nil
}

func (ic *IndexCompiler) visit(node queryir.Node, acc *indexAccumulator) error {
	switch n := node.(type) {
	case *queryir.Select:
		if n.Where != nil {
			if err := ic.visit(n.Where, acc); err != nil {
				return err
			}
		}
		if n.OrderBy != nil {
			return ic.visit(n.OrderBy, acc)
		}
		return nil
	case *queryir.Where:
		return ic.visit(n.AST, acc)
	case *queryir.OrderBy:
		for _, crit := range n.SortCriteria {
			dir := strings.ToLower(crit.Direction)
			if dir == "" {
				dir = mango.Asc
			}
			if acc.direction == "" {
				acc.direction = dir
			}
			acc.fields.Set(crit.PropertyPath, mango.NewObject(mango.F(crit.PropertyPath, dir)))
		}
		return nil
	case *queryir.Limit, *queryir.Skip, *queryir.Literal:
		return nil
	case *queryir.BinaryExpression:
		switch n.Operator {
		case queryir.OpAnd, queryir.OpOr, queryir.OpContains,
			queryir.OpLT, queryir.OpLTE, queryir.OpGT, queryir.OpGTE, queryir.OpEQ, queryir.OpNE:
		default:
			return compileErrorf("the query compiler does not support this binary expression")
		}
		if err := ic.visit(n.Left, acc); err != nil {
			return err
		}
		return ic.visit(n.Right, acc)
	case *queryir.ArrayExpression:
		for _, elem := range n.Elements {
			if err := ic.visit(elem, acc); err != nil {
				return err
			}
		}
		return nil
	case *queryir.Identifier, *queryir.MemberExpression:
		if path, ok := queryir.PropertyPath(n); ok && !acc.fields.Has(path) {
			acc.fields.Set(path, path)
		}
		return nil
	default:
		return compileErrorf("unrecognised type: %T", node)
	}
}

// CompileIndex returns the index definition of q.
func CompileIndex(q *queryir.Query) (string, error) {
	return NewIndexCompiler().Compile(q)
}
