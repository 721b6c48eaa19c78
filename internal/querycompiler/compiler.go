package querycompiler

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/mango"
	"github.com/hyperledger-archives/composer-sub008/internal/metrics"
	"github.com/hyperledger-archives/composer-sub008/internal/model"
	"github.com/hyperledger-archives/composer-sub008/internal/queryir"
)

// Compiler compiles query trees into generators. A Compiler holds no
// per-compilation state and may be shared.
type Compiler struct {
	metrics *metrics.Metrics
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithMetrics records compilations in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Compiler) {
		c.metrics = m
	}
}

// NewCompiler creates a Compiler.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Escaped discriminator fields as they appear in selectors and sorts.
var (
	classField        = mango.EscapeField(ir.ClassKey)
	registryTypeField = mango.EscapeField(ir.RegistryTypeKey)
	registryIDField   = mango.EscapeField(ir.RegistryIDKey)
)

// fieldPath is a property reference produced by an identifier or member
// expression. It is distinct from string literals, which are ir.String.
type fieldPath string

// visitContext carries the state of one query compilation.
type visitContext struct {
	models   *model.Manager
	query    string   // Name of the query being compiled
	required []string // Parameter names in visit order, with repeats
}

func (ctx *visitContext) errorf(format string, args ...any) error {
	return &CompileError{Query: ctx.query, Message: fmt.Sprintf(format, args...)}
}

// Compile compiles every query of the manager into a bundle. Types are
// resolved against models.
func (c *Compiler) Compile(manager *queryir.QueryManager, models *model.Manager) (*CompiledQueryBundle, error) {
	result, err := c.visit(manager, &visitContext{models: models})
	if err != nil {
		return nil, err
	}
	compiled := result.([]*CompiledQuery)
	slog.Debug("compiled queries", "count", len(compiled))
	return newBundle(c, models, compiled), nil
}

// CompileQuery compiles a single named query.
func (c *Compiler) CompileQuery(q *queryir.Query, models *model.Manager) (*CompiledQuery, error) {
	result, err := c.visit(q, &visitContext{models: models})
	if err != nil {
		return nil, err
	}
	return result.(*CompiledQuery), nil
}

// visit dispatches on the node kind.
func (c *Compiler) visit(node queryir.Node, ctx *visitContext) (any, error) {
	switch n := node.(type) {
	case *queryir.QueryManager:
		return c.visitQueryManager(n, ctx)
	case *queryir.QueryFile:
		return c.visitQueryFile(n, ctx)
	case *queryir.Query:
		return c.visitQuery(n, ctx)
	case *queryir.Select:
		return c.visitSelect(n, ctx)
	case *queryir.Where:
		return c.visitWhere(n, ctx)
	case *queryir.OrderBy:
		return c.visitOrderBy(n, ctx)
	case *queryir.Limit:
		return c.visitCount(mango.LimitKey, n.AST, ctx)
	case *queryir.Skip:
		return c.visitCount(mango.SkipKey, n.AST, ctx)
	case *queryir.BinaryExpression:
		return c.visitBinaryExpression(n, ctx)
	case *queryir.Identifier:
		return c.visitIdentifier(n, ctx), nil
	case *queryir.Literal:
		return n.Value, nil
	case *queryir.ArrayExpression:
		return c.visitArrayExpression(n, ctx)
	case *queryir.MemberExpression:
		return c.visitMemberExpression(n, ctx)
	default:
		return nil, ctx.errorf("unrecognised type: %T", node)
	}
}

func (c *Compiler) visitQueryManager(m *queryir.QueryManager, ctx *visitContext) ([]*CompiledQuery, error) {
	if m.File == nil {
		return []*CompiledQuery{}, nil
	}
	return c.visitQueryFile(m.File, ctx)
}

func (c *Compiler) visitQueryFile(f *queryir.QueryFile, ctx *visitContext) ([]*CompiledQuery, error) {
	out := make([]*CompiledQuery, 0, len(f.Queries))
	for _, q := range f.Queries {
		compiled, err := c.visitQuery(q, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, compiled)
	}
	return out, nil
}

func (c *Compiler) visitQuery(q *queryir.Query, ctx *visitContext) (*CompiledQuery, error) {
	if q.Select == nil {
		return nil, &CompileError{Query: q.Name, Message: "query has no select statement"}
	}
	// Each query gets its own parameter list.
	qctx := &visitContext{models: ctx.models, query: q.Name}
	doc, err := c.visitSelect(q.Select, qctx)
	if err != nil {
		return nil, err
	}

	compiled := &CompiledQuery{
		Name:       q.Name,
		Text:       q.Select.Text,
		Hash:       ir.QueryHash(q.Select.Text),
		Select:     q.Select,
		Parameters: dedupe(qctx.required),
		document:   doc,
	}
	if len(qctx.required) == 0 {
		compiled.Generator, err = trivialGenerator(doc)
	} else {
		compiled.Generator = parameterizedGenerator(doc, qctx.required)
	}
	if err != nil {
		return nil, &CompileError{Query: q.Name, Message: err.Error()}
	}

	c.metrics.QueryCompiled()
	slog.Debug("compiled query", "name", q.Name, "hash", compiled.Hash, "parameters", compiled.Parameters)
	return compiled, nil
}

// visitSelect builds the query document. Discriminators come first, then
// the WHERE fragment, then sort, limit and skip.
func (c *Compiler) visitSelect(sel *queryir.Select, ctx *visitContext) (*mango.Object, error) {
	if ctx.models == nil {
		return nil, ctx.errorf("no model manager to resolve %s", sel.Resource)
	}
	decl, err := ctx.models.GetType(sel.Resource)
	if err != nil {
		return nil, ctx.errorf("%v", err)
	}
	registryType := decl.Kind.RegistryType()
	if registryType == "" {
		return nil, ctx.errorf("the query compiler does not support resources of this type")
	}
	registryID := sel.Registry
	if registryID == "" {
		registryID = sel.Resource
	}

	selector := mango.NewObject(
		mango.F(classField, sel.Resource),
		mango.F(registryTypeField, registryType),
		mango.F(registryIDField, registryID),
	)
	doc := mango.NewObject(mango.F(mango.SelectorKey, selector))

	if sel.Where != nil {
		where, err := c.visitWhere(sel.Where, ctx)
		if err != nil {
			return nil, err
		}
		fragment, _ := where.Get(mango.SelectorKey)
		for _, f := range fragment.(*mango.Object).Fields() {
			selector.Set(f.Key, f.Value)
		}
	}

	clauses := []queryir.Node{}
	if sel.OrderBy != nil {
		clauses = append(clauses, sel.OrderBy)
	}
	if sel.Limit != nil {
		clauses = append(clauses, sel.Limit)
	}
	if sel.Skip != nil {
		clauses = append(clauses, sel.Skip)
	}
	for _, clause := range clauses {
		result, err := c.visit(clause, ctx)
		if err != nil {
			return nil, err
		}
		for _, f := range result.(*mango.Object).Fields() {
			doc.Set(f.Key, f.Value)
		}
	}
	return doc, nil
}

// visitWhere returns {"selector": <fragment>}.
func (c *Compiler) visitWhere(w *queryir.Where, ctx *visitContext) (*mango.Object, error) {
	result, err := c.visit(w.AST, ctx)
	if err != nil {
		return nil, err
	}
	fragment, ok := result.(*mango.Object)
	if !ok {
		return nil, ctx.errorf("the query compiler cannot compile a WHERE clause that is not a condition")
	}
	return mango.NewObject(mango.F(mango.SelectorKey, fragment)), nil
}

// visitOrderBy returns {"sort": [...]} with the discriminators leading.
func (c *Compiler) visitOrderBy(o *queryir.OrderBy, ctx *visitContext) (*mango.Object, error) {
	if len(o.SortCriteria) == 0 {
		return nil, ctx.errorf("ORDER BY requires at least one field")
	}
	direction := strings.ToLower(o.SortCriteria[0].Direction)
	if direction == "" {
		direction = mango.Asc
	}
	fields := []string{classField, registryTypeField, registryIDField}
	for _, crit := range o.SortCriteria {
		d := strings.ToLower(crit.Direction)
		if d == "" {
			d = mango.Asc
		}
		if d != direction {
			return nil, ctx.errorf("ORDER BY currently only supports a single direction for all fields")
		}
		fields = append(fields, crit.PropertyPath)
	}

	sort := make(mango.Array, len(fields))
	for i, field := range fields {
		sort[i] = mango.NewObject(mango.F(field, direction))
	}
	return mango.NewObject(mango.F(mango.SortKey, sort)), nil
}

// visitCount handles LIMIT and SKIP.
func (c *Compiler) visitCount(key string, ast queryir.Node, ctx *visitContext) (*mango.Object, error) {
	value, err := c.visit(ast, ctx)
	if err != nil {
		return nil, err
	}
	switch value.(type) {
	case mango.Param, ir.Int:
	default:
		return nil, ctx.errorf("%s requires an integer or a parameter", strings.ToUpper(key))
	}
	return mango.NewObject(mango.F(key, value)), nil
}

func (c *Compiler) visitBinaryExpression(b *queryir.BinaryExpression, ctx *visitContext) (any, error) {
	switch b.Operator {
	case queryir.OpAnd, queryir.OpOr:
		return c.visitCombination(b, ctx)
	case queryir.OpContains:
		return c.visitContains(b, ctx)
	case queryir.OpLT, queryir.OpLTE, queryir.OpGT, queryir.OpGTE, queryir.OpEQ, queryir.OpNE:
		return c.visitCondition(b, ctx)
	default:
		return nil, ctx.errorf("the query compiler does not support this binary expression")
	}
}

// visitIdentifier returns a Param for "_$name" references and a field
// path otherwise.
func (c *Compiler) visitIdentifier(id *queryir.Identifier, ctx *visitContext) any {
	if name, ok := id.ParameterName(); ok {
		ctx.required = append(ctx.required, name)
		return mango.Param{Name: name}
	}
	return fieldPath(id.Name)
}

func (c *Compiler) visitArrayExpression(a *queryir.ArrayExpression, ctx *visitContext) (mango.Array, error) {
	out := make(mango.Array, 0, len(a.Elements))
	for _, elem := range a.Elements {
		v, err := c.visit(elem, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, documentValue(v))
	}
	return out, nil
}

func (c *Compiler) visitMemberExpression(m *queryir.MemberExpression, ctx *visitContext) (fieldPath, error) {
	obj, err := c.visit(m.Object, ctx)
	if err != nil {
		return "", err
	}
	prop, err := c.visit(m.Property, ctx)
	if err != nil {
		return "", err
	}
	objPath, ok1 := obj.(fieldPath)
	propPath, ok2 := prop.(fieldPath)
	if !ok1 || !ok2 {
		return "", ctx.errorf("member expressions may only contain property names")
	}
	return objPath + "." + propPath, nil
}

// documentValue converts a visit result into a value for the document.
func documentValue(v any) any {
	if p, ok := v.(fieldPath); ok {
		return string(p)
	}
	return v
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
