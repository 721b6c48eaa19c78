package querysql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/mango"
)

// Table and columns of the resource store.
const (
	Table = "resources"

	ColumnRegistryType = "registry_type"
	ColumnRegistryID   = "registry_id"
	ColumnID           = "id"
	ColumnClass        = "class"
	ColumnData         = "data"
)

// discriminators maps the document fields stored as columns to their column.
var discriminators = map[string]string{
	ir.ClassKey:        ColumnClass,
	ir.RegistryTypeKey: ColumnRegistryType,
	ir.RegistryIDKey:   ColumnRegistryID,
}

// SQLCompiler compiles the conjunctive equality part of a Mango selector
// to a parameterized SQLite prefilter over the resource table.
//
// The statement selects a superset of the matching documents: anything it
// cannot express (ranges, disjunctions, regular expressions) is left to the
// Mango matcher, which runs over the rows it returns.
//
// CRITICAL: every statement has ORDER BY with a COLLATE BINARY tiebreaker.
// CRITICAL: values are parameterized, never interpolated.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a Mango query to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(q *mango.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}

	var conds []string
	var params []any
	if err := c.compileSelector(q.Selector, &conds, &params); err != nil {
		return "", nil, fmt.Errorf("compile selector: %w", err)
	}

	var whereClause string
	if len(conds) > 0 {
		whereClause = " WHERE " + strings.Join(conds, " AND ")
	}

	sql := fmt.Sprintf("SELECT %s, %s, %s, %s FROM %s%s ORDER BY %s",
		ColumnRegistryType, ColumnRegistryID, ColumnID, ColumnData,
		Table,
		whereClause,
		stableOrderKey())

	return sql, params, nil
}

// stableOrderKey returns the ORDER BY clause of every statement.
// COLLATE BINARY keeps text ordering identical across SQLite versions.
func stableOrderKey() string {
	return fmt.Sprintf("%s, %s, %s COLLATE BINARY ASC", ColumnRegistryType, ColumnRegistryID, ColumnID)
}

// compileSelector appends one condition per pushable equality. Keys are
// visited in sorted order for deterministic output.
func (c *SQLCompiler) compileSelector(sel ir.Object, conds *[]string, params *[]any) error {
	for _, key := range sel.SortedKeys() {
		value := sel[key]

		if key == "$and" {
			clauses, ok := value.(ir.Array)
			if !ok {
				return fmt.Errorf("$and expects an array, got %T", value)
			}
			for _, clause := range clauses {
				if obj, ok := clause.(ir.Object); ok {
					if err := c.compileSelector(obj, conds, params); err != nil {
						return err
					}
				}
			}
			continue
		}
		if strings.HasPrefix(key, "$") {
			// $or, $nor and $not are evaluated by the matcher.
			continue
		}

		eq, ok := equalityOperand(value)
		if !ok {
			continue
		}
		expr, ok := fieldExpression(mango.SplitField(key))
		if !ok {
			continue
		}
		param, err := irValueToParam(eq)
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		*conds = append(*conds, expr+" = ?")
		*params = append(*params, param)
	}
	return nil
}

// equalityOperand returns the string a field condition requires equality
// with. Only strings are pushed down: the matcher orders strings by
// collation and breaks ties bytewise, so string equality in SQLite is
// exact. Numbers and booleans compare across types in the matcher.
func equalityOperand(cond ir.Value) (ir.Value, bool) {
	switch v := cond.(type) {
	case ir.String:
		return v, true
	case ir.Object:
		if s, ok := v["$eq"].(ir.String); ok {
			return s, true
		}
	}
	return nil, false
}

// fieldExpression returns the SQL expression reading a document field.
func fieldExpression(path []string) (string, bool) {
	if len(path) == 1 {
		if col, ok := discriminators[path[0]]; ok {
			return col, true
		}
	}
	p, ok := jsonPath(path)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("json_extract(%s, '%s')", ColumnData, p), true
}

// jsonPath renders a SQLite JSON path. Segments are inlined into the
// statement, so segments holding quotes or backslashes are rejected.
func jsonPath(path []string) (string, bool) {
	var sb strings.Builder
	sb.WriteString("$")
	for _, seg := range path {
		if seg == "" || strings.ContainsAny(seg, `"'\`) {
			return "", false
		}
		sb.WriteString(`."`)
		sb.WriteString(seg)
		sb.WriteString(`"`)
	}
	return sb.String(), true
}

// CompileIndex converts a CouchDB index definition to a SQLite CREATE
// INDEX statement over the resource table. Discriminator fields index
// their column; other fields index a json_extract expression.
func (c *SQLCompiler) CompileIndex(definition string) (string, error) {
	v, err := ir.UnmarshalValue([]byte(definition))
	if err != nil {
		return "", fmt.Errorf("parse index: %w", err)
	}
	doc, ok := v.(ir.Object)
	if !ok {
		return "", fmt.Errorf("parse index: expected a JSON object, got %T", v)
	}
	name, ok := doc.GetString("name")
	if !ok || name == "" {
		return "", fmt.Errorf("index has no name")
	}
	if strings.ContainsAny(name, `"'\`) {
		return "", fmt.Errorf("index %s: invalid name", name)
	}
	index, _ := doc["index"].(ir.Object)
	fields, ok := index["fields"].(ir.Array)
	if !ok || len(fields) == 0 {
		return "", fmt.Errorf("index %s: no fields", name)
	}

	columns := make([]string, 0, len(fields))
	for _, f := range fields {
		field, dir, err := indexField(f)
		if err != nil {
			return "", fmt.Errorf("index %s: %w", name, err)
		}
		expr, ok := fieldExpression(mango.SplitField(field))
		if !ok {
			return "", fmt.Errorf("index %s: field %q cannot be indexed", name, field)
		}
		if dir != "" {
			expr += " " + dir
		}
		columns = append(columns, expr)
	}

	return fmt.Sprintf(`CREATE INDEX IF NOT EXISTS "idx_%s" ON %s(%s)`,
		name, Table, strings.Join(columns, ", ")), nil
}

// indexField decodes a field entry: either "path" or {"path": "asc"|"desc"}.
func indexField(f ir.Value) (field, dir string, err error) {
	switch v := f.(type) {
	case ir.String:
		return string(v), "", nil
	case ir.Object:
		if len(v) != 1 {
			return "", "", fmt.Errorf("sort field must have exactly one member")
		}
		keys := make([]string, 0, 1)
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d, ok := v[keys[0]].(ir.String)
		if !ok {
			return "", "", fmt.Errorf("field %s: direction must be a string", keys[0])
		}
		switch string(d) {
		case mango.Asc:
			return keys[0], "ASC", nil
		case mango.Desc:
			return keys[0], "DESC", nil
		default:
			return "", "", fmt.Errorf("field %s: unknown direction %q", keys[0], d)
		}
	default:
		return "", "", fmt.Errorf("unsupported field entry %T", f)
	}
}

// irValueToParam converts an ir.Value to a Go native type for a SQL
// parameter. Arrays and objects are not valid parameters.
func irValueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Float:
		return float64(val), nil
	case ir.Bool:
		return bool(val), nil
	case ir.Null, nil:
		return nil, nil
	case ir.Array:
		return nil, fmt.Errorf("array cannot be used as SQL parameter directly")
	case ir.Object:
		return nil, fmt.Errorf("object cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
