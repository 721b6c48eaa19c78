package queryir

import (
	"strings"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

// Node is any node of the query AST.
//
// This is a sealed interface - only types in this package implement it.
type Node interface {
	queryNode() // Marker method - seals interface to this package
}

// Position locates a node in its source file.
type Position struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// QueryManager owns the query file of a business network. A network has
// at most one query file.
type QueryManager struct {
	File *QueryFile
}

func (*QueryManager) queryNode() {}

// Queries returns all queries of the managed file, or nil.
func (m *QueryManager) Queries() []*Query {
	if m == nil || m.File == nil {
		return nil
	}
	return m.File.Queries
}

// QueryFile is a parsed query file.
type QueryFile struct {
	Identifier string // File name
	Queries    []*Query
}

func (*QueryFile) queryNode() {}

// Query is a named, described select statement.
type Query struct {
	Name        string
	Description string
	Select      *Select
	Pos         Position
}

func (*Query) queryNode() {}

// Select is a select statement.
//
//	SELECT <Resource> [FROM <Registry>] [WHERE <expr>]
//	    [ORDER BY <field> [ASC|DESC], ...] [LIMIT <n>] [SKIP <n>]
type Select struct {
	Resource string // Fully qualified type
	Registry string // Optional registry override
	Where    *Where
	OrderBy  *OrderBy
	Limit    *Limit
	Skip     *Skip
	Text     string // Exact source text of the statement
}

func (*Select) queryNode() {}

// Where wraps the root of a predicate expression.
type Where struct {
	AST Node
}

func (*Where) queryNode() {}

// Sort directions.
const (
	Ascending  = "ASC"
	Descending = "DESC"
)

// SortCriterion orders results by one property path.
type SortCriterion struct {
	PropertyPath string
	Direction    string // Ascending or Descending
}

// OrderBy lists sort criteria in priority order.
type OrderBy struct {
	SortCriteria []SortCriterion
}

func (*OrderBy) queryNode() {}

// Limit caps the number of results. AST is an integer Literal or a
// parameter Identifier.
type Limit struct {
	AST Node
}

func (*Limit) queryNode() {}

// Skip skips leading results. AST is an integer Literal or a parameter
// Identifier.
type Skip struct {
	AST Node
}

func (*Skip) queryNode() {}

// Binary operators.
const (
	OpAnd      = "AND"
	OpOr       = "OR"
	OpContains = "CONTAINS"
	OpLT       = "<"
	OpLTE      = "<="
	OpGT       = ">"
	OpGTE      = ">="
	OpEQ       = "=="
	OpNE       = "!="
)

// BinaryExpression combines two expressions with an operator.
type BinaryExpression struct {
	Operator string
	Left     Node
	Right    Node
}

func (*BinaryExpression) queryNode() {}

// Identifier is a property name or a "_$name" parameter reference.
type Identifier struct {
	Name string
}

func (*Identifier) queryNode() {}

// ParameterPrefix marks an identifier as a parameter reference.
const ParameterPrefix = "_$"

// ParameterName returns the parameter name of a "_$name" identifier.
func (id *Identifier) ParameterName() (string, bool) {
	name, ok := strings.CutPrefix(id.Name, ParameterPrefix)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// Literal is a constant value: string, number, boolean or null.
type Literal struct {
	Value ir.Value
}

func (*Literal) queryNode() {}

// ArrayExpression is an array of expressions, e.g. ["x", "y"].
type ArrayExpression struct {
	Elements []Node
}

func (*ArrayExpression) queryNode() {}

// MemberExpression selects a property of an object, e.g. owner.name.
type MemberExpression struct {
	Object   Node
	Property Node // Always an *Identifier
}

func (*MemberExpression) queryNode() {}
