package queryparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/queryir"
)

const sampleFile = `
// Sample queries
query Q1 {
    description: "Assets of one value"
    statement:
        SELECT org.acme.sample.SampleAsset
            WHERE (value == "Green hat")
}
query Q2 {
    description: 'Paged assets'
    statement:
        SELECT org.acme.sample.SampleAsset
            FROM DogesSampleAssets
            ORDER BY [foo ASC, bar DESC]
            LIMIT _$mylimit
            SKIP 10
}
`

func TestParseFile(t *testing.T) {
	file, err := ParseFile("queries.qry", sampleFile)
	require.NoError(t, err)
	require.Len(t, file.Queries, 2)
	assert.Equal(t, "queries.qry", file.Identifier)

	q1 := file.Queries[0]
	assert.Equal(t, "Q1", q1.Name)
	assert.Equal(t, "Assets of one value", q1.Description)
	assert.Equal(t, 3, q1.Pos.Line)
	assert.Equal(t, "SELECT org.acme.sample.SampleAsset\n            WHERE (value == \"Green hat\")", q1.Select.Text)
	assert.Equal(t, "org.acme.sample.SampleAsset", q1.Select.Resource)
	assert.Equal(t, &queryir.Where{AST: &queryir.BinaryExpression{
		Operator: queryir.OpEQ,
		Left:     &queryir.Identifier{Name: "value"},
		Right:    &queryir.Literal{Value: ir.String("Green hat")},
	}}, q1.Select.Where)

	q2 := file.Queries[1].Select
	assert.Equal(t, "DogesSampleAssets", q2.Registry)
	assert.Equal(t, []queryir.SortCriterion{
		{PropertyPath: "foo", Direction: queryir.Ascending},
		{PropertyPath: "bar", Direction: queryir.Descending},
	}, q2.OrderBy.SortCriteria)
	assert.Equal(t, &queryir.Identifier{Name: "_$mylimit"}, q2.Limit.AST)
	assert.Equal(t, &queryir.Literal{Value: ir.Int(10)}, q2.Skip.AST)
}

func TestParseSelectPrecedence(t *testing.T) {
	sel, err := ParseSelect(`SELECT a.b.Asset WHERE (x == 1 OR y > 2.5 AND owner.name != _$n)`)
	require.NoError(t, err)

	want := &queryir.BinaryExpression{
		Operator: queryir.OpOr,
		Left: &queryir.BinaryExpression{
			Operator: queryir.OpEQ,
			Left:     &queryir.Identifier{Name: "x"},
			Right:    &queryir.Literal{Value: ir.Int(1)},
		},
		Right: &queryir.BinaryExpression{
			Operator: queryir.OpAnd,
			Left: &queryir.BinaryExpression{
				Operator: queryir.OpGT,
				Left:     &queryir.Identifier{Name: "y"},
				Right:    &queryir.Literal{Value: ir.Float(2.5)},
			},
			Right: &queryir.BinaryExpression{
				Operator: queryir.OpNE,
				Left: &queryir.MemberExpression{
					Object:   &queryir.Identifier{Name: "owner"},
					Property: &queryir.Identifier{Name: "name"},
				},
				Right: &queryir.Identifier{Name: "_$n"},
			},
		},
	}
	assert.Equal(t, want, sel.Where.AST)
}

func TestParseSelectContainsAndLiterals(t *testing.T) {
	sel, err := ParseSelect(`SELECT a.b.Asset WHERE (tags CONTAINS ["x", "y"] AND flag == true AND gone == null AND n >= -3)`)
	require.NoError(t, err)

	and := sel.Where.AST.(*queryir.BinaryExpression)
	assert.Equal(t, &queryir.BinaryExpression{
		Operator: queryir.OpGTE,
		Left:     &queryir.Identifier{Name: "n"},
		Right:    &queryir.Literal{Value: ir.Int(-3)},
	}, and.Right)

	inner := and.Left.(*queryir.BinaryExpression).Left.(*queryir.BinaryExpression).Left
	assert.Equal(t, &queryir.BinaryExpression{
		Operator: queryir.OpContains,
		Left:     &queryir.Identifier{Name: "tags"},
		Right: &queryir.ArrayExpression{Elements: []queryir.Node{
			&queryir.Literal{Value: ir.String("x")},
			&queryir.Literal{Value: ir.String("y")},
		}},
	}, inner)
}

func TestParseSelectOrderByBare(t *testing.T) {
	sel, err := ParseSelect("SELECT a.b.Asset ORDER BY foo DESC")
	require.NoError(t, err)
	assert.Equal(t, []queryir.SortCriterion{{PropertyPath: "foo", Direction: queryir.Descending}}, sel.OrderBy.SortCriteria)
	assert.Equal(t, "SELECT a.b.Asset ORDER BY foo DESC", sel.Text)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"missing select", "a.b.Asset", `expected "SELECT"`},
		{"trailing tokens", "SELECT a.b.Asset extra", "after select statement"},
		{"negative limit", "SELECT a.b.Asset LIMIT -1", "non-negative integer"},
		{"limit identifier", "SELECT a.b.Asset LIMIT foo", "integer or a parameter"},
		{"unterminated string", `SELECT a.b.Asset WHERE (x == "abc)`, "unterminated string"},
		{"unclosed paren", `SELECT a.b.Asset WHERE (x == 1`, `expected ")"`},
		{"bad character", `SELECT a.b.Asset WHERE (x ~ 1)`, "unexpected character"},
		{"keyword as value", `SELECT a.b.Asset WHERE (x == LIMIT)`, "unexpected keyword"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSelect(tt.src)
			require.Error(t, err)
			assert.True(t, IsSyntaxError(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParseFileErrors(t *testing.T) {
	_, err := ParseFile("q.qry", `query Q1 { description: "d" statement: SELECT a.B } query Q1 { description: "d" statement: SELECT a.B }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate query "Q1"`)

	_, err = ParseFile("q.qry", "query Q1 {\n  statement: SELECT a.B }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `q.qry:2:3: expected "description"`)
}

func TestParseFileEmpty(t *testing.T) {
	file, err := ParseFile("empty.qry", "  /* nothing */ \n")
	require.NoError(t, err)
	assert.Empty(t, file.Queries)
}
