package queryparse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/queryir"
)

// Statement keywords.
const (
	kwSelect   = "SELECT"
	kwFrom     = "FROM"
	kwWhere    = "WHERE"
	kwOrder    = "ORDER"
	kwBy       = "BY"
	kwLimit    = "LIMIT"
	kwSkip     = "SKIP"
	kwAnd      = "AND"
	kwOr       = "OR"
	kwContains = "CONTAINS"
)

var reserved = map[string]bool{
	kwSelect: true, kwFrom: true, kwWhere: true, kwOrder: true, kwBy: true,
	kwLimit: true, kwSkip: true, kwAnd: true, kwOr: true, kwContains: true,
	queryir.Ascending: true, queryir.Descending: true,
}

// ParseFile parses a query file. The identifier names the file in
// errors and in the returned QueryFile.
func ParseFile(identifier, src string) (*queryir.QueryFile, error) {
	p, err := newParser(identifier, src)
	if err != nil {
		return nil, err
	}
	file := &queryir.QueryFile{Identifier: identifier}
	seen := make(map[string]bool)
	for !p.at(TokenEOF) {
		q, err := p.parseQuery()
		if err != nil {
			return nil, err
		}
		if seen[q.Name] {
			return nil, p.errorAt(p.prev, "duplicate query %q", q.Name)
		}
		seen[q.Name] = true
		file.Queries = append(file.Queries, q)
	}
	return file, nil
}

// ParseSelect parses one select statement. The whole input must be
// consumed.
func ParseSelect(src string) (*queryir.Select, error) {
	p, err := newParser("", src)
	if err != nil {
		return nil, err
	}
	sel, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	if !p.at(TokenEOF) {
		return nil, p.errorAt(p.cur(), "unexpected %s after select statement", describe(p.cur()))
	}
	return sel, nil
}

type parser struct {
	file   string
	src    string
	tokens []Token
	pos    int
	prev   Token
}

func newParser(file, src string) (*parser, error) {
	tokens, err := tokenize(file, src)
	if err != nil {
		return nil, err
	}
	return &parser{file: file, src: src, tokens: tokens}, nil
}

func (p *parser) cur() Token {
	return p.tokens[p.pos]
}

func (p *parser) at(typ TokenType) bool {
	return p.cur().Type == typ
}

func (p *parser) atValue(typ TokenType, value string) bool {
	tok := p.cur()
	return tok.Type == typ && tok.Value == value
}

func (p *parser) advance() Token {
	tok := p.tokens[p.pos]
	if tok.Type != TokenEOF {
		p.pos++
	}
	p.prev = tok
	return tok
}

func (p *parser) errorAt(tok Token, format string, args ...any) error {
	return &SyntaxError{File: p.file, Line: tok.Line, Column: tok.Column, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(typ TokenType, value string) (Token, error) {
	if !p.atValue(typ, value) {
		return Token{}, p.errorAt(p.cur(), "expected %q, found %s", value, describe(p.cur()))
	}
	return p.advance(), nil
}

func (p *parser) expectIdent() (Token, error) {
	if !p.at(TokenIdent) {
		return Token{}, p.errorAt(p.cur(), "expected identifier, found %s", describe(p.cur()))
	}
	return p.advance(), nil
}

func describe(tok Token) string {
	if tok.Type == TokenEOF {
		return tok.Type.String()
	}
	return fmt.Sprintf("%s %q", tok.Type, tok.Value)
}

// parseQuery parses:
//
//	query <Name> { description: "<text>" statement: <select> }
func (p *parser) parseQuery() (*queryir.Query, error) {
	start, err := p.expect(TokenIdent, "query")
	if err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenOperator, "{"); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenIdent, "description"); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenOperator, ":"); err != nil {
		return nil, err
	}
	if !p.at(TokenString) {
		return nil, p.errorAt(p.cur(), "expected description string, found %s", describe(p.cur()))
	}
	description := p.advance().Value
	if _, err := p.expect(TokenIdent, "statement"); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenOperator, ":"); err != nil {
		return nil, err
	}
	sel, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenOperator, "}"); err != nil {
		return nil, err
	}
	return &queryir.Query{
		Name:        name.Value,
		Description: description,
		Select:      sel,
		Pos:         queryir.Position{File: p.file, Line: start.Line, Column: start.Column},
	}, nil
}

func (p *parser) parseSelect() (*queryir.Select, error) {
	start, err := p.expect(TokenIdent, kwSelect)
	if err != nil {
		return nil, err
	}
	sel := &queryir.Select{}
	if sel.Resource, err = p.parseQualifiedName(); err != nil {
		return nil, err
	}

	if p.atValue(TokenIdent, kwFrom) {
		p.advance()
		if sel.Registry, err = p.parseQualifiedName(); err != nil {
			return nil, err
		}
	}
	if p.atValue(TokenIdent, kwWhere) {
		p.advance()
		ast, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		sel.Where = &queryir.Where{AST: ast}
	}
	if p.atValue(TokenIdent, kwOrder) {
		p.advance()
		if _, err := p.expect(TokenIdent, kwBy); err != nil {
			return nil, err
		}
		if sel.OrderBy, err = p.parseOrderBy(); err != nil {
			return nil, err
		}
	}
	if p.atValue(TokenIdent, kwLimit) {
		p.advance()
		ast, err := p.parseCount(kwLimit)
		if err != nil {
			return nil, err
		}
		sel.Limit = &queryir.Limit{AST: ast}
	}
	if p.atValue(TokenIdent, kwSkip) {
		p.advance()
		ast, err := p.parseCount(kwSkip)
		if err != nil {
			return nil, err
		}
		sel.Skip = &queryir.Skip{AST: ast}
	}

	sel.Text = p.src[start.Start:p.prev.End]
	return sel, nil
}

// parseQualifiedName parses a dotted name such as org.acme.Car.
func (p *parser) parseQualifiedName() (string, error) {
	first, err := p.expectIdent()
	if err != nil {
		return "", err
	}
	if reserved[first.Value] {
		return "", p.errorAt(first, "expected type name, found keyword %s", first.Value)
	}
	parts := []string{first.Value}
	for p.atValue(TokenOperator, ".") {
		p.advance()
		next, err := p.expectIdent()
		if err != nil {
			return "", err
		}
		parts = append(parts, next.Value)
	}
	return strings.Join(parts, "."), nil
}

// parseOrderBy accepts a bare list or a bracketed list of criteria.
func (p *parser) parseOrderBy() (*queryir.OrderBy, error) {
	bracketed := p.atValue(TokenOperator, "[")
	if bracketed {
		p.advance()
	}
	orderBy := &queryir.OrderBy{}
	for {
		path, err := p.parseQualifiedName()
		if err != nil {
			return nil, err
		}
		crit := queryir.SortCriterion{PropertyPath: path, Direction: queryir.Ascending}
		if p.atValue(TokenIdent, queryir.Ascending) || p.atValue(TokenIdent, queryir.Descending) {
			crit.Direction = p.advance().Value
		}
		orderBy.SortCriteria = append(orderBy.SortCriteria, crit)
		if !p.atValue(TokenOperator, ",") {
			break
		}
		p.advance()
	}
	if bracketed {
		if _, err := p.expect(TokenOperator, "]"); err != nil {
			return nil, err
		}
	}
	return orderBy, nil
}

// parseCount parses the operand of LIMIT or SKIP: a non-negative integer
// or a parameter reference.
func (p *parser) parseCount(clause string) (queryir.Node, error) {
	tok := p.cur()
	switch tok.Type {
	case TokenNumber:
		n, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil || n < 0 {
			return nil, p.errorAt(tok, "%s requires a non-negative integer, found %s", clause, tok.Value)
		}
		p.advance()
		return &queryir.Literal{Value: ir.Int(n)}, nil
	case TokenIdent:
		id := &queryir.Identifier{Name: tok.Value}
		if _, ok := id.ParameterName(); !ok {
			return nil, p.errorAt(tok, "%s requires an integer or a parameter, found %s", clause, tok.Value)
		}
		p.advance()
		return id, nil
	default:
		return nil, p.errorAt(tok, "%s requires an integer or a parameter, found %s", clause, describe(tok))
	}
}

func (p *parser) parseOr() (queryir.Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.atValue(TokenIdent, kwOr) {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &queryir.BinaryExpression{Operator: queryir.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (queryir.Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.atValue(TokenIdent, kwAnd) {
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &queryir.BinaryExpression{Operator: queryir.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

var comparisonOperators = map[string]bool{
	queryir.OpLT: true, queryir.OpLTE: true, queryir.OpGT: true,
	queryir.OpGTE: true, queryir.OpEQ: true, queryir.OpNE: true,
}

func (p *parser) parseComparison() (queryir.Node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	tok := p.cur()
	var op string
	switch {
	case tok.Type == TokenOperator && comparisonOperators[tok.Value]:
		op = tok.Value
	case tok.Type == TokenIdent && tok.Value == kwContains:
		op = queryir.OpContains
	default:
		return left, nil
	}
	p.advance()
	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return &queryir.BinaryExpression{Operator: op, Left: left, Right: right}, nil
}

func (p *parser) parsePrimary() (queryir.Node, error) {
	tok := p.cur()
	switch tok.Type {
	case TokenString:
		p.advance()
		return &queryir.Literal{Value: ir.String(tok.Value)}, nil
	case TokenNumber:
		p.advance()
		return numberLiteral(p, tok)
	case TokenOperator:
		switch tok.Value {
		case "(":
			p.advance()
			inner, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokenOperator, ")"); err != nil {
				return nil, err
			}
			return inner, nil
		case "[":
			return p.parseArray()
		}
	case TokenIdent:
		switch tok.Value {
		case "true", "false":
			p.advance()
			return &queryir.Literal{Value: ir.Bool(tok.Value == "true")}, nil
		case "null":
			p.advance()
			return &queryir.Literal{Value: ir.Null{}}, nil
		}
		if reserved[tok.Value] {
			return nil, p.errorAt(tok, "unexpected keyword %s", tok.Value)
		}
		return p.parseMember()
	}
	return nil, p.errorAt(tok, "unexpected %s", describe(tok))
}

func numberLiteral(p *parser, tok Token) (queryir.Node, error) {
	if !strings.ContainsAny(tok.Value, ".eE") {
		if n, err := strconv.ParseInt(tok.Value, 10, 64); err == nil {
			return &queryir.Literal{Value: ir.Int(n)}, nil
		}
	}
	f, err := strconv.ParseFloat(tok.Value, 64)
	if err != nil {
		return nil, p.errorAt(tok, "invalid number %s", tok.Value)
	}
	return &queryir.Literal{Value: ir.Float(f)}, nil
}

func (p *parser) parseArray() (queryir.Node, error) {
	p.advance() // [
	arr := &queryir.ArrayExpression{}
	if p.atValue(TokenOperator, "]") {
		p.advance()
		return arr, nil
	}
	for {
		elem, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		arr.Elements = append(arr.Elements, elem)
		if !p.atValue(TokenOperator, ",") {
			break
		}
		p.advance()
	}
	if _, err := p.expect(TokenOperator, "]"); err != nil {
		return nil, err
	}
	return arr, nil
}

// parseMember parses a.b.c into nested member expressions.
func (p *parser) parseMember() (queryir.Node, error) {
	first := p.advance()
	var node queryir.Node = &queryir.Identifier{Name: first.Value}
	for p.atValue(TokenOperator, ".") {
		p.advance()
		prop, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		node = &queryir.MemberExpression{Object: node, Property: &queryir.Identifier{Name: prop.Value}}
	}
	return node, nil
}
