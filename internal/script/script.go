package script

import (
	"fmt"
	"regexp"
	"strings"

	"go.starlark.net/syntax"

	"github.com/hyperledger-archives/composer-sub008/internal/model"
)

// DecoratorTransaction marks a function as a transaction handler.
const DecoratorTransaction = "transaction"

// FunctionDeclaration describes one top-level function of a script.
type FunctionDeclaration struct {
	Name           string
	ParameterNames []string
	ParameterTypes []string // From @param tags, in tag order
	Decorators     []string // From bare tags such as @transaction
	File           string
	Line           int
}

// HasDecorator reports whether the function carries the named tag.
func (f FunctionDeclaration) HasDecorator(name string) bool {
	for _, d := range f.Decorators {
		if d == name {
			return true
		}
	}
	return false
}

// Script is one parsed script file.
type Script struct {
	Identifier string
	Source     string
	File       *syntax.File // Parse tree with token positions

	functions []FunctionDeclaration
	globals   []string
}

// fileOptions are used for every script. Top-level control flow is
// allowed so scripts can build lookup tables at load time.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	Recursion:       true,
}

// NewScript parses src and collects its function declarations.
func NewScript(identifier, src string) (*Script, error) {
	f, err := fileOptions.Parse(identifier, src, 0)
	if err != nil {
		return nil, newCompileError(identifier, err)
	}
	s := &Script{Identifier: identifier, Source: src, File: f}
	s.collect()
	return s, nil
}

// FunctionDeclarations returns the top-level functions in source order.
func (s *Script) FunctionDeclarations() []FunctionDeclaration {
	return s.functions
}

// Globals returns every name bound at the top level of the script.
func (s *Script) Globals() []string {
	return s.globals
}

func (s *Script) collect() {
	seen := make(map[string]bool)
	bind := func(name string) {
		if !seen[name] {
			seen[name] = true
			s.globals = append(s.globals, name)
		}
	}
	for _, stmt := range s.File.Stmts {
		switch st := stmt.(type) {
		case *syntax.DefStmt:
			bind(st.Name.Name)
			s.functions = append(s.functions, s.declaration(st))
		case *syntax.AssignStmt:
			for _, name := range boundNames(st.LHS) {
				bind(name)
			}
		}
	}
}

func boundNames(lhs syntax.Expr) []string {
	switch x := lhs.(type) {
	case *syntax.Ident:
		return []string{x.Name}
	case *syntax.TupleExpr:
		var out []string
		for _, elem := range x.List {
			out = append(out, boundNames(elem)...)
		}
		return out
	case *syntax.ListExpr:
		var out []string
		for _, elem := range x.List {
			out = append(out, boundNames(elem)...)
		}
		return out
	case *syntax.ParenExpr:
		return boundNames(x.X)
	default:
		return nil
	}
}

func (s *Script) declaration(def *syntax.DefStmt) FunctionDeclaration {
	decl := FunctionDeclaration{
		Name: def.Name.Name,
		File: s.Identifier,
		Line: int(def.Def.Line),
	}
	for _, param := range def.Params {
		if name := parameterName(param); name != "" {
			decl.ParameterNames = append(decl.ParameterNames, name)
		}
	}
	decl.Decorators, decl.ParameterTypes = parseTags(docstring(def))
	return decl
}

func parameterName(param syntax.Expr) string {
	switch p := param.(type) {
	case *syntax.Ident:
		return p.Name
	case *syntax.BinaryExpr: // name=default
		if id, ok := p.X.(*syntax.Ident); ok {
			return id.Name
		}
	case *syntax.UnaryExpr: // *args, **kwargs
		if id, ok := p.X.(*syntax.Ident); ok {
			return id.Name
		}
	}
	return ""
}

// docstring returns the leading string literal of a function body.
func docstring(def *syntax.DefStmt) string {
	if len(def.Body) == 0 {
		return ""
	}
	expr, ok := def.Body[0].(*syntax.ExprStmt)
	if !ok {
		return ""
	}
	lit, ok := expr.X.(*syntax.Literal)
	if !ok || lit.Token != syntax.STRING {
		return ""
	}
	text, _ := lit.Value.(string)
	return text
}

var (
	tagPattern   = regexp.MustCompile(`^@([A-Za-z_][A-Za-z0-9_]*)\b(.*)$`)
	paramPattern = regexp.MustCompile(`^\{\s*([^}\s]+)\s*\}`)
)

// parseTags reads @tag lines from a docstring. @param {Type} name adds a
// parameter type; any other tag is a decorator.
func parseTags(doc string) (decorators, paramTypes []string) {
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "* ")
		m := tagPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		tag, rest := m[1], strings.TrimSpace(m[2])
		if tag == "param" {
			if pm := paramPattern.FindStringSubmatch(rest); pm != nil {
				paramTypes = append(paramTypes, pm[1])
			}
			continue
		}
		decorators = append(decorators, tag)
	}
	return decorators, paramTypes
}

// Manager holds the scripts of a network in load order.
type Manager struct {
	models  *model.Manager
	scripts []*Script
	byID    map[string]*Script
}

// NewManager creates an empty script manager. Resources handed to scripts
// are identified using models.
func NewManager(models *model.Manager) *Manager {
	return &Manager{models: models, byID: make(map[string]*Script)}
}

// Models returns the model manager scripts are bound to.
func (m *Manager) Models() *model.Manager {
	return m.models
}

// AddScript appends a script. Identifiers must be unique.
func (m *Manager) AddScript(s *Script) error {
	if _, exists := m.byID[s.Identifier]; exists {
		return fmt.Errorf("duplicate script %q", s.Identifier)
	}
	m.scripts = append(m.scripts, s)
	m.byID[s.Identifier] = s
	return nil
}

// CreateScript parses and adds a script.
func (m *Manager) CreateScript(identifier, src string) (*Script, error) {
	s, err := NewScript(identifier, src)
	if err != nil {
		return nil, err
	}
	if err := m.AddScript(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Script returns the script with the given identifier, or nil.
func (m *Manager) Script(identifier string) *Script {
	return m.byID[identifier]
}

// Scripts returns the scripts in load order.
func (m *Manager) Scripts() []*Script {
	out := make([]*Script, len(m.scripts))
	copy(out, m.scripts)
	return out
}

// FunctionDeclarations returns the functions of all scripts in load and
// source order.
func (m *Manager) FunctionDeclarations() []FunctionDeclaration {
	var out []FunctionDeclaration
	for _, s := range m.scripts {
		out = append(out, s.functions...)
	}
	return out
}
