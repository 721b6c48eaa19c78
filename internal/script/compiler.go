package script

import (
	"fmt"
	"log/slog"

	"go.starlark.net/starlark"

	"github.com/hyperledger-archives/composer-sub008/internal/metrics"
	"github.com/hyperledger-archives/composer-sub008/internal/model"
)

// TransformFunc rewrites a script's source before it is compiled.
type TransformFunc func(file, src string) (string, error)

// Compiler compiles the scripts of a Manager into a bundle.
type Compiler struct {
	transform TransformFunc
	requester Requester
	metrics   *metrics.Metrics
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithTransform applies fn to every script before compilation.
func WithTransform(fn TransformFunc) Option {
	return func(c *Compiler) {
		c.transform = fn
	}
}

// WithRequester serves the request global with r. Without a requester
// request.get and request.post fail.
func WithRequester(r Requester) Option {
	return func(c *Compiler) {
		c.requester = r
	}
}

// WithMetrics records executed functions in m.
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

// Compile compiles every script of manager. The runtime API names and
// the assert and request globals are bound per transaction; every
// top-level name of every script is visible to every other script.
func (c *Compiler) Compile(manager *Manager) (*CompiledScriptBundle, error) {
	programs, err := c.CompilePrograms(manager, PredeclaredNames())
	if err != nil {
		return nil, err
	}
	bundle := newBundle(programs, c.requester, c.metrics)
	slog.Debug("compiled scripts", "scripts", len(programs.programs), "functions", len(programs.functions))
	return bundle, nil
}

// Programs are compiled scripts ready to be loaded into a fresh scope.
type Programs struct {
	models    *model.Manager
	files     []string
	programs  []*starlark.Program
	functions []FunctionDeclaration
	positions map[string]FunctionDeclaration
}

// CompilePrograms compiles every script of manager. Names listed in
// predeclared must be supplied to Load.
func (c *Compiler) CompilePrograms(manager *Manager, predeclared []string) (*Programs, error) {
	names := make(map[string]bool, len(predeclared))
	for _, name := range predeclared {
		names[name] = true
	}
	scripts := manager.Scripts()
	for _, s := range scripts {
		for _, name := range s.Globals() {
			names[name] = true
		}
	}
	isPredeclared := func(name string) bool { return names[name] }

	p := &Programs{
		models:    manager.Models(),
		positions: make(map[string]FunctionDeclaration),
	}
	for _, s := range scripts {
		src := s.Source
		if c.transform != nil {
			transformed, err := c.transform(s.Identifier, src)
			if err != nil {
				return nil, &CompileError{File: s.Identifier, Message: err.Error(), Err: err}
			}
			src = transformed
		}
		_, prog, err := starlark.SourceProgramOptions(fileOptions, s.Identifier, src, isPredeclared)
		if err != nil {
			return nil, newCompileError(s.Identifier, err)
		}
		p.files = append(p.files, s.Identifier)
		p.programs = append(p.programs, prog)
		for _, fn := range s.FunctionDeclarations() {
			p.functions = append(p.functions, fn)
			p.positions[fn.Name] = fn
		}
	}
	return p, nil
}

// FunctionDeclarations returns the functions of all scripts in order.
func (p *Programs) FunctionDeclarations() []FunctionDeclaration {
	return p.functions
}

// Position returns where a function was declared.
func (p *Programs) Position(name string) (file string, line int, ok bool) {
	fn, ok := p.positions[name]
	return fn.File, fn.Line, ok
}

// Load runs every program in order in one new scope seeded with
// predeclared and returns the scope. Each call builds fresh globals.
func (p *Programs) Load(thread *starlark.Thread, predeclared starlark.StringDict) (starlark.StringDict, error) {
	scope := make(starlark.StringDict, len(predeclared)+len(p.functions))
	for k, v := range predeclared {
		scope[k] = v
	}
	for i, prog := range p.programs {
		globals, err := prog.Init(thread, scope)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", p.files[i], err)
		}
		for k, v := range globals {
			scope[k] = v
		}
	}
	return scope, nil
}

// Functions returns the callable for every declared function in scope.
func (p *Programs) Functions(scope starlark.StringDict) (map[string]starlark.Callable, error) {
	out := make(map[string]starlark.Callable, len(p.functions))
	for _, fn := range p.functions {
		callable, ok := scope[fn.Name].(starlark.Callable)
		if !ok {
			return nil, fmt.Errorf("%s:%d: %s is not callable after loading", fn.File, fn.Line, fn.Name)
		}
		out[fn.Name] = callable
	}
	return out, nil
}
