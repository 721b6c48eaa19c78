package acl

import (
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/metrics"
	"github.com/hyperledger-archives/composer-sub008/internal/script"
)

// Compiler compiles ACL rules and the scripts their conditions may call.
type Compiler struct {
	metrics *metrics.Metrics
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithMetrics records condition evaluations in m.
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

// Compile compiles every rule of aclManager. Functions declared by the
// scripts of scriptManager, which may be nil, are callable from
// conditions.
func (c *Compiler) Compile(aclManager *Manager, scriptManager *script.Manager) (*CompiledAclBundle, error) {
	var programs *script.Programs
	var functions []string
	if scriptManager != nil {
		var err error
		programs, err = script.NewCompiler().CompilePrograms(scriptManager, script.PredeclaredNames())
		if err != nil {
			return nil, err
		}
		for _, fn := range programs.FunctionDeclarations() {
			functions = append(functions, fn.Name)
		}
	}

	models := aclManager.Models()
	options := helpers(models)
	compiled := make(map[string]*vm.Program, len(aclManager.Rules()))
	for _, rule := range aclManager.Rules() {
		program, err := compileCondition(rule, functions, options)
		if err != nil {
			return nil, err
		}
		compiled[rule.Name] = program
	}

	slog.Debug("compiled ACL rules", "rules", len(compiled), "functions", len(functions))
	return &CompiledAclBundle{
		rules:     aclManager.Rules(),
		compiled:  compiled,
		programs:  programs,
		functions: functions,
		models:    models,
		metrics:   c.metrics,
	}, nil
}

// compileCondition compiles the condition of rule against an environment
// declaring its three variables and every script function.
func compileCondition(rule ir.AclRule, functions []string, options []expr.Option) (*vm.Program, error) {
	env := make(map[string]any, len(functions)+3)
	for _, name := range functions {
		env[name] = scriptFunc(nil)
	}
	resourceVar, participantVar, transactionVar := rule.Variables()
	for _, name := range []string{resourceVar, participantVar, transactionVar} {
		env[name] = map[string]any{}
	}

	src := condition(rule)
	opts := append([]expr.Option{expr.Env(env)}, options...)
	program, err := expr.Compile(src, opts...)
	if err != nil {
		return nil, &CompileError{Rule: rule.Name, Condition: src, Err: err}
	}
	return program, nil
}
