package acl

import (
	"fmt"
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"go.starlark.net/starlark"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/metrics"
	"github.com/hyperledger-archives/composer-sub008/internal/model"
	"github.com/hyperledger-archives/composer-sub008/internal/script"
)

// maxConditionSteps bounds the script computation of one evaluation.
const maxConditionSteps = 1_000_000

// RuleFunc evaluates the condition of one rule.
type RuleFunc func(resource, participant, transaction ir.Object) (any, error)

// Dispatch maps rule names to their condition functions.
type Dispatch map[string]RuleFunc

// CompiledAclBundle is the compiled form of a network's ACL rules. It is
// immutable and safe for concurrent use.
type CompiledAclBundle struct {
	rules     []ir.AclRule
	compiled  map[string]*vm.Program
	programs  *script.Programs
	functions []string
	models    *model.Manager
	metrics   *metrics.Metrics
}

// Rules returns the rules the bundle was compiled with, in order.
func (b *CompiledAclBundle) Rules() []ir.AclRule {
	return b.rules
}

// Generate returns a dispatch table over a fresh script scope. Script
// functions called by conditions run on thread.
func (b *CompiledAclBundle) Generate(thread *starlark.Thread) (Dispatch, error) {
	base := make(map[string]any, len(b.functions))
	if b.programs != nil && len(b.functions) > 0 {
		scope, err := b.programs.Load(thread, script.RestrictedGlobals())
		if err != nil {
			return nil, err
		}
		fns, err := b.programs.Functions(scope)
		if err != nil {
			return nil, err
		}
		for name, fn := range fns {
			base[name] = bindFunction(thread, name, fn, b.models)
		}
	}

	dispatch := make(Dispatch, len(b.rules))
	for _, rule := range b.rules {
		program := b.compiled[rule.Name]
		resourceVar, participantVar, transactionVar := rule.Variables()
		dispatch[rule.Name] = func(resource, participant, transaction ir.Object) (any, error) {
			env := make(map[string]any, len(base)+3)
			for k, v := range base {
				env[k] = v
			}
			env[resourceVar] = variable(resource)
			env[participantVar] = variable(participant)
			env[transactionVar] = variable(transaction)
			return expr.Run(program, env)
		}
	}
	return dispatch, nil
}

// Execute evaluates the condition of rule. It fails only when rule is
// not part of the bundle; a condition that cannot be evaluated denies.
func (b *CompiledAclBundle) Execute(rule ir.AclRule, resource, participant, transaction ir.Object) (bool, error) {
	if _, ok := b.compiled[rule.Name]; !ok {
		return false, fmt.Errorf("%w: %s", ErrRuleNotFound, rule.Name)
	}

	result, err := b.evaluate(rule.Name, resource, participant, transaction)
	if err != nil {
		slog.Warn("ACL condition failed, denying", "rule", rule.Name, "error", err)
		b.metrics.AclEvaluated(metrics.OutcomeError)
		return false, nil
	}
	allowed := Truthy(result)
	if allowed {
		b.metrics.AclEvaluated(metrics.OutcomeAllow)
	} else {
		b.metrics.AclEvaluated(metrics.OutcomeDeny)
	}
	return allowed, nil
}

func (b *CompiledAclBundle) evaluate(name string, resource, participant, transaction ir.Object) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	thread := &starlark.Thread{Name: "acl " + name}
	thread.SetMaxExecutionSteps(maxConditionSteps)
	dispatch, err := b.Generate(thread)
	if err != nil {
		return nil, err
	}
	return dispatch[name](resource, participant, transaction)
}
