package script

import (
	"context"
	"fmt"
	"log/slog"

	"go.starlark.net/starlark"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/metrics"
)

// Dispatch maps function names to the functions of one scope.
type Dispatch map[string]starlark.Callable

// ExecuteResult reports the functions run for one transaction.
type ExecuteResult struct {
	Executed     int
	ReturnValues []ir.Value
}

// CompiledScriptBundle is the compiled form of a network's scripts. It is
// immutable and safe for concurrent use; every execution gets its own
// scope.
type CompiledScriptBundle struct {
	programs  *Programs
	requester Requester
	metrics   *metrics.Metrics
}

func newBundle(programs *Programs, requester Requester, m *metrics.Metrics) *CompiledScriptBundle {
	return &CompiledScriptBundle{programs: programs, requester: requester, metrics: m}
}

// FunctionDeclarations returns every function of every script in order.
func (b *CompiledScriptBundle) FunctionDeclarations() []FunctionDeclaration {
	return b.programs.FunctionDeclarations()
}

// Position returns where a function was declared.
func (b *CompiledScriptBundle) Position(name string) (file string, line int, ok bool) {
	return b.programs.Position(name)
}

// Generate loads the scripts into a fresh scope bound to api and returns
// its dispatch table.
func (b *CompiledScriptBundle) Generate(thread *starlark.Thread, api API) (Dispatch, error) {
	predeclared := globals(b.requester)
	for name, fn := range bindAPI(api, b.programs.models) {
		predeclared[name] = fn
	}
	scope, err := b.programs.Load(thread, predeclared)
	if err != nil {
		return nil, err
	}
	fns, err := b.programs.Functions(scope)
	if err != nil {
		return nil, err
	}
	return Dispatch(fns), nil
}

// FindFunctionNames returns the functions that handle tx, in declaration
// order. A function tagged @transaction handles tx when its single
// declared parameter type is the type of tx. An untagged function named
// on<Type> handles transactions whose short type name is <Type>.
func (b *CompiledScriptBundle) FindFunctionNames(tx ir.Object) []string {
	fqn := ir.ClassOf(tx)
	_, short := ir.SplitFQN(fqn)
	var names []string
	for _, fn := range b.programs.functions {
		switch {
		case fn.HasDecorator(DecoratorTransaction):
			if len(fn.ParameterTypes) == 1 && fn.ParameterTypes[0] == fqn {
				names = append(names, fn.Name)
			}
		case fn.Name == "on"+short:
			names = append(names, fn.Name)
		}
	}
	return names
}

// Execute runs every function that handles tx. Functions run one at a
// time in declaration order and share one scope. The first error stops
// execution and is returned wrapped with the function name.
func (b *CompiledScriptBundle) Execute(ctx context.Context, api API, tx ir.Object) (*ExecuteResult, error) {
	names := b.FindFunctionNames(tx)
	result := &ExecuteResult{ReturnValues: []ir.Value{}}
	if len(names) == 0 {
		return result, nil
	}

	thread := NewThread(ctx, "transaction "+ir.ClassOf(tx))
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(context.Cause(ctx).Error())
	})
	defer stop()

	dispatch, err := b.Generate(thread, api)
	if err != nil {
		return nil, err
	}
	arg := NewDocument(tx, b.programs.models)
	for _, name := range names {
		slog.Debug("executing transaction function", "function", name, "transaction", ir.ClassOf(tx))
		rv, err := starlark.Call(thread, dispatch[name], starlark.Tuple{arg}, nil)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("transaction function %s: %w", name, ctxErr)
			}
			return nil, fmt.Errorf("transaction function %s: %w", name, err)
		}
		result.Executed++
		result.ReturnValues = append(result.ReturnValues, returnValue(rv))
	}
	b.metrics.ScriptsExecuted(result.Executed)
	return result, nil
}

// NewThread creates a thread for calling script functions. Print output
// goes to the log and runtime API builtins use ctx.
func NewThread(ctx context.Context, name string) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Print: func(t *starlark.Thread, msg string) {
			slog.Info("script output", "thread", t.Name, "message", msg)
		},
	}
	SetContext(thread, ctx)
	return thread
}

func returnValue(v starlark.Value) ir.Value {
	conv, err := FromValue(v)
	if err != nil {
		return ir.String(v.String())
	}
	return conv
}
