package script

import (
	"context"
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/model"
)

// API is the runtime surface available to transaction functions for the
// lifetime of one transaction.
type API interface {
	GetFactory() *model.Factory
	GetSerializer() *model.Serializer
	GetAssetRegistry(ctx context.Context, id string) (Registry, error)
	GetParticipantRegistry(ctx context.Context, id string) (Registry, error)
	GetTransactionRegistry(ctx context.Context, id string) (Registry, error)
	GetCurrentParticipant() ir.Object
	GetCurrentIdentity() ir.Object
	Post(ctx context.Context, url string, data ir.Value) (ir.Value, error)
	Emit(ctx context.Context, event ir.Object) error
	BuildQuery(text string) (string, error)
	Query(ctx context.Context, nameOrID string, params map[string]any) ([]ir.Object, error)
	GetNativeAPI() any
}

// Registry is a collection of resources of one registry.
type Registry interface {
	ID() string
	Type() string
	GetAll(ctx context.Context) ([]ir.Object, error)
	Get(ctx context.Context, id string) (ir.Object, error)
	Exists(ctx context.Context, id string) (bool, error)
	Add(ctx context.Context, resources ...ir.Object) error
	Update(ctx context.Context, resources ...ir.Object) error
	Remove(ctx context.Context, ids ...string) error
}

// Requester performs HTTP requests for the request global.
type Requester interface {
	Do(ctx context.Context, method, url string, body ir.Value) (ir.Value, error)
}

// Names bound in every script scope.
const (
	GlobalAssert  = "assert"
	GlobalRequest = "request"
)

// MethodNames are the runtime API functions as scripts see them.
var MethodNames = []string{
	"getFactory",
	"getSerializer",
	"getAssetRegistry",
	"getParticipantRegistry",
	"getTransactionRegistry",
	"getCurrentParticipant",
	"getCurrentIdentity",
	"post",
	"emit",
	"buildQuery",
	"query",
	"getNativeAPI",
}

const contextKey = "context"

// SetContext attaches ctx to thread for the runtime API builtins.
func SetContext(thread *starlark.Thread, ctx context.Context) {
	thread.SetLocal(contextKey, ctx)
}

func threadContext(thread *starlark.Thread) context.Context {
	if ctx, ok := thread.Local(contextKey).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

type builtinFunc func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

func module(name string, members map[string]builtinFunc, extra starlark.StringDict) *starlarkstruct.Struct {
	fields := starlark.StringDict{}
	for k, v := range extra {
		fields[k] = v
	}
	for k, fn := range members {
		fields[k] = starlark.NewBuiltin(k, fn)
	}
	return starlarkstruct.FromStringDict(starlark.String(name), fields)
}

// assertBuiltin fails the calling function when its condition is false.
func assertBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cond starlark.Value
	var msg string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &cond, &msg); err != nil {
		return nil, err
	}
	if !cond.Truth() {
		if msg == "" {
			msg = "assertion failed"
		}
		return nil, fmt.Errorf("%s", msg)
	}
	return starlark.None, nil
}

// globals returns the assert and request bindings.
func globals(requester Requester) starlark.StringDict {
	do := func(method string) builtinFunc {
		return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var url string
			var body starlark.Value = starlark.None
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &url, &body); err != nil {
				return nil, err
			}
			if requester == nil {
				return nil, fmt.Errorf("%s: HTTP requests are not enabled", b.Name())
			}
			payload, err := FromValue(body)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", b.Name(), err)
			}
			result, err := requester.Do(threadContext(thread), method, url, payload)
			if err != nil {
				return nil, err
			}
			return ToValue(result, nil), nil
		}
	}
	return starlark.StringDict{
		GlobalAssert: starlark.NewBuiltin(GlobalAssert, assertBuiltin),
		GlobalRequest: module(GlobalRequest, map[string]builtinFunc{
			"get":  do("GET"),
			"post": do("POST"),
		}, nil),
	}
}

// stubAPI binds every runtime API name to a function that fails with
// ErrAPIUnavailable.
func stubAPI() starlark.StringDict {
	stub := func(_ *starlark.Thread, b *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		return nil, fmt.Errorf("%s: %w", b.Name(), ErrAPIUnavailable)
	}
	out := make(starlark.StringDict, len(MethodNames)+1)
	for _, name := range MethodNames {
		out[name] = starlark.NewBuiltin(name, stub)
	}
	out[GlobalRequest] = module(GlobalRequest, map[string]builtinFunc{"get": stub, "post": stub}, nil)
	return out
}

// PredeclaredNames returns every name bound in a script scope: the
// assert and request globals and the runtime API methods.
func PredeclaredNames() []string {
	return append([]string{GlobalAssert, GlobalRequest}, MethodNames...)
}

// RestrictedGlobals binds assert and binds every other predeclared name
// to a function failing with ErrAPIUnavailable. It is the scope used
// where scripts must not have side effects.
func RestrictedGlobals() starlark.StringDict {
	out := stubAPI()
	out[GlobalAssert] = starlark.NewBuiltin(GlobalAssert, assertBuiltin)
	return out
}

// bindAPI binds every runtime API method of api.
func bindAPI(api API, models *model.Manager) starlark.StringDict {
	registry := func(get func(ctx context.Context, id string) (Registry, error)) builtinFunc {
		return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var id string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &id); err != nil {
				return nil, err
			}
			reg, err := get(threadContext(thread), id)
			if err != nil {
				return nil, err
			}
			return registryValue(reg, models), nil
		}
	}

	methods := map[string]builtinFunc{
		"getFactory": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			return factoryValue(api.GetFactory(), models), nil
		},
		"getSerializer": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			return serializerValue(api.GetSerializer(), models), nil
		},
		"getAssetRegistry":       registry(api.GetAssetRegistry),
		"getParticipantRegistry": registry(api.GetParticipantRegistry),
		"getTransactionRegistry": registry(api.GetTransactionRegistry),
		"getCurrentParticipant": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			if p := api.GetCurrentParticipant(); p != nil {
				return NewDocument(p, models), nil
			}
			return starlark.None, nil
		},
		"getCurrentIdentity": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			if id := api.GetCurrentIdentity(); id != nil {
				return NewDocument(id, models), nil
			}
			return starlark.None, nil
		},
		"post": func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var url string
			var data starlark.Value = starlark.None
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &url, &data); err != nil {
				return nil, err
			}
			payload, err := FromValue(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", b.Name(), err)
			}
			result, err := api.Post(threadContext(thread), url, payload)
			if err != nil {
				return nil, err
			}
			return ToValue(result, models), nil
		},
		"emit": func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var event starlark.Value
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &event); err != nil {
				return nil, err
			}
			obj, err := objectArg(b.Name(), event)
			if err != nil {
				return nil, err
			}
			return starlark.None, api.Emit(threadContext(thread), obj)
		},
		"buildQuery": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var text string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &text); err != nil {
				return nil, err
			}
			id, err := api.BuildQuery(text)
			if err != nil {
				return nil, err
			}
			return starlark.String(id), nil
		},
		"query": func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var nameOrID string
			var params starlark.Value = starlark.None
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &nameOrID, &params); err != nil {
				return nil, err
			}
			var goParams map[string]any
			if params != starlark.None {
				obj, err := objectArg(b.Name(), params)
				if err != nil {
					return nil, err
				}
				goParams, _ = ir.ToGo(obj).(map[string]any)
			}
			results, err := api.Query(threadContext(thread), nameOrID, goParams)
			if err != nil {
				return nil, err
			}
			return documentList(results, models), nil
		},
		"getNativeAPI": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			if v, ok := api.GetNativeAPI().(starlark.Value); ok {
				return v, nil
			}
			return starlark.None, nil
		},
	}

	out := make(starlark.StringDict, len(methods))
	for name, fn := range methods {
		out[name] = starlark.NewBuiltin(name, fn)
	}
	return out
}

func documentList(objs []ir.Object, models *model.Manager) *starlark.List {
	elems := make([]starlark.Value, len(objs))
	for i, obj := range objs {
		elems[i] = NewDocument(obj, models)
	}
	return starlark.NewList(elems)
}

func factoryValue(f *model.Factory, models *model.Manager) starlark.Value {
	typed := func(create func(ns, typ string) (ir.Object, error)) builtinFunc {
		return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var ns, typ string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &ns, &typ); err != nil {
				return nil, err
			}
			obj, err := create(ns, typ)
			if err != nil {
				return nil, err
			}
			return NewDocument(obj, models), nil
		}
	}
	return module("Factory", map[string]builtinFunc{
		"newResource": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var ns, typ, id string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 3, &ns, &typ, &id); err != nil {
				return nil, err
			}
			obj, err := f.NewResource(ns, typ, id)
			if err != nil {
				return nil, err
			}
			return NewDocument(obj, models), nil
		},
		"newRelationship": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var ns, typ, id string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 3, &ns, &typ, &id); err != nil {
				return nil, err
			}
			rel, err := f.NewRelationship(ns, typ, id)
			if err != nil {
				return nil, err
			}
			return starlark.String(rel.String()), nil
		},
		"newConcept":     typed(f.NewConcept),
		"newTransaction": typed(f.NewTransaction),
		"newEvent":       typed(f.NewEvent),
	}, nil)
}

func serializerValue(s *model.Serializer, models *model.Manager) starlark.Value {
	convert := func(fn func(ir.Object) (ir.Object, error)) builtinFunc {
		return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var v starlark.Value
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &v); err != nil {
				return nil, err
			}
			obj, err := objectArg(b.Name(), v)
			if err != nil {
				return nil, err
			}
			out, err := fn(obj)
			if err != nil {
				return nil, err
			}
			return NewDocument(out, models), nil
		}
	}
	return module("Serializer", map[string]builtinFunc{
		"toJSON":   convert(s.ToJSON),
		"fromJSON": convert(s.FromJSON),
	}, nil)
}

// argItems returns the single argument, or its elements when all is set.
func argItems(fnname string, args starlark.Tuple, all bool) ([]starlark.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s: got %d arguments, want 1", fnname, len(args))
	}
	if !all {
		return []starlark.Value{args[0]}, nil
	}
	iterable, ok := args[0].(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("%s: expected a list, got %s", fnname, args[0].Type())
	}
	var items []starlark.Value
	iter := iterable.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		items = append(items, x)
	}
	return items, nil
}

func registryValue(reg Registry, models *model.Manager) starlark.Value {
	write := func(all bool, fn func(ctx context.Context, rs ...ir.Object) error) builtinFunc {
		return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if len(kwargs) > 0 {
				return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
			}
			items, err := argItems(b.Name(), args, all)
			if err != nil {
				return nil, err
			}
			rs := make([]ir.Object, 0, len(items))
			for _, item := range items {
				obj, err := objectArg(b.Name(), item)
				if err != nil {
					return nil, err
				}
				rs = append(rs, obj)
			}
			return starlark.None, fn(threadContext(thread), rs...)
		}
	}
	// remove accepts identifiers or resources.
	remove := func(all bool) builtinFunc {
		return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if len(kwargs) > 0 {
				return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
			}
			items, err := argItems(b.Name(), args, all)
			if err != nil {
				return nil, err
			}
			ids := make([]string, 0, len(items))
			for _, item := range items {
				if s, ok := starlark.AsString(item); ok {
					ids = append(ids, s)
					continue
				}
				obj, err := objectArg(b.Name(), item)
				if err != nil {
					return nil, err
				}
				id, err := NewDocument(obj, models).identifier()
				if err != nil {
					return nil, fmt.Errorf("%s: %w", b.Name(), err)
				}
				ids = append(ids, id)
			}
			return starlark.None, reg.Remove(threadContext(thread), ids...)
		}
	}

	return module("Registry", map[string]builtinFunc{
		"getAll": func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			all, err := reg.GetAll(threadContext(thread))
			if err != nil {
				return nil, err
			}
			return documentList(all, models), nil
		},
		"get": func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var id string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &id); err != nil {
				return nil, err
			}
			obj, err := reg.Get(threadContext(thread), id)
			if err != nil {
				return nil, err
			}
			return NewDocument(obj, models), nil
		},
		"exists": func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var id string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &id); err != nil {
				return nil, err
			}
			ok, err := reg.Exists(threadContext(thread), id)
			if err != nil {
				return nil, err
			}
			return starlark.Bool(ok), nil
		},
		"add":       write(false, reg.Add),
		"addAll":    write(true, reg.Add),
		"update":    write(false, reg.Update),
		"updateAll": write(true, reg.Update),
		"remove":    remove(false),
		"removeAll": remove(true),
	}, starlark.StringDict{
		"id":   starlark.String(reg.ID()),
		"type": starlark.String(reg.Type()),
	})
}
