package acl

import (
	"fmt"
	"math"
	"strings"

	"github.com/expr-lang/expr"
	"go.starlark.net/starlark"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/model"
	"github.com/hyperledger-archives/composer-sub008/internal/script"
)

// scriptFunc is how a script function appears inside a condition.
type scriptFunc = func(args ...any) (any, error)

// helpers returns the built-in condition functions.
func helpers(models *model.Manager) []expr.Option {
	return []expr.Option{
		expr.Function("getIdentifier", func(params ...any) (any, error) {
			return identifierOf(models, params[0])
		}, new(func(any) string)),
		expr.Function("getType", func(params ...any) (any, error) {
			return typeOf(params[0])
		}, new(func(any) string)),
		expr.Function("isInstanceOf", func(params ...any) (any, error) {
			fqn, err := typeOf(params[0])
			if err != nil {
				return nil, err
			}
			super := params[1].(string)
			if models == nil {
				return fqn == super, nil
			}
			return models.IsInstanceOf(fqn, super), nil
		}, new(func(any, string) bool)),
	}
}

// identifierOf returns the identifier of a resource or relationship.
func identifierOf(models *model.Manager, v any) (string, error) {
	switch val := v.(type) {
	case string:
		rel, err := ir.ParseRelationship(val)
		if err != nil {
			return "", err
		}
		return rel.ID, nil
	case map[string]any:
		if models == nil {
			return "", fmt.Errorf("getIdentifier: no model manager")
		}
		obj, err := ir.FromGo(val)
		if err != nil {
			return "", err
		}
		return models.Identifier(obj.(ir.Object))
	default:
		return "", fmt.Errorf("getIdentifier: expected a resource or relationship, got %T", v)
	}
}

// typeOf returns the fully qualified type of a resource or relationship.
func typeOf(v any) (string, error) {
	switch val := v.(type) {
	case string:
		rel, err := ir.ParseRelationship(val)
		if err != nil {
			return "", err
		}
		return rel.Type, nil
	case map[string]any:
		fqn, _ := val[ir.ClassKey].(string)
		if fqn == "" {
			return "", fmt.Errorf("getType: resource has no %s", ir.ClassKey)
		}
		return fqn, nil
	default:
		return "", fmt.Errorf("getType: expected a resource or relationship, got %T", v)
	}
}

// bindFunction exposes a script function to conditions. Arguments and
// results are converted between expr and script values.
func bindFunction(thread *starlark.Thread, name string, fn starlark.Callable, models *model.Manager) scriptFunc {
	return func(args ...any) (any, error) {
		in := make(starlark.Tuple, len(args))
		for i, arg := range args {
			v, err := ir.FromGo(arg)
			if err != nil {
				return nil, fmt.Errorf("%s: argument %d: %w", name, i, err)
			}
			in[i] = script.ToValue(v, models)
		}
		out, err := starlark.Call(thread, fn, in, nil)
		if err != nil {
			return nil, err
		}
		v, err := script.FromValue(out)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return ir.ToGo(v), nil
	}
}

// variable converts a rule argument for the condition environment.
func variable(obj ir.Object) map[string]any {
	if obj == nil {
		return nil
	}
	return ir.ToGo(obj).(map[string]any)
}

// Truthy reports whether a condition result allows access. nil, false,
// zero, NaN and the empty string are false; everything else is true.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int8:
		return val != 0
	case int16:
		return val != 0
	case int32:
		return val != 0
	case int64:
		return val != 0
	case uint:
		return val != 0
	case uint8:
		return val != 0
	case uint16:
		return val != 0
	case uint32:
		return val != 0
	case uint64:
		return val != 0
	case float32:
		return val != 0 && !math.IsNaN(float64(val))
	case float64:
		return val != 0 && !math.IsNaN(val)
	default:
		return true
	}
}

// condition returns the source compiled for rule. An empty condition
// always holds.
func condition(rule ir.AclRule) string {
	if strings.TrimSpace(rule.Condition) == "" {
		return "true"
	}
	return rule.Condition
}
