package script

import (
	"fmt"
	"math"
	"slices"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/model"
)

// Document is a JSON object exposed to scripts. Fields are read and
// written as attributes or with index syntax. Nested objects share
// storage with their parent, so tx.asset.value = 1 updates tx.
type Document struct {
	obj    ir.Object
	models *model.Manager
	frozen bool
}

var (
	_ starlark.HasSetField = (*Document)(nil)
	_ starlark.HasSetKey   = (*Document)(nil)
)

// NewDocument wraps obj. The object is shared, not copied.
func NewDocument(obj ir.Object, models *model.Manager) *Document {
	if obj == nil {
		obj = ir.Object{}
	}
	return &Document{obj: obj, models: models}
}

// Object returns the wrapped object.
func (d *Document) Object() ir.Object { return d.obj }

func (d *Document) String() string {
	data, err := ir.MarshalValue(d.obj)
	if err != nil {
		return "<document>"
	}
	return string(data)
}

func (d *Document) Type() string {
	if fqn := ir.ClassOf(d.obj); fqn != "" {
		return fqn
	}
	return "document"
}

func (d *Document) Freeze()              { d.frozen = true }
func (d *Document) Truth() starlark.Bool { return true }
func (d *Document) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: %s", d.Type())
}

// documentMethods are resolved when no field of the same name exists.
var documentMethods = map[string]func(d *Document) (starlark.Value, error){
	"getIdentifier": func(d *Document) (starlark.Value, error) {
		id, err := d.identifier()
		return starlark.String(id), err
	},
	"getFullyQualifiedIdentifier": func(d *Document) (starlark.Value, error) {
		id, err := d.identifier()
		return starlark.String(ir.ClassOf(d.obj) + "#" + id), err
	},
	"getType": func(d *Document) (starlark.Value, error) {
		_, name := ir.SplitFQN(ir.ClassOf(d.obj))
		return starlark.String(name), nil
	},
	"getNamespace": func(d *Document) (starlark.Value, error) {
		ns, _ := ir.SplitFQN(ir.ClassOf(d.obj))
		return starlark.String(ns), nil
	},
	"getFullyQualifiedType": func(d *Document) (starlark.Value, error) {
		return starlark.String(ir.ClassOf(d.obj)), nil
	},
	"toRelationship": func(d *Document) (starlark.Value, error) {
		id, err := d.identifier()
		if err != nil {
			return nil, err
		}
		return starlark.String(ir.Relationship{Type: ir.ClassOf(d.obj), ID: id}.String()), nil
	},
}

func (d *Document) identifier() (string, error) {
	if d.models == nil {
		return "", fmt.Errorf("%s: no model manager to identify document", d.Type())
	}
	return d.models.Identifier(d.obj)
}

func (d *Document) Attr(name string) (starlark.Value, error) {
	if v, ok := d.obj[name]; ok {
		return ToValue(v, d.models), nil
	}
	if method, ok := documentMethods[name]; ok {
		return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			return method(d)
		}).BindReceiver(d), nil
	}
	// Absent optional fields read as None.
	return starlark.None, nil
}

func (d *Document) AttrNames() []string {
	names := make([]string, 0, len(d.obj)+len(documentMethods))
	for k := range d.obj {
		names = append(names, k)
	}
	for k := range documentMethods {
		if _, shadowed := d.obj[k]; !shadowed {
			names = append(names, k)
		}
	}
	slices.Sort(names)
	return names
}

func (d *Document) SetField(name string, val starlark.Value) error {
	if d.frozen {
		return fmt.Errorf("cannot set field %s of frozen %s", name, d.Type())
	}
	v, err := FromValue(val)
	if err != nil {
		return fmt.Errorf("field %s: %w", name, err)
	}
	d.obj[name] = v
	return nil
}

func (d *Document) Get(k starlark.Value) (starlark.Value, bool, error) {
	key, ok := starlark.AsString(k)
	if !ok {
		return nil, false, fmt.Errorf("document keys must be strings, got %s", k.Type())
	}
	v, found := d.obj[key]
	if !found {
		return nil, false, nil
	}
	return ToValue(v, d.models), true, nil
}

func (d *Document) SetKey(k, v starlark.Value) error {
	key, ok := starlark.AsString(k)
	if !ok {
		return fmt.Errorf("document keys must be strings, got %s", k.Type())
	}
	return d.SetField(key, v)
}

// ToValue converts a document value for use in a script. Objects become
// Documents sharing storage with v; arrays become new lists.
func ToValue(v ir.Value, models *model.Manager) starlark.Value {
	switch val := v.(type) {
	case nil, ir.Null:
		return starlark.None
	case ir.String:
		return starlark.String(val)
	case ir.Int:
		return starlark.MakeInt64(int64(val))
	case ir.Float:
		return starlark.Float(val)
	case ir.Bool:
		return starlark.Bool(val)
	case ir.Array:
		elems := make([]starlark.Value, len(val))
		for i, elem := range val {
			elems[i] = ToValue(elem, models)
		}
		return starlark.NewList(elems)
	case ir.Object:
		return NewDocument(val, models)
	default:
		return starlark.None
	}
}

// FromValue converts a script value into a document value.
func FromValue(v starlark.Value) (ir.Value, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return ir.Null{}, nil
	case starlark.Bool:
		return ir.Bool(val), nil
	case starlark.Int:
		n, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer %s out of range", val)
		}
		return ir.Int(n), nil
	case starlark.Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("cannot convert %s to a document value", val)
		}
		return ir.Float(f), nil
	case starlark.String:
		return ir.String(val), nil
	case *Document:
		return val.obj, nil
	case *starlark.List:
		return fromIterable(val, val.Len())
	case starlark.Tuple:
		return fromIterable(val, val.Len())
	case *starlark.Dict:
		obj := make(ir.Object, val.Len())
		for _, item := range val.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				return nil, fmt.Errorf("dict keys must be strings, got %s", item[0].Type())
			}
			conv, err := FromValue(item[1])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			obj[key] = conv
		}
		return obj, nil
	case *starlarkstruct.Struct:
		fields := starlark.StringDict{}
		val.ToStringDict(fields)
		obj := make(ir.Object, len(fields))
		for key, field := range fields {
			conv, err := FromValue(field)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			obj[key] = conv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("cannot convert %s to a document value", v.Type())
	}
}

func fromIterable(it starlark.Indexable, n int) (ir.Value, error) {
	arr := make(ir.Array, n)
	for i := 0; i < n; i++ {
		conv, err := FromValue(it.Index(i))
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		arr[i] = conv
	}
	return arr, nil
}

// objectArg converts a script argument that must be an object.
func objectArg(fnname string, v starlark.Value) (ir.Object, error) {
	conv, err := FromValue(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fnname, err)
	}
	obj, ok := conv.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("%s: expected a resource, got %s", fnname, v.Type())
	}
	return obj, nil
}
