package mango

import (
	"slices"
)

// Field is one member of an Object.
type Field struct {
	Key   string
	Value any
}

// Object is a JSON object that preserves insertion order.
// The zero value is an empty object ready to use.
type Object struct {
	fields []Field
}

// NewObject builds an Object from fields in order. Later duplicates
// replace earlier values in place.
func NewObject(fields ...Field) *Object {
	obj := &Object{}
	for _, f := range fields {
		obj.Set(f.Key, f.Value)
	}
	return obj
}

// F is shorthand for Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Set replaces the value of an existing key in place, or appends a new key.
func (o *Object) Set(key string, value any) {
	if i := o.index(key); i >= 0 {
		o.fields[i].Value = value
		return
	}
	o.fields = append(o.fields, Field{Key: key, Value: value})
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	if i := o.index(key); i >= 0 {
		return o.fields[i].Value, true
	}
	return nil, false
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	return o.index(key) >= 0
}

// Delete removes key, preserving the order of the remaining fields.
func (o *Object) Delete(key string) {
	if i := o.index(key); i >= 0 {
		o.fields = slices.Delete(o.fields, i, i+1)
	}
}

// Len returns the number of fields.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.fields)
}

// Keys returns the keys in order.
func (o *Object) Keys() []string {
	keys := make([]string, 0, o.Len())
	for _, f := range o.Fields() {
		keys = append(keys, f.Key)
	}
	return keys
}

// Fields returns a copy of the fields in order.
func (o *Object) Fields() []Field {
	if o == nil {
		return nil
	}
	return slices.Clone(o.fields)
}

// Clone returns a deep copy. Params and scalars are shared.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	out := &Object{fields: make([]Field, len(o.fields))}
	for i, f := range o.fields {
		out.fields[i] = Field{Key: f.Key, Value: cloneValue(f.Value)}
	}
	return out
}

func (o *Object) index(key string) int {
	if o == nil {
		return -1
	}
	for i, f := range o.fields {
		if f.Key == key {
			return i
		}
	}
	return -1
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case *Object:
		return val.Clone()
	case Array:
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return v
	}
}

// Array is an ordered list of document values.
type Array []any

// Param is a reference to a query parameter, resolved at encode time.
type Param struct {
	Name string

	// AsArray wraps a non-array parameter value in a one-element array,
	// as the $all operator requires.
	AsArray bool
}

// Params holds parameter values for one encoding.
type Params map[string]any

// Lookup returns the value of the named parameter.
func (p Params) Lookup(name string) (any, bool) {
	v, ok := p[name]
	return v, ok
}
