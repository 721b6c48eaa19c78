package model

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

// ValidationError describes a document that does not conform to its type.
type ValidationError struct {
	Class   string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s.%s: %s", e.Class, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Serializer validates documents and converts them to and from their
// stored form.
type Serializer struct {
	models *Manager
}

// NewSerializer creates a serializer backed by models.
func NewSerializer(models *Manager) *Serializer {
	return &Serializer{models: models}
}

// Validate checks doc against its declared type.
func (s *Serializer) Validate(doc ir.Object) error {
	fqn := ir.ClassOf(doc)
	if fqn == "" {
		return &ValidationError{Class: "<unknown>", Message: "missing $class"}
	}
	return s.validateObject(fqn, doc, true)
}

// ToJSON validates doc and returns its stored form. Resolved relationships
// (nested documents in relationship fields) are replaced by relationship
// strings. The input is not modified.
func (s *Serializer) ToJSON(doc ir.Object) (ir.Object, error) {
	out, err := s.dehydrate(doc)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// FromJSON validates stored data and returns an independent copy.
func (s *Serializer) FromJSON(data ir.Object) (ir.Object, error) {
	if err := s.Validate(data); err != nil {
		return nil, err
	}
	return data.Clone(), nil
}

func (s *Serializer) dehydrate(doc ir.Object) (ir.Object, error) {
	fqn := ir.ClassOf(doc)
	fields, err := s.models.Fields(fqn)
	if err != nil {
		return nil, &ValidationError{Class: fqn, Message: err.Error()}
	}
	out := doc.Clone()
	for _, f := range fields {
		v, ok := out[f.Name]
		if !ok {
			continue
		}
		if f.Relationship {
			conv, err := s.dehydrateRelationship(fqn, f, v)
			if err != nil {
				return nil, err
			}
			out[f.Name] = conv
			continue
		}
		if decl, err := s.models.GetType(f.Type); err == nil && decl.Kind != ir.KindEnum {
			conv, err := s.dehydrateNested(v)
			if err != nil {
				return nil, err
			}
			out[f.Name] = conv
		}
	}
	return out, nil
}

func (s *Serializer) dehydrateRelationship(class string, f ir.FieldDeclaration, v ir.Value) (ir.Value, error) {
	toRef := func(elem ir.Value) (ir.Value, error) {
		obj, ok := elem.(ir.Object)
		if !ok {
			return elem, nil
		}
		id, err := s.models.Identifier(obj)
		if err != nil {
			return nil, &ValidationError{Class: class, Field: f.Name, Message: err.Error()}
		}
		return ir.String(ir.Relationship{Type: ir.ClassOf(obj), ID: id}.String()), nil
	}
	if arr, ok := v.(ir.Array); ok {
		out := make(ir.Array, len(arr))
		for i, elem := range arr {
			conv, err := toRef(elem)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	}
	return toRef(v)
}

func (s *Serializer) dehydrateNested(v ir.Value) (ir.Value, error) {
	switch val := v.(type) {
	case ir.Object:
		if ir.ClassOf(val) == "" {
			return val, nil
		}
		return s.dehydrate(val)
	case ir.Array:
		out := make(ir.Array, len(val))
		for i, elem := range val {
			conv, err := s.dehydrateNested(elem)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	default:
		return v, nil
	}
}

func (s *Serializer) validateObject(fqn string, doc ir.Object, top bool) error {
	decl, err := s.models.GetType(fqn)
	if err != nil {
		return &ValidationError{Class: fqn, Message: err.Error()}
	}
	if decl.Abstract {
		return &ValidationError{Class: fqn, Message: "cannot instantiate abstract type"}
	}
	if decl.Kind == ir.KindEnum {
		return &ValidationError{Class: fqn, Message: "enumerations are not documents"}
	}
	fields, err := s.models.Fields(fqn)
	if err != nil {
		return &ValidationError{Class: fqn, Message: err.Error()}
	}

	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.Name] = true
		v, ok := doc[f.Name]
		if _, isNull := v.(ir.Null); !ok || isNull {
			if !f.Optional {
				return &ValidationError{Class: fqn, Field: f.Name, Message: "missing required field"}
			}
			continue
		}
		if err := s.validateField(fqn, f, v); err != nil {
			return err
		}
	}

	idField, _ := s.models.IdentifierField(fqn)
	for key := range doc {
		if key == "" || key[0] == '$' || known[key] || key == idField {
			continue
		}
		if isSystemField(decl.Kind, key) {
			continue
		}
		return &ValidationError{Class: fqn, Field: key, Message: "unexpected field"}
	}
	if top && idField != "" && (decl.Kind == ir.KindAsset || decl.Kind == ir.KindParticipant) {
		if _, err := s.models.Identifier(doc); err != nil {
			return &ValidationError{Class: fqn, Field: idField, Message: "missing identifier"}
		}
	}
	return nil
}

func isSystemField(kind ir.ClassKind, key string) bool {
	switch kind {
	case ir.KindTransaction:
		return key == TransactionIDField || key == TimestampField
	case ir.KindEvent:
		return key == EventIDField || key == TimestampField
	default:
		return false
	}
}

func (s *Serializer) validateField(class string, f ir.FieldDeclaration, v ir.Value) error {
	if f.Array {
		arr, ok := v.(ir.Array)
		if !ok {
			return &ValidationError{Class: class, Field: f.Name, Message: "expected an array"}
		}
		for _, elem := range arr {
			if err := s.validateScalar(class, f, elem); err != nil {
				return err
			}
		}
		return nil
	}
	return s.validateScalar(class, f, v)
}

func (s *Serializer) validateScalar(class string, f ir.FieldDeclaration, v ir.Value) error {
	fail := func(format string, args ...any) error {
		return &ValidationError{Class: class, Field: f.Name, Message: fmt.Sprintf(format, args...)}
	}

	if f.Relationship {
		switch val := v.(type) {
		case ir.String:
			rel, err := ir.ParseRelationship(string(val))
			if err != nil {
				return fail("%v", err)
			}
			if !s.models.IsInstanceOf(rel.Type, f.Type) {
				return fail("relationship to %s is not a %s", rel.Type, f.Type)
			}
			return nil
		case ir.Object:
			if !s.models.IsInstanceOf(ir.ClassOf(val), f.Type) {
				return fail("resolved %s is not a %s", ir.ClassOf(val), f.Type)
			}
			return nil
		default:
			return fail("expected a relationship, got %T", v)
		}
	}

	switch f.Type {
	case "String", "DateTime":
		if _, ok := v.(ir.String); !ok {
			return fail("expected %s, got %T", f.Type, v)
		}
		return nil
	case "Integer", "Long":
		if _, ok := v.(ir.Int); !ok {
			return fail("expected %s, got %T", f.Type, v)
		}
		return nil
	case "Double":
		if _, ok := ir.Number(v); !ok {
			return fail("expected Double, got %T", v)
		}
		return nil
	case "Boolean":
		if _, ok := v.(ir.Bool); !ok {
			return fail("expected Boolean, got %T", v)
		}
		return nil
	}

	decl, err := s.models.GetType(f.Type)
	if err != nil {
		return fail("%v", err)
	}
	if decl.Kind == ir.KindEnum {
		str, ok := v.(ir.String)
		if !ok || !slices.Contains(decl.EnumValues, string(str)) {
			return fail("value %v is not a member of %s", ir.ToGo(v), f.Type)
		}
		return nil
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return fail("expected %s, got %T", f.Type, v)
	}
	nested := ir.ClassOf(obj)
	if nested == "" {
		nested = f.Type
	} else if !s.models.IsInstanceOf(nested, f.Type) {
		return fail("%s is not a %s", nested, f.Type)
	}
	return s.validateObject(nested, obj, false)
}
