package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

// CompileModels parses the "model" struct of a CUE value into class
// declarations. Namespaces and classes keep their declaration order.
//
// Expected shape:
//
//	model: "org.acme.sample": {
//	    SampleAsset: {
//	        kind:         "asset"
//	        identifiedBy: "assetId"
//	        fields: {
//	            assetId: "String"
//	            owner:   "--> SampleParticipant"
//	            tags:    "String[]"
//	            note:    "String?"
//	        }
//	    }
//	}
//
// A missing "model" struct yields no declarations.
func CompileModels(v cue.Value) ([]ir.ClassDeclaration, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	modelVal := v.LookupPath(cue.ParsePath("model"))
	if !modelVal.Exists() {
		return nil, nil
	}

	nsIter, err := modelVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var decls []ir.ClassDeclaration
	for nsIter.Next() {
		ns := nsIter.Selector().Unquoted()
		classIter, err := nsIter.Value().Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for classIter.Next() {
			decl, err := CompileClass(ns, classIter.Selector().Unquoted(), classIter.Value())
			if err != nil {
				return nil, err
			}
			decls = append(decls, *decl)
		}
	}
	return decls, nil
}

// CompileClass parses a single class declaration.
func CompileClass(ns, name string, v cue.Value) (*ir.ClassDeclaration, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	decl := &ir.ClassDeclaration{Namespace: ns, Name: name}
	field := func(f string) string { return fmt.Sprintf("model.%s.%s.%s", ns, name, f) }

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return nil, &CompileError{Field: "kind", Message: fmt.Sprintf("%s.%s: kind is required", ns, name), Pos: v.Pos()}
	}
	kind, err := kindVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	decl.Kind = ir.ClassKind(kind)

	if decl.IdentifiedBy, err = optionalString(v, "identifiedBy"); err != nil {
		return nil, err
	}
	extends, err := optionalString(v, "extends")
	if err != nil {
		return nil, err
	}
	decl.SuperType = qualify(ns, extends)

	if absVal := v.LookupPath(cue.ParsePath("abstract")); absVal.Exists() {
		if decl.Abstract, err = absVal.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	if valuesVal := v.LookupPath(cue.ParsePath("values")); valuesVal.Exists() {
		iter, err := valuesVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			s, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			decl.EnumValues = append(decl.EnumValues, s)
		}
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if fieldsVal.Exists() {
		iter, err := fieldsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			fd, err := compileField(ns, iter.Selector().Unquoted(), iter.Value())
			if err != nil {
				return nil, err
			}
			decl.Fields = append(decl.Fields, fd)
		}
	}

	if decl.Kind == ir.KindEnum && len(decl.Fields) > 0 {
		return nil, &CompileError{Field: field("fields"), Message: "enumerations declare values, not fields", Pos: fieldsVal.Pos()}
	}
	return decl, nil
}

// compileField accepts either the string shorthand
// ("[-->] Type[[]][?]") or a struct {type, array, optional, relationship}.
func compileField(ns, name string, v cue.Value) (ir.FieldDeclaration, error) {
	fd := ir.FieldDeclaration{Name: name}

	if s, err := v.String(); err == nil {
		return parseFieldShorthand(ns, name, s, v)
	}

	typ, err := optionalString(v, "type")
	if err != nil {
		return fd, err
	}
	if typ == "" {
		return fd, &CompileError{Field: "type", Message: fmt.Sprintf("field %q: type is required", name), Pos: v.Pos()}
	}
	fd.Type = qualify(ns, typ)

	for _, flag := range []struct {
		label string
		dst   *bool
	}{
		{"array", &fd.Array},
		{"optional", &fd.Optional},
		{"relationship", &fd.Relationship},
	} {
		fv := v.LookupPath(cue.ParsePath(flag.label))
		if !fv.Exists() {
			continue
		}
		if *flag.dst, err = fv.Bool(); err != nil {
			return fd, formatCUEError(err)
		}
	}
	return fd, nil
}

func parseFieldShorthand(ns, name, s string, v cue.Value) (ir.FieldDeclaration, error) {
	fd := ir.FieldDeclaration{Name: name}
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "-->"); ok {
		fd.Relationship = true
		s = strings.TrimSpace(rest)
	}
	if rest, ok := strings.CutSuffix(s, "?"); ok {
		fd.Optional = true
		s = rest
	}
	if rest, ok := strings.CutSuffix(s, "[]"); ok {
		fd.Array = true
		s = rest
	}
	if s == "" {
		return fd, &CompileError{Field: "type", Message: fmt.Sprintf("field %q: type is required", name), Pos: v.Pos()}
	}
	fd.Type = qualify(ns, s)
	return fd, nil
}

// qualify resolves a short type name against ns. Primitives and names
// that already contain a dot are returned unchanged.
func qualify(ns, typ string) string {
	if typ == "" || ir.PrimitiveTypes[typ] || strings.Contains(typ, ".") {
		return typ
	}
	return ns + "." + typ
}

func optionalString(v cue.Value, path string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}
