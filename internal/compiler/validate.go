package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// ClassDeclaration errors (E101-E109)
	ErrInvalidClassKind    = "E101" // kind is not one of the known kinds
	ErrMissingIdentifier   = "E102" // asset/participant without identifying field
	ErrIdentifierUndefined = "E103" // identifying field is not a declared String field
	ErrInvalidFieldType    = "E104" // field type is neither primitive nor declared
	ErrDuplicateName       = "E105" // duplicate class, field or rule name
	ErrUnknownSuperType    = "E106" // supertype is not declared
	ErrSuperTypeKind       = "E107" // supertype has a different kind
	ErrEnumNoValues        = "E108" // enumeration without values

	// AclRule errors (E110-E119)
	ErrInvalidOperation = "E110" // invalid or missing operation
	ErrInvalidAction    = "E111" // action is not ALLOW or DENY
	ErrUnknownBinding   = "E112" // binding names no declared type or namespace
	ErrInvalidVariable  = "E113" // condition variable is not an identifier
	ErrBindingKind      = "E114" // binding names a type of the wrong kind

	// Inheritance errors (E120-E129)
	ErrInheritanceCycle = "E120" // supertype chain loops
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates a single compiled declaration or rule in isolation.
// Returns all errors found (does not fail-fast).
// Supports ClassDeclaration and AclRule types.
func Validate(v any) []ValidationError {
	switch decl := v.(type) {
	case *ir.ClassDeclaration:
		return validateClass(decl)
	case ir.ClassDeclaration:
		return validateClass(&decl)
	case *ir.AclRule:
		return validateAclRule(decl)
	case ir.AclRule:
		return validateAclRule(&decl)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// ValidateNetwork validates declarations and rules together, including
// cross references and inheritance cycles.
func ValidateNetwork(classes []ir.ClassDeclaration, rules []ir.AclRule) []ValidationError {
	var errs []ValidationError

	byName := make(map[string]*ir.ClassDeclaration, len(classes))
	namespaces := make(map[string]bool)
	for i := range classes {
		c := &classes[i]
		fqn := c.FullyQualifiedName()
		errs = append(errs, validateClass(c)...)
		if byName[fqn] != nil {
			errs = append(errs, ValidationError{
				Field:   fqn,
				Message: fmt.Sprintf("duplicate class name: %q", fqn),
				Code:    ErrDuplicateName,
			})
		}
		byName[fqn] = c
		namespaces[c.Namespace] = true
	}

	for i := range classes {
		errs = append(errs, validateClassReferences(&classes[i], byName)...)
	}

	for _, w := range AnalyzeInheritance(classes) {
		errs = append(errs, ValidationError{
			Field:   w.Path[0],
			Message: w.Message,
			Code:    ErrInheritanceCycle,
		})
	}

	ruleNames := make(map[string]bool)
	for i := range rules {
		r := &rules[i]
		errs = append(errs, validateAclRule(r)...)
		if ruleNames[r.Name] {
			errs = append(errs, ValidationError{
				Field:   "rule." + r.Name,
				Message: fmt.Sprintf("duplicate rule name: %q", r.Name),
				Code:    ErrDuplicateName,
			})
		}
		ruleNames[r.Name] = true
		errs = append(errs, validateRuleReferences(r, byName, namespaces)...)
	}

	return errs
}

// validateClass validates a class declaration in isolation.
func validateClass(c *ir.ClassDeclaration) []ValidationError {
	var errs []ValidationError
	fqn := c.FullyQualifiedName()

	// E101: kind
	if !ir.ValidClassKinds[c.Kind] {
		errs = append(errs, ValidationError{
			Field:   fqn + ".kind",
			Message: fmt.Sprintf("invalid kind %q", c.Kind),
			Code:    ErrInvalidClassKind,
		})
	}

	// E108: enumerations need values
	if c.Kind == ir.KindEnum && len(c.EnumValues) == 0 {
		errs = append(errs, ValidationError{
			Field:   fqn + ".values",
			Message: "enumeration must declare at least one value",
			Code:    ErrEnumNoValues,
		})
	}

	// E105: duplicate field names
	fieldNames := make(map[string]bool)
	for i, f := range c.Fields {
		if fieldNames[f.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.fields[%d]", fqn, i),
				Message: fmt.Sprintf("duplicate field name: %q", f.Name),
				Code:    ErrDuplicateName,
			})
		}
		fieldNames[f.Name] = true

		if strings.HasPrefix(f.Name, "$") {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.fields[%d]", fqn, i),
				Message: fmt.Sprintf("field name %q is reserved", f.Name),
				Code:    ErrInvalidFieldType,
			})
		}
		if f.Relationship && ir.PrimitiveTypes[f.Type] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.fields.%s", fqn, f.Name),
				Message: fmt.Sprintf("relationship to primitive type %q", f.Type),
				Code:    ErrInvalidFieldType,
			})
		}
	}

	// E103: identifying field must be a declared String
	if c.IdentifiedBy != "" && (c.SuperType == "" || fieldNames[c.IdentifiedBy]) {
		var found *ir.FieldDeclaration
		for i := range c.Fields {
			if c.Fields[i].Name == c.IdentifiedBy {
				found = &c.Fields[i]
			}
		}
		if found == nil || found.Type != "String" || found.Array || found.Optional {
			errs = append(errs, ValidationError{
				Field:   fqn + ".identifiedBy",
				Message: fmt.Sprintf("identifying field %q must be a required String field", c.IdentifiedBy),
				Code:    ErrIdentifierUndefined,
			})
		}
	}

	return errs
}

// validateClassReferences checks supertypes, field types and identifiers
// against the full declaration set.
func validateClassReferences(c *ir.ClassDeclaration, byName map[string]*ir.ClassDeclaration) []ValidationError {
	var errs []ValidationError
	fqn := c.FullyQualifiedName()

	if c.SuperType != "" {
		super, ok := byName[c.SuperType]
		switch {
		case !ok:
			errs = append(errs, ValidationError{
				Field:   fqn + ".extends",
				Message: fmt.Sprintf("unknown supertype %q", c.SuperType),
				Code:    ErrUnknownSuperType,
			})
		case super.Kind != c.Kind:
			errs = append(errs, ValidationError{
				Field:   fqn + ".extends",
				Message: fmt.Sprintf("%s %q cannot extend %s %q", c.Kind, fqn, super.Kind, c.SuperType),
				Code:    ErrSuperTypeKind,
			})
		}
	}

	// E102: assets and participants are identifiable through the chain
	if c.Kind == ir.KindAsset || c.Kind == ir.KindParticipant {
		if resolveIdentifier(c, byName) == "" {
			errs = append(errs, ValidationError{
				Field:   fqn + ".identifiedBy",
				Message: fmt.Sprintf("%s %q must declare an identifying field", c.Kind, fqn),
				Code:    ErrMissingIdentifier,
			})
		}
	}

	// E104: field types resolve
	for _, f := range c.Fields {
		if ir.PrimitiveTypes[f.Type] {
			continue
		}
		target, ok := byName[f.Type]
		if !ok {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.fields.%s", fqn, f.Name),
				Message: fmt.Sprintf("unknown type %q for field %q", f.Type, f.Name),
				Code:    ErrInvalidFieldType,
			})
			continue
		}
		if f.Relationship && target.Kind != ir.KindAsset && target.Kind != ir.KindParticipant && target.Kind != ir.KindTransaction {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.fields.%s", fqn, f.Name),
				Message: fmt.Sprintf("relationship target %q is a %s", f.Type, target.Kind),
				Code:    ErrInvalidFieldType,
			})
		}
	}

	return errs
}

func resolveIdentifier(c *ir.ClassDeclaration, byName map[string]*ir.ClassDeclaration) string {
	seen := make(map[string]bool)
	for cur := c; cur != nil && !seen[cur.FullyQualifiedName()]; cur = byName[cur.SuperType] {
		if cur.IdentifiedBy != "" {
			return cur.IdentifiedBy
		}
		seen[cur.FullyQualifiedName()] = true
	}
	return ""
}

// validateAclRule validates a rule in isolation.
func validateAclRule(r *ir.AclRule) []ValidationError {
	var errs []ValidationError
	field := "rule." + r.Name

	// E110: at least one valid operation
	if len(r.Operations) == 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".operation",
			Message: "at least one operation is required",
			Code:    ErrInvalidOperation,
		})
	}
	for _, op := range r.Operations {
		if !ir.ValidAclOperations[op] {
			errs = append(errs, ValidationError{
				Field:   field + ".operation",
				Message: fmt.Sprintf("invalid operation %q, must be CREATE, READ, UPDATE, DELETE or ALL", op),
				Code:    ErrInvalidOperation,
			})
		}
	}

	// E111: action
	if r.Action != ir.ActionAllow && r.Action != ir.ActionDeny {
		errs = append(errs, ValidationError{
			Field:   field + ".action",
			Message: fmt.Sprintf("invalid action %q, must be \"ALLOW\" or \"DENY\"", r.Action),
			Code:    ErrInvalidAction,
		})
	}

	// E113: variable names
	bindings := map[string]*ir.AclBinding{
		"participant": &r.Participant,
		"resource":    &r.Resource,
		"transaction": r.Transaction,
	}
	seen := make(map[string]bool)
	for _, slot := range []string{"resource", "participant", "transaction"} {
		b := bindings[slot]
		if b == nil || b.Variable == "" {
			continue
		}
		if !identifierPattern.MatchString(b.Variable) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.%s.variable", field, slot),
				Message: fmt.Sprintf("variable %q is not a valid identifier", b.Variable),
				Code:    ErrInvalidVariable,
			})
		}
		if seen[b.Variable] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.%s.variable", field, slot),
				Message: fmt.Sprintf("variable %q is bound twice", b.Variable),
				Code:    ErrInvalidVariable,
			})
		}
		seen[b.Variable] = true
	}

	return errs
}

// validateRuleReferences checks that bindings name declared types or
// namespaces of the right kind.
func validateRuleReferences(r *ir.AclRule, byName map[string]*ir.ClassDeclaration, namespaces map[string]bool) []ValidationError {
	var errs []ValidationError
	field := "rule." + r.Name

	check := func(slot string, b ir.AclBinding, kinds ...ir.ClassKind) {
		if slot == "participant" && b.Type == ir.AnyParticipant {
			return
		}
		typ := strings.TrimSuffix(strings.TrimSuffix(b.Type, ".**"), ".*")
		if decl, ok := byName[typ]; ok {
			for _, k := range kinds {
				if decl.Kind == k {
					return
				}
			}
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.%s", field, slot),
				Message: fmt.Sprintf("%q is a %s", b.Type, decl.Kind),
				Code:    ErrBindingKind,
			})
			return
		}
		if namespaceDeclared(typ, namespaces, strings.HasSuffix(b.Type, ".**")) {
			return
		}
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("%s.%s", field, slot),
			Message: fmt.Sprintf("%q names no declared type or namespace", b.Type),
			Code:    ErrUnknownBinding,
		})
	}

	check("resource", r.Resource, ir.KindAsset, ir.KindParticipant, ir.KindTransaction)
	check("participant", r.Participant, ir.KindParticipant)
	if r.Transaction != nil {
		check("transaction", *r.Transaction, ir.KindTransaction)
	}
	return errs
}

func namespaceDeclared(ns string, namespaces map[string]bool, recursive bool) bool {
	if namespaces[ns] {
		return true
	}
	if !recursive {
		return false
	}
	for declared := range namespaces {
		if strings.HasPrefix(declared, ns+".") {
			return true
		}
	}
	return false
}

// identifierPattern matches names usable as condition variables.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
