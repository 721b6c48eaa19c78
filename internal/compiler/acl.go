package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

// CompileAclRules parses the "rule" struct of a CUE value into ACL rules
// in declaration order. A missing "rule" struct yields no rules.
//
// Expected shape:
//
//	rule: OwnerReadsAsset: {
//	    description: "owners may read their assets"
//	    participant: {type: "org.acme.sample.SampleParticipant", variable: "p"}
//	    operation:   ["READ"]
//	    resource:    {type: "org.acme.sample.SampleAsset", variable: "r"}
//	    condition:   "getIdentifier(r.owner) == p.participantId"
//	    action:      "ALLOW"
//	}
//
// Bindings may also be written as strings: "org.acme.sample.SampleAsset",
// "org.acme.sample.SampleAsset#A1", "org.acme.sample" or "ANY".
func CompileAclRules(v cue.Value) ([]ir.AclRule, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	ruleVal := v.LookupPath(cue.ParsePath("rule"))
	if !ruleVal.Exists() {
		return nil, nil
	}

	iter, err := ruleVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rules []ir.AclRule
	for iter.Next() {
		rule, err := CompileAclRule(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, nil
}

// CompileAclRule parses a single ACL rule.
func CompileAclRule(name string, v cue.Value) (*ir.AclRule, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	rule := &ir.AclRule{Name: name}
	var err error

	if rule.Description, err = optionalString(v, "description"); err != nil {
		return nil, err
	}

	// participant (required; "ANY" matches all participants)
	pv := v.LookupPath(cue.ParsePath("participant"))
	if !pv.Exists() {
		return nil, &CompileError{Field: "participant", Message: fmt.Sprintf("rule %s: participant is required", name), Pos: v.Pos()}
	}
	if rule.Participant, err = compileBinding(pv); err != nil {
		return nil, err
	}

	// resource (required)
	rv := v.LookupPath(cue.ParsePath("resource"))
	if !rv.Exists() {
		return nil, &CompileError{Field: "resource", Message: fmt.Sprintf("rule %s: resource is required", name), Pos: v.Pos()}
	}
	if rule.Resource, err = compileBinding(rv); err != nil {
		return nil, err
	}

	// transaction (optional)
	if tv := v.LookupPath(cue.ParsePath("transaction")); tv.Exists() {
		tb, err := compileBinding(tv)
		if err != nil {
			return nil, err
		}
		rule.Transaction = &tb
	}

	// operation: single verb or list of verbs
	ov := v.LookupPath(cue.ParsePath("operation"))
	if !ov.Exists() {
		return nil, &CompileError{Field: "operation", Message: fmt.Sprintf("rule %s: operation is required", name), Pos: v.Pos()}
	}
	if s, err := ov.String(); err == nil {
		rule.Operations = []ir.AclOperation{ir.AclOperation(strings.ToUpper(s))}
	} else {
		list, err := ov.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for list.Next() {
			s, err := list.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			rule.Operations = append(rule.Operations, ir.AclOperation(strings.ToUpper(s)))
		}
	}

	if rule.Condition, err = optionalString(v, "condition"); err != nil {
		return nil, err
	}

	action, err := optionalString(v, "action")
	if err != nil {
		return nil, err
	}
	if action == "" {
		return nil, &CompileError{Field: "action", Message: fmt.Sprintf("rule %s: action is required", name), Pos: v.Pos()}
	}
	rule.Action = ir.AclAction(strings.ToUpper(action))

	return rule, nil
}

func compileBinding(v cue.Value) (ir.AclBinding, error) {
	if s, err := v.String(); err == nil {
		typ, id, _ := strings.Cut(s, "#")
		return ir.AclBinding{Type: typ, InstanceID: id}, nil
	}

	var b ir.AclBinding
	var err error
	if b.Type, err = optionalString(v, "type"); err != nil {
		return b, err
	}
	if b.Type == "" {
		return b, &CompileError{Field: "binding", Message: "binding type is required", Pos: v.Pos()}
	}
	if b.InstanceID, err = optionalString(v, "id"); err != nil {
		return b, err
	}
	if b.Variable, err = optionalString(v, "variable"); err != nil {
		return b, err
	}
	return b, nil
}
