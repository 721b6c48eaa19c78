package engine

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/hyperledger-archives/composer-sub008/internal/acl"
	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/model"
)

// AccessController enforces the ACL rules of a network for one
// participant and, optionally, the transaction being processed.
//
// Rules are evaluated in declaration order. The first rule whose noun,
// verb, participant, transaction and condition all match decides: ALLOW
// permits the operation, DENY rejects it. When no rule matches the
// operation is rejected.
//
// Enforcement is disabled when there is no participant or the network
// declares no rules.
type AccessController struct {
	rules       *acl.CompiledAclBundle
	models      *model.Manager
	participant ir.Object
	transaction ir.Object
}

// NewAccessController creates an access controller. rules or participant
// may be nil, disabling enforcement.
func NewAccessController(rules *acl.CompiledAclBundle, models *model.Manager, participant, transaction ir.Object) *AccessController {
	return &AccessController{
		rules:       rules,
		models:      models,
		participant: participant,
		transaction: transaction,
	}
}

// Enabled reports whether checks are enforced.
func (a *AccessController) Enabled() bool {
	return a != nil && a.participant != nil && a.rules != nil && len(a.rules.Rules()) > 0
}

// Check returns an access error unless the participant may perform op on
// resource.
func (a *AccessController) Check(resource ir.Object, op ir.AclOperation) error {
	if !a.Enabled() {
		return nil
	}

	for _, rule := range a.rules.Rules() {
		if !a.matches(rule, resource, op) {
			continue
		}
		slog.Debug("ACL rule matched",
			"rule", rule.Name,
			"action", rule.Action,
			"operation", op,
			"resource", a.describe(resource),
		)
		if rule.Action == ir.ActionAllow {
			return nil
		}
		return NewAccessError(a.describe(a.participant), string(op), a.describe(resource), rule.Name)
	}
	return NewAccessError(a.describe(a.participant), string(op), a.describe(resource), "")
}

// matches reports whether every part of rule matches. The condition is
// evaluated last and only when the static parts match.
func (a *AccessController) matches(rule ir.AclRule, resource ir.Object, op ir.AclOperation) bool {
	if !a.matchNoun(rule.Resource, resource) {
		return false
	}
	if !matchVerb(rule.Operations, op) {
		return false
	}
	if rule.Participant.Type != ir.AnyParticipant && !a.matchNoun(rule.Participant, a.participant) {
		return false
	}
	if rule.Transaction != nil {
		if a.transaction == nil || !a.matchNoun(*rule.Transaction, a.transaction) {
			return false
		}
	}
	ok, err := a.rules.Execute(rule, resource, a.participant, a.transaction)
	if err != nil {
		slog.Warn("ACL rule could not be evaluated", "rule", rule.Name, "error", err)
		return false
	}
	return ok
}

func matchVerb(ops []ir.AclOperation, op ir.AclOperation) bool {
	return slices.Contains(ops, ir.OpAll) || slices.Contains(ops, op)
}

// matchNoun matches a binding against a document. The binding type may
// name the document's type or a super type, its namespace, a namespace
// wildcard (ns.*) or a recursive namespace wildcard (ns.**).
func (a *AccessController) matchNoun(b ir.AclBinding, doc ir.Object) bool {
	if doc == nil {
		return false
	}
	fqn := ir.ClassOf(doc)
	ns, _ := ir.SplitFQN(fqn)

	var ok bool
	switch {
	case strings.HasSuffix(b.Type, ".**"):
		prefix := strings.TrimSuffix(b.Type, ".**")
		ok = ns == prefix || strings.HasPrefix(ns, prefix+".")
	case strings.HasSuffix(b.Type, ".*"):
		ok = ns == strings.TrimSuffix(b.Type, ".*")
	case b.Type == fqn || b.Type == ns:
		ok = true
	default:
		ok = a.models != nil && a.models.IsInstanceOf(fqn, b.Type)
	}
	if !ok {
		return false
	}

	if b.InstanceID == "" {
		return true
	}
	id, err := a.identifier(doc)
	return err == nil && id == b.InstanceID
}

func (a *AccessController) identifier(doc ir.Object) (string, error) {
	if a.models == nil {
		return "", errNoModels
	}
	return a.models.Identifier(doc)
}

// describe names a document as <fqn>#<id>, or <fqn> when it has no
// identifier.
func (a *AccessController) describe(doc ir.Object) string {
	fqn := ir.ClassOf(doc)
	if id, err := a.identifier(doc); err == nil && id != "" {
		return fqn + "#" + id
	}
	return fqn
}
