package acl

import (
	"fmt"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/model"
)

// Manager holds the ACL rules of a network in declaration order.
type Manager struct {
	models *model.Manager
	rules  []ir.AclRule
	byName map[string]int
}

// NewManager creates an empty ACL manager. Resources passed to rule
// conditions are identified using models.
func NewManager(models *model.Manager) *Manager {
	return &Manager{models: models, byName: make(map[string]int)}
}

// Models returns the model manager the rules are bound to.
func (m *Manager) Models() *model.Manager {
	return m.models
}

// AddRules appends rules. Rule names must be unique.
func (m *Manager) AddRules(rules ...ir.AclRule) error {
	for _, rule := range rules {
		if rule.Name == "" {
			return fmt.Errorf("ACL rule has no name")
		}
		if _, exists := m.byName[rule.Name]; exists {
			return fmt.Errorf("duplicate ACL rule %q", rule.Name)
		}
		m.byName[rule.Name] = len(m.rules)
		m.rules = append(m.rules, rule)
	}
	return nil
}

// Rules returns the rules in declaration order.
func (m *Manager) Rules() []ir.AclRule {
	return m.rules
}

// Rule returns the named rule.
func (m *Manager) Rule(name string) (ir.AclRule, bool) {
	i, ok := m.byName[name]
	if !ok {
		return ir.AclRule{}, false
	}
	return m.rules[i], true
}

// HasRules reports whether any rule was added. Access control is not
// enforced for networks without rules.
func (m *Manager) HasRules() bool {
	return len(m.rules) > 0
}
