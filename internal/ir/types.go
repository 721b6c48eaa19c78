package ir

// ClassKind identifies what a declared model type is.
type ClassKind string

const (
	KindAsset       ClassKind = "asset"
	KindParticipant ClassKind = "participant"
	KindTransaction ClassKind = "transaction"
	KindEvent       ClassKind = "event"
	KindConcept     ClassKind = "concept"
	KindEnum        ClassKind = "enum"
)

// ValidClassKinds defines allowed class kinds.
var ValidClassKinds = map[ClassKind]bool{
	KindAsset:       true,
	KindParticipant: true,
	KindTransaction: true,
	KindEvent:       true,
	KindConcept:     true,
	KindEnum:        true,
}

// RegistryType returns the registry type name used for documents of this
// kind ("Asset", "Participant", "Transaction"), or "" if instances of the
// kind are never stored in a registry.
func (k ClassKind) RegistryType() string {
	switch k {
	case KindAsset:
		return "Asset"
	case KindParticipant:
		return "Participant"
	case KindTransaction:
		return "Transaction"
	default:
		return ""
	}
}

// ClassDeclaration represents a compiled model type.
type ClassDeclaration struct {
	Namespace    string             `json:"namespace"`
	Name         string             `json:"name"`
	Kind         ClassKind          `json:"kind"`
	IdentifiedBy string             `json:"identified_by,omitempty"` // Identifying field (assets, participants)
	SuperType    string             `json:"super_type,omitempty"`    // Fully qualified
	Abstract     bool               `json:"abstract,omitempty"`
	Fields       []FieldDeclaration `json:"fields,omitempty"`
	EnumValues   []string           `json:"enum_values,omitempty"`
}

// FullyQualifiedName returns "<namespace>.<name>".
func (c ClassDeclaration) FullyQualifiedName() string {
	return c.Namespace + "." + c.Name
}

// FieldDeclaration represents a property of a class.
type FieldDeclaration struct {
	Name         string `json:"name"`
	Type         string `json:"type"` // Primitive name or fully qualified type
	Array        bool   `json:"array,omitempty"`
	Optional     bool   `json:"optional,omitempty"`
	Relationship bool   `json:"relationship,omitempty"`
}

// Primitive field types.
var PrimitiveTypes = map[string]bool{
	"String":   true,
	"Integer":  true,
	"Long":     true,
	"Double":   true,
	"Boolean":  true,
	"DateTime": true,
}

// AclAction is the effect of a matching ACL rule.
type AclAction string

const (
	ActionAllow AclAction = "ALLOW"
	ActionDeny  AclAction = "DENY"
)

// AclOperation is an access verb.
type AclOperation string

const (
	OpCreate AclOperation = "CREATE"
	OpRead   AclOperation = "READ"
	OpUpdate AclOperation = "UPDATE"
	OpDelete AclOperation = "DELETE"
	OpAll    AclOperation = "ALL"
)

// ValidAclOperations defines allowed ACL verbs.
var ValidAclOperations = map[AclOperation]bool{
	OpCreate: true,
	OpRead:   true,
	OpUpdate: true,
	OpDelete: true,
	OpAll:    true,
}

// AnyParticipant is the participant type that matches every participant.
const AnyParticipant = "ANY"

// AclBinding binds a rule slot to a type or namespace.
//
// Type may be a fully qualified type name, a namespace ("org.acme"),
// a namespace wildcard ("org.acme.*") or a recursive wildcard
// ("org.acme.**"). InstanceID restricts the binding to one instance.
// Variable names the slot inside the rule condition.
type AclBinding struct {
	Type       string `json:"type"`
	InstanceID string `json:"instance_id,omitempty"`
	Variable   string `json:"variable,omitempty"`
}

// AclRule represents a compiled access control rule.
// Rules are evaluated in declaration order.
type AclRule struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Resource    AclBinding     `json:"resource"`
	Operations  []AclOperation `json:"operations"`
	Participant AclBinding     `json:"participant"`
	Transaction *AclBinding    `json:"transaction,omitempty"` // Optional
	Condition   string         `json:"condition,omitempty"`   // Expression source; empty means true
	Action      AclAction      `json:"action"`
}

// Default condition variable names used when a binding declares none.
const (
	DefaultResourceVariable    = "__resource"
	DefaultParticipantVariable = "__participant"
	DefaultTransactionVariable = "__transaction"
)

// Variables returns the condition variable names for the resource,
// participant and transaction slots, falling back to the defaults.
func (r AclRule) Variables() (resource, participant, transaction string) {
	resource = DefaultResourceVariable
	if r.Resource.Variable != "" {
		resource = r.Resource.Variable
	}
	participant = DefaultParticipantVariable
	if r.Participant.Variable != "" {
		participant = r.Participant.Variable
	}
	transaction = DefaultTransactionVariable
	if r.Transaction != nil && r.Transaction.Variable != "" {
		transaction = r.Transaction.Variable
	}
	return resource, participant, transaction
}

// NetworkMetadata is read from network.yaml.
type NetworkMetadata struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}
