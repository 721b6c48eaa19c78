package ir

import (
	"fmt"
	"strings"
)

// Reserved document keys.
const (
	// ClassKey holds the fully qualified type of a document.
	ClassKey = "$class"

	// Registry discriminators added to stored documents.
	RegistryTypeKey = "$registryType"
	RegistryIDKey   = "$registryId"
)

// RelationshipPrefix starts every serialized relationship.
const RelationshipPrefix = "resource:"

// Relationship is a typed pointer to a resource instance.
type Relationship struct {
	Type string // Fully qualified
	ID   string
}

// String renders the relationship as "resource:<fqn>#<id>".
func (r Relationship) String() string {
	return RelationshipPrefix + r.Type + "#" + r.ID
}

// ParseRelationship parses "resource:<fqn>#<id>".
func ParseRelationship(s string) (Relationship, error) {
	rest, ok := strings.CutPrefix(s, RelationshipPrefix)
	if !ok {
		return Relationship{}, fmt.Errorf("invalid relationship %q: missing %q prefix", s, RelationshipPrefix)
	}
	typ, id, ok := strings.Cut(rest, "#")
	if !ok || typ == "" || id == "" {
		return Relationship{}, fmt.Errorf("invalid relationship %q: expected resource:<type>#<id>", s)
	}
	return Relationship{Type: typ, ID: id}, nil
}

// IsRelationship reports whether v is a serialized relationship string.
func IsRelationship(v Value) bool {
	s, ok := v.(String)
	return ok && strings.HasPrefix(string(s), RelationshipPrefix)
}

// SplitFQN splits "org.acme.Car" into ("org.acme", "Car").
// A name without dots has an empty namespace.
func SplitFQN(fqn string) (namespace, name string) {
	i := strings.LastIndexByte(fqn, '.')
	if i < 0 {
		return "", fqn
	}
	return fqn[:i], fqn[i+1:]
}

// ClassOf returns the "$class" of a document, or "" if absent.
func ClassOf(doc Object) string {
	s, _ := doc.GetString(ClassKey)
	return s
}
