// Package ir provides the shared value and declaration types of the runtime.
//
// This package contains data types only. All other internal packages
// import ir; ir imports nothing internal. This keeps ir the foundational
// layer with no circular dependencies.
//
// Contents:
//   - Value: sealed union of JSON-shaped values used for resource documents,
//     transaction payloads, query parameters and query results
//   - Relationship: typed reference "resource:<fqn>#<id>"
//   - ClassDeclaration / FieldDeclaration: compiled model declarations
//   - AclRule: compiled access control rule
//   - MarshalCanonical: RFC 8785 canonical JSON used for content hashes
//
// Key design constraints:
//   - Object keys are always iterated in RFC 8785 order (SortedKeys)
//   - Canonical JSON rejects floats and nulls so hashes are stable
//   - Resource documents always carry their type under the "$class" key
package ir
