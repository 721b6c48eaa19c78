// Package model holds the compiled type system of a business network.
//
// Manager indexes ClassDeclarations by fully qualified name and answers
// inheritance questions. Factory creates new documents of declared types
// and Serializer validates documents against their declarations.
//
// Documents are plain ir.Object values carrying their type under "$class".
// Relationships are stored as "resource:<fqn>#<id>" strings; a resolved
// relationship is the referenced document itself, nested in place.
package model
