// Package acl compiles access control rules into a bundle of predicate
// functions.
//
// Each rule condition is an expr expression evaluated against three
// variables: the resource, the participant and the transaction, named
// by the rule bindings or defaulting to __resource, __participant and
// __transaction. Resources are exposed as maps, so fields are read with
// member syntax:
//
//	r.owner == "resource:org.acme.Trader#" + p.traderId
//
// Conditions may call the helpers getIdentifier, getType and
// isInstanceOf, and any function declared by the network's scripts.
// Script functions run with assert bound and every runtime API method
// disabled, so conditions cannot have side effects.
//
// Evaluation fails closed: a condition that errors or panics denies.
package acl
