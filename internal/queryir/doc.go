// Package queryir defines the query abstract syntax tree.
//
// One sealed Node union spans both grammars of the query language: the
// clause grammar (QueryManager, QueryFile, Query, Select, Where, OrderBy,
// Limit, Skip) and the expression grammar used inside WHERE, LIMIT and
// SKIP (BinaryExpression, Identifier, Literal, ArrayExpression,
// MemberExpression). Backends switch exhaustively over Node:
//
//	switch n := node.(type) {
//	case *Select:
//	    // handle select
//	case *BinaryExpression:
//	    // handle predicate
//	default:
//	    // unreachable for trees built by queryparse
//	}
//
// SEALED INTERFACE:
//
// Node is sealed with the marker method pattern. Only types in this
// package implement it, so a new node kind is a compile-time change that
// every backend must acknowledge.
//
// PARAMETERS:
//
// An Identifier whose name has the form "_$name" is a parameter reference.
// Its value is supplied when the compiled query is executed, not when it
// is compiled. ParameterName reports whether an identifier is one.
//
// INDEXABILITY:
//
// Validate reports constructs that the document store cannot answer from
// an index (OR, !=, CONTAINS). Such queries still run; the warnings only
// inform index design.
package queryir
