// Package querycompiler compiles queries into Mango query generators.
//
// The Compiler visits a queryir tree and builds, for every query, an
// ordered Mango document and a Generator that serializes it:
//
//	SELECT org.acme.Car WHERE (colour == _$colour) LIMIT 5
//
// becomes
//
//	{"selector":{"\\$class":"org.acme.Car","\\$registryType":"Asset",
//	  "\\$registryId":"org.acme.Car","colour":{"$eq":<colour>}},"limit":5}
//
// SELECTOR CONSTRUCTION:
//
// The selector always starts with the three discriminator fields, escaped
// as "\\$class" because Mango reserves a leading "$" for operators. WHERE
// fragments are merged in afterwards. AND combinations are flattened into
// one object where possible so the selector stays indexable; when two
// fragments cannot be merged without losing a condition the compiler
// emits an explicit $and instead.
//
// PARAMETERS:
//
// A "_$name" identifier compiles to a mango.Param. Parameter values are
// supplied per Generator call and resolved during encoding, so a compiled
// query is safe for concurrent use.
//
// BUNDLES:
//
// CompiledQueryBundle indexes compiled queries by name and by hash of the
// statement text. BuildQuery compiles ad-hoc statements at most once per
// bundle.
package querycompiler
