// Package mango models Mango (CouchDB) query documents.
//
// The query compiler builds selectors as ordered Objects so the emitted
// JSON keeps the exact key order the compiler produced: discriminator
// fields first, then predicate fields in visit order. Values inside an
// Object may be Go scalars, ir.Value, nested Objects, Arrays or Params.
//
// A Param is a late-bound value. It is resolved when the document is
// encoded, from the Params passed to Encode, so one compiled document can
// be encoded concurrently with different parameter values.
//
// The package also decodes query documents (Parse) and evaluates
// selectors against resource documents (Match). The document store uses
// these to execute compiled queries.
package mango
