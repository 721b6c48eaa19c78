// Package store provides SQLite-backed storage for the world state of a
// business network.
//
// The store holds:
//   - Registries: named collections keyed by (type, id), where type is
//     Asset, Participant or Transaction
//   - Resources: the stored JSON of one document, keyed by registry and
//     identifier, with its $class in a column
//
// # Critical Patterns
//
// Deterministic Query Results
//   - Every statement orders by its key with COLLATE BINARY
//   - Query results are sorted by the Mango sort fields after that order,
//     so equal sort keys keep a stable order
//
// Parameterized SQL
//   - Document values are always bound as parameters
//   - Only field paths of index definitions are inlined, and paths with
//     quotes are rejected
//
// Registry Discriminators
//   - $registryType and $registryId are columns, never part of the stored
//     JSON; ExecuteQuery adds them for matching and strips them again
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Removing a registry removes its resources
//
// Access control is not enforced here; the engine checks every read and
// write before calling the store.
package store
