// Package network loads, installs and caches business networks.
//
// A business network is a directory:
//
//	network.yaml        name, version and description
//	models/*.cue        class declarations
//	permissions.cue     ACL rules
//	lib/*.star          transaction processor scripts
//	queries.qry         named queries
//
// Load reads the directory into a Definition. Install compiles the
// scripts, queries and ACL rules of a Definition into an
// InstalledBusinessNetwork, the composition root used by the engine for
// every transaction of that network version.
//
// IDENTITY:
//
// A network is identified by the hash of its archive, the canonical JSON
// of its source files. Two definitions with the same files share a hash
// and therefore an installation; Cache relies on this to install each
// network version once.
package network
