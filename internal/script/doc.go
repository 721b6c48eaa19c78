// Package script compiles transaction processor scripts.
//
// Scripts are Starlark source files. Every script of a network is
// compiled once into a CompiledScriptBundle; each transaction then gets a
// fresh module scope in which the runtime API is bound, and the handlers
// for the transaction's type are invoked in declaration order.
//
// Handlers are found in two ways. A function whose docstring carries the
// @transaction tag and declares a single parameter type handles
// transactions of exactly that type:
//
//	def trade(tx):
//	    """
//	    @transaction
//	    @param {org.acme.Trade} tx
//	    """
//	    tx.commodity.owner = tx.newOwner
//	    getAssetRegistry("org.acme.Commodity").update(tx.commodity)
//
// An undecorated function named on<Type> handles transactions whose short
// type name is <Type>. Other functions are helpers and are never invoked
// automatically.
//
// Resources are exposed to scripts as mutable documents with attribute
// access. Writes through nested attributes update the underlying document.
// Arrays are copied when read; assign the whole list back to change one.
package script
