package engine

import "sync"

// CycleDetector tracks the relationships being resolved per transaction so
// relationship resolution terminates on cyclic graphs.
//
// Cycles occur when a resource refers back to a resource that is still
// being resolved, either directly or through a chain of relationships.
//
// Example cycle:
//
//	resource:org.acme.Person#alice → spouse → resource:org.acme.Person#bob
//	→ spouse → resource:org.acme.Person#alice (still in progress!)
//	← CYCLE DETECTED, the reference stays a relationship string
//
// Before resolving a relationship the resolver calls WouldCycle. If the
// relationship is not in progress it calls Enter, resolves the target's
// own relationships, then calls Leave.
//
// Distinction from the resolution cache:
//   - Cache: "Have we loaded this resource in this transaction?" (reused)
//   - Cycle detection: "Are we inside this resource right now?" (guard)
type CycleDetector struct {
	mu      sync.Mutex
	history map[string]map[string]bool // map[transaction_id]map[relationship]bool
}

// NewCycleDetector creates a new cycle detector.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{
		history: make(map[string]map[string]bool),
	}
}

// WouldCycle reports whether ref is already being resolved within the
// transaction.
//
// Thread-safe: Can be called concurrently.
func (c *CycleDetector) WouldCycle(txID, ref string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.history[txID] == nil {
		return false
	}
	return c.history[txID][ref]
}

// Enter marks ref as in progress within the transaction.
//
// Thread-safe: Can be called concurrently.
func (c *CycleDetector) Enter(txID, ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.history[txID] == nil {
		c.history[txID] = make(map[string]bool)
	}
	c.history[txID][ref] = true
}

// Leave marks ref as resolved. The transaction's history is dropped once
// nothing is in progress.
//
// Thread-safe: Can be called concurrently.
func (c *CycleDetector) Leave(txID, ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	refs := c.history[txID]
	if refs == nil {
		return
	}
	delete(refs, ref)
	if len(refs) == 0 {
		delete(c.history, txID)
	}
}

// Clear removes all history for a transaction.
//
// Used when a transaction commits or rolls back, and between tests.
//
// Thread-safe: Can be called concurrently.
func (c *CycleDetector) Clear(txID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.history, txID)
}

// HistorySize returns the number of transactions with tracked history.
//
// Used for testing and introspection.
func (c *CycleDetector) HistorySize() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.history)
}

// InProgress returns the number of relationships in progress for a
// transaction.
func (c *CycleDetector) InProgress(txID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.history[txID])
}
