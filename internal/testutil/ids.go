package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDGenerator generates predictable transaction identifiers.
//
// Identifiers are "<prefix>-0001", "<prefix>-0002" and so on, which keeps
// golden output stable across runs. Unlike engine.FixedGenerator it never
// runs out.
//
// Thread-safety: SequenceIDGenerator is safe for concurrent use.
type SequenceIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDGenerator creates a generator. An empty prefix becomes "tx".
func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	if prefix == "" {
		prefix = "tx"
	}
	return &SequenceIDGenerator{prefix: prefix}
}

// Generate returns the next identifier.
//
// Implements engine.IDGenerator.
func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
