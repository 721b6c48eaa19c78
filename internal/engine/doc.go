// Package engine implements the transaction runtime of an installed
// business network.
//
// The engine receives transactions, runs the transaction processor
// functions that handle them and records the outcome in the store.
//
// ARCHITECTURE:
//
// Single Writer:
// Submissions are serialized by a mutex and each one runs inside a single
// store transaction. This ensures:
// - Scripts observe their own writes and nobody else's
// - A failed transaction leaves no trace
// - Transactions are totally ordered by their seq number
//
// Transaction Processing Flow:
// 1. The transaction is stamped with an ID (IDGenerator) and a timestamp (Clock)
// 2. The document is validated against its model
// 3. Relationships are resolved as the submitting participant
// 4. CREATE access on the transaction is checked
// 5. The script bundle runs every function handling the transaction type
// 6. The transaction is added to its registry and the store transaction commits
//
// Access Control:
// Every registry operation a script performs goes through the
// AccessController: reads silently hide resources the participant may not
// READ; writes fail with an ACCESS_DENIED RuntimeError. Submissions
// without a participant run as the system and bypass access control.
//
// Events:
// Events emitted by scripts are numbered <transactionId>#<n> and returned
// with the TransactionResult once the transaction commits.
package engine
