// Package store provides SQLite-backed durable storage for assignments and
// their payment transactions.
//
// # Mutation Paths
//
// Assignments change only through CompareAndSet, which re-reads the row
// inside a write transaction and commits a conditional UPDATE keyed on the
// caller's expected status (and payment status, when given). A caller whose
// expectation no longer holds receives a CONFLICT domain error with Raced set.
// There is no version counter: status transitions are the serialization point.
//
// Reconciliation writes go through CreateTransaction and
// ApplyPaymentSucceeded, each of which updates the Transaction and its
// Assignment in a single SQL transaction. A crash can therefore never leave
// payment_status=PAID with the transaction still PENDING, or the reverse.
//
// # Idempotency
//
//   - transactions.gateway_intent_id is UNIQUE; inserts use ON CONFLICT DO NOTHING
//   - a partial UNIQUE index allows at most one PENDING transaction per assignment
//   - ApplyPaymentSucceeded reports a duplicate when nothing is left to change
//
// # Encoding
//
// Decimals are stored as their canonical string form and timestamps as
// RFC 3339 UTC text with nanoseconds, so that values round-trip exactly.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - _txlock=immediate: Write lock taken at BEGIN
package store
