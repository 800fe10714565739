package repository

import "context"

// Tx is an opaque transaction handle threaded through repository calls.
// Its concrete type is infra-defined (pgx.Tx for Postgres); repositories
// MUST gracefully accept nil (non-transactional path).
type Tx interface{}

// NoTX is passed where an operation intentionally runs outside a transaction.
var NoTX Tx

// TransactionManager executes a function within a storage transaction,
// passing the transaction handle via tx. Keeping the handle opaque keeps
// use-case interfaces free of driver types.
//
// WithMemberTx additionally serializes the transaction against every
// other WithMemberTx call for the same member (advisory lock or
// equivalent single-writer discipline). Eligibility checks and the
// debit+mint side effect run inside one such transaction so that two
// concurrent requests for the same member cannot both be admitted past
// a cap or overdraw the balance.
type TransactionManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	WithMemberTx(ctx context.Context, memberID string, fn func(ctx context.Context, tx Tx) error) error
}
