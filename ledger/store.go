/*
store.go - Collaborator interfaces for the two record collections

PURPOSE:
  Defines what the engine needs from the document store and nothing
  more: per-document reads and writes over two independent collections.
  The narrowness is the point - the engine is written against a store
  that CANNOT do multi-document transactions, so no implementation is
  allowed to smuggle that capability in through the interface.

CONTRACT:
  - Get returns ErrRecordNotFound (wrapped) when the id is unknown.
  - Put is an upsert of a single document.
  - Delete of an unknown id is an error, not a no-op.
  - ListAll returns independent copies; callers may mutate them freely.
  - Each call is individually durable on success. There is no batching,
    no snapshot isolation, and no ordering guarantee across callers.

IMPLEMENTATIONS:
  - ledger/store: in-memory (testing/dev), plus fault-injecting wrappers
  - store/sqlite: SQLite document tables (production)

SEE ALSO:
  - engine.go: sequences these calls and compensates partial failures
*/
package ledger

import "context"

// WorkRecordStore is CRUD over individual work records. No cross-record
// guarantees of any kind.
type WorkRecordStore interface {
	// Get returns the record, or an error wrapping ErrRecordNotFound.
	Get(ctx context.Context, id string) (*WorkRecord, error)

	// Put upserts a single record. Durable on return.
	Put(ctx context.Context, rec WorkRecord) error

	// ListAll returns every work record. Used by the integrity scan,
	// which assumes no indexing.
	ListAll(ctx context.Context) ([]WorkRecord, error)
}

// PaymentRecordStore is CRUD over individual payment records.
type PaymentRecordStore interface {
	Get(ctx context.Context, id string) (*PaymentRecord, error)
	Put(ctx context.Context, rec PaymentRecord) error

	// Delete removes the record. Unknown id is an error.
	Delete(ctx context.Context, id string) error

	ListAll(ctx context.Context) ([]PaymentRecord, error)
}

// EmployeeStore is consumed by the API layer only; the engine itself
// reads Employee values handed to it by the caller.
type EmployeeStore interface {
	Get(ctx context.Context, id string) (*Employee, error)
	Put(ctx context.Context, emp Employee) error
	ListAll(ctx context.Context) ([]Employee, error)
}
