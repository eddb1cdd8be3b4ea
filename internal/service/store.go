package service

import (
    "context"
    "errors"

    "github.com/iliyamo/lead-vault/internal/model"
)

// ErrTxConflict is returned by Store implementations when a transaction
// loses a lock race (deadlock, lock wait timeout).  The engine retries a
// bounded number of times before giving up.
var ErrTxConflict = errors.New("transaction conflict")

// ErrNoUser is returned by Store.UserByID when no profile exists for the id.
var ErrNoUser = errors.New("no such user")

// Tx is the write surface available inside an engine transaction.  All
// methods operate within the transaction opened by Store.WithUserTx and are
// rolled back together when the callback returns an error.
type Tx interface {
    // Balance returns the sum of ledger deltas for the user as observed by
    // this transaction.
    Balance(ctx context.Context, userID uint64) (int64, error)
    // EntitledLeadIDs returns the subset of leadIDs already granted to the user.
    EntitledLeadIDs(ctx context.Context, userID uint64, leadIDs []string) (map[string]struct{}, error)
    // AppendLedger inserts one immutable ledger row.
    AppendLedger(ctx context.Context, entry *model.LedgerEntry) error
    // InsertGrants inserts one lead_access row per lead ID for the user.
    InsertGrants(ctx context.Context, userID uint64, leadIDs []string) error
}

// Store abstracts the persistence layer the engine runs on.  The MySQL
// implementation lives in internal/repository; an in-memory implementation
// used by tests and local development lives in internal/repository/memory.
type Store interface {
    // WithUserTx runs fn inside a single transaction that is serialized
    // against every other engine transaction touching the same user.
    // Transactions for different users proceed in parallel.  When fn
    // returns an error the transaction is rolled back in full and the
    // error is returned unchanged; lock races surface as ErrTxConflict.
    WithUserTx(ctx context.Context, userID uint64, fn func(tx Tx) error) error

    // UserByID loads a user profile, returning ErrNoUser when absent.
    UserByID(ctx context.Context, id uint64) (model.User, error)
    // Balance returns the current sum of ledger deltas for the user.
    Balance(ctx context.Context, userID uint64) (int64, error)
    // EntitlementCount returns the number of lead_access rows for the user.
    EntitlementCount(ctx context.Context, userID uint64) (int, error)
    // FilterKnownLeadIDs keeps only IDs present in the lead catalog,
    // preserving input order.
    FilterKnownLeadIDs(ctx context.Context, leadIDs []string) ([]string, error)
}
