// Package repository provides *sql.DB-backed access to the engine's tables:
// user_profiles, credit_ledger, lead_access, the read-only leads catalog and
// refresh_tokens.  Repositories expose plain methods for standalone reads
// and *Tx variants that participate in a caller-owned transaction.
package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/lead-vault/internal/model"
    "github.com/iliyamo/lead-vault/internal/service"
)

// MySQL error numbers that indicate a lost lock race rather than a real
// failure.  1213 = deadlock victim, 1205 = lock wait timeout.
const (
    mysqlErrDeadlock    = 1213
    mysqlErrLockTimeout = 1205
)

// EngineStore implements service.Store on MySQL.  Per-user serialization is
// achieved by taking an exclusive row lock on the user's profile row
// (SELECT ... FOR UPDATE) as the first statement of every engine
// transaction, so two transactions for the same user queue behind each
// other while different users never contend.
type EngineStore struct {
    db           *sql.DB
    users        *UserRepo
    ledger       *LedgerRepo
    entitlements *EntitlementRepo
    leads        *LeadRepo
}

// NewEngineStore constructs an EngineStore over the shared pool and repos.
func NewEngineStore(db *sql.DB, users *UserRepo, ledger *LedgerRepo, entitlements *EntitlementRepo, leads *LeadRepo) *EngineStore {
    if db == nil || users == nil || ledger == nil || entitlements == nil || leads == nil {
        panic("nil dependency passed to NewEngineStore")
    }
    return &EngineStore{db: db, users: users, ledger: ledger, entitlements: entitlements, leads: leads}
}

// WithUserTx opens a transaction, locks the user's profile row and runs fn.
// Any error from fn rolls the whole transaction back; lock races are
// normalized to service.ErrTxConflict so the engine can retry.
func (s *EngineStore) WithUserTx(ctx context.Context, userID uint64, fn func(tx service.Tx) error) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return mapTxErr(err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    var locked uint64
    err = tx.QueryRowContext(ctx, "SELECT id FROM user_profiles WHERE id = ? FOR UPDATE", userID).Scan(&locked)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return service.ErrNoUser
        }
        return mapTxErr(err)
    }

    if err := fn(&engineTx{tx: tx, store: s}); err != nil {
        return mapTxErr(err)
    }
    if err := tx.Commit(); err != nil {
        return mapTxErr(err)
    }
    committed = true
    return nil
}

// UserByID loads a profile, translating sql.ErrNoRows to service.ErrNoUser.
func (s *EngineStore) UserByID(ctx context.Context, id uint64) (model.User, error) {
    u, err := s.users.GetByID(ctx, id)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return model.User{}, service.ErrNoUser
        }
        return model.User{}, err
    }
    return u, nil
}

// Balance returns the current ledger sum for the user.
func (s *EngineStore) Balance(ctx context.Context, userID uint64) (int64, error) {
    return s.ledger.SumDelta(ctx, userID)
}

// EntitlementCount returns the user's lead_access row count.
func (s *EngineStore) EntitlementCount(ctx context.Context, userID uint64) (int, error) {
    return s.entitlements.CountByUser(ctx, userID)
}

// FilterKnownLeadIDs keeps only IDs present in the lead catalog.
func (s *EngineStore) FilterKnownLeadIDs(ctx context.Context, leadIDs []string) ([]string, error) {
    return s.leads.FilterExistingIDs(ctx, leadIDs)
}

// engineTx adapts one *sql.Tx to the service.Tx surface.
type engineTx struct {
    tx    *sql.Tx
    store *EngineStore
}

func (t *engineTx) Balance(ctx context.Context, userID uint64) (int64, error) {
    return t.store.ledger.SumDeltaTx(ctx, t.tx, userID)
}

func (t *engineTx) EntitledLeadIDs(ctx context.Context, userID uint64, leadIDs []string) (map[string]struct{}, error) {
    return t.store.entitlements.EntitledSetTx(ctx, t.tx, userID, leadIDs)
}

func (t *engineTx) AppendLedger(ctx context.Context, entry *model.LedgerEntry) error {
    return t.store.ledger.AppendTx(ctx, t.tx, entry)
}

func (t *engineTx) InsertGrants(ctx context.Context, userID uint64, leadIDs []string) error {
    return t.store.entitlements.InsertBulkTx(ctx, t.tx, userID, leadIDs)
}

// mapTxErr converts MySQL lock-race errors into service.ErrTxConflict and
// passes everything else through unchanged.
func mapTxErr(err error) error {
    if err == nil {
        return nil
    }
    var myErr *mysql.MySQLError
    if errors.As(err, &myErr) {
        if myErr.Number == mysqlErrDeadlock || myErr.Number == mysqlErrLockTimeout {
            return fmt.Errorf("%w: %v", service.ErrTxConflict, err)
        }
    }
    return err
}
