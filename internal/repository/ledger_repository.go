package repository

import (
    "context"
    "database/sql"
    "encoding/json"

    "github.com/iliyamo/lead-vault/internal/model"
)

// LedgerRepo provides access to the append-only `credit_ledger` table.
// Rows are only ever inserted; balance is always recomputed from the sum of
// deltas rather than stored anywhere mutable.  All timestamp fields are
// stored in UTC.
type LedgerRepo struct {
    db *sql.DB
}

// NewLedgerRepo returns a new LedgerRepo bound to the given database.
func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{db: db} }

// AppendTx inserts one ledger row within the scope of an existing
// transaction and populates the generated ID and created_at on the entry.
// The caller must commit or rollback the transaction.  Meta is serialized
// as JSON; a nil map is stored as an empty object.
func (r *LedgerRepo) AppendTx(ctx context.Context, tx *sql.Tx, entry *model.LedgerEntry) error {
    meta := entry.Meta
    if meta == nil {
        meta = map[string]any{}
    }
    metaJSON, err := json.Marshal(meta)
    if err != nil {
        return err
    }
    const q = `INSERT INTO credit_ledger (user_id, delta, reason, meta) VALUES (?, ?, ?, ?)`
    result, err := tx.ExecContext(ctx, q, entry.UserID, entry.Delta, entry.Reason, string(metaJSON))
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    entry.ID = uint64(id)
    // Query back the row to populate the database-assigned timestamp.
    const sel = `SELECT created_at FROM credit_ledger WHERE id = ?`
    return tx.QueryRowContext(ctx, sel, entry.ID).Scan(&entry.CreatedAt)
}

// SumDeltaTx returns the sum of all deltas for the user as observed by the
// given transaction.  Missing users and empty ledgers both sum to zero.
func (r *LedgerRepo) SumDeltaTx(ctx context.Context, tx *sql.Tx, userID uint64) (int64, error) {
    const q = `SELECT COALESCE(SUM(delta), 0) FROM credit_ledger WHERE user_id = ?`
    var sum int64
    err := tx.QueryRowContext(ctx, q, userID).Scan(&sum)
    return sum, err
}

// SumDelta is the non-transactional variant of SumDeltaTx.  A single
// aggregate statement observes either the pre- or post-commit total of any
// concurrent transaction, never a partial sum.
func (r *LedgerRepo) SumDelta(ctx context.Context, userID uint64) (int64, error) {
    const q = `SELECT COALESCE(SUM(delta), 0) FROM credit_ledger WHERE user_id = ?`
    var sum int64
    err := r.db.QueryRowContext(ctx, q, userID).Scan(&sum)
    return sum, err
}

// ListByUser returns the user's ledger entries, newest first.  When no
// entries exist an empty slice is returned.
func (r *LedgerRepo) ListByUser(ctx context.Context, userID uint64) ([]model.LedgerEntry, error) {
    const q = `SELECT id, user_id, delta, reason, meta, created_at
               FROM credit_ledger
               WHERE user_id = ?
               ORDER BY created_at DESC, id DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    entries := make([]model.LedgerEntry, 0)
    for rows.Next() {
        var e model.LedgerEntry
        var metaRaw []byte
        if err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &e.Reason, &metaRaw, &e.CreatedAt); err != nil {
            return nil, err
        }
        if len(metaRaw) > 0 {
            if err := json.Unmarshal(metaRaw, &e.Meta); err != nil {
                return nil, err
            }
        }
        entries = append(entries, e)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return entries, nil
}
