package repository

import (
    "context"
    "database/sql"
    "strings"
)

// EntitlementRepo provides access to the `lead_access` table.  A row marks
// a permanent unlock grant of one lead for one user; the (user_id, lead_id)
// pair is unique and rows are never deleted.
type EntitlementRepo struct {
    db *sql.DB
}

// NewEntitlementRepo returns a new EntitlementRepo bound to the given database.
func NewEntitlementRepo(db *sql.DB) *EntitlementRepo { return &EntitlementRepo{db: db} }

// EntitledSetTx returns the subset of leadIDs the user already has grants
// for, as observed by the given transaction.  Passing an empty slice
// returns an empty set without touching the database.
func (r *EntitlementRepo) EntitledSetTx(ctx context.Context, tx *sql.Tx, userID uint64, leadIDs []string) (map[string]struct{}, error) {
    return entitledSet(ctx, tx, userID, leadIDs)
}

// EntitledSet is the non-transactional variant of EntitledSetTx, used for
// display projections where transaction consistency is not required.
func (r *EntitlementRepo) EntitledSet(ctx context.Context, userID uint64, leadIDs []string) (map[string]struct{}, error) {
    return entitledSet(ctx, r.db, userID, leadIDs)
}

// querier covers both *sql.DB and *sql.Tx.
type querier interface {
    QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func entitledSet(ctx context.Context, q querier, userID uint64, leadIDs []string) (map[string]struct{}, error) {
    set := make(map[string]struct{}, len(leadIDs))
    if len(leadIDs) == 0 {
        return set, nil
    }
    placeholders := make([]string, 0, len(leadIDs))
    args := make([]any, 0, len(leadIDs)+1)
    args = append(args, userID)
    for _, id := range leadIDs {
        placeholders = append(placeholders, "?")
        args = append(args, id)
    }
    query := `SELECT lead_id FROM lead_access WHERE user_id = ? AND lead_id IN (` +
        strings.Join(placeholders, ",") + `)`
    rows, err := q.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    for rows.Next() {
        var id string
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        set[id] = struct{}{}
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return set, nil
}

// InsertBulkTx inserts one lead_access row per lead ID in a single
// statement within the provided transaction.  Passing an empty slice has
// no effect and returns nil.
func (r *EntitlementRepo) InsertBulkTx(ctx context.Context, tx *sql.Tx, userID uint64, leadIDs []string) error {
    if len(leadIDs) == 0 {
        return nil
    }
    query := `INSERT INTO lead_access (user_id, lead_id) VALUES `
    args := make([]any, 0, len(leadIDs)*2)
    for i, id := range leadIDs {
        if i > 0 {
            query += ","
        }
        query += "(?, ?)"
        args = append(args, userID, id)
    }
    _, err := tx.ExecContext(ctx, query, args...)
    return err
}

// CountByUser returns the number of leads the user is entitled to.
func (r *EntitlementRepo) CountByUser(ctx context.Context, userID uint64) (int, error) {
    const q = `SELECT COUNT(*) FROM lead_access WHERE user_id = ?`
    var n int
    err := r.db.QueryRowContext(ctx, q, userID).Scan(&n)
    return n, err
}
