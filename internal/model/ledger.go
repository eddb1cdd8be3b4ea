package model

import "time"

// Ledger reasons written by the engine.  Free-form reasons are allowed on
// admin grants; these two are the ones the engine itself produces.
const (
    ReasonAdminGrant = "admin_grant"
    ReasonUnlock     = "unlock"
)

// LedgerEntry mirrors a row in the `credit_ledger` table.  The ledger is
// append-only: rows are never updated or deleted, and a user's balance at
// any point in time is the sum of Delta over all rows created up to that
// point.  Rows are written by the grant service (admin path) and the unlock
// transaction (debit path), nothing else.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – the user the delta applies to.
//  Delta     – non-zero signed credit amount (positive grant, negative debit).
//  Reason    – why the entry exists (ReasonAdminGrant, ReasonUnlock or a
//              caller-supplied label on admin grants).
//  Meta      – opaque key/value payload stored as JSON.
//  CreatedAt – insertion timestamp, monotonically assigned by the database.
type LedgerEntry struct {
    ID        uint64         // credit_ledger.id
    UserID    uint64         // credit_ledger.user_id
    Delta     int64          // credit_ledger.delta
    Reason    string         // credit_ledger.reason
    Meta      map[string]any // credit_ledger.meta (JSON column)
    CreatedAt time.Time      // credit_ledger.created_at
}

// EntitlementGrant mirrors a row in the `lead_access` table.  A grant marks
// a permanent unlock of one lead for one user; the (UserID, LeadID) pair is
// unique and rows are never removed.  Created exclusively by the unlock
// transaction.
type EntitlementGrant struct {
    UserID    uint64    // lead_access.user_id
    LeadID    string    // lead_access.lead_id
    CreatedAt time.Time // lead_access.created_at
}
