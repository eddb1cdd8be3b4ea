// Package memory implements service.Store entirely in memory.  It mirrors
// the transactional semantics of the MySQL store: writes inside a
// transaction are staged and applied only on commit, and transactions for
// the same user are serialized by a per-user mutex while different users
// proceed in parallel.  Used by tests and local development.
package memory

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/iliyamo/lead-vault/internal/model"
    "github.com/iliyamo/lead-vault/internal/service"
)

// Store holds all engine state in process memory.
type Store struct {
    mu        sync.RWMutex
    userLocks map[uint64]*sync.Mutex
    users     map[uint64]model.User
    ledger    map[uint64][]model.LedgerEntry
    grants    map[uint64]map[string]time.Time
    leads     map[string]model.Lead

    nextUserID   uint64
    nextLedgerID uint64

    // FailAppendLedger, when non-nil, runs before a ledger append is staged;
    // returning an error aborts the transaction.  Fault-injection hook for
    // atomicity tests.
    FailAppendLedger func(entry *model.LedgerEntry) error
}

// NewStore returns an empty Store.
func NewStore() *Store {
    return &Store{
        userLocks: make(map[uint64]*sync.Mutex),
        users:     make(map[uint64]model.User),
        ledger:    make(map[uint64][]model.LedgerEntry),
        grants:    make(map[uint64]map[string]time.Time),
        leads:     make(map[string]model.Lead),
    }
}

// AddUser inserts a user, assigning an ID when none is set, and returns the
// stored record.
func (s *Store) AddUser(u model.User) model.User {
    s.mu.Lock()
    defer s.mu.Unlock()
    if u.ID == 0 {
        s.nextUserID++
        u.ID = s.nextUserID
    } else if u.ID > s.nextUserID {
        s.nextUserID = u.ID
    }
    if u.CreatedAt.IsZero() {
        u.CreatedAt = time.Now().UTC()
    }
    s.users[u.ID] = u
    return u
}

// AddLead inserts a catalog lead keyed by its ID.
func (s *Store) AddLead(l model.Lead) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if l.CreatedAt.IsZero() {
        l.CreatedAt = time.Now().UTC()
    }
    s.leads[l.ID] = l
}

// LedgerEntries returns a copy of the user's committed ledger rows in
// insertion order.  Test helper.
func (s *Store) LedgerEntries(userID uint64) []model.LedgerEntry {
    s.mu.RLock()
    defer s.mu.RUnlock()
    out := make([]model.LedgerEntry, len(s.ledger[userID]))
    copy(out, s.ledger[userID])
    return out
}

// WithUserTx serializes per user via a dedicated mutex, stages all writes
// and applies them only when fn succeeds.
func (s *Store) WithUserTx(ctx context.Context, userID uint64, fn func(tx service.Tx) error) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    lock := s.lockFor(userID)
    lock.Lock()
    defer lock.Unlock()

    s.mu.RLock()
    _, ok := s.users[userID]
    s.mu.RUnlock()
    if !ok {
        return service.ErrNoUser
    }

    tx := &memTx{store: s, userID: userID}
    if err := fn(tx); err != nil {
        return err
    }
    if err := ctx.Err(); err != nil {
        // Caller went away before commit: discard all staged writes.
        return err
    }
    tx.apply()
    return nil
}

// UserByID loads a user, returning service.ErrNoUser when absent.
func (s *Store) UserByID(ctx context.Context, id uint64) (model.User, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    u, ok := s.users[id]
    if !ok {
        return model.User{}, service.ErrNoUser
    }
    return u, nil
}

// Balance sums the user's committed ledger deltas.
func (s *Store) Balance(ctx context.Context, userID uint64) (int64, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return s.sumLocked(userID), nil
}

// EntitlementCount returns the number of committed grants for the user.
func (s *Store) EntitlementCount(ctx context.Context, userID uint64) (int, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return len(s.grants[userID]), nil
}

// FilterKnownLeadIDs keeps only IDs present in the catalog, preserving order.
func (s *Store) FilterKnownLeadIDs(ctx context.Context, leadIDs []string) ([]string, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    out := make([]string, 0, len(leadIDs))
    for _, id := range leadIDs {
        if _, ok := s.leads[id]; ok {
            out = append(out, id)
        }
    }
    return out, nil
}

// EntitledLeadIDs returns the committed subset of leadIDs granted to the user.
func (s *Store) EntitledLeadIDs(ctx context.Context, userID uint64, leadIDs []string) (map[string]struct{}, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    set := make(map[string]struct{}, len(leadIDs))
    for _, id := range leadIDs {
        if _, ok := s.grants[userID][id]; ok {
            set[id] = struct{}{}
        }
    }
    return set, nil
}

// Leads returns all catalog leads ordered newest first.  Mirrors the SQL
// store's browse query for local development.
func (s *Store) Leads(ctx context.Context) ([]model.Lead, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    out := make([]model.Lead, 0, len(s.leads))
    for _, l := range s.leads {
        out = append(out, l)
    }
    sort.Slice(out, func(i, j int) bool {
        if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
            return out[i].CreatedAt.After(out[j].CreatedAt)
        }
        return out[i].ID < out[j].ID
    })
    return out, nil
}

func (s *Store) lockFor(userID uint64) *sync.Mutex {
    s.mu.Lock()
    defer s.mu.Unlock()
    if l, ok := s.userLocks[userID]; ok {
        return l
    }
    l := &sync.Mutex{}
    s.userLocks[userID] = l
    return l
}

// sumLocked requires s.mu held.
func (s *Store) sumLocked(userID uint64) int64 {
    var sum int64
    for _, e := range s.ledger[userID] {
        sum += e.Delta
    }
    return sum
}

// memTx stages writes for one user until apply.
type memTx struct {
    store         *Store
    userID        uint64
    stagedEntries []model.LedgerEntry
    stagedGrants  []string
}

func (t *memTx) Balance(ctx context.Context, userID uint64) (int64, error) {
    t.store.mu.RLock()
    defer t.store.mu.RUnlock()
    sum := t.store.sumLocked(userID)
    for _, e := range t.stagedEntries {
        if e.UserID == userID {
            sum += e.Delta
        }
    }
    return sum, nil
}

func (t *memTx) EntitledLeadIDs(ctx context.Context, userID uint64, leadIDs []string) (map[string]struct{}, error) {
    set, err := t.store.EntitledLeadIDs(ctx, userID, leadIDs)
    if err != nil {
        return nil, err
    }
    for _, staged := range t.stagedGrants {
        for _, id := range leadIDs {
            if staged == id {
                set[id] = struct{}{}
            }
        }
    }
    return set, nil
}

func (t *memTx) AppendLedger(ctx context.Context, entry *model.LedgerEntry) error {
    if t.store.FailAppendLedger != nil {
        if err := t.store.FailAppendLedger(entry); err != nil {
            return err
        }
    }
    e := *entry
    e.CreatedAt = time.Now().UTC()
    t.stagedEntries = append(t.stagedEntries, e)
    return nil
}

func (t *memTx) InsertGrants(ctx context.Context, userID uint64, leadIDs []string) error {
    t.stagedGrants = append(t.stagedGrants, leadIDs...)
    return nil
}

// apply commits staged writes.
func (t *memTx) apply() {
    t.store.mu.Lock()
    defer t.store.mu.Unlock()
    for _, e := range t.stagedEntries {
        t.store.nextLedgerID++
        e.ID = t.store.nextLedgerID
        t.store.ledger[e.UserID] = append(t.store.ledger[e.UserID], e)
    }
    if len(t.stagedGrants) > 0 {
        set := t.store.grants[t.userID]
        if set == nil {
            set = make(map[string]time.Time)
            t.store.grants[t.userID] = set
        }
        now := time.Now().UTC()
        for _, id := range t.stagedGrants {
            if _, ok := set[id]; !ok {
                set[id] = now
            }
        }
    }
}
