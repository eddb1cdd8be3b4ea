package service

import (
    "context"
    "errors"
    "regexp"
    "strings"
    "time"

    "github.com/iliyamo/lead-vault/internal/model"
)

// leadIDPattern is the canonical lead identifier format: lowercase UUID
// (8-4-4-4-12 hex groups). Input is lowercased before matching, so
// uppercase identifiers are accepted and normalized.
var leadIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// UnlockResult is returned by a successful unlock call.  TokenCost always
// equals NewlyUnlocked: unlock cost is one token per newly entitled lead,
// with no batching discounts.
type UnlockResult struct {
    NewlyUnlocked int   `json:"newly_unlocked"`
    TokenCost     int   `json:"token_cost"`
    BalanceAfter  int64 `json:"balance_after"`

    // UnlockedLeadIDs lists the newly granted lead IDs for post-commit
    // event publication; it is not part of the wire contract.
    UnlockedLeadIDs []string `json:"-"`
}

// SummaryResult aggregates a user's profile, current balance and the number
// of leads they are entitled to.
type SummaryResult struct {
    Profile          model.User
    Balance          int64
    EntitlementCount int
}

// Engine executes ledger and entitlement operations over a Store.  It owns
// validation, the per-user transaction protocol and bounded retry on lock
// conflicts; everything else (locking, atomicity) is delegated to the store.
type Engine struct {
    store      Store
    maxRetries int
    retryDelay time.Duration
}

// NewEngine returns an Engine over the given store with default retry
// settings (3 attempts, 25ms base backoff).
func NewEngine(store Store) *Engine {
    if store == nil {
        panic("nil store passed to NewEngine")
    }
    return &Engine{store: store, maxRetries: 3, retryDelay: 25 * time.Millisecond}
}

// NormalizeLeadIDs lowercases, deduplicates and filters the input down to
// identifiers matching the canonical UUID format.  Malformed identifiers
// are dropped silently; order of first occurrence is preserved.
func NormalizeLeadIDs(ids []string) []string {
    out := make([]string, 0, len(ids))
    seen := make(map[string]struct{}, len(ids))
    for _, id := range ids {
        id = strings.ToLower(strings.TrimSpace(id))
        if !leadIDPattern.MatchString(id) {
            continue
        }
        if _, ok := seen[id]; ok {
            continue
        }
        seen[id] = struct{}{}
        out = append(out, id)
    }
    return out
}

// Unlock grants the user permanent access to the requested leads, debiting
// one token per newly entitled lead.  Already-entitled leads are free and
// never touch the ledger; lead IDs unknown to the catalog are dropped as
// no-ops.  The balance check, ledger debit and entitlement inserts happen
// atomically inside one transaction serialized per user, so concurrent
// calls can never overspend or observe a partial result.
func (e *Engine) Unlock(ctx context.Context, userID uint64, leadIDs []string) (UnlockResult, error) {
    var res UnlockResult
    if userID == 0 {
        return res, errf(ErrNotAuthenticated, "missing caller identity")
    }
    valid := NormalizeLeadIDs(leadIDs)
    if len(valid) == 0 {
        return res, errf(ErrInvalidArgument, "no valid lead IDs provided")
    }
    known, err := e.store.FilterKnownLeadIDs(ctx, valid)
    if err != nil {
        return res, internalErr(err)
    }
    if len(known) == 0 {
        // Every requested lead was unknown to the catalog: nothing billable.
        bal, err := e.store.Balance(ctx, userID)
        if err != nil {
            return res, internalErr(err)
        }
        return UnlockResult{BalanceAfter: bal}, nil
    }

    err = e.withRetry(ctx, func() error {
        return e.store.WithUserTx(ctx, userID, func(tx Tx) error {
            entitled, err := tx.EntitledLeadIDs(ctx, userID, known)
            if err != nil {
                return internalErr(err)
            }
            newClaims := make([]string, 0, len(known))
            for _, id := range known {
                if _, ok := entitled[id]; !ok {
                    newClaims = append(newClaims, id)
                }
            }
            bal, err := tx.Balance(ctx, userID)
            if err != nil {
                return internalErr(err)
            }
            cost := len(newClaims)
            if cost == 0 {
                // Re-access to already-entitled leads is always free.
                res = UnlockResult{BalanceAfter: bal}
                return nil
            }
            if bal < int64(cost) {
                return errf(ErrInsufficientCredits, "insufficient credits: have %d, need %d", bal, cost)
            }
            entry := &model.LedgerEntry{
                UserID: userID,
                Delta:  -int64(cost),
                Reason: model.ReasonUnlock,
                Meta:   map[string]any{"lead_ids": newClaims},
            }
            if err := tx.AppendLedger(ctx, entry); err != nil {
                return internalErr(err)
            }
            if err := tx.InsertGrants(ctx, userID, newClaims); err != nil {
                return internalErr(err)
            }
            res = UnlockResult{
                NewlyUnlocked:   cost,
                TokenCost:       cost,
                BalanceAfter:    bal - int64(cost),
                UnlockedLeadIDs: newClaims,
            }
            return nil
        })
    })
    if err != nil {
        if errors.Is(err, ErrNoUser) {
            return UnlockResult{}, errf(ErrNotAuthenticated, "unknown user %d", userID)
        }
        return UnlockResult{}, err
    }
    return res, nil
}

// Grant appends an arbitrary signed delta to the target user's ledger.
// Only admins may call it.  Negative resulting balances are permitted; they
// block future unlocks but never invalidate past entitlements.  All
// validation happens before any transaction is opened.
func (e *Engine) Grant(ctx context.Context, actorID, targetID uint64, delta int64, reason string) (int64, error) {
    if actorID == 0 {
        return 0, errf(ErrNotAuthenticated, "missing caller identity")
    }
    actor, err := e.store.UserByID(ctx, actorID)
    if err != nil {
        if errors.Is(err, ErrNoUser) {
            return 0, errf(ErrNotAuthenticated, "unknown actor")
        }
        return 0, internalErr(err)
    }
    if actor.Role != model.RoleAdmin {
        return 0, errf(ErrUnauthorized, "actor is not an admin")
    }
    if delta == 0 {
        return 0, errf(ErrInvalidArgument, "delta must be non-zero")
    }
    if _, err := e.store.UserByID(ctx, targetID); err != nil {
        if errors.Is(err, ErrNoUser) {
            return 0, errf(ErrNotFound, "target user %d not found", targetID)
        }
        return 0, internalErr(err)
    }
    reason = strings.TrimSpace(reason)
    if reason == "" {
        reason = model.ReasonAdminGrant
    }

    var newBalance int64
    err = e.withRetry(ctx, func() error {
        return e.store.WithUserTx(ctx, targetID, func(tx Tx) error {
            bal, err := tx.Balance(ctx, targetID)
            if err != nil {
                return internalErr(err)
            }
            entry := &model.LedgerEntry{
                UserID: targetID,
                Delta:  delta,
                Reason: reason,
                Meta:   map[string]any{},
            }
            if err := tx.AppendLedger(ctx, entry); err != nil {
                return internalErr(err)
            }
            newBalance = bal + delta
            return nil
        })
    })
    if err != nil {
        if errors.Is(err, ErrNoUser) {
            return 0, errf(ErrNotFound, "target user %d not found", targetID)
        }
        return 0, err
    }
    return newBalance, nil
}

// Balance returns the user's current spendable balance: the sum of all
// ledger deltas for the user.  Pure read, no side effects.
func (e *Engine) Balance(ctx context.Context, userID uint64) (int64, error) {
    if userID == 0 {
        return 0, errf(ErrNotAuthenticated, "missing caller identity")
    }
    bal, err := e.store.Balance(ctx, userID)
    if err != nil {
        return 0, internalErr(err)
    }
    return bal, nil
}

// Summary returns the user's profile, balance and entitlement count.  A
// valid identity without a profile indicates upstream provisioning failure
// and surfaces as ErrNotFound.
func (e *Engine) Summary(ctx context.Context, userID uint64) (SummaryResult, error) {
    var res SummaryResult
    if userID == 0 {
        return res, errf(ErrNotAuthenticated, "missing caller identity")
    }
    profile, err := e.store.UserByID(ctx, userID)
    if err != nil {
        if errors.Is(err, ErrNoUser) {
            return res, errf(ErrNotFound, "profile for user %d not found", userID)
        }
        return res, internalErr(err)
    }
    bal, err := e.store.Balance(ctx, userID)
    if err != nil {
        return res, internalErr(err)
    }
    count, err := e.store.EntitlementCount(ctx, userID)
    if err != nil {
        return res, internalErr(err)
    }
    return SummaryResult{Profile: profile, Balance: bal, EntitlementCount: count}, nil
}

// withRetry re-runs fn while it fails with ErrTxConflict, waiting a little
// longer before each attempt.  Exhausting the retry budget surfaces as a
// retryable internal error; every other failure is returned unchanged.
func (e *Engine) withRetry(ctx context.Context, fn func() error) error {
    var lastErr error
    for attempt := 0; attempt <= e.maxRetries; attempt++ {
        if attempt > 0 {
            select {
            case <-ctx.Done():
                return &Error{Kind: ErrInternal, Msg: "operation cancelled", Retryable: true, cause: ctx.Err()}
            case <-time.After(time.Duration(attempt) * e.retryDelay):
            }
        }
        lastErr = fn()
        if lastErr == nil || !errors.Is(lastErr, ErrTxConflict) {
            return lastErr
        }
    }
    return &Error{Kind: ErrInternal, Msg: "transaction conflict retries exhausted", Retryable: true, cause: lastErr}
}
