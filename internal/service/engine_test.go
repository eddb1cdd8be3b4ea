package service_test

import (
    "context"
    "fmt"
    "math/rand"
    "sync"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/lead-vault/internal/model"
    "github.com/iliyamo/lead-vault/internal/repository/memory"
    "github.com/iliyamo/lead-vault/internal/service"
)

func leadID(n int) string {
    return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
}

// newFixture returns an engine over a fresh memory store seeded with an
// admin, a regular user and `leads` catalog entries.
func newFixture(t *testing.T, leads int) (*service.Engine, *memory.Store, model.User, model.User) {
    t.Helper()
    store := memory.NewStore()
    admin := store.AddUser(model.User{Email: "admin@vault.test", Role: model.RoleAdmin, IsActive: true})
    user := store.AddUser(model.User{Email: "user@vault.test", Role: model.RoleUser, IsActive: true})
    for i := 1; i <= leads; i++ {
        store.AddLead(model.Lead{ID: leadID(i), Company: fmt.Sprintf("Company %d", i)})
    }
    return service.NewEngine(store), store, admin, user
}

func grantCredits(t *testing.T, e *service.Engine, adminID, userID uint64, amount int64) {
    t.Helper()
    _, err := e.Grant(context.Background(), adminID, userID, amount, "")
    require.NoError(t, err)
}

func TestNormalizeLeadIDs(t *testing.T) {
    in := []string{
        "00000000-0000-4000-8000-000000000001",
        "00000000-0000-4000-8000-000000000001",  // duplicate
        "00000000-0000-4000-8000-000000000002 ", // trailing space
        "00000000-0000-4000-8000-00000000000X",  // bad hex
        "not-a-uuid",
        "",
        "00000000-0000-4000-8000-0000000000AB", // uppercase, normalized
    }
    got := service.NormalizeLeadIDs(in)
    assert.Equal(t, []string{
        "00000000-0000-4000-8000-000000000001",
        "00000000-0000-4000-8000-000000000002",
        "00000000-0000-4000-8000-0000000000ab",
    }, got)
}

func TestUnlockRequiresIdentity(t *testing.T) {
    e, _, _, _ := newFixture(t, 1)
    _, err := e.Unlock(context.Background(), 0, []string{leadID(1)})
    assert.ErrorIs(t, err, service.ErrNotAuthenticated)
}

func TestUnlockUnknownUser(t *testing.T) {
    e, _, _, _ := newFixture(t, 1)
    _, err := e.Unlock(context.Background(), 999, []string{leadID(1)})
    assert.ErrorIs(t, err, service.ErrNotAuthenticated)
}

func TestUnlockRejectsEmptyBatch(t *testing.T) {
    e, _, _, user := newFixture(t, 1)

    _, err := e.Unlock(context.Background(), user.ID, nil)
    assert.ErrorIs(t, err, service.ErrInvalidArgument)

    // A batch of only malformed identifiers filters down to nothing.
    _, err = e.Unlock(context.Background(), user.ID, []string{"nope", "also-nope"})
    assert.ErrorIs(t, err, service.ErrInvalidArgument)
}

func TestUnlockUnknownCatalogIDsAreNoOps(t *testing.T) {
    e, _, admin, user := newFixture(t, 1)
    grantCredits(t, e, admin.ID, user.ID, 10)

    // Well-formed but absent from the catalog: nothing billable.
    res, err := e.Unlock(context.Background(), user.ID, []string{leadID(77)})
    require.NoError(t, err)
    assert.Zero(t, res.NewlyUnlocked)
    assert.Zero(t, res.TokenCost)
    assert.Equal(t, int64(10), res.BalanceAfter)
}

func TestUnlockDebitsOnePerLead(t *testing.T) {
    e, store, admin, user := newFixture(t, 3)
    grantCredits(t, e, admin.ID, user.ID, 10)

    res, err := e.Unlock(context.Background(), user.ID, []string{leadID(1), leadID(2), leadID(3)})
    require.NoError(t, err)
    assert.Equal(t, 3, res.NewlyUnlocked)
    assert.Equal(t, 3, res.TokenCost)
    assert.Equal(t, int64(7), res.BalanceAfter)
    assert.ElementsMatch(t, []string{leadID(1), leadID(2), leadID(3)}, res.UnlockedLeadIDs)

    entries := store.LedgerEntries(user.ID)
    require.Len(t, entries, 2) // grant + one debit for the whole batch
    debit := entries[1]
    assert.Equal(t, int64(-3), debit.Delta)
    assert.Equal(t, model.ReasonUnlock, debit.Reason)
    assert.Contains(t, debit.Meta, "lead_ids")

    count, err := store.EntitlementCount(context.Background(), user.ID)
    require.NoError(t, err)
    assert.Equal(t, 3, count)
}

func TestUnlockReaccessIsFree(t *testing.T) {
    e, store, admin, user := newFixture(t, 2)
    grantCredits(t, e, admin.ID, user.ID, 5)

    _, err := e.Unlock(context.Background(), user.ID, []string{leadID(1)})
    require.NoError(t, err)

    res, err := e.Unlock(context.Background(), user.ID, []string{leadID(1)})
    require.NoError(t, err)
    assert.Zero(t, res.NewlyUnlocked)
    assert.Zero(t, res.TokenCost)
    assert.Equal(t, int64(4), res.BalanceAfter)

    // Free path writes nothing to the ledger.
    assert.Len(t, store.LedgerEntries(user.ID), 2)
}

func TestUnlockPartialBatchChargesOnlyNew(t *testing.T) {
    e, _, admin, user := newFixture(t, 3)
    grantCredits(t, e, admin.ID, user.ID, 5)

    _, err := e.Unlock(context.Background(), user.ID, []string{leadID(1)})
    require.NoError(t, err)

    res, err := e.Unlock(context.Background(), user.ID, []string{leadID(1), leadID(2), leadID(3)})
    require.NoError(t, err)
    assert.Equal(t, 2, res.NewlyUnlocked)
    assert.Equal(t, 2, res.TokenCost)
    assert.Equal(t, int64(2), res.BalanceAfter)
    assert.ElementsMatch(t, []string{leadID(2), leadID(3)}, res.UnlockedLeadIDs)
}

func TestUnlockInsufficientCredits(t *testing.T) {
    e, store, admin, user := newFixture(t, 3)
    grantCredits(t, e, admin.ID, user.ID, 2)

    _, err := e.Unlock(context.Background(), user.ID, []string{leadID(1), leadID(2), leadID(3)})
    assert.ErrorIs(t, err, service.ErrInsufficientCredits)

    // All-or-nothing: no partial debit, no partial grants.
    bal, berr := e.Balance(context.Background(), user.ID)
    require.NoError(t, berr)
    assert.Equal(t, int64(2), bal)
    count, cerr := store.EntitlementCount(context.Background(), user.ID)
    require.NoError(t, cerr)
    assert.Zero(t, count)
}

func TestUnlockAtomicOnStorageFailure(t *testing.T) {
    e, store, admin, user := newFixture(t, 1)
    grantCredits(t, e, admin.ID, user.ID, 5)

    store.FailAppendLedger = func(entry *model.LedgerEntry) error {
        if entry.Reason == model.ReasonUnlock {
            return fmt.Errorf("disk full")
        }
        return nil
    }
    _, err := e.Unlock(context.Background(), user.ID, []string{leadID(1)})
    assert.ErrorIs(t, err, service.ErrInternal)

    store.FailAppendLedger = nil
    bal, berr := e.Balance(context.Background(), user.ID)
    require.NoError(t, berr)
    assert.Equal(t, int64(5), bal)
    count, cerr := store.EntitlementCount(context.Background(), user.ID)
    require.NoError(t, cerr)
    assert.Zero(t, count, "failed unlock must not leave grants behind")
}

func TestUnlockRetriesOnTxConflict(t *testing.T) {
    e, store, admin, user := newFixture(t, 1)
    grantCredits(t, e, admin.ID, user.ID, 5)

    // First two attempts lose the lock race, the third goes through.
    failures := 0
    store.FailAppendLedger = func(entry *model.LedgerEntry) error {
        if entry.Reason == model.ReasonUnlock && failures < 2 {
            failures++
            return service.ErrTxConflict
        }
        return nil
    }
    res, err := e.Unlock(context.Background(), user.ID, []string{leadID(1)})
    require.NoError(t, err)
    assert.Equal(t, 1, res.NewlyUnlocked)
    assert.Equal(t, 2, failures)
}

func TestUnlockConflictRetriesExhausted(t *testing.T) {
    e, store, admin, user := newFixture(t, 1)
    grantCredits(t, e, admin.ID, user.ID, 5)

    store.FailAppendLedger = func(entry *model.LedgerEntry) error {
        if entry.Reason == model.ReasonUnlock {
            return service.ErrTxConflict
        }
        return nil
    }
    _, err := e.Unlock(context.Background(), user.ID, []string{leadID(1)})
    assert.ErrorIs(t, err, service.ErrInternal)

    var svcErr *service.Error
    require.ErrorAs(t, err, &svcErr)
    assert.True(t, svcErr.Retryable)
}

func TestConcurrentUnlocksNeverOverspend(t *testing.T) {
    const leads = 10
    const budget = 5

    e, store, admin, user := newFixture(t, leads)
    grantCredits(t, e, admin.ID, user.ID, budget)

    var wg sync.WaitGroup
    var mu sync.Mutex
    unlocked, refused := 0, 0
    for i := 1; i <= leads; i++ {
        wg.Add(1)
        go func(n int) {
            defer wg.Done()
            res, err := e.Unlock(context.Background(), user.ID, []string{leadID(n)})
            mu.Lock()
            defer mu.Unlock()
            switch {
            case err == nil && res.NewlyUnlocked == 1:
                unlocked++
            case assert.ErrorIs(t, err, service.ErrInsufficientCredits):
                refused++
            }
        }(i)
    }
    wg.Wait()

    assert.Equal(t, budget, unlocked)
    assert.Equal(t, leads-budget, refused)

    bal, err := e.Balance(context.Background(), user.ID)
    require.NoError(t, err)
    assert.Equal(t, int64(0), bal)
    count, err := store.EntitlementCount(context.Background(), user.ID)
    require.NoError(t, err)
    assert.Equal(t, budget, count)
}

func TestConcurrentUnlockSameLeadChargesOnce(t *testing.T) {
    const callers = 10

    e, store, admin, user := newFixture(t, 1)
    grantCredits(t, e, admin.ID, user.ID, 10)

    var wg sync.WaitGroup
    for i := 0; i < callers; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            _, err := e.Unlock(context.Background(), user.ID, []string{leadID(1)})
            assert.NoError(t, err)
        }()
    }
    wg.Wait()

    bal, err := e.Balance(context.Background(), user.ID)
    require.NoError(t, err)
    assert.Equal(t, int64(9), bal, "same lead is only ever charged once")
    count, err := store.EntitlementCount(context.Background(), user.ID)
    require.NoError(t, err)
    assert.Equal(t, 1, count)
}

func TestGrantValidation(t *testing.T) {
    e, _, admin, user := newFixture(t, 0)
    ctx := context.Background()

    _, err := e.Grant(ctx, 0, user.ID, 10, "")
    assert.ErrorIs(t, err, service.ErrNotAuthenticated)

    _, err = e.Grant(ctx, user.ID, user.ID, 10, "")
    assert.ErrorIs(t, err, service.ErrUnauthorized)

    _, err = e.Grant(ctx, admin.ID, user.ID, 0, "")
    assert.ErrorIs(t, err, service.ErrInvalidArgument)

    _, err = e.Grant(ctx, admin.ID, 999, 10, "")
    assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestGrantAppendsLedger(t *testing.T) {
    e, store, admin, user := newFixture(t, 0)
    ctx := context.Background()

    bal, err := e.Grant(ctx, admin.ID, user.ID, 25, "")
    require.NoError(t, err)
    assert.Equal(t, int64(25), bal)

    bal, err = e.Grant(ctx, admin.ID, user.ID, -40, "refund clawback")
    require.NoError(t, err)
    assert.Equal(t, int64(-15), bal, "negative balances are allowed")

    // Granting onto a negative balance is never rejected.
    bal, err = e.Grant(ctx, admin.ID, user.ID, 50, "")
    require.NoError(t, err)
    assert.Equal(t, int64(35), bal)

    entries := store.LedgerEntries(user.ID)
    require.Len(t, entries, 3)
    assert.Equal(t, model.ReasonAdminGrant, entries[0].Reason)
    assert.Equal(t, "refund clawback", entries[1].Reason)
}

func TestNegativeBalanceBlocksUnlockKeepsAccess(t *testing.T) {
    e, _, admin, user := newFixture(t, 2)
    grantCredits(t, e, admin.ID, user.ID, 1)

    _, err := e.Unlock(context.Background(), user.ID, []string{leadID(1)})
    require.NoError(t, err)

    // Claw the balance below zero; the existing entitlement survives and
    // re-access stays free, but new unlocks are refused.
    _, err = e.Grant(context.Background(), admin.ID, user.ID, -5, "")
    require.NoError(t, err)

    res, err := e.Unlock(context.Background(), user.ID, []string{leadID(1)})
    require.NoError(t, err)
    assert.Zero(t, res.TokenCost)

    _, err = e.Unlock(context.Background(), user.ID, []string{leadID(2)})
    assert.ErrorIs(t, err, service.ErrInsufficientCredits)
}

func TestBalanceAlwaysEqualsLedgerSum(t *testing.T) {
    e, store, admin, user := newFixture(t, 20)
    ctx := context.Background()
    rng := rand.New(rand.NewSource(1))

    grantCredits(t, e, admin.ID, user.ID, 8)
    for i := 0; i < 200; i++ {
        if rng.Intn(4) == 0 {
            delta := int64(rng.Intn(11) - 5)
            if delta != 0 {
                _, err := e.Grant(ctx, admin.ID, user.ID, delta, "")
                require.NoError(t, err)
            }
        } else {
            ids := []string{leadID(1 + rng.Intn(20))}
            if _, err := e.Unlock(ctx, user.ID, ids); err != nil {
                require.ErrorIs(t, err, service.ErrInsufficientCredits)
            }
        }

        var want int64
        for _, entry := range store.LedgerEntries(user.ID) {
            want += entry.Delta
        }
        bal, err := e.Balance(ctx, user.ID)
        require.NoError(t, err)
        require.Equal(t, want, bal, "balance diverged from ledger replay at op %d", i)
    }
}

func TestBalanceAndSummary(t *testing.T) {
    e, _, admin, user := newFixture(t, 2)
    ctx := context.Background()

    bal, err := e.Balance(ctx, user.ID)
    require.NoError(t, err)
    assert.Zero(t, bal)

    grantCredits(t, e, admin.ID, user.ID, 3)
    _, err = e.Unlock(ctx, user.ID, []string{leadID(1), leadID(2)})
    require.NoError(t, err)

    sum, err := e.Summary(ctx, user.ID)
    require.NoError(t, err)
    assert.Equal(t, user.ID, sum.Profile.ID)
    assert.Equal(t, model.RoleUser, sum.Profile.Role)
    assert.Equal(t, int64(1), sum.Balance)
    assert.Equal(t, 2, sum.EntitlementCount)

    _, err = e.Summary(ctx, 999)
    assert.ErrorIs(t, err, service.ErrNotFound)

    _, err = e.Balance(ctx, 0)
    assert.ErrorIs(t, err, service.ErrNotAuthenticated)
}
