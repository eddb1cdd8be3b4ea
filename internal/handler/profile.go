package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/lead-vault/internal/repository"
    "github.com/iliyamo/lead-vault/internal/service"
)

// ProfileHandler serves the authenticated user's summary view and ledger
// history.  Both endpoints are read-only.
type ProfileHandler struct {
    Engine *service.Engine
    Ledger *repository.LedgerRepo // nil disables the ledger history endpoint
}

// NewProfileHandler constructs a ProfileHandler.  The engine must be
// non-nil; the ledger repo may be nil when running without MySQL.
func NewProfileHandler(engine *service.Engine, ledger *repository.LedgerRepo) *ProfileHandler {
    if engine == nil {
        panic("nil engine passed to NewProfileHandler")
    }
    return &ProfileHandler{Engine: engine, Ledger: ledger}
}

type profilePart struct {
    ID        uint64 `json:"id"`
    Role      string `json:"role"`
    CreatedAt string `json:"created_at"`
}

// Me handles GET /v1/me.  It aggregates the profile record, the
// ledger-derived balance and the entitlement count.  A resolvable identity
// without a profile is a provisioning failure and responds 404.
func (h *ProfileHandler) Me(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    res, err := h.Engine.Summary(c.Request().Context(), userID)
    if err != nil {
        return serviceError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "profile": profilePart{
            ID:        res.Profile.ID,
            Role:      res.Profile.Role,
            CreatedAt: res.Profile.CreatedAt.UTC().Format(time.RFC3339),
        },
        "balance":           res.Balance,
        "entitlement_count": res.EntitlementCount,
    })
}

type ledgerEntryPart struct {
    ID        uint64         `json:"id"`
    Delta     int64          `json:"delta"`
    Reason    string         `json:"reason"`
    Meta      map[string]any `json:"meta"`
    CreatedAt string         `json:"created_at"`
}

// LedgerHistory handles GET /v1/ledger.  It returns the caller's ledger
// entries newest first so clients can render a transaction history; the
// authoritative balance still comes from /v1/me, never from summing this
// list client-side.
func (h *ProfileHandler) LedgerHistory(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    if h.Ledger == nil {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "ledger history unavailable"})
    }
    entries, err := h.Ledger.ListByUser(c.Request().Context(), userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load ledger"})
    }
    items := make([]ledgerEntryPart, 0, len(entries))
    for _, e := range entries {
        meta := e.Meta
        if meta == nil {
            meta = map[string]any{}
        }
        items = append(items, ledgerEntryPart{
            ID:        e.ID,
            Delta:     e.Delta,
            Reason:    e.Reason,
            Meta:      meta,
            CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
        })
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}
