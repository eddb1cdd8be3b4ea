package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/lead-vault/internal/queue"
    "github.com/iliyamo/lead-vault/internal/service"
)

// AdminHandler exposes privileged ledger operations.  Routes using it are
// wrapped by the ADMIN role middleware; the engine re-validates the actor's
// role against the profile store so a direct service call is equally safe.
type AdminHandler struct {
    Engine *service.Engine
}

// NewAdminHandler constructs an AdminHandler.  The engine must be non-nil.
func NewAdminHandler(engine *service.Engine) *AdminHandler {
    if engine == nil {
        panic("nil engine passed to NewAdminHandler")
    }
    return &AdminHandler{Engine: engine}
}

type grantReq struct {
    UserID uint64 `json:"user_id"`
    Delta  int64  `json:"delta"`
    Reason string `json:"reason"`
}

// Grant handles POST /v1/admin/grant.  The body must carry a target
// user_id and a non-zero signed delta; reason is optional and defaults to
// "admin_grant".  Negative starting balances never cause rejection.
// Responds 200 with {success, balance_after}; 400 for invalid input, 403
// when the actor is not an admin, 404 for an unknown target user.
func (h *AdminHandler) Grant(c echo.Context) error {
    actorID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body grantReq
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.UserID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id is required"})
    }

    balance, err := h.Engine.Grant(c.Request().Context(), actorID, body.UserID, body.Delta, body.Reason)
    if err != nil {
        return serviceError(c, err)
    }

    // Best-effort post-commit notification; failures never affect the response.
    _ = queue.PublishCreditsGranted(c.Request().Context(), queue.CreditsGrantedEvent{
        ActorID:      actorID,
        UserID:       body.UserID,
        Delta:        body.Delta,
        Reason:       body.Reason,
        BalanceAfter: balance,
        GrantedAt:    time.Now().UTC().Format(time.RFC3339),
    })

    return c.JSON(http.StatusOK, echo.Map{
        "success":       true,
        "balance_after": balance,
    })
}
