package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/lead-vault/internal/queue"
    "github.com/iliyamo/lead-vault/internal/service"
)

// UnlockHandler exposes the unlock transaction over HTTP.  It assumes JWT
// authentication has already run, so the caller identity is available via
// getUserID.  All correctness logic (filtering, balance check, atomic
// debit + grant) lives in the engine; the handler only binds input, maps
// error kinds to statuses and publishes the post-commit event.
type UnlockHandler struct {
    Engine *service.Engine
}

// NewUnlockHandler constructs an UnlockHandler.  The engine must be non-nil.
func NewUnlockHandler(engine *service.Engine) *UnlockHandler {
    if engine == nil {
        panic("nil engine passed to NewUnlockHandler")
    }
    return &UnlockHandler{Engine: engine}
}

type unlockReq struct {
    LeadIDs []string `json:"lead_ids"`
}

// Unlock handles POST /v1/leads/unlock.  The request body must contain a
// JSON object with a non-empty "lead_ids" array.  Malformed identifiers are
// dropped from the batch; if nothing remains the call fails with 400.
// Responds 200 with {newly_unlocked, token_cost, balance_after}, 401 when
// no identity is present, and 402 when the balance cannot cover the cost.
func (h *UnlockHandler) Unlock(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body unlockReq
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if len(body.LeadIDs) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "lead_ids is required"})
    }

    res, err := h.Engine.Unlock(c.Request().Context(), userID, body.LeadIDs)
    if err != nil {
        return serviceError(c, err)
    }

    if res.NewlyUnlocked > 0 {
        // Best-effort post-commit notification; failures never affect the response.
        _ = queue.PublishLeadUnlocked(c.Request().Context(), queue.LeadUnlockedEvent{
            UserID:       userID,
            LeadIDs:      res.UnlockedLeadIDs,
            TokenCost:    res.TokenCost,
            BalanceAfter: res.BalanceAfter,
            UnlockedAt:   time.Now().UTC().Format(time.RFC3339),
        })
    }

    return c.JSON(http.StatusOK, res)
}
