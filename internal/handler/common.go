package handler // handler defines http handlers

import (
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/lead-vault/internal/service"
)

// getUserID extracts the user_id from echo.Context and converts it to uint64.
// The JWT middleware stores the subject claim under "user_id"; depending on
// how the token was encoded the value may arrive as a number or a string.
func getUserID(c echo.Context) (uint64, error) {
    v := c.Get("user_id")
    switch t := v.(type) {
    case uint64:
        return t, nil
    case int:
        return uint64(t), nil
    case int64:
        return uint64(t), nil
    case float64:
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// serviceError translates an engine error kind into the HTTP response the
// boundary contract specifies. Kinds are matched structurally with
// errors.Is; message text is never inspected.
func serviceError(c echo.Context, err error) error {
    status := http.StatusInternalServerError
    switch {
    case errors.Is(err, service.ErrNotAuthenticated):
        status = http.StatusUnauthorized
    case errors.Is(err, service.ErrUnauthorized):
        status = http.StatusForbidden
    case errors.Is(err, service.ErrInvalidArgument):
        status = http.StatusBadRequest
    case errors.Is(err, service.ErrInsufficientCredits):
        status = http.StatusPaymentRequired
    case errors.Is(err, service.ErrNotFound):
        status = http.StatusNotFound
    }
    body := echo.Map{"error": err.Error()}
    var svcErr *service.Error
    if errors.As(err, &svcErr) && svcErr.Retryable {
        body["retryable"] = true
    }
    return c.JSON(status, body)
}
