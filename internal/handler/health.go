package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// Health answers GET /healthz for load balancers and uptime checks.  It
// deliberately touches no dependency: a healthy process answers even when
// MySQL, Redis or the broker are down.
func Health(c echo.Context) error {
    return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
