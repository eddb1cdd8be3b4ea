// Package router defines how HTTP routes are registered for the API.
package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/lead-vault/internal/handler"
    "github.com/iliyamo/lead-vault/internal/middleware"
    "github.com/iliyamo/lead-vault/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check used by
// load balancers and monitoring systems.
func RegisterRoutes(e *echo.Echo) {
    e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes.  Unauthenticated
// operations live under /v1/auth; logout is also reachable at /v1/logout so
// clients holding only a refresh token can terminate a session.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
    g := e.Group("/v1/auth")
    g.POST("/register", a.Register)
    g.POST("/login", a.Login)
    g.POST("/refresh", a.Refresh)
    g.POST("/refresh-access", a.RefreshAccess)
    g.POST("/logout", a.Logout)

    e.POST("/v1/logout", a.Logout)
}

// RegisterAPI registers the authenticated engine endpoints.  All routes in
// the /v1 group run the JWT middleware and accept both roles; the admin
// group additionally requires the ADMIN role.  cacheMW, when non-nil, is
// applied to the read-only metrics endpoint only; correctness-critical
// paths never sit behind a cache.
func RegisterAPI(e *echo.Echo, jwtSecret string,
    profile *handler.ProfileHandler,
    leads *handler.LeadHandler,
    unlock *handler.UnlockHandler,
    admin *handler.AdminHandler,
    cacheMW echo.MiddlewareFunc,
) {
    api := e.Group("/v1")
    api.Use(middleware.JWTAuth(jwtSecret))
    api.Use(middleware.RequireRole(model.RoleUser, model.RoleAdmin))

    api.GET("/me", profile.Me)
    api.GET("/ledger", profile.LedgerHistory)
    api.POST("/leads/unlock", unlock.Unlock)
    if leads != nil {
        api.GET("/leads", leads.Browse)
        if cacheMW != nil {
            api.GET("/metrics", leads.Metrics, cacheMW)
        } else {
            api.GET("/metrics", leads.Metrics)
        }
    }

    adm := e.Group("/v1/admin")
    adm.Use(middleware.JWTAuth(jwtSecret))
    adm.Use(middleware.RequireRole(model.RoleAdmin))
    adm.POST("/grant", admin.Grant)
}
