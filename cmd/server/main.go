package main // Entry point package

import (
    "log"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/lead-vault/internal/config"
    "github.com/iliyamo/lead-vault/internal/database"
    "github.com/iliyamo/lead-vault/internal/handler"
    "github.com/iliyamo/lead-vault/internal/middleware"
    "github.com/iliyamo/lead-vault/internal/queue"
    "github.com/iliyamo/lead-vault/internal/repository"
    "github.com/iliyamo/lead-vault/internal/router"
    "github.com/iliyamo/lead-vault/internal/service"
)

func main() {
    // Load .env when present; real deployments set env vars directly.
    _ = godotenv.Load()

    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    // Repositories over the shared pool.
    users := repository.NewUserRepo(db)
    tokens := repository.NewTokenRepo(db)
    ledger := repository.NewLedgerRepo(db)
    entitlements := repository.NewEntitlementRepo(db)
    leads := repository.NewLeadRepo(db)

    // The engine runs on the MySQL store; per-user serialization happens
    // via row locks inside EngineStore.
    store := repository.NewEngineStore(db, users, ledger, entitlements, leads)
    engine := service.NewEngine(store)

    e := echo.New()

    // Redis backs rate limiting and the metrics response cache.  A nil
    // client disables both; the unlock path never depends on Redis.
    rdb := config.NewRedisClient()
    e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
    cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

    router.RegisterRoutes(e)
    router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens))
    router.RegisterAPI(e, cfg.JWTSecret,
        handler.NewProfileHandler(engine, ledger),
        handler.NewLeadHandler(leads, entitlements),
        handler.NewUnlockHandler(engine),
        handler.NewAdminHandler(engine),
        cacheMW,
    )

    // Background consumer writing the unlock audit log.  Runs its own
    // reconnect loop and never owns ledger state.
    go func() {
        if err := queue.StartUnlockConsumer(); err != nil {
            log.Printf("unlock consumer stopped: %v", err)
        }
    }()

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)

    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
