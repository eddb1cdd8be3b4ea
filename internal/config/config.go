// Package config loads runtime configuration from environment variables.
// Required values fail fast at startup; optional subsystems (Redis-backed
// rate limiting and response caching) degrade to disabled when unset.
package config

import (
    "log"
    "os"
    "strconv"
)

// Config carries the core settings: HTTP binding, MySQL connection, JWT
// signing and token lifetimes.  One value per environment variable.
type Config struct {
    Env            string // APP_ENV: dev, test or prod
    Port           string // APP_PORT: HTTP listen port
    DBUser         string
    DBPass         string // empty allowed for local setups
    DBHost         string
    DBPort         string
    DBName         string
    JWTSecret      string // HS256 signing secret
    AccessTTLMin   int    // access token lifetime, minutes
    RefreshTTLDays int    // refresh token lifetime, days
    BcryptCost     int    // bcrypt work factor for password hashing
}

// Load reads the full Config, exiting with a fatal log when a required
// variable is missing or malformed.
func Load() Config {
    return Config{
        Env:            must("APP_ENV"),
        Port:           must("APP_PORT"),
        DBUser:         must("DB_USER"),
        DBPass:         os.Getenv("DB_PASS"),
        DBHost:         must("DB_HOST"),
        DBPort:         must("DB_PORT"),
        DBName:         must("DB_NAME"),
        JWTSecret:      must("JWT_SECRET"),
        AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
        RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
        BcryptCost:     mustInt("BCRYPT_COST"),
    }
}

func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
