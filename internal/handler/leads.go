package handler

import (
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/lead-vault/internal/model"
    "github.com/iliyamo/lead-vault/internal/policy"
    "github.com/iliyamo/lead-vault/internal/repository"
)

// LeadHandler serves the masked catalog browse and the dashboard metrics.
// Every lead returned by Browse is projected through the masking policy
// against the caller's entitlement set, so contact channels are only
// visible for unlocked leads.  Metrics carry no entitlement state and are
// served through the Redis response cache.
type LeadHandler struct {
    Leads        *repository.LeadRepo
    Entitlements *repository.EntitlementRepo
}

// NewLeadHandler constructs a LeadHandler.  All dependencies must be non-nil.
func NewLeadHandler(leads *repository.LeadRepo, entitlements *repository.EntitlementRepo) *LeadHandler {
    if leads == nil || entitlements == nil {
        panic("nil repository passed to NewLeadHandler")
    }
    return &LeadHandler{Leads: leads, Entitlements: entitlements}
}

type leadPart struct {
    ID                string  `json:"id"`
    Company           string  `json:"company"`
    Website           *string `json:"website"`
    ContactName       *string `json:"contact_name"`
    Title             *string `json:"title"`
    Email             *string `json:"email"`
    Phone             *string `json:"phone"`
    Industry          *string `json:"industry"`
    LocationState     *string `json:"location_state"`
    Employees         *int    `json:"employees"`
    IntelligenceScore int     `json:"intelligence_score"`
    IsPremium         bool    `json:"is_premium"`
    Unlocked          bool    `json:"unlocked"`
    CreatedAt         string  `json:"created_at"`
}

// Browse handles GET /v1/leads.  Optional query parameters:
// ?premium=true|false filters on the premium flag, ?industry=<label>
// filters on exact industry, ?limit caps the page size.  Contact fields of
// leads the caller has not unlocked are masked.
func (h *LeadHandler) Browse(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ctx := c.Request().Context()

    var filter repository.LeadFilter
    if p := c.QueryParam("premium"); p != "" {
        b, err := strconv.ParseBool(p)
        if err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid premium filter"})
        }
        filter.Premium = &b
    }
    filter.Industry = c.QueryParam("industry")
    limit := 0
    if l := c.QueryParam("limit"); l != "" {
        n, err := strconv.Atoi(l)
        if err != nil || n < 1 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
        }
        limit = n
    }

    leads, err := h.Leads.List(ctx, filter, limit)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load leads"})
    }
    ids := make([]string, 0, len(leads))
    for _, l := range leads {
        ids = append(ids, l.ID)
    }
    entitled, err := h.Entitlements.EntitledSet(ctx, userID, ids)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load entitlements"})
    }

    items := make([]leadPart, 0, len(leads))
    for _, l := range leads {
        _, ok := entitled[l.ID]
        items = append(items, toLeadPart(policy.Mask(l, ok), ok))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Metrics handles GET /v1/metrics.  Catalog-wide aggregates only; safe to
// cache because the response carries no per-user state.
func (h *LeadHandler) Metrics(c echo.Context) error {
    m, err := h.Leads.Metrics(c.Request().Context())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load metrics"})
    }
    return c.JSON(http.StatusOK, m)
}

func toLeadPart(l model.Lead, unlocked bool) leadPart {
    return leadPart{
        ID:                l.ID,
        Company:           l.Company,
        Website:           l.Website,
        ContactName:       l.ContactName,
        Title:             l.Title,
        Email:             l.Email,
        Phone:             l.Phone,
        Industry:          l.Industry,
        LocationState:     l.LocationState,
        Employees:         l.Employees,
        IntelligenceScore: l.IntelligenceScore,
        IsPremium:         l.IsPremium,
        Unlocked:          unlocked,
        CreatedAt:         l.CreatedAt.UTC().Format(time.RFC3339),
    }
}
