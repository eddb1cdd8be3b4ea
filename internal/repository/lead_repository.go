package repository

import (
    "context"
    "database/sql"
    "strings"

    "github.com/iliyamo/lead-vault/internal/model"
)

// LeadRepo reads the external `leads` catalog.  The engine never writes to
// this table; leads are owned by an external catalog collaborator.
type LeadRepo struct {
    db *sql.DB
}

// NewLeadRepo returns a new LeadRepo bound to the given database.
func NewLeadRepo(db *sql.DB) *LeadRepo { return &LeadRepo{db: db} }

// FilterExistingIDs returns the subset of leadIDs present in the catalog,
// preserving the order of the input.  Unknown IDs are simply absent from
// the result.
func (r *LeadRepo) FilterExistingIDs(ctx context.Context, leadIDs []string) ([]string, error) {
    if len(leadIDs) == 0 {
        return []string{}, nil
    }
    placeholders := make([]string, 0, len(leadIDs))
    args := make([]any, 0, len(leadIDs))
    for _, id := range leadIDs {
        placeholders = append(placeholders, "?")
        args = append(args, id)
    }
    query := `SELECT id FROM leads WHERE id IN (` + strings.Join(placeholders, ",") + `)`
    rows, err := r.db.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    found := make(map[string]struct{}, len(leadIDs))
    for rows.Next() {
        var id string
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        found[id] = struct{}{}
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    out := make([]string, 0, len(found))
    for _, id := range leadIDs {
        if _, ok := found[id]; ok {
            out = append(out, id)
        }
    }
    return out, nil
}

// LeadFilter narrows List results.  Zero values mean "no filter".
type LeadFilter struct {
    Premium  *bool  // filter by is_premium when non-nil
    Industry string // exact industry match when non-empty
}

// List returns catalog leads matching the filter, newest first, capped at
// limit rows (a non-positive limit defaults to 200).
func (r *LeadRepo) List(ctx context.Context, filter LeadFilter, limit int) ([]model.Lead, error) {
    if limit <= 0 {
        limit = 200
    }
    query := `SELECT id, company, website, contact_name, title, email, phone,
                     industry, location_state, employees, intelligence_score, is_premium, created_at
              FROM leads`
    conds := make([]string, 0, 2)
    args := make([]any, 0, 3)
    if filter.Premium != nil {
        conds = append(conds, "is_premium = ?")
        args = append(args, *filter.Premium)
    }
    if filter.Industry != "" {
        conds = append(conds, "industry = ?")
        args = append(args, filter.Industry)
    }
    if len(conds) > 0 {
        query += " WHERE " + strings.Join(conds, " AND ")
    }
    query += " ORDER BY created_at DESC, id LIMIT ?"
    args = append(args, limit)

    rows, err := r.db.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    leads := make([]model.Lead, 0)
    for rows.Next() {
        var l model.Lead
        var website, contactName, title, email, phone, industry, state sql.NullString
        var employees sql.NullInt64
        if err := rows.Scan(
            &l.ID, &l.Company, &website, &contactName, &title, &email, &phone,
            &industry, &state, &employees, &l.IntelligenceScore, &l.IsPremium, &l.CreatedAt,
        ); err != nil {
            return nil, err
        }
        l.Website = nullStr(website)
        l.ContactName = nullStr(contactName)
        l.Title = nullStr(title)
        l.Email = nullStr(email)
        l.Phone = nullStr(phone)
        l.Industry = nullStr(industry)
        l.LocationState = nullStr(state)
        if employees.Valid {
            n := int(employees.Int64)
            l.Employees = &n
        }
        leads = append(leads, l)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return leads, nil
}

// Metrics returns catalog-wide aggregates for the dashboard.
func (r *LeadRepo) Metrics(ctx context.Context) (model.LeadMetrics, error) {
    const q = `SELECT COUNT(*),
                      COALESCE(SUM(is_premium), 0),
                      COALESCE(AVG(intelligence_score), 0)
               FROM leads`
    var m model.LeadMetrics
    err := r.db.QueryRowContext(ctx, q).Scan(&m.TotalLeads, &m.PremiumLeads, &m.AvgScore)
    return m, err
}

func nullStr(v sql.NullString) *string {
    if !v.Valid {
        return nil
    }
    s := v.String
    return &s
}
