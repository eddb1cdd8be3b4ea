package model

import "time"

// Lead represents a row in the external `leads` catalog.  The engine never
// creates or mutates leads; it reads the ID and premium flag for policy
// decisions and records entitlements against lead IDs.  Email and Phone are
// the only fields gated by entitlement; everything else is always visible.
//
// Fields:
//  ID                – UUID primary key (CHAR(36)).
//  Company           – company name.
//  Website           – optional website URL.
//  ContactName       – optional contact person.
//  Title             – optional contact job title.
//  Email             – direct contact email (sensitive, masked when not entitled).
//  Phone             – direct contact phone (sensitive, masked when not entitled).
//  Industry          – industry label.
//  LocationState     – coarse location (state/region).
//  Employees         – optional headcount estimate.
//  IntelligenceScore – numeric quality score.
//  IsPremium         – premium flag.
//  CreatedAt         – timestamp of catalog insertion.
type Lead struct {
    ID                string    // leads.id
    Company           string    // leads.company
    Website           *string   // leads.website (nullable)
    ContactName       *string   // leads.contact_name (nullable)
    Title             *string   // leads.title (nullable)
    Email             *string   // leads.email (nullable)
    Phone             *string   // leads.phone (nullable)
    Industry          *string   // leads.industry (nullable)
    LocationState     *string   // leads.location_state (nullable)
    Employees         *int      // leads.employees (nullable)
    IntelligenceScore int       // leads.intelligence_score
    IsPremium         bool      // leads.is_premium
    CreatedAt         time.Time // leads.created_at
}

// LeadMetrics aggregates catalog-wide figures for the dashboard.  The values
// are derived entirely from the read-only catalog and carry no entitlement
// state, so responses are safe to cache.
type LeadMetrics struct {
    TotalLeads   int     `json:"total_leads"`
    PremiumLeads int     `json:"premium_leads"`
    AvgScore     float64 `json:"avg_score"`
}
