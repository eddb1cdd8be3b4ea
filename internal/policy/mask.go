// Package policy derives display-safe projections of leads based on
// entitlement state.  Only the direct contact channels (email, phone) are
// gated; every other field stays visible regardless of entitlement.  All
// functions are pure and deterministic.
package policy

import (
    "strings"

    "github.com/iliyamo/lead-vault/internal/model"
)

// redactRune is the marker substituted for hidden characters.
const redactRune = '•'

// Mask returns the lead unchanged when the caller is entitled to it,
// otherwise a copy with the email and phone fields redacted.
func Mask(lead model.Lead, entitled bool) model.Lead {
    if entitled {
        return lead
    }
    out := lead
    if lead.Email != nil {
        masked := MaskEmail(*lead.Email)
        out.Email = &masked
    }
    if lead.Phone != nil {
        masked := MaskPhone(*lead.Phone)
        out.Phone = &masked
    }
    return out
}

// MaskEmail keeps the first two characters of the local part (one when the
// local part has two or fewer characters) and the full domain, replacing
// the remainder with at least three redaction markers.  Inputs without a
// domain are fully redacted.
func MaskEmail(email string) string {
    at := strings.IndexByte(email, '@')
    if at < 0 || at == len(email)-1 {
        return "•••@•••.•••"
    }
    local, domain := email[:at], email[at+1:]
    visible := local
    if len(local) > 2 {
        visible = local[:2]
    } else if len(local) > 1 {
        visible = local[:1]
    } else if local == "" {
        visible = string(redactRune)
    }
    hidden := len(local) - 2
    if hidden < 3 {
        hidden = 3
    }
    return visible + strings.Repeat(string(redactRune), hidden) + "@" + domain
}

// MaskPhone replaces every digit except the last four with the redaction
// marker, leaving separators and formatting untouched.
func MaskPhone(phone string) string {
    digits := 0
    for _, r := range phone {
        if r >= '0' && r <= '9' {
            digits++
        }
    }
    keepFrom := digits - 4
    var b strings.Builder
    b.Grow(len(phone))
    seen := 0
    for _, r := range phone {
        if r >= '0' && r <= '9' {
            if seen < keepFrom {
                b.WriteRune(redactRune)
            } else {
                b.WriteRune(r)
            }
            seen++
            continue
        }
        b.WriteRune(r)
    }
    return b.String()
}
