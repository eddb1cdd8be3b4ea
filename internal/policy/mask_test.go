package policy

import (
    "testing"

    "github.com/stretchr/testify/assert"

    "github.com/iliyamo/lead-vault/internal/model"
)

func strPtr(s string) *string { return &s }

func TestMaskEmail(t *testing.T) {
    cases := []struct {
        name string
        in   string
        want string
    }{
        {"long local part", "jonathan@acme.com", "jo••••••@acme.com"},
        {"three char local", "joe@acme.com", "jo•••@acme.com"},
        {"two char local keeps one", "jo@acme.com", "j•••@acme.com"},
        {"one char local kept", "j@acme.com", "j•••@acme.com"},
        {"empty local", "@acme.com", "••••@acme.com"},
        {"no at sign", "not-an-email", "•••@•••.•••"},
        {"trailing at", "user@", "•••@•••.•••"},
        {"domain always visible", "ceo@board.example.org", "ce•••@board.example.org"},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            assert.Equal(t, tc.want, MaskEmail(tc.in))
        })
    }
}

func TestMaskEmailAlwaysHidesTail(t *testing.T) {
    // However short the local part, at least three markers must appear so
    // the original length cannot be inferred.
    for _, in := range []string{"a@x.io", "ab@x.io", "abc@x.io", "abcdefgh@x.io"} {
        out := MaskEmail(in)
        count := 0
        for _, r := range out {
            if r == redactRune {
                count++
            }
        }
        assert.GreaterOrEqual(t, count, 3, "masked %q -> %q", in, out)
    }
}

func TestMaskPhone(t *testing.T) {
    cases := []struct {
        name string
        in   string
        want string
    }{
        {"plain digits", "5551234567", "••••••4567"},
        {"formatted", "(555) 123-4567", "(•••) •••-4567"},
        {"with country code", "+1 555 123 4567", "+• ••• ••• 4567"},
        {"exactly four digits", "4567", "4567"},
        {"fewer than four digits", "123", "123"},
        {"empty", "", ""},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            assert.Equal(t, tc.want, MaskPhone(tc.in))
        })
    }
}

func TestMaskEntitledPassthrough(t *testing.T) {
    lead := model.Lead{
        ID:      "5a3c9d4e-0000-4000-8000-000000000001",
        Company: "Acme",
        Email:   strPtr("jane.doe@acme.com"),
        Phone:   strPtr("555-123-4567"),
    }
    out := Mask(lead, true)
    assert.Equal(t, "jane.doe@acme.com", *out.Email)
    assert.Equal(t, "555-123-4567", *out.Phone)
}

func TestMaskNotEntitled(t *testing.T) {
    lead := model.Lead{
        ID:      "5a3c9d4e-0000-4000-8000-000000000001",
        Company: "Acme",
        Email:   strPtr("jane.doe@acme.com"),
        Phone:   strPtr("555-123-4567"),
    }
    out := Mask(lead, false)
    assert.Equal(t, "ja••••••@acme.com", *out.Email)
    assert.Equal(t, "•••-•••-4567", *out.Phone)
    // Non-contact fields stay visible and the input is not mutated.
    assert.Equal(t, "Acme", out.Company)
    assert.Equal(t, "jane.doe@acme.com", *lead.Email)
}

func TestMaskNilContactFields(t *testing.T) {
    lead := model.Lead{ID: "5a3c9d4e-0000-4000-8000-000000000002", Company: "NoContact"}
    out := Mask(lead, false)
    assert.Nil(t, out.Email)
    assert.Nil(t, out.Phone)
}
