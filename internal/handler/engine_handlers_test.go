package handler

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/lead-vault/internal/model"
    "github.com/iliyamo/lead-vault/internal/repository/memory"
    "github.com/iliyamo/lead-vault/internal/service"
)

func testLeadID(n int) string {
    return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
}

type env struct {
    engine *service.Engine
    store  *memory.Store
    admin  model.User
    user   model.User
}

func newEnv(t *testing.T) *env {
    t.Helper()
    store := memory.NewStore()
    admin := store.AddUser(model.User{Email: "admin@vault.test", Role: model.RoleAdmin, IsActive: true})
    user := store.AddUser(model.User{Email: "user@vault.test", Role: model.RoleUser, IsActive: true})
    for i := 1; i <= 3; i++ {
        store.AddLead(model.Lead{ID: testLeadID(i), Company: fmt.Sprintf("Company %d", i)})
    }
    return &env{engine: service.NewEngine(store), store: store, admin: admin, user: user}
}

// call builds an echo context carrying the given identity, runs the handler
// and returns the recorder.  userID 0 simulates a request where the JWT
// middleware never ran.
func call(t *testing.T, userID uint64, body string, h echo.HandlerFunc) *httptest.ResponseRecorder {
    t.Helper()
    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)
    if userID != 0 {
        c.Set("user_id", float64(userID)) // JWT claims decode numbers as float64
    }
    require.NoError(t, h(c))
    return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
    t.Helper()
    var m map[string]any
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
    return m
}

func (v *env) grant(t *testing.T, userID uint64, amount int64) {
    t.Helper()
    _, err := v.engine.Grant(context.Background(), v.admin.ID, userID, amount, "")
    require.NoError(t, err)
}

func TestUnlockHandlerSuccess(t *testing.T) {
    v := newEnv(t)
    v.grant(t, v.user.ID, 5)
    h := NewUnlockHandler(v.engine)

    body := fmt.Sprintf(`{"lead_ids":[%q,%q]}`, testLeadID(1), testLeadID(2))
    rec := call(t, v.user.ID, body, h.Unlock)
    assert.Equal(t, http.StatusOK, rec.Code)

    got := decode(t, rec)
    assert.EqualValues(t, 2, got["newly_unlocked"])
    assert.EqualValues(t, 2, got["token_cost"])
    assert.EqualValues(t, 3, got["balance_after"])
    assert.NotContains(t, got, "UnlockedLeadIDs")
}

func TestUnlockHandlerMissingIdentity(t *testing.T) {
    v := newEnv(t)
    h := NewUnlockHandler(v.engine)
    rec := call(t, 0, fmt.Sprintf(`{"lead_ids":[%q]}`, testLeadID(1)), h.Unlock)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnlockHandlerEmptyBody(t *testing.T) {
    v := newEnv(t)
    h := NewUnlockHandler(v.engine)

    rec := call(t, v.user.ID, `{"lead_ids":[]}`, h.Unlock)
    assert.Equal(t, http.StatusBadRequest, rec.Code)

    rec = call(t, v.user.ID, `{"lead_ids":["junk"]}`, h.Unlock)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnlockHandlerInsufficientCredits(t *testing.T) {
    v := newEnv(t)
    v.grant(t, v.user.ID, 1)
    h := NewUnlockHandler(v.engine)

    body := fmt.Sprintf(`{"lead_ids":[%q,%q]}`, testLeadID(1), testLeadID(2))
    rec := call(t, v.user.ID, body, h.Unlock)
    assert.Equal(t, http.StatusPaymentRequired, rec.Code)
    got := decode(t, rec)
    assert.Contains(t, got["error"], "insufficient credits")
}

func TestGrantHandlerSuccess(t *testing.T) {
    v := newEnv(t)
    h := NewAdminHandler(v.engine)

    body := fmt.Sprintf(`{"user_id":%d,"delta":25}`, v.user.ID)
    rec := call(t, v.admin.ID, body, h.Grant)
    assert.Equal(t, http.StatusOK, rec.Code)
    got := decode(t, rec)
    assert.Equal(t, true, got["success"])
    assert.EqualValues(t, 25, got["balance_after"])
}

func TestGrantHandlerForbiddenForNonAdmin(t *testing.T) {
    v := newEnv(t)
    h := NewAdminHandler(v.engine)

    body := fmt.Sprintf(`{"user_id":%d,"delta":25}`, v.user.ID)
    rec := call(t, v.user.ID, body, h.Grant)
    assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGrantHandlerValidation(t *testing.T) {
    v := newEnv(t)
    h := NewAdminHandler(v.engine)

    rec := call(t, v.admin.ID, `{"delta":25}`, h.Grant)
    assert.Equal(t, http.StatusBadRequest, rec.Code, "missing user_id")

    rec = call(t, v.admin.ID, fmt.Sprintf(`{"user_id":%d,"delta":0}`, v.user.ID), h.Grant)
    assert.Equal(t, http.StatusBadRequest, rec.Code, "zero delta")

    rec = call(t, v.admin.ID, `{"user_id":999,"delta":5}`, h.Grant)
    assert.Equal(t, http.StatusNotFound, rec.Code, "unknown target")
}

func TestMeHandler(t *testing.T) {
    v := newEnv(t)
    v.grant(t, v.user.ID, 3)
    _, err := v.engine.Unlock(context.Background(), v.user.ID, []string{testLeadID(1)})
    require.NoError(t, err)

    h := NewProfileHandler(v.engine, nil)
    rec := call(t, v.user.ID, "", h.Me)
    assert.Equal(t, http.StatusOK, rec.Code)

    got := decode(t, rec)
    assert.EqualValues(t, 2, got["balance"])
    assert.EqualValues(t, 1, got["entitlement_count"])
    profile, ok := got["profile"].(map[string]any)
    require.True(t, ok)
    assert.Equal(t, model.RoleUser, profile["role"])

    rec = call(t, 999, "", h.Me)
    assert.Equal(t, http.StatusNotFound, rec.Code, "identity without profile")
}

func TestGetUserIDAcceptsClaimEncodings(t *testing.T) {
    e := echo.New()
    for _, v := range []any{uint64(7), int(7), int64(7), float64(7), "7"} {
        c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
        c.Set("user_id", v)
        got, err := getUserID(c)
        require.NoError(t, err)
        assert.Equal(t, uint64(7), got)
    }

    c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
    c.Set("user_id", "not-a-number")
    _, err := getUserID(c)
    assert.Error(t, err)
}
