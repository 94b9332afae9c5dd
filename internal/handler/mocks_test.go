package handler

import (
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/mock"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap"

    "github.com/iliyamo/relief-coordination/internal/model"
    "github.com/iliyamo/relief-coordination/internal/service"
)

// --- Mocks ---

type mockAuth struct{ mock.Mock }

func (m *mockAuth) VerifyCredentials(_ context.Context, identifier, password string) (service.LoginResult, error) {
    args := m.Called(identifier, password)
    return args.Get(0).(service.LoginResult), args.Error(1)
}

func (m *mockAuth) VerifyOtp(_ context.Context, email, code string) (service.Session, error) {
    args := m.Called(email, code)
    return args.Get(0).(service.Session), args.Error(1)
}

func (m *mockAuth) Refresh(_ context.Context, refreshToken string) (service.TokenPair, error) {
    args := m.Called(refreshToken)
    return args.Get(0).(service.TokenPair), args.Error(1)
}

func (m *mockAuth) Logout(_ context.Context, refreshToken string) error {
    return m.Called(refreshToken).Error(0)
}

type mockInvitations struct{ mock.Mock }

func (m *mockInvitations) Create(_ context.Context, in service.CreateInvitation) (model.Invitation, string, error) {
    args := m.Called(in)
    return args.Get(0).(model.Invitation), args.String(1), args.Error(2)
}

func (m *mockInvitations) Accept(_ context.Context, rawToken string, reg service.Registration) (model.AdminIdentity, error) {
    args := m.Called(rawToken, reg)
    return args.Get(0).(model.AdminIdentity), args.Error(1)
}

func (m *mockInvitations) Revoke(_ context.Context, id, by uint64) (model.Invitation, error) {
    args := m.Called(id, by)
    return args.Get(0).(model.Invitation), args.Error(1)
}

func (m *mockInvitations) List(_ context.Context, status model.InvitationStatus) ([]model.Invitation, error) {
    args := m.Called(status)
    return args.Get(0).([]model.Invitation), args.Error(1)
}

type mockDonations struct{ mock.Mock }

func (m *mockDonations) Create(_ context.Context, in model.DonationInput) (model.Donation, error) {
    args := m.Called(in)
    return args.Get(0).(model.Donation), args.Error(1)
}

func (m *mockDonations) Get(_ context.Context, id uint64, actor model.AdminIdentity) (model.Donation, error) {
    args := m.Called(id, actor.ID)
    return args.Get(0).(model.Donation), args.Error(1)
}

func (m *mockDonations) List(_ context.Context, actor model.AdminIdentity, status model.DonationStatus, limit, offset int) (service.DonationPage, error) {
    args := m.Called(actor.ID, status, limit, offset)
    return args.Get(0).(service.DonationPage), args.Error(1)
}

func (m *mockDonations) Approve(_ context.Context, id uint64, actor model.AdminIdentity) (model.Donation, error) {
    args := m.Called(id, actor.ID)
    return args.Get(0).(model.Donation), args.Error(1)
}

func (m *mockDonations) Reject(_ context.Context, id uint64, actor model.AdminIdentity, reason string) (model.Donation, error) {
    args := m.Called(id, actor.ID, reason)
    return args.Get(0).(model.Donation), args.Error(1)
}

func (m *mockDonations) Distribute(_ context.Context, id uint64, actor model.AdminIdentity) (model.Donation, error) {
    args := m.Called(id, actor.ID)
    return args.Get(0).(model.Donation), args.Error(1)
}

// --- Helpers ---

var reviewer = model.AdminIdentity{ID: 3, Email: "prov@relief.test", Role: model.RoleProvinceAdmin, IsActive: true}

// newEcho returns an echo instance with the production error handler.
func newEcho() *echo.Echo {
    e := echo.New()
    e.HTTPErrorHandler = ErrorHandler(zap.NewNop())
    return e
}

// asAdmin stands in for JWTAuth and LoadAdmin by storing a under the key
// LoadAdmin uses.
func asAdmin(a model.AdminIdentity) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            c.Set("admin", a)
            return next(c)
        }
    }
}

type response struct {
    Code int
    Body map[string]any
    Raw  string
}

func do(t *testing.T, e *echo.Echo, method, target, body string) response {
    t.Helper()
    var req *http.Request
    if body == "" {
        req = httptest.NewRequest(method, target, nil)
    } else {
        req = httptest.NewRequest(method, target, strings.NewReader(body))
        req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    res := response{Code: rec.Code, Raw: rec.Body.String()}
    if strings.HasPrefix(strings.TrimSpace(res.Raw), "{") {
        require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res.Body))
    }
    return res
}
