package handler

import (
    "net/http"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/mock"

    "github.com/iliyamo/relief-coordination/internal/model"
    "github.com/iliyamo/relief-coordination/internal/service"
)

func newDonationServer(m *mockDonations) *echo.Echo {
    h := NewDonationHandler(m)
    e := newEcho()
    e.POST("/api/donations", h.Create)
    e.GET("/api/donations", h.List, asAdmin(reviewer))
    e.GET("/api/donations/:id", h.Get, asAdmin(reviewer))
    e.POST("/api/donations/:id/approve", h.Approve, asAdmin(reviewer))
    e.POST("/api/donations/:id/reject", h.Reject, asAdmin(reviewer))
    e.POST("/api/donations/:id/distribute", h.Distribute, asAdmin(reviewer))
    return e
}

func TestCreateDonation(t *testing.T) {
    m := new(mockDonations)
    m.On("Create", mock.MatchedBy(func(in model.DonationInput) bool {
        return in.Type == "CASH" && in.Amount == 50000 && in.DonorEmail == "ana@example.org"
    })).Return(model.Donation{ID: 1, ReceiptID: "01J0000000000000000000000", Type: model.DonationCash, Amount: 50000, Status: model.DonationPending}, nil)

    res := do(t, newDonationServer(m), http.MethodPost, "/api/donations",
        `{"type":"CASH","donor_name":"Ana","donor_email":"ana@example.org","amount":50000}`)
    assert.Equal(t, http.StatusCreated, res.Code)
    assert.Equal(t, "PENDING", res.Body["status"])
    m.AssertExpectations(t)
}

func TestCreateDonationReportsSpecificFailure(t *testing.T) {
    m := new(mockDonations)
    m.On("Create", mock.Anything).Return(model.Donation{}, model.ErrUnsupportedDonationType).Once()
    m.On("Create", mock.Anything).Return(model.Donation{}, model.Invalid("quantity", "must be greater than zero")).Once()
    srv := newDonationServer(m)

    res := do(t, srv, http.MethodPost, "/api/donations", `{"type":"VOUCHER"}`)
    assert.Equal(t, http.StatusBadRequest, res.Code)
    assert.Equal(t, "UnsupportedDonationType", res.Body["error"])

    res = do(t, srv, http.MethodPost, "/api/donations", `{"type":"OTHER_SUPPLIES"}`)
    assert.Equal(t, http.StatusBadRequest, res.Code)
    assert.Equal(t, "ValidationFailed", res.Body["error"])
    assert.Contains(t, res.Body["message"], "quantity")
}

func TestListDonations(t *testing.T) {
    m := new(mockDonations)
    m.On("List", reviewer.ID, model.DonationApproved, 10, 20).
        Return(service.DonationPage{Items: []model.Donation{{ID: 4}}, Limit: 10, Offset: 20}, nil)
    m.On("List", reviewer.ID, model.DonationStatus(""), 0, 0).
        Return(service.DonationPage{Items: []model.Donation{}, Limit: 20}, nil)
    srv := newDonationServer(m)

    res := do(t, srv, http.MethodGet, "/api/donations?status=approved&limit=10&offset=20", "")
    assert.Equal(t, http.StatusOK, res.Code)
    assert.Len(t, res.Body["items"], 1)

    res = do(t, srv, http.MethodGet, "/api/donations?limit=0", "")
    assert.Equal(t, http.StatusOK, res.Code)
    assert.EqualValues(t, 20, res.Body["limit"], "the applied page size is reported")

    res = do(t, srv, http.MethodGet, "/api/donations?status=lost", "")
    assert.Equal(t, http.StatusBadRequest, res.Code)

    res = do(t, srv, http.MethodGet, "/api/donations?limit=-1", "")
    assert.Equal(t, http.StatusBadRequest, res.Code)
    m.AssertNumberOfCalls(t, "List", 2)
}

func TestDonationReadsOutsideScopeAreForbidden(t *testing.T) {
    m := new(mockDonations)
    m.On("Get", uint64(12), reviewer.ID).Return(model.Donation{}, model.ErrForbidden)
    m.On("List", reviewer.ID, model.DonationStatus(""), 0, 0).
        Return(service.DonationPage{}, model.ErrForbidden)
    srv := newDonationServer(m)

    res := do(t, srv, http.MethodGet, "/api/donations/12", "")
    assert.Equal(t, http.StatusForbidden, res.Code)
    assert.Equal(t, "Forbidden", res.Body["error"])
    assert.NotContains(t, res.Raw, "donor_email")

    res = do(t, srv, http.MethodGet, "/api/donations", "")
    assert.Equal(t, http.StatusForbidden, res.Code)
    m.AssertExpectations(t)
}

func TestDonationTransitionsUseCurrentAdmin(t *testing.T) {
    m := new(mockDonations)
    m.On("Approve", uint64(8), reviewer.ID).Return(model.Donation{ID: 8, Status: model.DonationApproved}, nil)
    m.On("Reject", uint64(9), reviewer.ID, "duplicate").Return(model.Donation{ID: 9, Status: model.DonationRejected}, nil)
    m.On("Distribute", uint64(8), reviewer.ID).Return(model.Donation{}, model.ErrInvalidTransition)
    srv := newDonationServer(m)

    res := do(t, srv, http.MethodPost, "/api/donations/8/approve", "")
    assert.Equal(t, http.StatusOK, res.Code)
    assert.Equal(t, "APPROVED", res.Body["status"])

    res = do(t, srv, http.MethodPost, "/api/donations/9/reject", `{"reason":"duplicate"}`)
    assert.Equal(t, http.StatusOK, res.Code)

    res = do(t, srv, http.MethodPost, "/api/donations/8/distribute", "")
    assert.Equal(t, http.StatusConflict, res.Code)
    assert.Equal(t, "InvalidTransition", res.Body["error"])

    res = do(t, srv, http.MethodPost, "/api/donations/abc/approve", "")
    assert.Equal(t, http.StatusBadRequest, res.Code)
    m.AssertExpectations(t)
}

func TestGetDonationNotFound(t *testing.T) {
    m := new(mockDonations)
    m.On("Get", uint64(77), reviewer.ID).Return(model.Donation{}, model.ErrNotFound)

    res := do(t, newDonationServer(m), http.MethodGet, "/api/donations/77", "")
    assert.Equal(t, http.StatusNotFound, res.Code)
}
