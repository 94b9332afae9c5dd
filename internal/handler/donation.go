package handler

import (
    "context"
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/relief-coordination/internal/model"
    "github.com/iliyamo/relief-coordination/internal/service"
)

// DonationFlow is the donation lifecycle behind /api/donations.
type DonationFlow interface {
    Create(ctx context.Context, in model.DonationInput) (model.Donation, error)
    Get(ctx context.Context, id uint64, actor model.AdminIdentity) (model.Donation, error)
    List(ctx context.Context, actor model.AdminIdentity, status model.DonationStatus, limit, offset int) (service.DonationPage, error)
    Approve(ctx context.Context, id uint64, actor model.AdminIdentity) (model.Donation, error)
    Reject(ctx context.Context, id uint64, actor model.AdminIdentity, reason string) (model.Donation, error)
    Distribute(ctx context.Context, id uint64, actor model.AdminIdentity) (model.Donation, error)
}

// DonationHandler serves public intake and the admin review endpoints.
type DonationHandler struct {
    Donations DonationFlow
}

func NewDonationHandler(f DonationFlow) *DonationHandler {
    return &DonationHandler{Donations: f}
}

// Create handles the public POST /api/donations.
func (h *DonationHandler) Create(c echo.Context) error {
    var in model.DonationInput
    if err := c.Bind(&in); err != nil {
        return badRequest("invalid body")
    }
    d, err := h.Donations.Create(c.Request().Context(), in)
    if err != nil {
        return err
    }
    return c.JSON(http.StatusCreated, d)
}

// Get handles GET /api/donations/:id.
func (h *DonationHandler) Get(c echo.Context) error {
    actor, err := currentAdmin(c)
    if err != nil {
        return err
    }
    id, err := pathID(c)
    if err != nil {
        return err
    }
    d, err := h.Donations.Get(c.Request().Context(), id, actor)
    if err != nil {
        return err
    }
    return c.JSON(http.StatusOK, d)
}

// List handles GET /api/donations?status=&limit=&offset=. The response
// echoes the limit and offset the service applied.
func (h *DonationHandler) List(c echo.Context) error {
    actor, err := currentAdmin(c)
    if err != nil {
        return err
    }
    var status model.DonationStatus
    if s := strings.TrimSpace(c.QueryParam("status")); s != "" {
        st, err := model.ParseDonationStatus(s)
        if err != nil {
            return err
        }
        status = st
    }
    limit, err := queryInt(c, "limit", 0)
    if err != nil {
        return err
    }
    offset, err := queryInt(c, "offset", 0)
    if err != nil {
        return err
    }
    page, err := h.Donations.List(c.Request().Context(), actor, status, limit, offset)
    if err != nil {
        return err
    }
    return c.JSON(http.StatusOK, page)
}

// Approve handles POST /api/donations/:id/approve.
func (h *DonationHandler) Approve(c echo.Context) error {
    return h.transition(c, func(ctx context.Context, id uint64, actor model.AdminIdentity) (model.Donation, error) {
        return h.Donations.Approve(ctx, id, actor)
    })
}

// Reject handles POST /api/donations/:id/reject {reason}.
func (h *DonationHandler) Reject(c echo.Context) error {
    var body struct {
        Reason string `json:"reason"`
    }
    if err := c.Bind(&body); err != nil {
        return badRequest("invalid body")
    }
    return h.transition(c, func(ctx context.Context, id uint64, actor model.AdminIdentity) (model.Donation, error) {
        return h.Donations.Reject(ctx, id, actor, body.Reason)
    })
}

// Distribute handles POST /api/donations/:id/distribute.
func (h *DonationHandler) Distribute(c echo.Context) error {
    return h.transition(c, func(ctx context.Context, id uint64, actor model.AdminIdentity) (model.Donation, error) {
        return h.Donations.Distribute(ctx, id, actor)
    })
}

func (h *DonationHandler) transition(c echo.Context, op func(context.Context, uint64, model.AdminIdentity) (model.Donation, error)) error {
    actor, err := currentAdmin(c)
    if err != nil {
        return err
    }
    id, err := pathID(c)
    if err != nil {
        return err
    }
    d, err := op(c.Request().Context(), id, actor)
    if err != nil {
        return err
    }
    return c.JSON(http.StatusOK, d)
}

func queryInt(c echo.Context, name string, def int) (int, error) {
    s := c.QueryParam(name)
    if s == "" {
        return def, nil
    }
    n, err := strconv.Atoi(s)
    if err != nil || n < 0 {
        return 0, badRequest("invalid " + name)
    }
    return n, nil
}
