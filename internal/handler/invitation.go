package handler

import (
    "context"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/relief-coordination/internal/model"
    "github.com/iliyamo/relief-coordination/internal/service"
)

// InvitationFlow issues, redeems and revokes invitations.
type InvitationFlow interface {
    Create(ctx context.Context, in service.CreateInvitation) (model.Invitation, string, error)
    Accept(ctx context.Context, rawToken string, reg service.Registration) (model.AdminIdentity, error)
    Revoke(ctx context.Context, id, by uint64) (model.Invitation, error)
    List(ctx context.Context, status model.InvitationStatus) ([]model.Invitation, error)
}

// InvitationHandler serves /api/invitations.
type InvitationHandler struct {
    Invitations InvitationFlow
}

func NewInvitationHandler(f InvitationFlow) *InvitationHandler {
    return &InvitationHandler{Invitations: f}
}

type createInvitationReq struct {
    Email      string  `json:"email"`
    Role       string  `json:"role"`
    ProvinceID *uint64 `json:"province_id"`
    CityID     *uint64 `json:"city_id"`
}

type acceptInvitationReq struct {
    Token    string `json:"token"`
    Name     string `json:"name"`
    Username string `json:"username"`
    Password string `json:"password"`
}

// Create handles POST /api/invitations.  The raw token is only mailed to
// the invitee; the response carries the stored invitation.
func (h *InvitationHandler) Create(c echo.Context) error {
    actor, err := currentAdmin(c)
    if err != nil {
        return err
    }
    var req createInvitationReq
    if err := c.Bind(&req); err != nil {
        return badRequest("invalid body")
    }
    role, err := model.ParseRole(req.Role)
    if err != nil {
        return err
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    inv, _, err := h.Invitations.Create(ctx, service.CreateInvitation{
        Email:      req.Email,
        Role:       role,
        ProvinceID: req.ProvinceID,
        CityID:     req.CityID,
        CreatedBy:  actor.ID,
    })
    if err != nil {
        return err
    }
    return c.JSON(http.StatusCreated, inv)
}

// List handles GET /api/invitations?status=.
func (h *InvitationHandler) List(c echo.Context) error {
    var status model.InvitationStatus
    if s := strings.TrimSpace(c.QueryParam("status")); s != "" {
        st, err := model.ParseInvitationStatus(strings.ToUpper(s))
        if err != nil {
            return err
        }
        status = st
    }
    invs, err := h.Invitations.List(c.Request().Context(), status)
    if err != nil {
        return err
    }
    return c.JSON(http.StatusOK, invs)
}

// Revoke handles DELETE /api/invitations/:id.
func (h *InvitationHandler) Revoke(c echo.Context) error {
    actor, err := currentAdmin(c)
    if err != nil {
        return err
    }
    id, err := pathID(c)
    if err != nil {
        return err
    }
    inv, err := h.Invitations.Revoke(c.Request().Context(), id, actor.ID)
    if err != nil {
        return err
    }
    return c.JSON(http.StatusOK, inv)
}

// Accept handles the public POST /api/invitations/accept and returns the
// provisioned account.  The invitee logs in normally afterwards.
func (h *InvitationHandler) Accept(c echo.Context) error {
    var req acceptInvitationReq
    if err := c.Bind(&req); err != nil {
        return badRequest("invalid body")
    }
    if strings.TrimSpace(req.Token) == "" {
        return model.ErrInvitationNotFound
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    admin, err := h.Invitations.Accept(ctx, strings.TrimSpace(req.Token), service.Registration{
        Name:     req.Name,
        Username: req.Username,
        Password: req.Password,
    })
    if err != nil {
        return err
    }
    return c.JSON(http.StatusCreated, viewAdmin(admin))
}
