package handler

import (
    "context"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/relief-coordination/internal/model"
)

// AdminDirectory lists and deactivates accounts.
type AdminDirectory interface {
    List(ctx context.Context) ([]model.AdminIdentity, error)
    Deactivate(ctx context.Context, id uint64, actor model.AdminIdentity) error
}

// AdminHandler serves /api/admins (super admins only).
type AdminHandler struct {
    Admins AdminDirectory
}

func NewAdminHandler(d AdminDirectory) *AdminHandler {
    return &AdminHandler{Admins: d}
}

// List handles GET /api/admins.
func (h *AdminHandler) List(c echo.Context) error {
    as, err := h.Admins.List(c.Request().Context())
    if err != nil {
        return err
    }
    out := make([]adminView, 0, len(as))
    for _, a := range as {
        out = append(out, viewAdmin(a))
    }
    return c.JSON(http.StatusOK, out)
}

// Deactivate handles POST /api/admins/:id/deactivate.  All refresh tokens
// of the account are revoked with it.
func (h *AdminHandler) Deactivate(c echo.Context) error {
    actor, err := currentAdmin(c)
    if err != nil {
        return err
    }
    id, err := pathID(c)
    if err != nil {
        return err
    }
    if err := h.Admins.Deactivate(c.Request().Context(), id, actor); err != nil {
        return err
    }
    return c.NoContent(http.StatusNoContent)
}
