// This file serves the read-only reference data (provinces and cities)
// used by the donation form and by invitation scoping.  The routes are
// public and their responses are cached in Redis by the router.

package handler

import (
    "context"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/relief-coordination/internal/model"
)

// ReferenceReader lists provinces and cities.
type ReferenceReader interface {
    ListProvinces(ctx context.Context) ([]model.Province, error)
    ListCities(ctx context.Context, provinceID uint64) ([]model.City, error)
    ProvinceExists(ctx context.Context, id uint64) (bool, error)
}

// PublicHandler exposes reference data without authentication.
type PublicHandler struct {
    Reference ReferenceReader
}

func NewPublicHandler(r ReferenceReader) *PublicHandler {
    if r == nil {
        panic("nil reference reader passed to NewPublicHandler")
    }
    return &PublicHandler{Reference: r}
}

// GetProvinces handles GET /api/provinces.
func (h *PublicHandler) GetProvinces(c echo.Context) error {
    ps, err := h.Reference.ListProvinces(c.Request().Context())
    if err != nil {
        return err
    }
    return c.JSON(http.StatusOK, ps)
}

// GetCities handles GET /api/provinces/:id/cities.
func (h *PublicHandler) GetCities(c echo.Context) error {
    id, err := pathID(c)
    if err != nil {
        return err
    }
    ctx := c.Request().Context()
    ok, err := h.Reference.ProvinceExists(ctx, id)
    if err != nil {
        return err
    }
    if !ok {
        return model.ErrNotFound
    }
    cities, err := h.Reference.ListCities(ctx, id)
    if err != nil {
        return err
    }
    return c.JSON(http.StatusOK, cities)
}

// pathID parses the :id route parameter.
func pathID(c echo.Context) (uint64, error) {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return 0, badRequest("invalid id")
    }
    return id, nil
}
