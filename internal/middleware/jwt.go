package middleware // middleware holds the echo middleware shared by the routers

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/relief-coordination/internal/service"
)

// TokenValidator verifies access tokens.
type TokenValidator interface {
    ValidateAccessToken(raw string) (*service.AccessClaims, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores its claims in the request context.  Handlers read them with
// Claims(c); the subject and role are also set under "user_id" and "role".
// Validation failures are returned as the model token errors so the central
// error handler can report Expired, SignatureInvalid or MalformedToken.
func JWTAuth(tokens TokenValidator) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
                return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
            }
            raw := strings.TrimSpace(auth[7:])

            claims, err := tokens.ValidateAccessToken(raw)
            if err != nil {
                return err
            }
            c.Set(ctxClaims, claims)
            c.Set(ctxUserID, claims.Subject)
            c.Set(ctxRole, claims.Role)
            return next(c)
        }
    }
}
