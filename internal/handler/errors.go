package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/relief-coordination/internal/model"
)

// errorKind is the stable code written under "error" in every failure body.
type errorKind struct {
    target  error
    status  int
    kind    string
    message string // fixed text; empty means err.Error() is safe to show
}

// errorKinds is ordered: wrapped sentinels (ErrOtpConsumed, ErrTokenReused)
// must match their parent first so authentication failures stay ambiguous.
var errorKinds = []errorKind{
    {model.ErrInvalidCredentials, http.StatusUnauthorized, "InvalidCredentials", "invalid credentials"},
    {model.ErrInvalidOtp, http.StatusUnauthorized, "InvalidOtp", "invalid or expired code"},
    {model.ErrOtpExpired, http.StatusUnauthorized, "OtpExpired", "code expired, please log in again"},
    {model.ErrSessionExpired, http.StatusUnauthorized, "SessionExpired", "session expired, please log in again"},
    {model.ErrTokenNotFound, http.StatusUnauthorized, "SessionExpired", "session expired, please log in again"},
    {model.ErrSignatureInvalid, http.StatusUnauthorized, "SignatureInvalid", "invalid token"},
    {model.ErrTokenExpired, http.StatusUnauthorized, "Expired", "token expired"},
    {model.ErrMalformedToken, http.StatusUnauthorized, "MalformedToken", "invalid token"},
    {model.ErrInvalidClaims, http.StatusUnauthorized, "InvalidClaims", "invalid token"},
    {model.ErrForbidden, http.StatusForbidden, "Forbidden", "not allowed"},
    {model.ErrInvitationNotFound, http.StatusNotFound, "InvitationNotFound", ""},
    {model.ErrInvitationExpired, http.StatusGone, "InvitationExpired", ""},
    {model.ErrInvitationAlreadyUsed, http.StatusConflict, "InvitationAlreadyUsed", ""},
    {model.ErrInvalidTransition, http.StatusConflict, "InvalidTransition", ""},
    {model.ErrEmailExists, http.StatusConflict, "EmailExists", ""},
    {model.ErrUsernameExists, http.StatusConflict, "UsernameExists", ""},
    {model.ErrInvalidScope, http.StatusBadRequest, "InvalidScope", ""},
    {model.ErrUnsupportedDonationType, http.StatusBadRequest, "UnsupportedDonationType", ""},
    {model.ErrValidationFailed, http.StatusBadRequest, "ValidationFailed", ""},
    {model.ErrNotFound, http.StatusNotFound, "NotFound", ""},
}

// classify maps err to a status, a kind and a client-safe message.
func classify(err error) (int, string, string) {
    var he *echo.HTTPError
    if errors.As(err, &he) {
        msg := http.StatusText(he.Code)
        if s, ok := he.Message.(string); ok {
            msg = s
        }
        return he.Code, kindForStatus(he.Code), msg
    }
    for _, k := range errorKinds {
        if errors.Is(err, k.target) {
            msg := k.message
            if msg == "" {
                msg = err.Error()
            }
            return k.status, k.kind, msg
        }
    }
    return http.StatusInternalServerError, "Internal", "internal error"
}

func kindForStatus(code int) string {
    switch code {
    case http.StatusBadRequest:
        return "BadRequest"
    case http.StatusUnauthorized:
        return "Unauthorized"
    case http.StatusForbidden:
        return "Forbidden"
    case http.StatusNotFound:
        return "NotFound"
    case http.StatusMethodNotAllowed:
        return "MethodNotAllowed"
    case http.StatusTooManyRequests:
        return "TooManyRequests"
    case http.StatusRequestEntityTooLarge:
        return "PayloadTooLarge"
    }
    if code >= 500 {
        return "Internal"
    }
    return http.StatusText(code)
}

// ErrorHandler is installed as echo's HTTPErrorHandler.  Handlers and
// middleware return model errors and this writes
// {"error": <kind>, "message": <text>}.  Unknown errors are logged and
// reported as 500 without detail.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
    return func(err error, c echo.Context) {
        if c.Response().Committed {
            return
        }
        status, kind, msg := classify(err)
        if status >= http.StatusInternalServerError {
            log.Error("request failed",
                zap.String("method", c.Request().Method),
                zap.String("path", c.Path()),
                zap.Error(err))
        }
        var werr error
        if c.Request().Method == http.MethodHead {
            werr = c.NoContent(status)
        } else {
            werr = c.JSON(status, echo.Map{"error": kind, "message": msg})
        }
        if werr != nil {
            log.Warn("write error response", zap.Error(werr))
        }
    }
}

// badRequest reports an unparsable body or parameter.
func badRequest(msg string) error {
    return echo.NewHTTPError(http.StatusBadRequest, msg)
}
