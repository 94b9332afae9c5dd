package handler

import (
    "context"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/relief-coordination/internal/middleware"
    "github.com/iliyamo/relief-coordination/internal/model"
    "github.com/iliyamo/relief-coordination/internal/service"
)

// AuthFlow is the login state machine the auth endpoints drive.
type AuthFlow interface {
    VerifyCredentials(ctx context.Context, identifier, password string) (service.LoginResult, error)
    VerifyOtp(ctx context.Context, email, code string) (service.Session, error)
    Refresh(ctx context.Context, refreshToken string) (service.TokenPair, error)
    Logout(ctx context.Context, refreshToken string) error
}

// AuthHandler serves /api/auth.
type AuthHandler struct {
    Auth AuthFlow
}

func NewAuthHandler(a AuthFlow) *AuthHandler {
    return &AuthHandler{Auth: a}
}

// ----- DTOs -----

type loginReq struct {
    Identifier string `json:"identifier"`
    Password   string `json:"password"`
}
type verifyOtpReq struct {
    Email string `json:"email"`
    Otp   string `json:"otp"`
}
type refreshReq struct {
    RefreshToken string `json:"refreshToken"`
}

// adminView is the public shape of an account; the password hash never
// leaves the service layer.
type adminView struct {
    ID          uint64     `json:"id"`
    Name        string     `json:"name"`
    Email       string     `json:"email"`
    Username    string     `json:"username"`
    Role        model.Role `json:"role"`
    ProvinceID  *uint64    `json:"province_id,omitempty"`
    CityID      *uint64    `json:"city_id,omitempty"`
    IsActive    bool       `json:"is_active"`
    CreatedAt   time.Time  `json:"created_at"`
    LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func viewAdmin(a model.AdminIdentity) adminView {
    return adminView{
        ID: a.ID, Name: a.Name, Email: a.Email, Username: a.Username, Role: a.Role,
        ProvinceID: a.ProvinceID, CityID: a.CityID, IsActive: a.IsActive,
        CreatedAt: a.CreatedAt, LastLoginAt: a.LastLoginAt,
    }
}

type tokenResp struct {
    Token            string    `json:"token"`
    TokenExpiresAt   time.Time `json:"tokenExpiresAt"`
    RefreshToken     string    `json:"refreshToken"`
    RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

func viewTokens(p service.TokenPair) tokenResp {
    return tokenResp{
        Token: p.Access.Token, TokenExpiresAt: p.Access.ExpiresAt,
        RefreshToken: p.Refresh.Raw, RefreshExpiresAt: p.Refresh.ExpiresAt,
    }
}

// Login checks the password and mails a one-time code.  Any failure is the
// same 401 InvalidCredentials.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return badRequest("invalid body")
    }
    if strings.TrimSpace(req.Identifier) == "" || req.Password == "" {
        return model.ErrInvalidCredentials
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    res, err := h.Auth.VerifyCredentials(ctx, req.Identifier, req.Password)
    if err != nil {
        return err
    }
    return c.JSON(http.StatusOK, echo.Map{
        "success":      true,
        "nextStep":     "otp",
        "message":      "a verification code was sent to your email",
        "email":        res.Email,
        "otpExpiresAt": res.OtpExpiresAt,
    })
}

// VerifyOtp completes the login and returns the token pair.
func (h *AuthHandler) VerifyOtp(c echo.Context) error {
    var req verifyOtpReq
    if err := c.Bind(&req); err != nil {
        return badRequest("invalid body")
    }
    if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Otp) == "" {
        return model.ErrInvalidOtp
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    sess, err := h.Auth.VerifyOtp(ctx, req.Email, strings.TrimSpace(req.Otp))
    if err != nil {
        return err
    }
    tokens := viewTokens(sess.Tokens)
    return c.JSON(http.StatusOK, echo.Map{
        "success":          true,
        "token":            tokens.Token,
        "tokenExpiresAt":   tokens.TokenExpiresAt,
        "refreshToken":     tokens.RefreshToken,
        "refreshExpiresAt": tokens.RefreshExpiresAt,
        "user":             viewAdmin(sess.Admin),
    })
}

// Refresh rotates the refresh token.  The old one stops working.
func (h *AuthHandler) Refresh(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return model.ErrSessionExpired
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    pair, err := h.Auth.Refresh(ctx, strings.TrimSpace(req.RefreshToken))
    if err != nil {
        return err
    }
    return c.JSON(http.StatusOK, viewTokens(pair))
}

// Logout revokes the given refresh token.  Unknown tokens are not an error.
func (h *AuthHandler) Logout(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return badRequest("refreshToken required")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Auth.Logout(ctx, strings.TrimSpace(req.RefreshToken)); err != nil {
        return err
    }
    return c.NoContent(http.StatusNoContent)
}

// Me returns the account behind the access token.
func (h *AuthHandler) Me(c echo.Context) error {
    a, err := currentAdmin(c)
    if err != nil {
        return err
    }
    return c.JSON(http.StatusOK, viewAdmin(a))
}

// currentAdmin is used by handlers mounted behind LoadAdmin.
func currentAdmin(c echo.Context) (model.AdminIdentity, error) {
    a, ok := middleware.CurrentAdmin(c)
    if !ok {
        return model.AdminIdentity{}, model.ErrSessionExpired
    }
    return a, nil
}
