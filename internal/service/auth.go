package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/relief-coordination/internal/logger"
	"github.com/iliyamo/relief-coordination/internal/metrics"
	"github.com/iliyamo/relief-coordination/internal/model"
	"github.com/iliyamo/relief-coordination/internal/utils"
)

// AuthState is the client's position in the login flow. The server keeps no
// session object; the state is implied by which artefact the client holds.
type AuthState int

const (
	AwaitingCredentials AuthState = iota
	AwaitingOtp
	Authenticated
)

func (s AuthState) String() string {
	switch s {
	case AwaitingCredentials:
		return "awaiting_credentials"
	case AwaitingOtp:
		return "awaiting_otp"
	case Authenticated:
		return "authenticated"
	}
	return "unknown"
}

// CredentialStore looks up and updates admin identities.
type CredentialStore interface {
	GetByIdentifier(ctx context.Context, identifier string) (model.AdminIdentity, error)
	GetByEmail(ctx context.Context, email string) (model.AdminIdentity, error)
	TouchLastLogin(ctx context.Context, id uint64, at time.Time) error
}

// LoginResult is returned once the password step passed.
type LoginResult struct {
	State        AuthState
	Email        string
	OtpExpiresAt time.Time
}

// Session is returned once the OTP step passed.
type Session struct {
	State  AuthState
	Admin  model.AdminIdentity
	Tokens TokenPair
}

// Authenticator drives password, then OTP, then token issuance.
type Authenticator struct {
	admins CredentialStore
	otp    *OTPEngine
	tokens *TokenService
	notify Notifier
	log    *zap.Logger
	now    func() time.Time
}

// NewAuthenticator wires the login flow.
func NewAuthenticator(admins CredentialStore, otp *OTPEngine, tokens *TokenService, notify Notifier, log *zap.Logger) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{
		admins: admins,
		otp:    otp,
		tokens: tokens,
		notify: notify,
		log:    logger.WithComponent(log, "auth"),
		now:    time.Now,
	}
}

// VerifyCredentials checks identifier (email or username) and password and,
// on success, sends a fresh OTP to the admin's email. Unknown identifiers,
// wrong passwords and deactivated accounts all return
// model.ErrInvalidCredentials after the same bcrypt work.
func (a *Authenticator) VerifyCredentials(ctx context.Context, identifier, password string) (LoginResult, error) {
	admin, err := a.admins.GetByIdentifier(ctx, identifier)
	if errors.Is(err, model.ErrNotFound) {
		utils.BurnPasswordCheck(password)
		metrics.AuthEvent("login", "invalid")
		return LoginResult{State: AwaitingCredentials}, model.ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{State: AwaitingCredentials}, err
	}
	if !utils.VerifyPassword(admin.PasswordHash, password) || !admin.IsActive {
		metrics.AuthEvent("login", "invalid")
		a.log.Info("login rejected", zap.Uint64("admin_id", admin.ID), zap.Bool("active", admin.IsActive))
		return LoginResult{State: AwaitingCredentials}, model.ErrInvalidCredentials
	}

	ch, err := a.otp.Issue(ctx, admin.Email)
	if err != nil {
		return LoginResult{State: AwaitingCredentials}, err
	}
	a.notify.SendOTP(ctx, ch.Email, ch.Code, ch.ExpiresAt)
	metrics.AuthEvent("login", "ok")
	return LoginResult{State: AwaitingOtp, Email: ch.Email, OtpExpiresAt: ch.ExpiresAt}, nil
}

// VerifyOtp completes the login. Wrong or reused codes return
// model.ErrInvalidOtp and the client may retry; an expired code returns
// model.ErrOtpExpired and the client must start over.
func (a *Authenticator) VerifyOtp(ctx context.Context, email, code string) (Session, error) {
	if err := a.otp.Verify(ctx, email, code); err != nil {
		switch {
		case errors.Is(err, model.ErrOtpExpired):
			metrics.AuthEvent("otp", "expired")
			return Session{State: AwaitingCredentials}, model.ErrOtpExpired
		case errors.Is(err, model.ErrInvalidOtp):
			metrics.AuthEvent("otp", "invalid")
			return Session{State: AwaitingOtp}, model.ErrInvalidOtp
		}
		return Session{State: AwaitingOtp}, err
	}

	admin, err := a.admins.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) || (err == nil && !admin.IsActive) {
		// deactivated or removed between the two steps
		metrics.AuthEvent("otp", "invalid")
		return Session{State: AwaitingCredentials}, model.ErrInvalidOtp
	}
	if err != nil {
		return Session{State: AwaitingOtp}, err
	}

	now := a.now().UTC()
	if err := a.admins.TouchLastLogin(ctx, admin.ID, now); err != nil {
		a.log.Warn("last login not recorded", zap.Uint64("admin_id", admin.ID), zap.Error(err))
	} else {
		admin.LastLoginAt = &now
	}
	pair, err := a.tokens.IssuePair(ctx, admin)
	if err != nil {
		return Session{State: AwaitingOtp}, err
	}
	metrics.AuthEvent("otp", "ok")
	a.log.Info("admin authenticated", zap.Uint64("admin_id", admin.ID), zap.String("role", admin.Role.String()))
	return Session{State: Authenticated, Admin: admin, Tokens: pair}, nil
}

// Refresh rotates refreshToken. Every token failure becomes
// model.ErrSessionExpired so the client restarts the login.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	pair, err := a.tokens.Rotate(ctx, refreshToken)
	switch {
	case err == nil:
		metrics.AuthEvent("refresh", "ok")
		return pair, nil
	case errors.Is(err, model.ErrTokenReused):
		metrics.AuthEvent("refresh", "reused")
		a.log.Warn("refresh token replayed, family revoked")
		return TokenPair{}, model.ErrSessionExpired
	case errors.Is(err, model.ErrTokenNotFound):
		metrics.AuthEvent("refresh", "invalid")
		return TokenPair{}, model.ErrSessionExpired
	}
	return TokenPair{}, err
}

// Logout revokes refreshToken. Unknown tokens are ignored.
func (a *Authenticator) Logout(ctx context.Context, refreshToken string) error {
	if err := a.tokens.Revoke(ctx, refreshToken); err != nil {
		return err
	}
	metrics.AuthEvent("logout", "ok")
	return nil
}
