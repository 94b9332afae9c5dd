package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/relief-coordination/internal/model"
	"github.com/iliyamo/relief-coordination/internal/utils"
)

// MinSecretBytes is the shortest HMAC secret NewTokenService accepts.
const MinSecretBytes = 32

// RefreshStore is the server-side ledger of refresh tokens.
type RefreshStore interface {
	Store(ctx context.Context, t *model.RefreshToken) error
	Rotate(ctx context.Context, oldHash string, next *model.RefreshToken, now time.Time) error
	RevokeByHash(ctx context.Context, tokenHash, reason string, at time.Time) error
	RevokeAllForAdmin(ctx context.Context, adminID uint64, reason string, at time.Time) error
}

// AdminFinder loads the identity a refresh token belongs to.
type AdminFinder interface {
	GetByID(ctx context.Context, id uint64) (model.AdminIdentity, error)
}

// TokenConfig holds signing and lifetime settings.
type TokenConfig struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// AccessClaims is the payload of an access token. The subject is the admin id.
type AccessClaims struct {
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
	jwt.RegisteredClaims
}

// AdminID parses the subject claim.
func (c *AccessClaims) AdminID() (uint64, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: bad subject", model.ErrInvalidClaims)
	}
	return id, nil
}

// AccessToken is a signed JWT and its expiry.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// RefreshToken is the opaque handle given to the client.
type RefreshToken struct {
	Raw       string
	ExpiresAt time.Time
}

// TokenPair is what a successful login or refresh returns.
type TokenPair struct {
	Access  AccessToken
	Refresh RefreshToken
}

// TokenService issues and validates access tokens and manages the refresh
// token ledger.
type TokenService struct {
	cfg    TokenConfig
	store  RefreshStore
	admins AdminFinder
	now    func() time.Time
}

// NewTokenService validates cfg and returns a service.
func NewTokenService(cfg TokenConfig, store RefreshStore, admins AdminFinder) (*TokenService, error) {
	if len(cfg.Secret) < MinSecretBytes {
		return nil, fmt.Errorf("token secret must be at least %d bytes", MinSecretBytes)
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("token issuer and audience are required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	return &TokenService{cfg: cfg, store: store, admins: admins, now: time.Now}, nil
}

// IssueAccessToken signs a short-lived HS256 token for admin.
func (s *TokenService) IssueAccessToken(admin model.AdminIdentity) (AccessToken, error) {
	now := s.now()
	exp := now.Add(s.cfg.AccessTTL)
	claims := AccessClaims{
		Email: admin.Email,
		Role:  admin.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(admin.ID, 10),
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// ValidateAccessToken verifies signature, expiry (no leeway), issuer and
// audience, and maps failures onto the model token errors.
func (s *TokenService) ValidateAccessToken(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return s.cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, model.ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, model.ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, model.ErrTokenExpired
	default:
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidClaims, err)
	}

	if claims.ID == "" || claims.Email == "" {
		return nil, fmt.Errorf("%w: missing jti or email", model.ErrInvalidClaims)
	}
	if _, err := model.ParseRole(string(claims.Role)); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidClaims, err)
	}
	if _, err := claims.AdminID(); err != nil {
		return nil, err
	}
	return claims, nil
}

// IssueRefreshToken returns a new opaque refresh handle. It is not stored.
func (s *TokenService) IssueRefreshToken() (RefreshToken, error) {
	raw, err := utils.NewOpaqueToken()
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{Raw: raw, ExpiresAt: s.now().Add(s.cfg.RefreshTTL)}, nil
}

// IssuePair starts a new refresh family for admin and returns both tokens.
func (s *TokenService) IssuePair(ctx context.Context, admin model.AdminIdentity) (TokenPair, error) {
	refresh, err := s.IssueRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}
	row := model.RefreshToken{
		AdminID:   admin.ID,
		TokenHash: utils.HashToken(refresh.Raw),
		FamilyID:  uuid.NewString(),
		ExpiresAt: refresh.ExpiresAt,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Store(ctx, &row); err != nil {
		return TokenPair{}, err
	}
	access, err := s.IssueAccessToken(admin)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Rotate exchanges raw for a new pair. The old handle is retired atomically
// by the store; unknown, expired, revoked or already rotated handles fail
// with model.ErrTokenNotFound (model.ErrTokenReused for replays).
func (s *TokenService) Rotate(ctx context.Context, raw string) (TokenPair, error) {
	if raw == "" {
		return TokenPair{}, model.ErrTokenNotFound
	}
	now := s.now().UTC()
	refresh, err := s.IssueRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}
	next := model.RefreshToken{
		TokenHash: utils.HashToken(refresh.Raw),
		ExpiresAt: refresh.ExpiresAt,
		CreatedAt: now,
	}
	if err := s.store.Rotate(ctx, utils.HashToken(raw), &next, now); err != nil {
		return TokenPair{}, err
	}

	admin, err := s.admins.GetByID(ctx, next.AdminID)
	if errors.Is(err, model.ErrNotFound) || (err == nil && !admin.IsActive) {
		_ = s.store.RevokeByHash(ctx, next.TokenHash, model.RevokeReasonDeactivated, now)
		return TokenPair{}, model.ErrTokenNotFound
	}
	if err != nil {
		return TokenPair{}, err
	}
	access, err := s.IssueAccessToken(admin)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Revoke retires raw. Unknown or already revoked handles are not an error.
func (s *TokenService) Revoke(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	return s.store.RevokeByHash(ctx, utils.HashToken(raw), model.RevokeReasonLogout, s.now().UTC())
}

// RevokeAll retires every live refresh token of adminID.
func (s *TokenService) RevokeAll(ctx context.Context, adminID uint64, reason string) error {
	return s.store.RevokeAllForAdmin(ctx, adminID, reason, s.now().UTC())
}
