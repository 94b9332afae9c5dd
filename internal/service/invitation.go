package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/iliyamo/relief-coordination/internal/logger"
	"github.com/iliyamo/relief-coordination/internal/model"
	"github.com/iliyamo/relief-coordination/internal/utils"
)

// DefaultInvitationTTL is used when the manager is built with a zero ttl.
const DefaultInvitationTTL = 72 * time.Hour

// MinPasswordLength applies to accounts created from invitations.
const MinPasswordLength = 8

// InvitationStore persists invitations.
type InvitationStore interface {
	Create(ctx context.Context, inv *model.Invitation) error
	FindByTokenHash(ctx context.Context, tokenHash string) (model.Invitation, error)
	GetByID(ctx context.Context, id uint64) (model.Invitation, error)
	List(ctx context.Context, status model.InvitationStatus) ([]model.Invitation, error)
	UpdateStatus(ctx context.Context, inv model.Invitation, from model.InvitationStatus) error
	Accept(ctx context.Context, inv model.Invitation, admin *model.AdminIdentity) error
}

// ScopeDirectory answers questions about provinces and cities.
type ScopeDirectory interface {
	ProvinceExists(ctx context.Context, id uint64) (bool, error)
	CityProvince(ctx context.Context, cityID uint64) (uint64, error)
}

// AccountDirectory is the part of the credential store invitations need.
type AccountDirectory interface {
	GetByID(ctx context.Context, id uint64) (model.AdminIdentity, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// CreateInvitation is the input of InvitationManager.Create.
type CreateInvitation struct {
	Email      string
	Role       model.Role
	ProvinceID *uint64
	CityID     *uint64
	CreatedBy  uint64
}

// Registration holds what the invitee chooses when accepting.
type Registration struct {
	Name     string
	Username string
	Password string
}

// InvitationManager issues and redeems scoped invitations.
type InvitationManager struct {
	store      InvitationStore
	accounts   AccountDirectory
	scopes     ScopeDirectory
	notify     Notifier
	ttl        time.Duration
	bcryptCost int
	log        *zap.Logger
	now        func() time.Time
}

// NewInvitationManager wires the manager. Passwords of accepted accounts
// are hashed with bcryptCost.
func NewInvitationManager(store InvitationStore, accounts AccountDirectory, scopes ScopeDirectory, notify Notifier, ttl time.Duration, bcryptCost int, log *zap.Logger) *InvitationManager {
	if ttl <= 0 {
		ttl = DefaultInvitationTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &InvitationManager{
		store:      store,
		accounts:   accounts,
		scopes:     scopes,
		notify:     notify,
		ttl:        ttl,
		bcryptCost: bcryptCost,
		log:        logger.WithComponent(log, "invitation"),
		now:        time.Now,
	}
}

// Create checks that the creator may invite in.Role within the requested
// scope, stores a PENDING invitation and mails the raw token. The raw token
// is returned once and only its hash is kept.
func (m *InvitationManager) Create(ctx context.Context, in CreateInvitation) (model.Invitation, string, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return model.Invitation{}, "", model.Invalid("email", "is not a valid address")
	}
	if _, err := model.ParseRole(string(in.Role)); err != nil {
		return model.Invitation{}, "", err
	}

	creator, err := m.accounts.GetByID(ctx, in.CreatedBy)
	if errors.Is(err, model.ErrNotFound) || (err == nil && !creator.IsActive) {
		return model.Invitation{}, "", model.ErrForbidden
	}
	if err != nil {
		return model.Invitation{}, "", err
	}
	if !creator.Role.CanInvite(in.Role) {
		return model.Invitation{}, "", fmt.Errorf("%w: %s cannot invite %s", model.ErrForbidden, creator.Role, in.Role)
	}

	scope, err := m.resolveScope(ctx, in.Role, model.Scope{ProvinceID: in.ProvinceID, CityID: in.CityID})
	if err != nil {
		return model.Invitation{}, "", err
	}
	if creator.Role == model.RoleProvinceAdmin &&
		(creator.ProvinceID == nil || scope.ProvinceID == nil || *creator.ProvinceID != *scope.ProvinceID) {
		return model.Invitation{}, "", fmt.Errorf("%w: city is outside your province", model.ErrForbidden)
	}

	exists, err := m.accounts.EmailExists(ctx, email)
	if err != nil {
		return model.Invitation{}, "", err
	}
	if exists {
		return model.Invitation{}, "", model.ErrEmailExists
	}

	raw, err := utils.NewOpaqueToken()
	if err != nil {
		return model.Invitation{}, "", err
	}
	now := m.now().UTC()
	inv := model.Invitation{
		Email:      email,
		TokenHash:  utils.HashToken(raw),
		Role:       in.Role,
		ProvinceID: scope.ProvinceID,
		CityID:     scope.CityID,
		Status:     model.InvitationPending,
		CreatedBy:  creator.ID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.ttl),
	}
	if err := m.store.Create(ctx, &inv); err != nil {
		return model.Invitation{}, "", err
	}
	m.notify.SendInvitation(ctx, inv, raw)
	m.log.Info("invitation created",
		zap.Uint64("invitation_id", inv.ID),
		zap.String("role", inv.Role.String()),
		zap.Uint64("created_by", creator.ID))
	return inv, raw, nil
}

// resolveScope validates s for role against the reference data. A
// volunteer's province is derived from its city.
func (m *InvitationManager) resolveScope(ctx context.Context, role model.Role, s model.Scope) (model.Scope, error) {
	if err := role.CheckScope(s); err != nil {
		return model.Scope{}, err
	}
	switch role {
	case model.RoleSuperAdmin:
		return model.Scope{}, nil
	case model.RoleProvinceAdmin:
		if s.CityID != nil {
			return model.Scope{}, fmt.Errorf("%w: %s cannot be scoped to a city", model.ErrInvalidScope, role)
		}
		ok, err := m.scopes.ProvinceExists(ctx, *s.ProvinceID)
		if err != nil {
			return model.Scope{}, err
		}
		if !ok {
			return model.Scope{}, fmt.Errorf("%w: unknown province %d", model.ErrInvalidScope, *s.ProvinceID)
		}
		return model.Scope{ProvinceID: s.ProvinceID}, nil
	case model.RoleVolunteer:
		pid, err := m.scopes.CityProvince(ctx, *s.CityID)
		if errors.Is(err, model.ErrNotFound) {
			return model.Scope{}, fmt.Errorf("%w: unknown city %d", model.ErrInvalidScope, *s.CityID)
		}
		if err != nil {
			return model.Scope{}, err
		}
		if s.ProvinceID != nil && *s.ProvinceID != pid {
			return model.Scope{}, fmt.Errorf("%w: city %d is not in province %d", model.ErrInvalidScope, *s.CityID, *s.ProvinceID)
		}
		return model.Scope{ProvinceID: &pid, CityID: s.CityID}, nil
	}
	return model.Scope{}, fmt.Errorf("%w: unknown role %q", model.ErrInvalidScope, string(role))
}

// Accept redeems rawToken and provisions the invited account. An invitation
// found past its expiry is moved to EXPIRED on the way out.
func (m *InvitationManager) Accept(ctx context.Context, rawToken string, reg Registration) (model.AdminIdentity, error) {
	if rawToken == "" {
		return model.AdminIdentity{}, model.ErrInvitationNotFound
	}
	inv, err := m.store.FindByTokenHash(ctx, utils.HashToken(rawToken))
	if err != nil {
		return model.AdminIdentity{}, err
	}
	switch inv.Status {
	case model.InvitationAccepted, model.InvitationRevoked:
		return model.AdminIdentity{}, model.ErrInvitationAlreadyUsed
	case model.InvitationExpired:
		return model.AdminIdentity{}, model.ErrInvitationExpired
	}

	now := m.now().UTC()
	if inv.PastDue(now) {
		m.expire(ctx, inv, now)
		return model.AdminIdentity{}, model.ErrInvitationExpired
	}
	if err := validateRegistration(&reg); err != nil {
		return model.AdminIdentity{}, err
	}
	hash, err := utils.HashPassword(reg.Password, m.bcryptCost)
	if err != nil {
		return model.AdminIdentity{}, err
	}

	if err := inv.Transition(model.InvitationAccepted, now); err != nil {
		return model.AdminIdentity{}, err
	}
	admin := &model.AdminIdentity{
		Name:         reg.Name,
		Email:        inv.Email,
		Username:     reg.Username,
		PasswordHash: hash,
		Role:         inv.Role,
		ProvinceID:   inv.ProvinceID,
		CityID:       inv.CityID,
		IsActive:     true,
		CreatedAt:    now,
	}
	if err := m.store.Accept(ctx, inv, admin); err != nil {
		return model.AdminIdentity{}, err
	}
	m.log.Info("invitation accepted", zap.Uint64("invitation_id", inv.ID), zap.Uint64("admin_id", admin.ID))
	return *admin, nil
}

func (m *InvitationManager) expire(ctx context.Context, inv model.Invitation, now time.Time) {
	from := inv.Status
	if err := inv.Transition(model.InvitationExpired, now); err != nil {
		return
	}
	err := m.store.UpdateStatus(ctx, inv, from)
	if err != nil && !errors.Is(err, model.ErrInvalidTransition) {
		m.log.Warn("could not mark invitation expired", zap.Uint64("invitation_id", inv.ID), zap.Error(err))
	}
}

func validateRegistration(reg *Registration) error {
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Username = strings.TrimSpace(reg.Username)
	switch {
	case reg.Name == "":
		return model.Invalid("name", "is required")
	case utf8.RuneCountInString(reg.Username) < 3:
		return model.Invalid("username", "must be at least 3 characters")
	case strings.ContainsAny(reg.Username, "@ \t"):
		return model.Invalid("username", "must not contain '@' or spaces")
	case utf8.RuneCountInString(reg.Password) < MinPasswordLength:
		return model.Invalid("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	return nil
}

// Revoke withdraws a PENDING invitation. Super admins may revoke any
// invitation; other admins only the ones they created.
func (m *InvitationManager) Revoke(ctx context.Context, id, by uint64) (model.Invitation, error) {
	inv, err := m.store.GetByID(ctx, id)
	if err != nil {
		return model.Invitation{}, err
	}
	actor, err := m.accounts.GetByID(ctx, by)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return model.Invitation{}, err
	}
	if err != nil || (actor.Role != model.RoleSuperAdmin && inv.CreatedBy != actor.ID) {
		return model.Invitation{}, model.ErrForbidden
	}

	from := inv.Status
	if err := inv.Transition(model.InvitationRevoked, m.now().UTC()); err != nil {
		return model.Invitation{}, err
	}
	if err := m.store.UpdateStatus(ctx, inv, from); err != nil {
		return model.Invitation{}, err
	}
	return inv, nil
}

// List returns invitations, optionally filtered by status.
func (m *InvitationManager) List(ctx context.Context, status model.InvitationStatus) ([]model.Invitation, error) {
	return m.store.List(ctx, status)
}
