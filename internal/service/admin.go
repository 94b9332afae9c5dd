package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/relief-coordination/internal/logger"
	"github.com/iliyamo/relief-coordination/internal/model"
)

// AccountStore is the admin-management view of the credential store.
type AccountStore interface {
	GetByID(ctx context.Context, id uint64) (model.AdminIdentity, error)
	List(ctx context.Context) ([]model.AdminIdentity, error)
	SetActive(ctx context.Context, id uint64, active bool) error
}

// AdminService manages existing admin accounts.
type AdminService struct {
	admins AccountStore
	tokens *TokenService
	log    *zap.Logger
}

// NewAdminService wires the service.
func NewAdminService(admins AccountStore, tokens *TokenService, log *zap.Logger) *AdminService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminService{admins: admins, tokens: tokens, log: logger.WithComponent(log, "admin")}
}

// List returns every admin account.
func (s *AdminService) List(ctx context.Context) ([]model.AdminIdentity, error) {
	return s.admins.List(ctx)
}

// Deactivate soft-deletes an account and revokes all of its refresh tokens.
// Admins cannot deactivate themselves.
func (s *AdminService) Deactivate(ctx context.Context, id uint64, actor model.AdminIdentity) error {
	if actor.Role != model.RoleSuperAdmin {
		return model.ErrForbidden
	}
	if id == actor.ID {
		return fmt.Errorf("%w: cannot deactivate yourself", model.ErrForbidden)
	}
	if err := s.admins.SetActive(ctx, id, false); err != nil {
		return err
	}
	if err := s.tokens.RevokeAll(ctx, id, model.RevokeReasonDeactivated); err != nil {
		return err
	}
	s.log.Info("admin deactivated", zap.Uint64("admin_id", id), zap.Uint64("by", actor.ID))
	return nil
}
