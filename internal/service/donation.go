package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/relief-coordination/internal/logger"
	"github.com/iliyamo/relief-coordination/internal/model"
	"github.com/iliyamo/relief-coordination/internal/utils"
)

// DonationStore persists donations.
type DonationStore interface {
	Create(ctx context.Context, d *model.Donation) error
	GetByID(ctx context.Context, id uint64) (model.Donation, error)
	List(ctx context.Context, q model.DonationQuery) ([]model.Donation, error)
	UpdateStatus(ctx context.Context, d model.Donation, from model.DonationStatus) error
}

// Page sizes for List.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// DonationPage is one page of List with the limits actually applied.
type DonationPage struct {
	Items  []model.Donation `json:"items"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// DonationService records donations and moves them through review.
type DonationService struct {
	store  DonationStore
	scopes ScopeDirectory
	notify Notifier
	log    *zap.Logger
	now    func() time.Time
}

// NewDonationService wires the service.
func NewDonationService(store DonationStore, scopes ScopeDirectory, notify Notifier, log *zap.Logger) *DonationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &DonationService{
		store:  store,
		scopes: scopes,
		notify: notify,
		log:    logger.WithComponent(log, "donation"),
		now:    time.Now,
	}
}

// Create validates in, stores a PENDING donation with a fresh receipt id and
// sends the donor a confirmation.
func (s *DonationService) Create(ctx context.Context, in model.DonationInput) (model.Donation, error) {
	d, err := model.NewDonation(in)
	if err != nil {
		return model.Donation{}, err
	}
	if err := s.checkDestination(ctx, &d); err != nil {
		return model.Donation{}, err
	}
	now := s.now().UTC()
	d.CreatedAt = now
	d.ReceiptID = utils.NewReceiptID(now)
	if err := s.store.Create(ctx, &d); err != nil {
		return model.Donation{}, err
	}
	s.notify.SendConfirmation(ctx, d.DonorEmail, d.DonorName, d.Amount, d.Type, d.ReceiptID)
	s.log.Info("donation recorded",
		zap.Uint64("donation_id", d.ID),
		zap.String("receipt_id", d.ReceiptID),
		zap.String("type", string(d.Type)))
	return d, nil
}

// checkDestination verifies the optional province/city and fills the
// province from the city when only the city was given.
func (s *DonationService) checkDestination(ctx context.Context, d *model.Donation) error {
	if d.CityID != nil {
		pid, err := s.scopes.CityProvince(ctx, *d.CityID)
		if errors.Is(err, model.ErrNotFound) {
			return model.Invalid("city_id", "does not exist")
		}
		if err != nil {
			return err
		}
		if d.ProvinceID != nil && *d.ProvinceID != pid {
			return model.Invalid("city_id", "is not in the given province")
		}
		d.ProvinceID = &pid
		return nil
	}
	if d.ProvinceID != nil {
		ok, err := s.scopes.ProvinceExists(ctx, *d.ProvinceID)
		if err != nil {
			return err
		}
		if !ok {
			return model.Invalid("province_id", "does not exist")
		}
	}
	return nil
}

// Get returns one donation if it lies inside actor's scope.
func (s *DonationService) Get(ctx context.Context, id uint64, actor model.AdminIdentity) (model.Donation, error) {
	d, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Donation{}, err
	}
	if err := authorizeDonation(actor, d, false); err != nil {
		return model.Donation{}, err
	}
	return d, nil
}

// List pages through the donations inside actor's scope, newest first. A
// non-positive limit means DefaultPageSize.
func (s *DonationService) List(ctx context.Context, actor model.AdminIdentity, status model.DonationStatus, limit, offset int) (DonationPage, error) {
	q, err := donationScope(actor)
	if err != nil {
		return DonationPage{}, err
	}
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	q.Status, q.Limit, q.Offset = status, limit, offset
	items, err := s.store.List(ctx, q)
	if err != nil {
		return DonationPage{}, err
	}
	return DonationPage{Items: items, Limit: limit, Offset: offset}, nil
}

// Approve accepts a PENDING donation.
func (s *DonationService) Approve(ctx context.Context, id uint64, actor model.AdminIdentity) (model.Donation, error) {
	return s.transition(ctx, id, actor, true, func(d *model.Donation, at time.Time) error {
		return d.Approve(actor.ID, at)
	})
}

// Reject declines a PENDING donation.
func (s *DonationService) Reject(ctx context.Context, id uint64, actor model.AdminIdentity, reason string) (model.Donation, error) {
	return s.transition(ctx, id, actor, true, func(d *model.Donation, at time.Time) error {
		return d.Reject(actor.ID, reason, at)
	})
}

// Distribute records that an APPROVED donation reached its destination.
// Volunteers may do this for their own city.
func (s *DonationService) Distribute(ctx context.Context, id uint64, actor model.AdminIdentity) (model.Donation, error) {
	return s.transition(ctx, id, actor, false, func(d *model.Donation, at time.Time) error {
		return d.Distribute(actor.ID, at)
	})
}

func (s *DonationService) transition(ctx context.Context, id uint64, actor model.AdminIdentity, review bool,
	apply func(*model.Donation, time.Time) error) (model.Donation, error) {
	d, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Donation{}, err
	}
	if err := authorizeDonation(actor, d, review); err != nil {
		return model.Donation{}, err
	}
	from := d.Status
	if err := apply(&d, s.now().UTC()); err != nil {
		return model.Donation{}, err
	}
	if err := s.store.UpdateStatus(ctx, d, from); err != nil {
		return model.Donation{}, err
	}
	s.log.Info("donation status changed",
		zap.Uint64("donation_id", d.ID),
		zap.String("from", string(from)),
		zap.String("to", string(d.Status)),
		zap.Uint64("by", actor.ID))
	return d, nil
}

// authorizeDonation checks actor's role and scope against d. Review steps
// need CanReview; every step needs d inside the actor's scope.
func authorizeDonation(actor model.AdminIdentity, d model.Donation, review bool) error {
	if !actor.IsActive {
		return model.ErrForbidden
	}
	if review && !actor.Role.CanReview() {
		return fmt.Errorf("%w: %s cannot review donations", model.ErrForbidden, actor.Role)
	}
	switch actor.Role {
	case model.RoleSuperAdmin:
		return nil
	case model.RoleProvinceAdmin:
		if sameID(actor.ProvinceID, d.ProvinceID) {
			return nil
		}
	case model.RoleVolunteer:
		if sameID(actor.CityID, d.CityID) {
			return nil
		}
	}
	return fmt.Errorf("%w: donation is outside your scope", model.ErrForbidden)
}

// donationScope turns actor's scope into a List filter. Super admins see
// everything; the other roles need their province or city set.
func donationScope(actor model.AdminIdentity) (model.DonationQuery, error) {
	if !actor.IsActive {
		return model.DonationQuery{}, model.ErrForbidden
	}
	switch actor.Role {
	case model.RoleSuperAdmin:
		return model.DonationQuery{}, nil
	case model.RoleProvinceAdmin:
		if actor.ProvinceID != nil {
			return model.DonationQuery{ProvinceID: actor.ProvinceID}, nil
		}
	case model.RoleVolunteer:
		if actor.CityID != nil {
			return model.DonationQuery{CityID: actor.CityID}, nil
		}
	}
	return model.DonationQuery{}, fmt.Errorf("%w: %s has no scope", model.ErrForbidden, actor.Role)
}

func sameID(a, b *uint64) bool {
	return a != nil && b != nil && *a == *b
}
