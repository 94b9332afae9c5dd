package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/relief-coordination/internal/model"
)

func newDonationFixture() (*DonationService, *fakeDonations, *recordingNotifier) {
	store := newFakeDonations()
	notify := &recordingNotifier{}
	svc := NewDonationService(store, fakeScopes{}, notify, nil)
	svc.now = newClock().Now
	return svc, store, notify
}

func cashInput(amount int64) model.DonationInput {
	return model.DonationInput{Type: "CASH", DonorName: "Ana", DonorEmail: "ana@example.org", Amount: amount}
}

func TestCreateDonationAssignsReceiptAndConfirms(t *testing.T) {
	svc, store, notify := newDonationFixture()
	in := cashInput(500)
	in.CityID = u64(5)

	d, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, d.ReceiptID, 26)
	assert.Equal(t, model.DonationPending, d.Status)
	require.NotNil(t, d.ProvinceID)
	assert.Equal(t, uint64(2), *d.ProvinceID)
	assert.Equal(t, t0, d.CreatedAt)
	assert.Len(t, store.rows, 1)

	sent := notify.last()
	assert.Equal(t, "confirmation", sent.kind)
	assert.Equal(t, "ana@example.org", sent.email)
	assert.Equal(t, d.ReceiptID, sent.extra)
}

func TestCreateDonationRejectsInvalidInput(t *testing.T) {
	svc, store, notify := newDonationFixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, cashInput(0))
	assert.ErrorIs(t, err, model.ErrValidationFailed)

	in := cashInput(500)
	in.Type = "CRYPTO"
	_, err = svc.Create(ctx, in)
	assert.ErrorIs(t, err, model.ErrUnsupportedDonationType)

	in = cashInput(500)
	in.CityID = u64(77)
	_, err = svc.Create(ctx, in)
	assert.ErrorIs(t, err, model.ErrValidationFailed)

	in = cashInput(500)
	in.ProvinceID, in.CityID = u64(1), u64(5)
	_, err = svc.Create(ctx, in)
	assert.ErrorIs(t, err, model.ErrValidationFailed)

	in = cashInput(500)
	in.ProvinceID = u64(9)
	_, err = svc.Create(ctx, in)
	assert.ErrorIs(t, err, model.ErrValidationFailed)

	assert.Empty(t, store.rows)
	assert.Zero(t, notify.count())
}

func TestDonationReviewFlow(t *testing.T) {
	svc, _, _ := newDonationFixture()
	ctx := context.Background()
	in := cashInput(500)
	in.CityID = u64(3)
	d, err := svc.Create(ctx, in)
	require.NoError(t, err)

	super := model.AdminIdentity{ID: 1, Role: model.RoleSuperAdmin, IsActive: true}
	volunteer := model.AdminIdentity{ID: 2, Role: model.RoleVolunteer, CityID: u64(3), IsActive: true}
	otherProvince := model.AdminIdentity{ID: 3, Role: model.RoleProvinceAdmin, ProvinceID: u64(2), IsActive: true}

	_, err = svc.Approve(ctx, d.ID, volunteer)
	assert.ErrorIs(t, err, model.ErrForbidden)
	_, err = svc.Approve(ctx, d.ID, otherProvince)
	assert.ErrorIs(t, err, model.ErrForbidden)
	_, err = svc.Distribute(ctx, d.ID, volunteer)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	approved, err := svc.Approve(ctx, d.ID, super)
	require.NoError(t, err)
	assert.Equal(t, model.DonationApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, super.ID, *approved.ReviewedBy)

	_, err = svc.Approve(ctx, d.ID, super)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	_, err = svc.Reject(ctx, d.ID, super, "late")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	distributed, err := svc.Distribute(ctx, d.ID, volunteer)
	require.NoError(t, err)
	assert.Equal(t, model.DonationDistributed, distributed.Status)

	got, err := svc.Get(ctx, d.ID, volunteer)
	require.NoError(t, err)
	assert.Equal(t, model.DonationDistributed, got.Status)
}

func TestDonationRejectAndList(t *testing.T) {
	svc, _, _ := newDonationFixture()
	ctx := context.Background()
	provinceAdmin := model.AdminIdentity{ID: 4, Role: model.RoleProvinceAdmin, ProvinceID: u64(1), IsActive: true}

	in := cashInput(100)
	in.ProvinceID = u64(1)
	a, err := svc.Create(ctx, in)
	require.NoError(t, err)
	_, err = svc.Create(ctx, cashInput(200))
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, a.ID, provinceAdmin, " duplicate ")
	require.NoError(t, err)
	assert.Equal(t, "duplicate", rejected.RejectReason)

	_, err = svc.Get(ctx, 999, provinceAdmin)
	assert.ErrorIs(t, err, model.ErrNotFound)

	super := model.AdminIdentity{ID: 1, Role: model.RoleSuperAdmin, IsActive: true}
	pending, err := svc.List(ctx, super, model.DonationPending, 0, 0)
	require.NoError(t, err)
	assert.Len(t, pending.Items, 1)
	assert.Equal(t, DefaultPageSize, pending.Limit)
	all, err := svc.List(ctx, super, "", 1, 0)
	require.NoError(t, err)
	assert.Len(t, all.Items, 1)
	capped, err := svc.List(ctx, super, "", 5000, -3)
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, capped.Limit)
	assert.Zero(t, capped.Offset)
}

func TestDonationReadsStayInsideScope(t *testing.T) {
	svc, _, _ := newDonationFixture()
	ctx := context.Background()
	in := cashInput(500)
	in.CityID = u64(5)
	d, err := svc.Create(ctx, in)
	require.NoError(t, err)
	in = cashInput(700)
	in.CityID = u64(3)
	_, err = svc.Create(ctx, in)
	require.NoError(t, err)

	sameCity := model.AdminIdentity{ID: 2, Role: model.RoleVolunteer, CityID: u64(5), IsActive: true}
	otherCity := model.AdminIdentity{ID: 6, Role: model.RoleVolunteer, CityID: u64(9), IsActive: true}
	province2 := model.AdminIdentity{ID: 7, Role: model.RoleProvinceAdmin, ProvinceID: u64(2), IsActive: true}
	unscoped := model.AdminIdentity{ID: 8, Role: model.RoleVolunteer, IsActive: true}

	got, err := svc.Get(ctx, d.ID, sameCity)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.org", got.DonorEmail)

	_, err = svc.Get(ctx, d.ID, otherCity)
	assert.ErrorIs(t, err, model.ErrForbidden)

	page, err := svc.List(ctx, otherCity, "", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	page, err = svc.List(ctx, sameCity, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, d.ID, page.Items[0].ID)

	page, err = svc.List(ctx, province2, "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	_, err = svc.List(ctx, unscoped, "", 0, 0)
	assert.ErrorIs(t, err, model.ErrForbidden)
}
