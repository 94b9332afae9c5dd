package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/relief-coordination/internal/model"
)

func acceptedInvitation(now time.Time) model.Invitation {
	city := uint64(4)
	return model.Invitation{
		ID:         5,
		Email:      "vol@relief.test",
		Role:       model.RoleVolunteer,
		CityID:     &city,
		Status:     model.InvitationAccepted,
		AcceptedAt: &now,
	}
}

func TestInvitationRepoAcceptCommits(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewInvitationRepo(db)
	now := time.Now().UTC()
	inv := acceptedInvitation(now)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE invitations SET status").
		WithArgs("ACCEPTED", sqlmock.AnyArg(), nil, 5, "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO admins").
		WillReturnResult(sqlmock.NewResult(77, 1))
	mock.ExpectCommit()

	admin := &model.AdminIdentity{Email: inv.Email, Username: "vol", Role: inv.Role, CityID: inv.CityID, IsActive: true}
	require.NoError(t, repo.Accept(context.Background(), inv, admin))
	assert.Equal(t, uint64(77), admin.ID)
}

func TestInvitationRepoAcceptLostRace(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewInvitationRepo(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE invitations SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Accept(context.Background(), acceptedInvitation(now), &model.AdminIdentity{})
	assert.ErrorIs(t, err, model.ErrInvitationAlreadyUsed)
}

func TestInvitationRepoFindByTokenHashMissing(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewInvitationRepo(db)

	mock.ExpectQuery("FROM invitations WHERE token_hash").
		WithArgs("h").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err := repo.FindByTokenHash(context.Background(), "h")
	assert.ErrorIs(t, err, model.ErrInvitationNotFound)
}

func TestInvitationRepoExpirePastDue(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewInvitationRepo(db)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE invitations SET status=\\? WHERE status=\\? AND expires_at < \\?").
		WithArgs("EXPIRED", "PENDING", now).
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := repo.ExpirePastDue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
