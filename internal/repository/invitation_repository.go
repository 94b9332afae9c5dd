package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/relief-coordination/internal/database"
	"github.com/iliyamo/relief-coordination/internal/model"
)

// InvitationRepo persists invitations. Status changes are conditional on the
// current status so concurrent callers cannot both move the same row.
type InvitationRepo struct{ DB *sql.DB }

func NewInvitationRepo(db *sql.DB) *InvitationRepo { return &InvitationRepo{DB: db} }

const invitationColumns = "id, email, token_hash, role, province_id, city_id, status, created_by, created_at, expires_at, accepted_at, revoked_at"

// Create inserts a PENDING invitation and fills in its ID.
func (r *InvitationRepo) Create(ctx context.Context, inv *model.Invitation) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO invitations (email, token_hash, role, province_id, city_id, status, created_by, created_at, expires_at) VALUES (?,?,?,?,?,?,?,?,?)",
		normalizeEmail(inv.Email), inv.TokenHash, string(inv.Role), nullUint(inv.ProvinceID), nullUint(inv.CityID),
		string(inv.Status), inv.CreatedBy, inv.CreatedAt, inv.ExpiresAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	inv.ID = uint64(id)
	return nil
}

// FindByTokenHash returns the invitation for a token digest.
func (r *InvitationRepo) FindByTokenHash(ctx context.Context, tokenHash string) (model.Invitation, error) {
	return r.getOne(ctx, "SELECT "+invitationColumns+" FROM invitations WHERE token_hash=? LIMIT 1", tokenHash)
}

// GetByID returns the invitation with id.
func (r *InvitationRepo) GetByID(ctx context.Context, id uint64) (model.Invitation, error) {
	return r.getOne(ctx, "SELECT "+invitationColumns+" FROM invitations WHERE id=? LIMIT 1", id)
}

// List returns invitations newest first, optionally filtered by status.
func (r *InvitationRepo) List(ctx context.Context, status model.InvitationStatus) ([]model.Invitation, error) {
	q := "SELECT " + invitationColumns + " FROM invitations"
	var args []any
	if status != "" {
		q += " WHERE status=?"
		args = append(args, string(status))
	}
	q += " ORDER BY created_at DESC, id DESC"
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// UpdateStatus persists a transition already applied to inv, provided the
// stored row is still in status from. Otherwise it returns
// model.ErrInvalidTransition.
func (r *InvitationRepo) UpdateStatus(ctx context.Context, inv model.Invitation, from model.InvitationStatus) error {
	return updateInvitationStatus(ctx, r.DB, inv, from, model.ErrInvalidTransition)
}

func updateInvitationStatus(ctx context.Context, ex execer, inv model.Invitation, from model.InvitationStatus, lost error) error {
	res, err := ex.ExecContext(ctx,
		"UPDATE invitations SET status=?, accepted_at=?, revoked_at=? WHERE id=? AND status=?",
		string(inv.Status), nullTime(inv.AcceptedAt), nullTime(inv.RevokedAt), inv.ID, string(from))
	return expectOne(res, err, lost)
}

// Accept marks inv ACCEPTED and provisions admin in one transaction. If
// another request accepted or revoked the invitation first, nothing is
// written and model.ErrInvitationAlreadyUsed is returned.
func (r *InvitationRepo) Accept(ctx context.Context, inv model.Invitation, admin *model.AdminIdentity) error {
	return database.InTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := updateInvitationStatus(ctx, tx, inv, model.InvitationPending, model.ErrInvitationAlreadyUsed); err != nil {
			return err
		}
		return insertAdmin(ctx, tx, admin)
	})
}

// ExpirePastDue moves PENDING invitations whose expiry is before now to
// EXPIRED and reports how many changed.
func (r *InvitationRepo) ExpirePastDue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE invitations SET status=? WHERE status=? AND expires_at < ?",
		string(model.InvitationExpired), string(model.InvitationPending), now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *InvitationRepo) getOne(ctx context.Context, q string, arg any) (model.Invitation, error) {
	inv, err := scanInvitation(r.DB.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Invitation{}, model.ErrInvitationNotFound
	}
	return inv, err
}

func scanInvitation(s rowScanner) (model.Invitation, error) {
	var (
		inv              model.Invitation
		role, status     string
		province, city   sql.NullInt64
		accepted, revoke sql.NullTime
	)
	err := s.Scan(&inv.ID, &inv.Email, &inv.TokenHash, &role, &province, &city, &status,
		&inv.CreatedBy, &inv.CreatedAt, &inv.ExpiresAt, &accepted, &revoke)
	if err != nil {
		return model.Invitation{}, err
	}
	inv.Role = model.Role(role)
	inv.Status = model.InvitationStatus(status)
	inv.ProvinceID = uintFromNull(province)
	inv.CityID = uintFromNull(city)
	if accepted.Valid {
		t := accepted.Time
		inv.AcceptedAt = &t
	}
	if revoke.Valid {
		t := revoke.Time
		inv.RevokedAt = &t
	}
	return inv, nil
}
