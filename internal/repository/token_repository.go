package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/relief-coordination/internal/database"
	"github.com/iliyamo/relief-coordination/internal/model"
)

// TokenRepo persists refresh tokens by SHA-256 hash (single 'token_hash' column).
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Store inserts a refresh token row and fills in its ID.
func (r *TokenRepo) Store(ctx context.Context, t *model.RefreshToken) error {
	return insertRefresh(ctx, r.DB, t)
}

func insertRefresh(ctx context.Context, ex execer, t *model.RefreshToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res, err := ex.ExecContext(ctx,
		"INSERT INTO refresh_tokens (admin_id, token_hash, family_id, expires_at, created_at) VALUES (?,?,?,?,?)",
		t.AdminID, t.TokenHash, t.FamilyID, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

const selectRefreshByHash = "SELECT id, admin_id, token_hash, family_id, expires_at, revoked_at, revoked_reason, created_at FROM refresh_tokens WHERE token_hash=? LIMIT 1"

// Rotate retires the token identified by oldHash and inserts next in the
// same family. The retiring UPDATE is guarded by `revoked_at IS NULL`, so of
// two concurrent rotations exactly one affects the row and the other gets
// model.ErrTokenNotFound. Presenting a token that was already rotated
// revokes every live token of its family and returns model.ErrTokenReused.
// On success next.AdminID and next.FamilyID are filled from the old token.
func (r *TokenRepo) Rotate(ctx context.Context, oldHash string, next *model.RefreshToken, now time.Time) error {
	reused := false
	err := database.InTx(ctx, r.DB, func(tx *sql.Tx) error {
		old, err := scanRefresh(tx.QueryRowContext(ctx, selectRefreshByHash, oldHash))
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrTokenNotFound
		}
		if err != nil {
			return err
		}
		if old.RevokedAt != nil {
			if old.RevokedReason != model.RevokeReasonRotated {
				return model.ErrTokenNotFound
			}
			if _, err := tx.ExecContext(ctx,
				"UPDATE refresh_tokens SET revoked_at=?, revoked_reason=? WHERE family_id=? AND revoked_at IS NULL",
				now, model.RevokeReasonReuse, old.FamilyID); err != nil {
				return err
			}
			reused = true
			return nil
		}
		if now.After(old.ExpiresAt) {
			return model.ErrTokenNotFound
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE refresh_tokens SET revoked_at=?, revoked_reason=? WHERE id=? AND revoked_at IS NULL",
			now, model.RevokeReasonRotated, old.ID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n != 1 {
			return model.ErrTokenNotFound
		}
		next.AdminID = old.AdminID
		next.FamilyID = old.FamilyID
		return insertRefresh(ctx, tx, next)
	})
	if err != nil {
		return err
	}
	if reused {
		return model.ErrTokenReused
	}
	return nil
}

// RevokeByHash marks a token as revoked. Revoking an unknown or already
// revoked token is not an error.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash, reason string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=?, revoked_reason=? WHERE token_hash=? AND revoked_at IS NULL",
		at, reason, tokenHash)
	return err
}

// RevokeAllForAdmin revokes all of an admin's active tokens.
func (r *TokenRepo) RevokeAllForAdmin(ctx context.Context, adminID uint64, reason string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=?, revoked_reason=? WHERE admin_id=? AND revoked_at IS NULL",
		at, reason, adminID)
	return err
}

// DeleteStale removes tokens that expired or were revoked before cutoff.
func (r *TokenRepo) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)",
		cutoff, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanRefresh(s rowScanner) (model.RefreshToken, error) {
	var (
		t       model.RefreshToken
		revoked sql.NullTime
		reason  sql.NullString
	)
	if err := s.Scan(&t.ID, &t.AdminID, &t.TokenHash, &t.FamilyID, &t.ExpiresAt, &revoked, &reason, &t.CreatedAt); err != nil {
		return model.RefreshToken{}, err
	}
	if revoked.Valid {
		at := revoked.Time
		t.RevokedAt = &at
	}
	t.RevokedReason = reason.String
	return t, nil
}
