package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/relief-coordination/internal/model"
)

// OtpRepo stores one pending OTP challenge per email in `otp_challenges`.
type OtpRepo struct{ DB *sql.DB }

func NewOtpRepo(db *sql.DB) *OtpRepo { return &OtpRepo{DB: db} }

// Save upserts the challenge for its email, replacing any earlier code.
// Concurrent issuance is last-writer-wins.
func (r *OtpRepo) Save(ctx context.Context, ch model.OtpChallenge) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO otp_challenges (email, code, issued_at, expires_at, consumed_at) VALUES (?,?,?,?,NULL)
		 ON DUPLICATE KEY UPDATE code=VALUES(code), issued_at=VALUES(issued_at), expires_at=VALUES(expires_at), consumed_at=NULL`,
		normalizeEmail(ch.Email), ch.Code, ch.IssuedAt, ch.ExpiresAt)
	return err
}

// Get returns the current challenge for email or model.ErrNotFound.
func (r *OtpRepo) Get(ctx context.Context, email string) (model.OtpChallenge, error) {
	var (
		ch       model.OtpChallenge
		consumed sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT email, code, issued_at, expires_at, consumed_at FROM otp_challenges WHERE email=? LIMIT 1",
		normalizeEmail(email)).Scan(&ch.Email, &ch.Code, &ch.IssuedAt, &ch.ExpiresAt, &consumed)
	if errors.Is(err, sql.ErrNoRows) {
		return model.OtpChallenge{}, model.ErrNotFound
	}
	if err != nil {
		return model.OtpChallenge{}, err
	}
	if consumed.Valid {
		at := consumed.Time
		ch.ConsumedAt = &at
	}
	return ch, nil
}

// Consume marks the challenge issued at issuedAt as used. It reports false
// when the row was already consumed or has been replaced by a newer code.
func (r *OtpRepo) Consume(ctx context.Context, email string, issuedAt, at time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE otp_challenges SET consumed_at=? WHERE email=? AND issued_at=? AND consumed_at IS NULL",
		at, normalizeEmail(email), issuedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// DeleteStale removes challenges that expired before cutoff.
func (r *OtpRepo) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM otp_challenges WHERE expires_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
