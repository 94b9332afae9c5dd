package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/relief-coordination/internal/logger"
	"github.com/iliyamo/relief-coordination/internal/model"
	"github.com/iliyamo/relief-coordination/internal/utils"
)

// DefaultOTPTTL is how long an issued code stays valid.
const DefaultOTPTTL = 5 * time.Minute

// ChallengeStore persists at most one OTP challenge per email.
type ChallengeStore interface {
	Save(ctx context.Context, ch model.OtpChallenge) error
	Get(ctx context.Context, email string) (model.OtpChallenge, error)
	Consume(ctx context.Context, email string, issuedAt, at time.Time) (bool, error)
}

// OTPEngine issues and verifies emailed six digit codes.
type OTPEngine struct {
	store      ChallengeStore
	ttl        time.Duration
	bypassCode string
	log        *zap.Logger
	now        func() time.Time
	newCode    func() (string, error)
}

// NewOTPEngine returns an engine whose codes live for ttl.
func NewOTPEngine(store ChallengeStore, ttl time.Duration, log *zap.Logger) *OTPEngine {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OTPEngine{
		store:   store,
		ttl:     ttl,
		log:     logger.WithComponent(log, "otp"),
		now:     time.Now,
		newCode: utils.NewNumericCode,
	}
}

// WithBypass makes Verify also accept code in place of the issued one.
// Callers must only enable it outside production; config.Validate refuses
// a production config that asks for it.
func (e *OTPEngine) WithBypass(code string) *OTPEngine {
	e.bypassCode = code
	if code != "" {
		e.log.Warn("otp bypass code enabled")
	}
	return e
}

// Issue creates a fresh challenge for email, replacing any earlier one, and
// returns it including the plain code for delivery.
func (e *OTPEngine) Issue(ctx context.Context, email string) (model.OtpChallenge, error) {
	code, err := e.newCode()
	if err != nil {
		return model.OtpChallenge{}, err
	}
	// DATETIME(6) keeps microseconds; the row is matched on issued_at later.
	issued := e.now().UTC().Truncate(time.Microsecond)
	ch := model.OtpChallenge{
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Code:      code,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(e.ttl),
	}
	if err := e.store.Save(ctx, ch); err != nil {
		return model.OtpChallenge{}, err
	}
	return ch, nil
}

// Verify checks code against the current challenge for email and consumes
// it on success. Unknown emails and wrong codes both yield
// model.ErrInvalidOtp while the challenge is live. Once it is past expiry
// every attempt yields model.ErrOtpExpired so the client restarts at the
// password step; the expiry instant itself is still accepted. A correct
// code that was already used yields model.ErrOtpConsumed.
func (e *OTPEngine) Verify(ctx context.Context, email, code string) error {
	ch, err := e.store.Get(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		// keep the work done for unknown emails equal to a mismatch
		subtle.ConstantTimeCompare([]byte("000000"), []byte(code))
		return model.ErrInvalidOtp
	}
	if err != nil {
		return err
	}

	now := e.now()
	matched := subtle.ConstantTimeCompare([]byte(ch.Code), []byte(code)) == 1
	bypassed := false
	if !matched && e.bypassCode != "" {
		bypassed = subtle.ConstantTimeCompare([]byte(e.bypassCode), []byte(code)) == 1
	}
	if ch.Expired(now) {
		return model.ErrOtpExpired
	}
	if !matched && !bypassed {
		return model.ErrInvalidOtp
	}
	if ch.ConsumedAt != nil {
		return model.ErrOtpConsumed
	}

	ok, err := e.store.Consume(ctx, ch.Email, ch.IssuedAt, now)
	if err != nil {
		return err
	}
	if !ok {
		// another request consumed it, or a newer code replaced it
		return model.ErrOtpConsumed
	}
	if bypassed {
		e.log.Warn("otp accepted via bypass code", zap.String("email", logger.MaskEmail(ch.Email)))
	}
	return nil
}
