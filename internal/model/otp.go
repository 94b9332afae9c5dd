package model

import "time"

// OtpChallenge is the one pending second-factor code for an email. A newer
// issuance replaces the row; ConsumedAt is set once the code is used.
type OtpChallenge struct {
	Email      string     // otp_challenges.email (primary key)
	Code       string     // otp_challenges.code, six ASCII digits
	IssuedAt   time.Time  // otp_challenges.issued_at
	ExpiresAt  time.Time  // otp_challenges.expires_at
	ConsumedAt *time.Time // otp_challenges.consumed_at (nullable)
}

// Expired reports whether the challenge is past its expiry at now. The
// expiry instant itself is still valid.
func (c OtpChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
