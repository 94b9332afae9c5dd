package model

import "time"

// RefreshToken models an entry in the `refresh_tokens` table. The raw token
// handed to the client is never stored, only its SHA-256 hash. Tokens that
// descend from the same login share a FamilyID so a replayed token can
// revoke the whole chain.
//
// Fields:
//  ID            – primary key identifier.
//  AdminID       – owner of the token.
//  TokenHash     – SHA-256 hex digest of the token value.
//  FamilyID      – rotation chain identifier (uuid).
//  ExpiresAt     – expiration timestamp of the token.
//  RevokedAt     – when the token was revoked or rotated (null if active).
//  RevokedReason – one of the RevokeReason constants.
//  CreatedAt     – timestamp of creation.
type RefreshToken struct {
	ID            uint64     // refresh_tokens.id
	AdminID       uint64     // refresh_tokens.admin_id
	TokenHash     string     // refresh_tokens.token_hash
	FamilyID      string     // refresh_tokens.family_id
	ExpiresAt     time.Time  // refresh_tokens.expires_at
	RevokedAt     *time.Time // refresh_tokens.revoked_at (nullable)
	RevokedReason string     // refresh_tokens.revoked_reason
	CreatedAt     time.Time  // refresh_tokens.created_at
}

// Reasons recorded in refresh_tokens.revoked_reason.
const (
	RevokeReasonRotated     = "rotated"
	RevokeReasonLogout      = "logout"
	RevokeReasonReuse       = "reuse_detected"
	RevokeReasonDeactivated = "admin_deactivated"
)
