package model

import (
	"fmt"
	"time"
)

// InvitationStatus tracks an invitation through its single use.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationExpired  InvitationStatus = "EXPIRED"
	InvitationRevoked  InvitationStatus = "REVOKED"
)

// Terminal reports whether no further transition is allowed from s.
func (s InvitationStatus) Terminal() bool {
	return s != InvitationPending
}

// ParseInvitationStatus validates a status coming from a query string.
func ParseInvitationStatus(s string) (InvitationStatus, error) {
	switch st := InvitationStatus(s); st {
	case InvitationPending, InvitationAccepted, InvitationExpired, InvitationRevoked:
		return st, nil
	}
	return "", Invalid("status", "is not a known invitation status")
}

// Invitation is a pre-authorized, expiring grant that provisions one admin
// account with a fixed role and scope. Only the token hash is persisted.
type Invitation struct {
	ID         uint64           `json:"id"`
	Email      string           `json:"email"`
	TokenHash  string           `json:"-"`
	Role       Role             `json:"role"`
	ProvinceID *uint64          `json:"province_id,omitempty"`
	CityID     *uint64          `json:"city_id,omitempty"`
	Status     InvitationStatus `json:"status"`
	CreatedBy  uint64           `json:"created_by"`
	CreatedAt  time.Time        `json:"created_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
	AcceptedAt *time.Time       `json:"accepted_at,omitempty"`
	RevokedAt  *time.Time       `json:"revoked_at,omitempty"`
}

// Scope returns the scope the invited account will receive.
func (i Invitation) Scope() Scope {
	return Scope{ProvinceID: i.ProvinceID, CityID: i.CityID}
}

// PastDue reports whether the invitation can no longer be accepted at now.
func (i Invitation) PastDue(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// Transition moves the invitation from PENDING to a terminal status and
// stamps the matching timestamp. Any move out of a terminal status fails.
func (i *Invitation) Transition(to InvitationStatus, at time.Time) error {
	if i.Status.Terminal() {
		return fmt.Errorf("%w: invitation is %s", ErrInvalidTransition, i.Status)
	}
	switch to {
	case InvitationAccepted:
		i.AcceptedAt = &at
	case InvitationRevoked:
		i.RevokedAt = &at
	case InvitationExpired:
	default:
		return fmt.Errorf("%w: cannot move invitation to %s", ErrInvalidTransition, to)
	}
	i.Status = to
	return nil
}
