package model

import (
	"errors"
	"fmt"
)

// Authentication failures. These never say which factor was wrong.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidOtp         = errors.New("invalid otp")
	ErrOtpConsumed        = fmt.Errorf("%w: already used", ErrInvalidOtp)
	ErrOtpExpired         = errors.New("otp expired")
	ErrSessionExpired     = errors.New("session expired")
)

// Access and refresh token failures.
var (
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired     = errors.New("token expired")
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotFound    = errors.New("refresh token not found")
	ErrTokenReused      = fmt.Errorf("%w: reuse detected", ErrTokenNotFound)
)

// Invitation and lifecycle failures.
var (
	ErrInvitationNotFound    = errors.New("invitation not found")
	ErrInvitationExpired     = errors.New("invitation expired")
	ErrInvitationAlreadyUsed = errors.New("invitation already used")
	ErrInvalidScope          = errors.New("invalid scope for role")
	ErrInvalidTransition     = errors.New("invalid status transition")
)

// Donation and generic validation failures.
var (
	ErrUnsupportedDonationType = errors.New("unsupported donation type")
	ErrValidationFailed        = errors.New("validation failed")
)

// Storage and authorization failures shared by repositories and services.
var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrEmailExists    = errors.New("email already exists")
	ErrUsernameExists = errors.New("username already exists")
)

// Invalid wraps ErrValidationFailed with a field-level message.
func Invalid(field, msg string) error {
	return fmt.Errorf("%w: %s %s", ErrValidationFailed, field, msg)
}
