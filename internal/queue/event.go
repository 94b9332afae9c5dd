// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// Queue names. Each queue carries exactly one event type.
const (
    OtpMailQueue          = "mail.otp"
    InvitationMailQueue   = "mail.invitation"
    ConfirmationMailQueue = "mail.donation_confirmation"
)

// Queues lists every mail queue the consumer subscribes to.
var Queues = []string{OtpMailQueue, InvitationMailQueue, ConfirmationMailQueue}

// OtpMailEvent asks the mailer to deliver a login code.
type OtpMailEvent struct {
    Email     string    `json:"email"`
    Code      string    `json:"code"`
    ExpiresAt time.Time `json:"expires_at"`
}

// InvitationMailEvent asks the mailer to deliver an invitation link. Token
// is the raw invitation token; it exists nowhere else in plain form.
type InvitationMailEvent struct {
    InvitationID uint64    `json:"invitation_id"`
    Email        string    `json:"email"`
    Role         string    `json:"role"`
    Token        string    `json:"token"`
    ExpiresAt    time.Time `json:"expires_at"`
}

// DonationConfirmationEvent is published when a donation is recorded. It
// contains enough for the receipt mail without querying the database.
type DonationConfirmationEvent struct {
    Email        string `json:"email"`
    DonorName    string `json:"donor_name"`
    Amount       int64  `json:"amount"`
    DonationType string `json:"donation_type"`
    ReceiptID    string `json:"receipt_id"`
}
