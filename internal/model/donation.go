package model

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// DonationType discriminates which fields of a donation are meaningful.
type DonationType string

const (
	DonationCash          DonationType = "CASH"
	DonationOtherSupplies DonationType = "OTHER_SUPPLIES"
)

// DonationStatus walks PENDING -> APPROVED -> DISTRIBUTED or PENDING -> REJECTED.
type DonationStatus string

const (
	DonationPending     DonationStatus = "PENDING"
	DonationApproved    DonationStatus = "APPROVED"
	DonationRejected    DonationStatus = "REJECTED"
	DonationDistributed DonationStatus = "DISTRIBUTED"
)

// DefaultItemCondition is applied to supplies donated without a condition.
const DefaultItemCondition = "good"

// ParseDonationStatus validates a status coming from a query string.
func ParseDonationStatus(s string) (DonationStatus, error) {
	switch st := DonationStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case DonationPending, DonationApproved, DonationRejected, DonationDistributed:
		return st, nil
	}
	return "", Invalid("status", "is not a known donation status")
}

// DonationQuery selects a page of donations. A nil ProvinceID or CityID
// means no filter on that column.
type DonationQuery struct {
	Status     DonationStatus
	ProvinceID *uint64
	CityID     *uint64
	Limit      int
	Offset     int
}

// DonationInput is the type-discriminated intake payload.
type DonationInput struct {
	Type          string  `json:"type"`
	DonorName     string  `json:"donor_name"`
	DonorEmail    string  `json:"donor_email"`
	DonorPhone    string  `json:"donor_phone"`
	Amount        int64   `json:"amount"`
	Quantity      *int    `json:"quantity"`
	ItemName      *string `json:"item_name"`
	ItemCondition *string `json:"item_condition"`
	ProvinceID    *uint64 `json:"province_id"`
	CityID        *uint64 `json:"city_id"`
	Notes         string  `json:"notes"`
}

// Donation mirrors the `donations` table. Core fields are fixed by
// NewDonation; only the status block changes afterwards.
type Donation struct {
	ID            uint64         `json:"id"`
	ReceiptID     string         `json:"receipt_id"`
	DonorName     string         `json:"donor_name"`
	DonorEmail    string         `json:"donor_email"`
	DonorPhone    string         `json:"donor_phone,omitempty"`
	Type          DonationType   `json:"type"`
	Amount        int64          `json:"amount"` // smallest currency unit, CASH only
	Quantity      *int           `json:"quantity"`
	ItemName      *string        `json:"item_name"`
	ItemCondition *string        `json:"item_condition"`
	ProvinceID    *uint64        `json:"province_id,omitempty"`
	CityID        *uint64        `json:"city_id,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	Status        DonationStatus `json:"status"`
	ReviewedBy    *uint64        `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time     `json:"reviewed_at,omitempty"`
	RejectReason  string         `json:"reject_reason,omitempty"`
	DistributedBy *uint64        `json:"distributed_by,omitempty"`
	DistributedAt *time.Time     `json:"distributed_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// NewDonation validates in and builds a PENDING donation. Only the fields
// relevant to the donation type are kept; the rest are forced to zero/nil.
func NewDonation(in DonationInput) (Donation, error) {
	d := Donation{
		DonorName:  strings.TrimSpace(in.DonorName),
		DonorEmail: strings.ToLower(strings.TrimSpace(in.DonorEmail)),
		DonorPhone: strings.TrimSpace(in.DonorPhone),
		ProvinceID: in.ProvinceID,
		CityID:     in.CityID,
		Notes:      strings.TrimSpace(in.Notes),
		Status:     DonationPending,
	}
	if d.DonorName == "" {
		return Donation{}, Invalid("donor_name", "is required")
	}
	if _, err := mail.ParseAddress(d.DonorEmail); err != nil {
		return Donation{}, Invalid("donor_email", "is not a valid address")
	}

	switch DonationType(strings.ToUpper(strings.TrimSpace(in.Type))) {
	case DonationCash:
		if in.Amount <= 0 {
			return Donation{}, Invalid("amount", "must be greater than zero")
		}
		d.Type = DonationCash
		d.Amount = in.Amount
	case DonationOtherSupplies:
		if in.Quantity == nil || *in.Quantity <= 0 {
			return Donation{}, Invalid("quantity", "must be greater than zero")
		}
		if in.ItemName == nil || strings.TrimSpace(*in.ItemName) == "" {
			return Donation{}, Invalid("item_name", "is required")
		}
		qty := *in.Quantity
		name := strings.TrimSpace(*in.ItemName)
		cond := DefaultItemCondition
		if in.ItemCondition != nil && strings.TrimSpace(*in.ItemCondition) != "" {
			cond = strings.TrimSpace(*in.ItemCondition)
		}
		d.Type = DonationOtherSupplies
		d.Quantity = &qty
		d.ItemName = &name
		d.ItemCondition = &cond
	default:
		return Donation{}, fmt.Errorf("%w: %q", ErrUnsupportedDonationType, in.Type)
	}
	return d, nil
}

// Approve moves a PENDING donation to APPROVED.
func (d *Donation) Approve(by uint64, at time.Time) error {
	if err := d.requireStatus(DonationPending, DonationApproved); err != nil {
		return err
	}
	d.Status = DonationApproved
	d.ReviewedBy = &by
	d.ReviewedAt = &at
	return nil
}

// Reject moves a PENDING donation to REJECTED.
func (d *Donation) Reject(by uint64, reason string, at time.Time) error {
	if err := d.requireStatus(DonationPending, DonationRejected); err != nil {
		return err
	}
	d.Status = DonationRejected
	d.ReviewedBy = &by
	d.ReviewedAt = &at
	d.RejectReason = strings.TrimSpace(reason)
	return nil
}

// Distribute moves an APPROVED donation to DISTRIBUTED.
func (d *Donation) Distribute(by uint64, at time.Time) error {
	if err := d.requireStatus(DonationApproved, DonationDistributed); err != nil {
		return err
	}
	d.Status = DonationDistributed
	d.DistributedBy = &by
	d.DistributedAt = &at
	return nil
}

func (d *Donation) requireStatus(from, to DonationStatus) error {
	if d.Status != from {
		return fmt.Errorf("%w: donation is %s, cannot move to %s", ErrInvalidTransition, d.Status, to)
	}
	return nil
}
