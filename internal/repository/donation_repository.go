package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/relief-coordination/internal/model"
)

// DonationRepo persists donations. Core fields are written once by Create;
// UpdateStatus only touches the status block.
type DonationRepo struct {
	db *sql.DB
}

// NewDonationRepo returns a new DonationRepo bound to the given database.
func NewDonationRepo(db *sql.DB) *DonationRepo { return &DonationRepo{db: db} }

const donationColumns = `id, receipt_id, donor_name, donor_email, donor_phone, type, amount, quantity,
item_name, item_condition, province_id, city_id, notes, status, reviewed_by, reviewed_at,
reject_reason, distributed_by, distributed_at, created_at`

// Create inserts d and fills in its ID.
func (r *DonationRepo) Create(ctx context.Context, d *model.Donation) error {
	const q = `INSERT INTO donations (receipt_id, donor_name, donor_email, donor_phone, type, amount, quantity,
item_name, item_condition, province_id, city_id, notes, status, created_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	res, err := r.db.ExecContext(ctx, q,
		d.ReceiptID, d.DonorName, d.DonorEmail, d.DonorPhone, string(d.Type), d.Amount,
		nullInt(d.Quantity), nullString(d.ItemName), nullString(d.ItemCondition),
		nullUint(d.ProvinceID), nullUint(d.CityID), d.Notes, string(d.Status), d.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = uint64(id)
	return nil
}

// GetByID returns the donation or model.ErrNotFound.
func (r *DonationRepo) GetByID(ctx context.Context, id uint64) (model.Donation, error) {
	d, err := scanDonation(r.db.QueryRowContext(ctx, "SELECT "+donationColumns+" FROM donations WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Donation{}, model.ErrNotFound
	}
	return d, err
}

// List returns donations newest first, filtered by status and scope.
func (r *DonationRepo) List(ctx context.Context, f model.DonationQuery) ([]model.Donation, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.ProvinceID != nil {
		where = append(where, "province_id = ?")
		args = append(args, *f.ProvinceID)
	}
	if f.CityID != nil {
		where = append(where, "city_id = ?")
		args = append(args, *f.CityID)
	}
	q := "SELECT " + donationColumns + " FROM donations"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Donation{}
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateStatus writes the status block of d if the stored status is still
// from. A concurrent reviewer that got there first makes this return
// model.ErrInvalidTransition.
func (r *DonationRepo) UpdateStatus(ctx context.Context, d model.Donation, from model.DonationStatus) error {
	const q = `UPDATE donations SET status = ?, reviewed_by = ?, reviewed_at = ?, reject_reason = ?,
distributed_by = ?, distributed_at = ? WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q,
		string(d.Status), nullUint(d.ReviewedBy), nullTime(d.ReviewedAt), d.RejectReason,
		nullUint(d.DistributedBy), nullTime(d.DistributedAt), d.ID, string(from))
	return expectOne(res, err, model.ErrInvalidTransition)
}

func scanDonation(s rowScanner) (model.Donation, error) {
	var (
		d                     model.Donation
		typ, status           string
		quantity              sql.NullInt64
		itemName, itemCond    sql.NullString
		province, city        sql.NullInt64
		reviewedBy, distribBy sql.NullInt64
		reviewedAt, distribAt sql.NullTime
	)
	err := s.Scan(&d.ID, &d.ReceiptID, &d.DonorName, &d.DonorEmail, &d.DonorPhone, &typ, &d.Amount, &quantity,
		&itemName, &itemCond, &province, &city, &d.Notes, &status, &reviewedBy, &reviewedAt,
		&d.RejectReason, &distribBy, &distribAt, &d.CreatedAt)
	if err != nil {
		return model.Donation{}, err
	}
	d.Type = model.DonationType(typ)
	d.Status = model.DonationStatus(status)
	if quantity.Valid {
		q := int(quantity.Int64)
		d.Quantity = &q
	}
	if itemName.Valid {
		d.ItemName = &itemName.String
	}
	if itemCond.Valid {
		d.ItemCondition = &itemCond.String
	}
	d.ProvinceID = uintFromNull(province)
	d.CityID = uintFromNull(city)
	d.ReviewedBy = uintFromNull(reviewedBy)
	d.DistributedBy = uintFromNull(distribBy)
	if reviewedAt.Valid {
		d.ReviewedAt = &reviewedAt.Time
	}
	if distribAt.Valid {
		d.DistributedAt = &distribAt.Time
	}
	return d, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
