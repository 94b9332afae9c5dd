package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/relief-coordination/internal/model"
)

// ReferenceRepo reads and seeds provinces and cities. Cities reference
// provinces with ON DELETE RESTRICT, so provinces are never removed here.
type ReferenceRepo struct{ DB *sql.DB }

func NewReferenceRepo(db *sql.DB) *ReferenceRepo { return &ReferenceRepo{DB: db} }

// ListProvinces returns all provinces ordered by name.
func (r *ReferenceRepo) ListProvinces(ctx context.Context) ([]model.Province, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT id, name FROM provinces ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Province{}
	for rows.Next() {
		var p model.Province
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListCities returns the cities of a province ordered by name.
func (r *ReferenceRepo) ListCities(ctx context.Context, provinceID uint64) ([]model.City, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, province_id, name, lat, lng FROM cities WHERE province_id=? ORDER BY name", provinceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.City{}
	for rows.Next() {
		var (
			c        model.City
			lat, lng sql.NullFloat64
		)
		if err := rows.Scan(&c.ID, &c.ProvinceID, &c.Name, &lat, &lng); err != nil {
			return nil, err
		}
		if lat.Valid && lng.Valid {
			c.Lat, c.Lng = &lat.Float64, &lng.Float64
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ProvinceExists reports whether a province with id exists.
func (r *ReferenceRepo) ProvinceExists(ctx context.Context, id uint64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM provinces WHERE id=? LIMIT 1", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// CityProvince returns the province a city belongs to, or model.ErrNotFound.
func (r *ReferenceRepo) CityProvince(ctx context.Context, cityID uint64) (uint64, error) {
	var pid uint64
	err := r.DB.QueryRowContext(ctx, "SELECT province_id FROM cities WHERE id=? LIMIT 1", cityID).Scan(&pid)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, model.ErrNotFound
	}
	return pid, err
}

// UpsertProvince inserts a province by name if missing and returns its id.
func (r *ReferenceRepo) UpsertProvince(ctx context.Context, name string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO provinces (name) VALUES (?) ON DUPLICATE KEY UPDATE id=LAST_INSERT_ID(id)", name)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// UpsertCity inserts or refreshes a city within a province and returns its id.
func (r *ReferenceRepo) UpsertCity(ctx context.Context, c model.City) (uint64, error) {
	var lat, lng sql.NullFloat64
	if c.Lat != nil && c.Lng != nil {
		lat = sql.NullFloat64{Float64: *c.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: *c.Lng, Valid: true}
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO cities (province_id, name, lat, lng) VALUES (?,?,?,?)
		 ON DUPLICATE KEY UPDATE id=LAST_INSERT_ID(id), lat=VALUES(lat), lng=VALUES(lng)`,
		c.ProvinceID, c.Name, lat, lng)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}
