package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/relief-coordination/internal/database"
	"github.com/iliyamo/relief-coordination/internal/model"
)

// AdminRepo is the credential store over the `admins` table.
type AdminRepo struct{ DB *sql.DB }

func NewAdminRepo(db *sql.DB) *AdminRepo { return &AdminRepo{DB: db} }

const adminColumns = "id,name,email,username,password_hash,role,province_id,city_id,is_active,created_at,last_login_at"

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Create inserts a new admin and fills in its ID and CreatedAt.
func (r *AdminRepo) Create(ctx context.Context, a *model.AdminIdentity) error {
	return insertAdmin(ctx, r.DB, a)
}

func insertAdmin(ctx context.Context, ex execer, a *model.AdminIdentity) error {
	a.Email = normalizeEmail(a.Email)
	a.Username = strings.TrimSpace(a.Username)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	res, err := ex.ExecContext(ctx,
		"INSERT INTO admins (name, email, username, password_hash, role, province_id, city_id, is_active, created_at) VALUES (?,?,?,?,?,?,?,?,?)",
		a.Name, a.Email, a.Username, a.PasswordHash, string(a.Role), nullUint(a.ProvinceID), nullUint(a.CityID), a.IsActive, a.CreatedAt)
	if err != nil {
		return mapAdminDuplicate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

func mapAdminDuplicate(err error) error {
	key := strings.ToLower(database.DuplicateKey(err))
	switch {
	case key == "":
		return err
	case strings.Contains(key, "username"):
		return model.ErrUsernameExists
	default:
		return model.ErrEmailExists
	}
}

// GetByIdentifier looks an admin up by email or username. An identifier
// containing '@' is treated as an email.
func (r *AdminRepo) GetByIdentifier(ctx context.Context, identifier string) (model.AdminIdentity, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return r.GetByEmail(ctx, identifier)
	}
	return r.getOne(ctx, "SELECT "+adminColumns+" FROM admins WHERE username=? LIMIT 1", identifier)
}

// GetByEmail fetches an admin by normalized email.
func (r *AdminRepo) GetByEmail(ctx context.Context, email string) (model.AdminIdentity, error) {
	return r.getOne(ctx, "SELECT "+adminColumns+" FROM admins WHERE email=? LIMIT 1", normalizeEmail(email))
}

// GetByID fetches an admin by id.
func (r *AdminRepo) GetByID(ctx context.Context, id uint64) (model.AdminIdentity, error) {
	return r.getOne(ctx, "SELECT "+adminColumns+" FROM admins WHERE id=? LIMIT 1", id)
}

// EmailExists reports whether any admin, active or not, uses email.
func (r *AdminRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM admins WHERE email=?", normalizeEmail(email)).Scan(&n)
	return n > 0, err
}

// List returns all admins ordered by id.
func (r *AdminRepo) List(ctx context.Context) ([]model.AdminIdentity, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+adminColumns+" FROM admins ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.AdminIdentity{}
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// TouchLastLogin records a successful login.
func (r *AdminRepo) TouchLastLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE admins SET last_login_at=? WHERE id=?", at, id)
	return err
}

// SetActive flips the soft-delete flag. Unknown ids yield model.ErrNotFound.
func (r *AdminRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE admins SET is_active=? WHERE id=?", active, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 affected rows when the value is unchanged too.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *AdminRepo) getOne(ctx context.Context, q string, arg any) (model.AdminIdentity, error) {
	a, err := scanAdmin(r.DB.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return model.AdminIdentity{}, model.ErrNotFound
	}
	return a, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAdmin(s rowScanner) (model.AdminIdentity, error) {
	var (
		a         model.AdminIdentity
		role      string
		province  sql.NullInt64
		city      sql.NullInt64
		lastLogin sql.NullTime
	)
	err := s.Scan(&a.ID, &a.Name, &a.Email, &a.Username, &a.PasswordHash, &role,
		&province, &city, &a.IsActive, &a.CreatedAt, &lastLogin)
	if err != nil {
		return model.AdminIdentity{}, err
	}
	a.Role = model.Role(role)
	a.ProvinceID = uintFromNull(province)
	a.CityID = uintFromNull(city)
	if lastLogin.Valid {
		t := lastLogin.Time
		a.LastLoginAt = &t
	}
	return a, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nullUint(v *uint64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func uintFromNull(n sql.NullInt64) *uint64 {
	if !n.Valid {
		return nil
	}
	v := uint64(n.Int64)
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
