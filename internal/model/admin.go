package model

import "time"

// AdminIdentity represents an administrator record as stored in the
// `admins` table. Rows are never deleted; deactivation flips IsActive.
//
// Fields:
//  ID           – primary key identifier.
//  Name         – display name.
//  Email        – unique, lower-cased email address.
//  Username     – unique login handle.
//  PasswordHash – bcrypt hash of the password.
//  Role         – one of the Role constants.
//  ProvinceID   – province scope (PROVINCE_ADMIN), nullable.
//  CityID       – city scope (VOLUNTEER), nullable.
//  IsActive     – inactive identities cannot log in.
//  CreatedAt    – timestamp of creation.
//  LastLoginAt  – set after each successful OTP verification.
type AdminIdentity struct {
	ID           uint64     // admins.id
	Name         string     // admins.name
	Email        string     // admins.email
	Username     string     // admins.username
	PasswordHash string     // admins.password_hash
	Role         Role       // admins.role
	ProvinceID   *uint64    // admins.province_id (nullable)
	CityID       *uint64    // admins.city_id (nullable)
	IsActive     bool       // admins.is_active
	CreatedAt    time.Time  // admins.created_at
	LastLoginAt  *time.Time // admins.last_login_at (nullable)
}

// Scope returns the admin's geographic scope.
func (a AdminIdentity) Scope() Scope {
	return Scope{ProvinceID: a.ProvinceID, CityID: a.CityID}
}
