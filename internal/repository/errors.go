// Package repository holds the MySQL-backed stores. Lookups that find no
// row return model.ErrNotFound; conditional updates that lose a race return
// the caller-supplied sentinel so services can report the right conflict.
package repository

import "database/sql"

// expectOne checks that a guarded UPDATE touched exactly one row. A miss
// means the guard no longer held and lost is returned.
func expectOne(res sql.Result, err error, lost error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return lost
	}
	return nil
}
