package db

import "gorm.io/gorm"

// ForUpdate returns the row-locking suffix for raw SELECT statements.
// SQLite serializes writers at the database level and rejects the clause.
func ForUpdate(tx *gorm.DB) string {
	if tx == nil || tx.Dialector == nil || tx.Dialector.Name() == "sqlite" {
		return ""
	}
	return " FOR UPDATE"
}
