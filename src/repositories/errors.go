package repositories

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound indicates no row matched
	ErrNotFound = errors.New("record not found")

	// ErrConflict indicates a conditional update found the row in another state
	ErrConflict = errors.New("record state changed")

	// ErrDuplicate indicates a unique constraint rejected the write
	ErrDuplicate = errors.New("duplicate record")
)

// isUniqueViolation recognises unique constraint errors from both drivers
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
