package repositories

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrSchemaMissing means EnsureSchema has not run against this database.
	ErrSchemaMissing = errors.New("render_queue schema not initialized")
	ErrDuplicateJob  = errors.New("render job id already recorded")
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUndefinedTable(err error) bool {
	return pgCode(err) == pgerrcode.UndefinedTable
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == pgerrcode.UniqueViolation
}
